package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// ==================== UUID & TOKEN ====================

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

func GenerateSessionToken() uuid.UUID {
	return uuid.New()
}

// ==================== ONE-TIME CODES ====================

const (
	codeMin = 100000
	codeMax = 999999
)

// CodeGenerator mints single-use verification and reset codes.
type CodeGenerator interface {
	Next() (string, error)
}

// RandomCodeGenerator draws 6-digit codes from crypto/rand.
type RandomCodeGenerator struct{}

func NewCodeGenerator() RandomCodeGenerator {
	return RandomCodeGenerator{}
}

// Next returns a code in [100000, 999999], always six digits.
func (RandomCodeGenerator) Next() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
