package usecase

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func mustParseToken(t *testing.T, token string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(token)
	require.NoError(t, err)
	return id
}

func isOneOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
