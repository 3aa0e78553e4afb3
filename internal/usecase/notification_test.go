package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedMail struct {
	to, subject, body string
}

type captureMailer struct {
	err  error
	sent []capturedMail
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, capturedMail{to: to, subject: subject, body: body})
	return nil
}

func TestMailNotifier_SendVerificationCode(t *testing.T) {
	m := &captureMailer{}
	n := NewNotifier(m, "Acme", zap.NewNop())

	require.NoError(t, n.SendVerificationCode(context.Background(), "a@x.com", "482913", 24*time.Hour))
	require.Len(t, m.sent, 1)

	mail := m.sent[0]
	assert.Equal(t, "a@x.com", mail.to)
	assert.Contains(t, mail.subject, "Acme")
	assert.Contains(t, mail.body, "482913")
	assert.Contains(t, mail.body, "24 hours")
}

func TestMailNotifier_SendPasswordResetCode(t *testing.T) {
	m := &captureMailer{}
	n := NewNotifier(m, "Acme", zap.NewNop())

	require.NoError(t, n.SendPasswordResetCode(context.Background(), "a@x.com", "111222", time.Hour))
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].subject, "password reset")
	assert.Contains(t, m.sent[0].body, "1 hour")
}

func TestMailNotifier_ReportsFailure(t *testing.T) {
	m := &captureMailer{err: errors.New("535 authentication failed")}
	n := NewNotifier(m, "Acme", zap.NewNop())

	err := n.SendVerificationCode(context.Background(), "a@x.com", "482913", time.Hour)
	assert.ErrorContains(t, err, "535")
}

func TestFormatTTL(t *testing.T) {
	assert.Equal(t, "1 hour", formatTTL(time.Hour))
	assert.Equal(t, "24 hours", formatTTL(24*time.Hour))
	assert.Equal(t, "90 minutes", formatTTL(90*time.Minute))
	assert.Equal(t, "30s", formatTTL(30*time.Second))
}
