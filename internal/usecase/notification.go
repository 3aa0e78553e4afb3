package usecase

import (
	"context"
	"fmt"
	"html"
	"time"

	"account-service/pkg/mailer"
	"account-service/pkg/metrics"

	"go.uber.org/zap"
)

// Notifier delivers the one-time codes. A returned error means the mail was not
// handed to the relay; callers treat that as a degraded, not failed, operation.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error
	SendPasswordResetCode(ctx context.Context, email, code string, ttl time.Duration) error
}

type mailNotifier struct {
	mailer  mailer.Mailer
	appName string
	timeout time.Duration
	log     *zap.Logger
}

func NewNotifier(m mailer.Mailer, appName string, log *zap.Logger) Notifier {
	return &mailNotifier{
		mailer:  m,
		appName: appName,
		timeout: 15 * time.Second,
		log:     log.With(zap.String("service", "notification")),
	}
}

func (n *mailNotifier) SendVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error {
	subject := fmt.Sprintf("%s - confirm your e-mail", n.appName)
	body := codeMailBody(
		"Confirm your e-mail",
		"Use the code below to activate your account.",
		code,
		ttl,
	)
	return n.send(ctx, "verification", email, subject, body)
}

func (n *mailNotifier) SendPasswordResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	subject := fmt.Sprintf("%s - password reset", n.appName)
	body := codeMailBody(
		"Password reset",
		"Use the code below to choose a new password. If you did not ask for it, ignore this e-mail.",
		code,
		ttl,
	)
	return n.send(ctx, "password_reset", email, subject, body)
}

func (n *mailNotifier) send(ctx context.Context, kind, email, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.mailer.Send(ctx, email, subject, body); err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "failed").Inc()
		n.log.Error("Failed to send notification",
			zap.Error(err),
			zap.String("kind", kind),
			zap.String("email", email),
		)
		return fmt.Errorf("send %s mail to %s: %w", kind, email, err)
	}

	metrics.NotificationsTotal.WithLabelValues(kind, "sent").Inc()
	n.log.Info("Notification sent", zap.String("kind", kind), zap.String("email", email))
	return nil
}

func codeMailBody(title, intro, code string, ttl time.Duration) string {
	return fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>%s</h2>
  <p>%s</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">%s</p>
  <p>The code expires in %s.</p>
</body>
</html>`, html.EscapeString(title), html.EscapeString(intro), html.EscapeString(code), formatTTL(ttl))
}

func formatTTL(ttl time.Duration) string {
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		hours := int(ttl / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	case ttl >= time.Minute:
		return fmt.Sprintf("%d minutes", int(ttl/time.Minute))
	default:
		return ttl.String()
	}
}
