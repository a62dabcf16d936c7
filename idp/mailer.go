package idp

import (
	"context"

	"go.uber.org/zap"
)

// Mailer dispatches the provider's transactional email.
type Mailer interface {
	SendVerification(ctx context.Context, email, returnURL string) error
	SendPasswordReset(ctx context.Context, email string) error
}

// LogMailer is the development Mailer: it logs instead of sending.
type LogMailer struct {
	Log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{Log: log}
}

func (m *LogMailer) SendVerification(ctx context.Context, email, returnURL string) error {
	m.Log.Info("verification email dispatched",
		zap.String("email", email),
		zap.String("return_url", returnURL),
	)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email string) error {
	m.Log.Info("password reset email dispatched", zap.String("email", email))
	return nil
}
