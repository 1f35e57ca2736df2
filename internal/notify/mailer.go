// Package notify sends the transactional emails the credential lifecycle
// needs. It is a thin boundary interface: SMTP is consumed only through
// EmailSender (see SPEC_FULL.md §6), so production wiring can later swap
// DevMailer for a real provider without touching any caller.
package notify

import (
	"context"
	"log/slog"
)

// EmailSender is every outbound message the auth flows need to send.
type EmailSender interface {
	SendInvitation(ctx context.Context, toEmail, orgName, token string) error
	SendPasswordReset(ctx context.Context, toEmail, token string) error
	SendVerification(ctx context.Context, toEmail, token string) error
	SendMFACode(ctx context.Context, toEmail, code string) error
}

// DevMailer logs emails instead of sending them; the default outside of a
// production SMTP wiring.
type DevMailer struct {
	logger *slog.Logger
}

func NewDevMailer(logger *slog.Logger) *DevMailer {
	return &DevMailer{logger: logger}
}

func (m *DevMailer) SendInvitation(ctx context.Context, toEmail, orgName, token string) error {
	m.logger.Info("email: invitation", "to", toEmail, "org", orgName, "token", token)
	return nil
}

func (m *DevMailer) SendPasswordReset(ctx context.Context, toEmail, token string) error {
	m.logger.Info("email: password reset", "to", toEmail, "token", token)
	return nil
}

func (m *DevMailer) SendVerification(ctx context.Context, toEmail, token string) error {
	m.logger.Info("email: verification", "to", toEmail, "token", token)
	return nil
}

func (m *DevMailer) SendMFACode(ctx context.Context, toEmail, code string) error {
	m.logger.Info("email: mfa code", "to", toEmail, "code", code)
	return nil
}
