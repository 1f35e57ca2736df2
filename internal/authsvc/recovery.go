package authsvc

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/storage/db"
)

// RequestPasswordReset always returns nil on a well-formed email, whether or
// not an account exists for it - silence is golden, an attacker learns
// nothing about which addresses are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	q := s.queries()
	user, err := q.GetUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := crypto.GenerateOpaqueToken(32)
	if err != nil {
		return err
	}

	if err := q.DeleteVerificationTokensForUser(ctx, user.ID, db.VerificationTypePasswordReset); err != nil {
		return err
	}
	_, err = q.CreateVerificationToken(ctx, db.CreateVerificationTokenParams{
		UserID: user.ID, TokenHash: crypto.HashToken(raw), Type: db.VerificationTypePasswordReset,
		ExpiresAt: time.Now().Add(s.cfg.PasswordResetTTL),
	})
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, raw); err != nil {
		s.logger.Error("failed to send password reset email", "error", err, "user_id", user.ID)
	}
	return nil
}

// ResetPassword redeems a reset token and sets a new password, revoking every
// outstanding session in the process.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	q := s.queries()
	vt, err := q.GetVerificationToken(ctx, crypto.HashToken(rawToken), db.VerificationTypePasswordReset)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindInvalidToken, "reset token is invalid or expired")
	}
	if err != nil {
		return err
	}

	hash, err := s.hashPool.Do(ctx, func() (string, error) { return s.hasher.Hash(newPassword) })
	if err != nil {
		return err
	}
	if err := q.UpdateUserPassword(ctx, vt.UserID, hash); err != nil {
		return err
	}
	if err := q.DeleteVerificationToken(ctx, vt.ID); err != nil {
		return err
	}

	sessions, err := q.ListUserSessions(ctx, vt.UserID)
	if err != nil {
		s.logger.Warn("failed to list sessions for revocation after password reset", "error", err, "user_id", vt.UserID)
		return nil
	}
	for _, sess := range sessions {
		if err := q.RevokeRefreshToken(ctx, sess.ID); err != nil {
			s.logger.Warn("failed to revoke session after password reset", "error", err, "token_id", sess.ID)
		}
	}
	return nil
}
