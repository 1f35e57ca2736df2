package authsvc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/storage/db"
)

// issueSession mints a fresh access/refresh pair and starts a new rotation
// family for it.
func (s *Service) issueSession(ctx context.Context, userID, orgID uuid.UUID, ip, userAgent string) (accessToken, refreshToken string, err error) {
	accessToken, err = s.tokens.GenerateAccessToken(userID, orgID, nil)
	if err != nil {
		return "", "", err
	}

	raw, err := crypto.GenerateOpaqueToken(32)
	if err != nil {
		return "", "", err
	}

	q := s.queries()
	_, err = q.CreateRefreshToken(ctx, db.CreateRefreshTokenParams{
		JTI: uuid.NewString(), UserID: userID, TokenHash: crypto.HashToken(raw),
		FamilyID: uuid.New(), ExpiresAt: time.Now().Add(s.cfg.RefreshTokenTTL),
	})
	if err != nil {
		return "", "", err
	}
	return accessToken, raw, nil
}

// RefreshResult is the outcome of a successful rotation.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// RefreshSession rotates a presented refresh token. Lookup, revoke, and
// insert all run inside one transaction holding a row lock on the presented
// token (see GetRefreshTokenByHashForUpdate), so concurrent refresh attempts
// on the same token serialize: the second transaction blocks until the first
// commits, then observes the row already revoked and is treated as reuse of a
// stolen token - the entire rotation family and every other active refresh
// token of that user are revoked, forcing the legitimate holder back through
// login.
func (s *Service) RefreshSession(ctx context.Context, rawToken, ip, userAgent string) (RefreshResult, error) {
	hash := crypto.HashToken(rawToken)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	defer tx.Rollback(ctx)
	q := db.New(tx)

	existing, err := q.GetRefreshTokenByHashForUpdate(ctx, hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return RefreshResult{}, apperr.New(apperr.KindInvalidToken, "refresh token is invalid")
	}
	if err != nil {
		return RefreshResult{}, err
	}

	if existing.Revoked {
		if revokeErr := q.RevokeTokenFamily(ctx, existing.FamilyID); revokeErr != nil {
			s.logger.Error("failed to revoke token family after reuse detection", "error", revokeErr, "family_id", existing.FamilyID)
		}
		sessions, listErr := q.ListUserSessions(ctx, existing.UserID)
		if listErr != nil {
			s.logger.Error("failed to list user sessions after reuse detection", "error", listErr, "user_id", existing.UserID)
		}
		for _, t := range sessions {
			if revokeErr := q.RevokeRefreshToken(ctx, t.ID); revokeErr != nil {
				s.logger.Error("failed to revoke user session after reuse detection", "error", revokeErr, "token_id", t.ID)
			}
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			s.logger.Error("failed to commit reuse-detection revoke", "error", commitErr, "family_id", existing.FamilyID)
		}
		s.logger.Warn("refresh token reuse detected, all user sessions revoked", "user_id", existing.UserID, "family_id", existing.FamilyID)
		return RefreshResult{}, apperr.New(apperr.KindTokenReuseDetected, "refresh token reuse detected, all of this user's sessions were revoked")
	}

	if time.Now().After(existing.ExpiresAt) {
		return RefreshResult{}, apperr.New(apperr.KindTokenExpired, "refresh token has expired")
	}

	user, err := q.GetUserByID(ctx, existing.UserID)
	if err != nil {
		return RefreshResult{}, err
	}

	orgs, err := q.ListUserOrganizations(ctx, user.ID)
	if err != nil {
		return RefreshResult{}, err
	}
	var orgID uuid.UUID
	if len(orgs) > 0 {
		orgID = orgs[0].ID
	}

	access, err := s.tokens.GenerateAccessToken(user.ID, orgID, nil)
	if err != nil {
		return RefreshResult{}, err
	}

	rawNext, err := crypto.GenerateOpaqueToken(32)
	if err != nil {
		return RefreshResult{}, err
	}

	if _, err := q.RotateRefreshToken(ctx, existing.ID, db.CreateRefreshTokenParams{
		JTI: uuid.NewString(), UserID: user.ID, TokenHash: crypto.HashToken(rawNext),
		FamilyID: existing.FamilyID, ExpiresAt: time.Now().Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		if errors.Is(err, db.ErrTokenAlreadyRotated) {
			return RefreshResult{}, apperr.New(apperr.KindTokenReuseDetected, "refresh token reuse detected, this token was already rotated")
		}
		return RefreshResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RefreshResult{}, err
	}

	return RefreshResult{AccessToken: access, RefreshToken: rawNext}, nil
}

// Logout revokes a single session without touching the rest of its family.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	q := s.queries()
	existing, err := q.GetRefreshTokenByHash(ctx, crypto.HashToken(rawToken))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil // already gone; logout is idempotent
	}
	if err != nil {
		return err
	}
	return q.RevokeRefreshToken(ctx, existing.ID)
}

// ListSessions returns every active refresh-token-backed session for a user,
// for the "view and revoke my other sessions" account security page.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID) ([]db.RefreshToken, error) {
	return s.queries().ListUserSessions(ctx, userID)
}

// RevokeSession revokes one session by id, only if it belongs to userID.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	sessions, err := s.queries().ListUserSessions(ctx, userID)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if sess.ID == sessionID {
			return s.queries().RevokeRefreshToken(ctx, sessionID)
		}
	}
	return apperr.New(apperr.KindNotFound, "session not found")
}

// ValidateAccessToken is a thin pass-through to the token provider, kept here
// so handlers depend on Service rather than crypto directly.
func (s *Service) ValidateAccessToken(tokenString string) (*crypto.Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		if errors.Is(err, crypto.ErrExpiredToken) {
			return nil, apperr.New(apperr.KindTokenExpired, "access token has expired")
		}
		return nil, apperr.New(apperr.KindInvalidToken, "access token is invalid")
	}
	return claims, nil
}

// CleanExpiredRefreshTokens is called by the background janitor.
func (s *Service) CleanExpiredRefreshTokens(ctx context.Context) (int64, error) {
	return s.queries().CleanExpiredRefreshTokens(ctx)
}
