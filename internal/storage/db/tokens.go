package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrTokenAlreadyRotated means RotateRefreshToken's guard found the token
// already revoked by a concurrent rotation - the caller lost the race and
// should treat it the same as reuse of a stolen token.
var ErrTokenAlreadyRotated = errors.New("refresh token already rotated")

type CreateRefreshTokenParams struct {
	JTI       string
	UserID    uuid.UUID
	TokenHash string
	FamilyID  uuid.UUID
	ExpiresAt time.Time
}

func (q *Queries) CreateRefreshToken(ctx context.Context, arg CreateRefreshTokenParams) (RefreshToken, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO refresh_tokens (jti, user_id, token_hash, family_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, jti, user_id, token_hash, family_id, expires_at, created_at, revoked_at, revoked
	`, arg.JTI, arg.UserID, arg.TokenHash, arg.FamilyID, arg.ExpiresAt)
	return scanRefreshToken(row)
}

func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, jti, user_id, token_hash, family_id, expires_at, created_at, revoked_at, revoked
		FROM refresh_tokens WHERE token_hash = $1
	`, tokenHash)
	return scanRefreshToken(row)
}

// GetRefreshTokenByHashForUpdate locks the row for the duration of the caller's
// transaction. A second rotation attempt on the same token blocks here until
// the first commits, then observes the row already revoked - the serialization
// RefreshSession relies on to treat a concurrent loser as reuse.
func (q *Queries) GetRefreshTokenByHashForUpdate(ctx context.Context, tokenHash string) (RefreshToken, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, jti, user_id, token_hash, family_id, expires_at, created_at, revoked_at, revoked
		FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE
	`, tokenHash)
	return scanRefreshToken(row)
}

func scanRefreshToken(row pgx.Row) (RefreshToken, error) {
	var t RefreshToken
	err := row.Scan(&t.ID, &t.JTI, &t.UserID, &t.TokenHash, &t.FamilyID, &t.ExpiresAt,
		&t.CreatedAt, &t.RevokedAt, &t.Revoked)
	if err != nil {
		return RefreshToken{}, err
	}
	return t, nil
}

// RevokeRefreshToken marks a single token revoked, used on logout of one session.
func (q *Queries) RevokeRefreshToken(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = true, revoked_at = now() WHERE id = $1
	`, id)
	return err
}

// RevokeTokenFamily revokes every token sharing familyID. Called on reuse
// detection, so every descendant of a stolen token dies with it.
func (q *Queries) RevokeTokenFamily(ctx context.Context, familyID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = true, revoked_at = now()
		WHERE family_id = $1 AND revoked = false
	`, familyID)
	return err
}

// RotateRefreshToken revokes the presented token and inserts its replacement
// within the same family, in one round trip. The WHERE revoked = false guard
// makes the UPDATE itself conditional: callers are expected to run this inside
// a transaction that already holds the row lock (see
// GetRefreshTokenByHashForUpdate), so RowsAffected() == 0 here means a
// concurrent rotation won the race first, not that id was simply missing.
func (q *Queries) RotateRefreshToken(ctx context.Context, oldID uuid.UUID, arg CreateRefreshTokenParams) (RefreshToken, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = true, revoked_at = now() WHERE id = $1 AND revoked = false
	`, oldID)
	if err != nil {
		return RefreshToken{}, err
	}
	if tag.RowsAffected() == 0 {
		return RefreshToken{}, ErrTokenAlreadyRotated
	}
	return q.CreateRefreshToken(ctx, arg)
}

func (q *Queries) ListUserSessions(ctx context.Context, userID uuid.UUID) ([]RefreshToken, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, jti, user_id, token_hash, family_id, expires_at, created_at, revoked_at, revoked
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = false AND expires_at > now()
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []RefreshToken
	for rows.Next() {
		t, err := scanRefreshTokenRows(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func scanRefreshTokenRows(rows pgx.Rows) (RefreshToken, error) {
	var t RefreshToken
	err := rows.Scan(&t.ID, &t.JTI, &t.UserID, &t.TokenHash, &t.FamilyID, &t.ExpiresAt,
		&t.CreatedAt, &t.RevokedAt, &t.Revoked)
	return t, err
}

func (q *Queries) CleanExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now() - interval '30 days'`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type CreateVerificationTokenParams struct {
	UserID    uuid.UUID
	TokenHash string
	Type      VerificationTokenType
	ExpiresAt time.Time
}

func (q *Queries) CreateVerificationToken(ctx context.Context, arg CreateVerificationTokenParams) (VerificationToken, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO verification_tokens (user_id, token_hash, type, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, token_hash, type, expires_at, created_at
	`, arg.UserID, arg.TokenHash, arg.Type, arg.ExpiresAt)
	var t VerificationToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Type, &t.ExpiresAt, &t.CreatedAt)
	return t, err
}

func (q *Queries) GetVerificationToken(ctx context.Context, tokenHash string, typ VerificationTokenType) (VerificationToken, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, type, expires_at, created_at
		FROM verification_tokens WHERE token_hash = $1 AND type = $2 AND expires_at > now()
	`, tokenHash, typ)
	var t VerificationToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Type, &t.ExpiresAt, &t.CreatedAt)
	return t, err
}

func (q *Queries) DeleteVerificationToken(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM verification_tokens WHERE id = $1`, id)
	return err
}

// DeleteVerificationTokensForUser invalidates any outstanding token of typ for
// userID, used before issuing a fresh one so only the latest request is valid.
func (q *Queries) DeleteVerificationTokensForUser(ctx context.Context, userID uuid.UUID, typ VerificationTokenType) error {
	_, err := q.db.Exec(ctx, `DELETE FROM verification_tokens WHERE user_id = $1 AND type = $2`, userID, typ)
	return err
}

func (q *Queries) CleanExpiredVerificationTokens(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
