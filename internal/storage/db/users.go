package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNoRows is returned in place of pgx.ErrNoRows so callers don't need to
// import pgx just to check for a missing row.
var ErrNoRows = pgx.ErrNoRows

type CreateUserParams struct {
	Email        string
	Username     string
	PasswordHash string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (email, username, password_hash, verified, status)
		VALUES (lower($1), $2, $3, false, 'active')
		RETURNING id, email, username, password_hash, verified, status, ban_expires_at,
		          two_factor_enabled, two_factor_secret, failed_login_count, created_at, updated_at
	`, arg.Email, arg.Username, arg.PasswordHash)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, email, username, password_hash, verified, status, ban_expires_at,
		       two_factor_enabled, two_factor_secret, failed_login_count, created_at, updated_at
		FROM users WHERE email = lower($1) AND status != 'deleted'
	`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, email, username, password_hash, verified, status, ban_expires_at,
		       two_factor_enabled, two_factor_secret, failed_login_count, created_at, updated_at
		FROM users WHERE id = $1 AND status != 'deleted'
	`, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Verified, &u.Status,
		&u.BanExpiresAt, &u.TwoFactorEnabled, &u.TwoFactorSecret, &u.FailedLoginCount,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (q *Queries) VerifyUserEmail(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET verified = true, updated_at = now() WHERE id = $1`, id)
	return err
}

func (q *Queries) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	return err
}

// RecordLoginFailure increments the failed-login counter and returns the new count.
func (q *Queries) RecordLoginFailure(ctx context.Context, id uuid.UUID) (int32, error) {
	var count int32
	err := q.db.QueryRow(ctx, `
		UPDATE users SET failed_login_count = failed_login_count + 1, updated_at = now()
		WHERE id = $1 RETURNING failed_login_count
	`, id).Scan(&count)
	return count, err
}

func (q *Queries) ResetLoginFailures(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET failed_login_count = 0, updated_at = now() WHERE id = $1`, id)
	return err
}

func (q *Queries) SetUserStatus(ctx context.Context, id uuid.UUID, status UserStatus, banExpiresAt pgtype.Timestamptz) error {
	if status == UserStatusTemporarilyBanned && !banExpiresAt.Valid {
		return errors.New("temporarily_banned status requires a ban expiry")
	}
	_, err := q.db.Exec(ctx, `
		UPDATE users SET status = $2, ban_expires_at = $3, updated_at = now() WHERE id = $1
	`, id, status, banExpiresAt)
	return err
}

func (q *Queries) SetTwoFactorSecret(ctx context.Context, id uuid.UUID, sealedSecret string) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET two_factor_secret = $2, updated_at = now() WHERE id = $1`, id, sealedSecret)
	return err
}

func (q *Queries) EnableTwoFactor(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET two_factor_enabled = true, updated_at = now() WHERE id = $1`, id)
	return err
}

func (q *Queries) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE users SET two_factor_enabled = false, two_factor_secret = NULL, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	return q.DeleteBackupCodes(ctx, id)
}

func (q *Queries) ReplaceTwoFactorSecret(ctx context.Context, id uuid.UUID, sealedSecret string) error {
	return q.SetTwoFactorSecret(ctx, id, sealedSecret)
}

func (q *Queries) CreateBackupCodes(ctx context.Context, userID uuid.UUID, hashes []string) error {
	if err := q.DeleteBackupCodes(ctx, userID); err != nil {
		return err
	}
	for _, h := range hashes {
		if _, err := q.db.Exec(ctx, `INSERT INTO backup_codes (user_id, hash) VALUES ($1, $2)`, userID, h); err != nil {
			return fmt.Errorf("insert backup code: %w", err)
		}
	}
	return nil
}

func (q *Queries) DeleteBackupCodes(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID)
	return err
}

func (q *Queries) ListUnusedBackupCodes(ctx context.Context, userID uuid.UUID) ([]BackupCode, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, user_id, hash, used_at FROM backup_codes WHERE user_id = $1 AND used_at IS NULL
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []BackupCode
	for rows.Next() {
		var c BackupCode
		if err := rows.Scan(&c.ID, &c.UserID, &c.Hash, &c.UsedAt); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (q *Queries) ConsumeBackupCode(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `UPDATE backup_codes SET used_at = now() WHERE id = $1 AND used_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("backup code already used")
	}
	return nil
}

func (q *Queries) CleanExpiredUnverifiedUsers(ctx context.Context, olderThanDays int) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM users
		WHERE verified = false AND created_at < now() - ($1 || ' days')::interval
	`, olderThanDays)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
