package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type CreateInvitationParams struct {
	Email     string
	TokenHash string
	OrgID     uuid.UUID
	Role      OrgRole
	ExpiresAt time.Time
}

func (q *Queries) CreateInvitation(ctx context.Context, arg CreateInvitationParams) (Invitation, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO invitations (email, token_hash, org_id, role, expires_at)
		VALUES (lower($1), $2, $3, $4, $5)
		RETURNING id, email, token_hash, org_id, role, expires_at, created_at
	`, arg.Email, arg.TokenHash, arg.OrgID, arg.Role, arg.ExpiresAt)
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.Email, &inv.TokenHash, &inv.OrgID, &inv.Role, &inv.ExpiresAt, &inv.CreatedAt)
	return inv, err
}

func (q *Queries) GetInvitationByTokenHash(ctx context.Context, tokenHash string) (Invitation, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, email, token_hash, org_id, role, expires_at, created_at
		FROM invitations WHERE token_hash = $1 AND expires_at > now()
	`, tokenHash)
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.Email, &inv.TokenHash, &inv.OrgID, &inv.Role, &inv.ExpiresAt, &inv.CreatedAt)
	return inv, err
}

func (q *Queries) DeleteInvitation(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	return err
}

func (q *Queries) ListOrgInvitations(ctx context.Context, orgID uuid.UUID) ([]Invitation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, email, token_hash, org_id, role, expires_at, created_at
		FROM invitations WHERE org_id = $1 AND expires_at > now()
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []Invitation
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.TokenHash, &inv.OrgID, &inv.Role, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

func (q *Queries) CleanExpiredInvitations(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM invitations WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
