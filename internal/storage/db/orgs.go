package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrLastOwner = errors.New("cannot remove the last owner of an organization")

func (q *Queries) CreateOrganization(ctx context.Context, name, slug string) (Organization, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO organizations (name, slug, status) VALUES ($1, $2, 'active')
		RETURNING id, name, slug, status, deleted_at, created_at
	`, name, slug)
	return scanOrganization(row)
}

func (q *Queries) GetOrganizationByID(ctx context.Context, id uuid.UUID) (Organization, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, name, slug, status, deleted_at, created_at
		FROM organizations WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanOrganization(row)
}

func (q *Queries) GetOrganizationBySlug(ctx context.Context, slug string) (Organization, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, name, slug, status, deleted_at, created_at
		FROM organizations WHERE slug = $1 AND deleted_at IS NULL
	`, slug)
	return scanOrganization(row)
}

func scanOrganization(row pgx.Row) (Organization, error) {
	var o Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Status, &o.DeletedAt, &o.CreatedAt); err != nil {
		return Organization{}, err
	}
	return o, nil
}

func (q *Queries) ListUserOrganizations(ctx context.Context, userID uuid.UUID) ([]Organization, error) {
	rows, err := q.db.Query(ctx, `
		SELECT o.id, o.name, o.slug, o.status, o.deleted_at, o.created_at
		FROM organizations o
		JOIN org_members m ON m.org_id = o.id
		WHERE m.user_id = $1 AND o.deleted_at IS NULL
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		o, err := scanOrganizationRows(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func scanOrganizationRows(rows pgx.Rows) (Organization, error) {
	var o Organization
	err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Status, &o.DeletedAt, &o.CreatedAt)
	return o, err
}

// GetOrgMemberRole returns the caller's role in org, or pgx.ErrNoRows if absent.
// This is the first gate every PDP decision goes through.
func (q *Queries) GetOrgMemberRole(ctx context.Context, userID, orgID uuid.UUID) (OrgRole, error) {
	var role OrgRole
	err := q.db.QueryRow(ctx, `
		SELECT role FROM org_members WHERE user_id = $1 AND org_id = $2
	`, userID, orgID).Scan(&role)
	return role, err
}

func (q *Queries) AddOrgMember(ctx context.Context, userID, orgID uuid.UUID, role OrgRole) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO org_members (user_id, org_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, org_id) DO UPDATE SET role = EXCLUDED.role
	`, userID, orgID, role)
	return err
}

// RemoveOrgMember removes a membership, refusing to remove the organization's
// last owner (spec §3 invariant).
func (q *Queries) RemoveOrgMember(ctx context.Context, userID, orgID uuid.UUID) error {
	var role OrgRole
	err := q.db.QueryRow(ctx, `SELECT role FROM org_members WHERE user_id = $1 AND org_id = $2`, userID, orgID).Scan(&role)
	if err != nil {
		return err
	}

	if role == RoleOwner {
		var ownerCount int
		if err := q.db.QueryRow(ctx, `
			SELECT count(*) FROM org_members WHERE org_id = $1 AND role = 'owner'
		`, orgID).Scan(&ownerCount); err != nil {
			return err
		}
		if ownerCount <= 1 {
			return ErrLastOwner
		}
	}

	_, err = q.db.Exec(ctx, `DELETE FROM org_members WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	return err
}

func (q *Queries) UpdateOrgMemberRole(ctx context.Context, userID, orgID uuid.UUID, newRole OrgRole) error {
	var role OrgRole
	err := q.db.QueryRow(ctx, `SELECT role FROM org_members WHERE user_id = $1 AND org_id = $2`, userID, orgID).Scan(&role)
	if err != nil {
		return err
	}

	if role == RoleOwner && newRole != RoleOwner {
		var ownerCount int
		if err := q.db.QueryRow(ctx, `
			SELECT count(*) FROM org_members WHERE org_id = $1 AND role = 'owner'
		`, orgID).Scan(&ownerCount); err != nil {
			return err
		}
		if ownerCount <= 1 {
			return ErrLastOwner
		}
	}

	_, err = q.db.Exec(ctx, `UPDATE org_members SET role = $3 WHERE user_id = $1 AND org_id = $2`, userID, orgID, newRole)
	return err
}

func (q *Queries) ListOrgMembers(ctx context.Context, orgID uuid.UUID) ([]OrgMember, error) {
	rows, err := q.db.Query(ctx, `
		SELECT user_id, org_id, role, created_at FROM org_members WHERE org_id = $1
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []OrgMember
	for rows.Next() {
		var m OrgMember
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
