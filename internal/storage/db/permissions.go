package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrPermissionAlreadyGranted is returned when a group already holds the
// permission being granted; callers generally treat this as a no-op success.
var ErrPermissionAlreadyGranted = errors.New("permission already granted to group")

func (q *Queries) CreatePermission(ctx context.Context, resource, action, description string) (Permission, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO permissions (resource, action, description) VALUES ($1, $2, $3)
		RETURNING id, resource, action, description, created_at
	`, resource, action, description)
	return scanPermission(row)
}

func (q *Queries) GetPermissionByName(ctx context.Context, resource, action string) (Permission, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, resource, action, description, created_at FROM permissions
		WHERE resource = $1 AND action = $2
	`, resource, action)
	return scanPermission(row)
}

func (q *Queries) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := q.db.Query(ctx, `SELECT id, resource, action, description, created_at FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		p, err := scanPermissionRows(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	if err := row.Scan(&p.ID, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
		return Permission{}, err
	}
	return p, nil
}

func scanPermissionRows(rows pgx.Rows) (Permission, error) {
	var p Permission
	err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.Description, &p.CreatedAt)
	return p, err
}

func (q *Queries) CreateGroup(ctx context.Context, orgID uuid.UUID, name, description string) (Group, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO groups (org_id, name, description) VALUES ($1, $2, $3)
		RETURNING id, org_id, name, description, created_at
	`, orgID, name, description)
	return scanGroup(row)
}

func (q *Queries) GetGroup(ctx context.Context, id uuid.UUID) (Group, error) {
	row := q.db.QueryRow(ctx, `SELECT id, org_id, name, description, created_at FROM groups WHERE id = $1`, id)
	return scanGroup(row)
}

func (q *Queries) ListGroups(ctx context.Context, orgID uuid.UUID) ([]Group, error) {
	rows, err := q.db.Query(ctx, `SELECT id, org_id, name, description, created_at FROM groups WHERE org_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.OrgID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (q *Queries) UpdateGroup(ctx context.Context, id uuid.UUID, name, description string) error {
	_, err := q.db.Exec(ctx, `UPDATE groups SET name = $2, description = $3 WHERE id = $1`, id, name, description)
	return err
}

// DeleteGroup cascades to user_groups and group_permissions via FK ON DELETE CASCADE.
func (q *Queries) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	return err
}

func scanGroup(row pgx.Row) (Group, error) {
	var g Group
	if err := row.Scan(&g.ID, &g.OrgID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
		return Group{}, err
	}
	return g, nil
}

func (q *Queries) AddUserToGroup(ctx context.Context, userID, groupID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, userID, groupID)
	return err
}

func (q *Queries) RemoveUserFromGroup(ctx context.Context, userID, groupID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	return err
}

func (q *Queries) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `SELECT user_id FROM user_groups WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type GrantPermissionParams struct {
	GroupID      uuid.UUID
	PermissionID uuid.UUID
	GrantedBy    uuid.UUID
}

func (q *Queries) GrantPermissionToGroup(ctx context.Context, arg GrantPermissionParams) error {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO group_permissions (group_id, permission_id, granted_by)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING
	`, arg.GroupID, arg.PermissionID, arg.GrantedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPermissionAlreadyGranted
	}

	details, _ := json.Marshal(map[string]any{"group_id": arg.GroupID, "permission_id": arg.PermissionID})
	_, err = q.db.Exec(ctx, `
		INSERT INTO permission_audit_entries (action, group_id, permission_id, actor_id, details)
		VALUES ('grant', $1, $2, $3, $4)
	`, arg.GroupID, arg.PermissionID, arg.GrantedBy, details)
	return err
}

func (q *Queries) RevokePermissionFromGroup(ctx context.Context, groupID, permissionID, actorID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM group_permissions WHERE group_id = $1 AND permission_id = $2
	`, groupID, permissionID)
	if err != nil {
		return err
	}

	details, _ := json.Marshal(map[string]any{"group_id": groupID, "permission_id": permissionID})
	_, err = q.db.Exec(ctx, `
		INSERT INTO permission_audit_entries (action, group_id, permission_id, actor_id, details)
		VALUES ('revoke', $1, $2, $3, $4)
	`, groupID, permissionID, actorID, details)
	return err
}

func (q *Queries) ListGroupPermissions(ctx context.Context, groupID uuid.UUID) ([]Permission, error) {
	rows, err := q.db.Query(ctx, `
		SELECT p.id, p.resource, p.action, p.description, p.created_at
		FROM group_permissions gp
		JOIN permissions p ON p.id = gp.permission_id
		WHERE gp.group_id = $1
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		p, err := scanPermissionRows(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ResolvedPermission is one (permission, contributing group) pair.
type ResolvedPermission struct {
	PermissionName string
	GroupID        uuid.UUID
	GroupName      string
}

// ResolveUserPermissions is the PDP's single-query miss path: join
// UserGroup ⋈ GroupPermission ⋈ Permission filtered to the user's groups
// within orgID.
func (q *Queries) ResolveUserPermissions(ctx context.Context, userID, orgID uuid.UUID) ([]ResolvedPermission, error) {
	rows, err := q.db.Query(ctx, `
		SELECT p.resource || ':' || p.action AS perm_name, g.id, g.name
		FROM user_groups ug
		JOIN groups g ON g.id = ug.group_id AND g.org_id = $2
		JOIN group_permissions gp ON gp.group_id = g.id
		JOIN permissions p ON p.id = gp.permission_id
		WHERE ug.user_id = $1
	`, userID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resolved []ResolvedPermission
	for rows.Next() {
		var rp ResolvedPermission
		if err := rows.Scan(&rp.PermissionName, &rp.GroupID, &rp.GroupName); err != nil {
			return nil, err
		}
		resolved = append(resolved, rp)
	}
	return resolved, rows.Err()
}
