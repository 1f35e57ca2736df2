package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/api/middleware"
	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/rbac"
	"github.com/laventecare/authcore/internal/storage"
	"github.com/laventecare/authcore/internal/storage/db"
)

// OrgHandlers covers organization, membership, group, and permission
// management — the write side of the RBAC model the PDP reads from.
//
// Statements against the organizations and groups tables - the two RLS-
// protected tables migrated in 000002_orgs and 000003_rbac - run through
// pool via storage.WithOrgContext/ExecInOrgContext so app.current_org is set
// for the statement's transaction, rather than through db directly. db
// itself is kept for operations with no org to scope to yet (CreateOrg) or
// that target tables RLS doesn't cover (members, permissions, invitations).
type OrgHandlers struct {
	db   *db.Queries
	pool *pgxpool.Pool
	pdp  *rbac.PDP
}

func NewOrgHandlers(queries *db.Queries, pool *pgxpool.Pool, pdp *rbac.PDP) *OrgHandlers {
	return &OrgHandlers{db: queries, pool: pool, pdp: pdp}
}

type createOrgRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (h *OrgHandlers) CreateOrg(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	org, err := h.db.CreateOrganization(r.Context(), req.Name, req.Slug)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	userID := middleware.MustGetUserID(r.Context())
	if err := h.db.AddOrgMember(r.Context(), userID, org.ID, db.RoleOwner); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, org)
}

func (h *OrgHandlers) GetOrg(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	org, err := storage.ExecInOrgContext(r.Context(), h.pool, orgID, func(q *db.Queries) (db.Organization, error) {
		return q.GetOrganizationByID(r.Context(), orgID)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), apperr.New(apperr.KindNotFound, "organization not found"))
		return
	}
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, org)
}

func (h *OrgHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	members, err := h.db.ListOrgMembers(r.Context(), orgID)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"members": members})
}

type addMemberRequest struct {
	UserID string     `json:"user_id"`
	Role   db.OrgRole `json:"role"`
}

func (h *OrgHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	var req addMemberRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	userID, err := parseUUID(req.UserID)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if err := h.db.AddOrgMember(r.Context(), userID, orgID, req.Role); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"added": true})
}

type updateMemberRoleRequest struct {
	Role db.OrgRole `json:"role"`
}

func (h *OrgHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	userID, err := parseUUID(chi.URLParam(r, "userID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	var req updateMemberRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if err := h.db.UpdateOrgMemberRole(r.Context(), userID, orgID, req.Role); err != nil {
		if errors.Is(err, db.ErrLastOwner) {
			helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), apperr.New(apperr.KindValidationFailed, "cannot demote the last owner"))
			return
		}
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *OrgHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	userID, err := parseUUID(chi.URLParam(r, "userID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if err := h.db.RemoveOrgMember(r.Context(), userID, orgID); err != nil {
		if errors.Is(err, db.ErrLastOwner) {
			helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), apperr.New(apperr.KindValidationFailed, "cannot remove the last owner"))
			return
		}
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusNoContent, nil)
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *OrgHandlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	var req createGroupRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	group, err := storage.ExecInOrgContext(r.Context(), h.pool, orgID, func(q *db.Queries) (db.Group, error) {
		return q.CreateGroup(r.Context(), orgID, req.Name, req.Description)
	})
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, group)
}

func (h *OrgHandlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	groups, err := storage.ExecInOrgContext(r.Context(), h.pool, orgID, func(q *db.Queries) ([]db.Group, error) {
		return q.ListGroups(r.Context(), orgID)
	})
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *OrgHandlers) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	groupID, err := parseUUID(chi.URLParam(r, "groupID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	var req createGroupRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	err = storage.WithOrgContext(r.Context(), h.pool, orgID, func(q *db.Queries) error {
		return q.UpdateGroup(r.Context(), groupID, req.Name, req.Description)
	})
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *OrgHandlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUID(chi.URLParam(r, "groupID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	err = storage.WithOrgContext(r.Context(), h.pool, orgID, func(q *db.Queries) error {
		return q.DeleteGroup(r.Context(), groupID)
	})
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	if err := h.pdp.BumpVersion(r.Context(), orgID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusNoContent, nil)
}

type groupMemberRequest struct {
	UserID string `json:"user_id"`
}

func (h *OrgHandlers) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUID(chi.URLParam(r, "groupID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	var req groupMemberRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	userID, err := parseUUID(req.UserID)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if err := h.db.AddUserToGroup(r.Context(), userID, groupID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	if err := h.pdp.BumpVersion(r.Context(), orgID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"added": true})
}

func (h *OrgHandlers) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUID(chi.URLParam(r, "groupID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	userID, err := parseUUID(chi.URLParam(r, "userID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if err := h.db.RemoveUserFromGroup(r.Context(), userID, groupID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	if err := h.pdp.BumpVersion(r.Context(), orgID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *OrgHandlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.db.ListPermissions(r.Context())
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *OrgHandlers) ListGroupPermissions(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUID(chi.URLParam(r, "groupID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	perms, err := h.db.ListGroupPermissions(r.Context(), groupID)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type grantPermissionRequest struct {
	PermissionID string `json:"permission_id"`
}

func (h *OrgHandlers) GrantPermission(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUID(chi.URLParam(r, "groupID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	var req grantPermissionRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	permID, err := parseUUID(req.PermissionID)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	actorID := middleware.MustGetUserID(r.Context())
	err = h.db.GrantPermissionToGroup(r.Context(), db.GrantPermissionParams{
		GroupID: groupID, PermissionID: permID, GrantedBy: actorID,
	})
	if err != nil && !errors.Is(err, db.ErrPermissionAlreadyGranted) {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if err := h.pdp.BumpVersion(r.Context(), orgID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"granted": true})
}

func (h *OrgHandlers) RevokePermission(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUID(chi.URLParam(r, "groupID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	permID, err := parseUUID(chi.URLParam(r, "permissionID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	actorID := middleware.MustGetUserID(r.Context())
	if err := h.db.RevokePermissionFromGroup(r.Context(), groupID, permID, actorID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	if err := h.pdp.BumpVersion(r.Context(), orgID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusNoContent, nil)
}
