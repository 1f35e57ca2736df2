package middleware

import (
	"net/http"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/rbac"
	"github.com/laventecare/authcore/internal/storage/db"
)

// RequirePermission enforces resource:action via the PDP. It must run after
// RequireAuth (it needs UserIDKey/OrgIDKey already in context).
func RequirePermission(pdp *rbac.PDP, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, ok := GetUserID(ctx)
			if !ok {
				helpers.RespondError(w, GetCorrelationID(ctx), apperr.New(apperr.KindInvalidToken, "missing authentication"))
				return
			}
			orgID, ok := GetOrgID(ctx)
			if !ok {
				helpers.RespondError(w, GetCorrelationID(ctx), apperr.New(apperr.KindNotAMember, "no organization context"))
				return
			}

			dec, err := pdp.Authorize(ctx, rbac.Request{
				UserID: userID, OrgID: orgID, Resource: resource, Action: action,
				CorrelationID: GetCorrelationID(ctx), IPAddress: r.RemoteAddr,
			})
			if err != nil {
				helpers.RespondError(w, GetCorrelationID(ctx), apperr.New(apperr.KindServiceUnavailable, "authorization check failed"))
				return
			}
			if !dec.Allowed {
				helpers.RespondError(w, GetCorrelationID(ctx), apperr.Withf(apperr.KindInsufficientPermission, "missing required permission", map[string]any{
					"permission": resource + ":" + action,
				}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

var orgRoleWeight = map[db.OrgRole]int{
	db.RoleMember: 1,
	db.RoleAdmin:  2,
	db.RoleOwner:  3,
}

// RequireOrgRole enforces organization-structure management (members, groups,
// group membership, permission grants, invitations) directly against the
// caller's org_members role. It deliberately bypasses the PDP: these routes
// are how group-to-permission grants come to exist in the first place, so
// gating them on a PDP decision would mean no one could ever create the
// first group or grant in a new organization.
func RequireOrgRole(queries *db.Queries, minRole db.OrgRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, ok := GetUserID(ctx)
			if !ok {
				helpers.RespondError(w, GetCorrelationID(ctx), apperr.New(apperr.KindInvalidToken, "missing authentication"))
				return
			}
			orgID, ok := GetOrgID(ctx)
			if !ok {
				helpers.RespondError(w, GetCorrelationID(ctx), apperr.New(apperr.KindNotAMember, "no organization context"))
				return
			}

			role, err := queries.GetOrgMemberRole(ctx, userID, orgID)
			if err != nil {
				helpers.RespondError(w, GetCorrelationID(ctx), apperr.New(apperr.KindNotAMember, "not a member of organization"))
				return
			}
			if orgRoleWeight[role] < orgRoleWeight[minRole] {
				helpers.RespondError(w, GetCorrelationID(ctx), apperr.New(apperr.KindInsufficientRole, "requires a higher organization role"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
