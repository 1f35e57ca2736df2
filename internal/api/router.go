package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/laventecare/authcore/internal/api/middleware"
	"github.com/laventecare/authcore/internal/authsvc"
	"github.com/laventecare/authcore/internal/kvs"
	"github.com/laventecare/authcore/internal/rbac"
	"github.com/laventecare/authcore/internal/storage/db"
)

type routerDeps struct {
	authSvc    *authsvc.Service
	pdp        *rbac.PDP
	kv         kvs.Store
	queries    *db.Queries
	logger     *slog.Logger
	handlers   *Server
	rateLimit  int64
	rateWindow time.Duration
}

// newRouter builds the full chi route tree: public discovery routes, the
// unauthenticated credential/recovery flow, and the authenticated,
// CSRF-protected, role-gated organization management surface (the audit
// routes are permission-gated).
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(d.logger))
	r.Use(middleware.Recover(d.logger))

	h := d.handlers

	r.Get("/.well-known/jwks.json", h.public.JWKS)
	r.Get("/.well-known/openid-configuration", h.public.OpenIDConfiguration)
	r.Get("/health", h.public.Health)

	authLimit := middleware.RateLimit(d.kv, "auth", d.rateLimit, d.rateWindow)

	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/auth/register", h.auth.Register)
		r.Post("/auth/verify-email", h.auth.VerifyEmail)
		r.Post("/auth/login", h.auth.Login)
		r.Post("/auth/refresh", h.auth.Refresh)
		r.Post("/auth/logout", h.auth.Logout)
		r.Post("/auth/password/forgot", h.auth.RequestPasswordReset)
		r.Post("/auth/password/reset", h.auth.ResetPassword)
		r.Post("/auth/2fa/complete", h.mfa.CompleteLogin)
		r.Post("/invitations/accept", h.invite.Register)
	})

	requireAuth := middleware.RequireAuth(d.authSvc)
	requirePerm := func(resource, action string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(d.pdp, resource, action)
	}
	requireRole := func(minRole db.OrgRole) func(http.Handler) http.Handler {
		return middleware.RequireOrgRole(d.queries, minRole)
	}

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.CSRF)

		r.Post("/auth/password/change", h.auth.ChangePassword)
		r.Post("/auth/2fa/enable", h.mfa.Enable)
		r.Post("/auth/2fa/confirm", h.mfa.Confirm)
		r.Post("/auth/2fa/disable", h.mfa.Disable)

		r.Get("/sessions", h.session.List)
		r.Delete("/sessions/{sessionID}", h.session.Revoke)

		r.Route("/orgs", func(r chi.Router) {
			r.Post("/", h.org.CreateOrg)

			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", h.org.GetOrg)

				r.With(requireRole(db.RoleMember)).Get("/members", h.org.ListMembers)
				r.With(requireRole(db.RoleAdmin)).Post("/members", h.org.AddMember)
				r.With(requireRole(db.RoleAdmin)).Put("/members/{userID}", h.org.UpdateMemberRole)
				r.With(requireRole(db.RoleAdmin)).Delete("/members/{userID}", h.org.RemoveMember)

				r.With(requireRole(db.RoleMember)).Get("/groups", h.org.ListGroups)
				r.With(requireRole(db.RoleAdmin)).Post("/groups", h.org.CreateGroup)
				r.With(requireRole(db.RoleAdmin)).Put("/groups/{groupID}", h.org.UpdateGroup)
				r.With(requireRole(db.RoleAdmin)).Delete("/groups/{groupID}", h.org.DeleteGroup)
				r.With(requireRole(db.RoleAdmin)).Post("/groups/{groupID}/members", h.org.AddGroupMember)
				r.With(requireRole(db.RoleAdmin)).Delete("/groups/{groupID}/members/{userID}", h.org.RemoveGroupMember)

				r.With(requireRole(db.RoleMember)).Get("/groups/{groupID}/permissions", h.org.ListGroupPermissions)
				r.With(requireRole(db.RoleAdmin)).Post("/groups/{groupID}/permissions", h.org.GrantPermission)
				r.With(requireRole(db.RoleAdmin)).Delete("/groups/{groupID}/permissions/{permissionID}", h.org.RevokePermission)

				r.With(requireRole(db.RoleAdmin)).Post("/invitations", h.invite.Create)
				r.With(requireRole(db.RoleMember)).Get("/invitations", h.invite.List)

				r.With(requirePerm("audit", "read")).Get("/audit", h.audit.Query)
				r.With(requirePerm("audit", "read")).Post("/audit/verify", h.audit.Verify)
			})
		})

		r.Get("/permissions", h.org.ListPermissions)
	})

	return r
}
