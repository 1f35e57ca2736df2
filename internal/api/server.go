// Package api assembles the chi route tree and the HTTP surface's shared
// dependencies: everything below this package is protocol-agnostic.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laventecare/authcore/internal/api/handlers"
	"github.com/laventecare/authcore/internal/audit"
	"github.com/laventecare/authcore/internal/authsvc"
	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/kvs"
	"github.com/laventecare/authcore/internal/rbac"
	"github.com/laventecare/authcore/internal/storage"
)

// Server bundles every dependency the route tree needs and exposes the
// assembled chi router for cmd/api to serve.
type Server struct {
	Router http.Handler

	auth    *handlers.AuthHandlers
	mfa     *handlers.MFAHandlers
	session *handlers.SessionHandlers
	org     *handlers.OrgHandlers
	invite  *handlers.InvitationHandlers
	audit   *handlers.AuditHandlers
	public  *handlers.PublicHandlers
}

// Deps holds the constructed infrastructure NewServer wires into handlers
// and middleware.
type Deps struct {
	Pool     *pgxpool.Pool
	KV       kvs.Store
	AuthSvc  *authsvc.Service
	PDP      *rbac.PDP
	AuditSvc audit.Service
	Tokens   crypto.TokenProvider
	Logger   *slog.Logger
	Issuer   string

	RateLimitRPS   float64
	RateLimitBurst int
}

func NewServer(d Deps) *Server {
	queries := storage.New(d.Pool)

	s := &Server{
		auth:    handlers.NewAuthHandlers(d.AuthSvc, d.Logger),
		mfa:     handlers.NewMFAHandlers(d.AuthSvc),
		session: handlers.NewSessionHandlers(d.AuthSvc),
		org:     handlers.NewOrgHandlers(queries, d.Pool, d.PDP),
		invite:  handlers.NewInvitationHandlers(d.AuthSvc, queries),
		audit:   handlers.NewAuditHandlers(d.AuditSvc),
		public:  handlers.NewPublicHandlers(d.Tokens, d.Pool, d.KV, d.Issuer),
	}

	burst := int64(d.RateLimitBurst)
	if burst <= 0 {
		burst = 10
	}
	window := time.Second
	if d.RateLimitRPS > 0 {
		window = time.Duration(float64(time.Second) * (float64(burst) / d.RateLimitRPS))
	}

	s.Router = newRouter(routerDeps{
		authSvc:    d.AuthSvc,
		pdp:        d.PDP,
		kv:         d.KV,
		queries:    queries,
		logger:     d.Logger,
		handlers:   s,
		rateLimit:  burst,
		rateWindow: window,
	})
	return s
}
