package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/kvs"
)

// PublicHandlers serves unauthenticated discovery and liveness endpoints.
type PublicHandlers struct {
	tokens crypto.TokenProvider
	pool   *pgxpool.Pool
	kv     kvs.Store
	issuer string
}

func NewPublicHandlers(tokens crypto.TokenProvider, pool *pgxpool.Pool, kv kvs.Store, issuer string) *PublicHandlers {
	return &PublicHandlers{tokens: tokens, pool: pool, kv: kv, issuer: issuer}
}

// JWKS serves /.well-known/jwks.json. Empty key set for HS256 deployments,
// since there's no public key to publish.
func (h *PublicHandlers) JWKS(w http.ResponseWriter, r *http.Request) {
	set, err := h.tokens.GetJWKS()
	if err != nil {
		helpers.RespondError(w, "", err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, set)
}

// OpenIDConfiguration serves a minimal /.well-known/openid-configuration
// document, enough for clients that discover the JWKS endpoint this way
// rather than hardcoding it.
func (h *PublicHandlers) OpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"issuer":   h.issuer,
		"jwks_uri": h.issuer + "/.well-known/jwks.json",
	})
}

// Health reports liveness of the relational store and the cache/session
// store. It never blocks for long: both checks run against a short-lived
// sub-context.
func (h *PublicHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]any{"status": "ok"}
	code := http.StatusOK

	if err := h.pool.Ping(ctx); err != nil {
		status["status"] = "degraded"
		status["postgres"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	if _, err := h.kv.Get(ctx, "__health__"); err != nil && !errors.Is(err, kvs.ErrNotFound) {
		status["status"] = "degraded"
		status["kvs"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	helpers.RespondJSON(w, code, status)
}
