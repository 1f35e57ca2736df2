package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/api/middleware"
	"github.com/laventecare/authcore/internal/audit"
	"github.com/laventecare/authcore/internal/storage/db"
)

type AuditHandlers struct {
	svc audit.Service
}

func NewAuditHandlers(svc audit.Service) *AuditHandlers {
	return &AuditHandlers{svc: svc}
}

// Query answers GET /orgs/{orgID}/audit with optional query-string filters:
// user_id, resource, action, granted, since, until, resource_id, limit.
func (h *AuditHandlers) Query(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	q := r.URL.Query()
	params := db.QueryDecisionsParams{
		OrgID:      orgID,
		Resource:   q.Get("resource"),
		Action:     q.Get("action"),
		Since:      parseQueryTime(q.Get("since")),
		Until:      parseQueryTime(q.Get("until")),
		ResourceID: q.Get("resource_id"),
		Limit:      parseQueryInt(q.Get("limit"), 100),
	}
	if userIDStr := q.Get("user_id"); userIDStr != "" {
		if parsed, err := uuid.Parse(userIDStr); err == nil {
			params.UserID = parsed
		}
	}
	if grantedStr := q.Get("granted"); grantedStr != "" {
		granted := grantedStr == "true"
		params.Granted = &granted
	}

	rows, err := h.svc.Query(r.Context(), params)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"decisions": rows})
}

type verifyRequest struct {
	FromID int64 `json:"from_id"`
	ToID   int64 `json:"to_id"`
}

// Verify recomputes the hash chain over the requested range and reports the
// first broken link, if any; it never mutates state.
func (h *AuditHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	result, err := h.svc.Verify(r.Context(), req.FromID, req.ToID)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, result)
}

func parseQueryTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseQueryInt(v string, fallback int32) int32 {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return int32(n)
}
