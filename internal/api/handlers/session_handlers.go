package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/api/middleware"
	"github.com/laventecare/authcore/internal/authsvc"
)

type SessionHandlers struct {
	svc *authsvc.Service
}

func NewSessionHandlers(svc *authsvc.Service) *SessionHandlers {
	return &SessionHandlers{svc: svc}
}

type sessionView struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
	UserAgent string `json:"user_agent,omitempty"`
}

func (h *SessionHandlers) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.MustGetUserID(r.Context())
	sessions, err := h.svc.ListSessions(r.Context(), userID)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionView{
			ID:        sess.ID.String(),
			CreatedAt: sess.CreatedAt.Format(time.RFC3339),
			ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
		})
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (h *SessionHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	sessionIDStr := chi.URLParam(r, "sessionID")
	sessionID, err := parseUUID(sessionIDStr)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	userID := middleware.MustGetUserID(r.Context())
	if err := h.svc.RevokeSession(r.Context(), userID, sessionID); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusNoContent, nil)
}
