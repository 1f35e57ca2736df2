package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/api/middleware"
	"github.com/laventecare/authcore/internal/authsvc"
	"github.com/laventecare/authcore/internal/storage/db"
)

type InvitationHandlers struct {
	svc *authsvc.Service
	db  *db.Queries
}

func NewInvitationHandlers(svc *authsvc.Service, queries *db.Queries) *InvitationHandlers {
	return &InvitationHandlers{svc: svc, db: queries}
}

type createInvitationRequest struct {
	Email   string     `json:"email"`
	Role    db.OrgRole `json:"role"`
	OrgName string     `json:"org_name"`
}

func (h *InvitationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	var req createInvitationRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if err := h.svc.CreateInvitation(r.Context(), orgID, req.Email, req.Role, req.OrgName); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"invited": true})
}

func (h *InvitationHandlers) List(w http.ResponseWriter, r *http.Request) {
	orgID, err := parseUUID(chi.URLParam(r, "orgID"))
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	invites, err := h.db.ListOrgInvitations(r.Context(), orgID)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"invitations": invites})
}

type registerWithInviteRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *InvitationHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerWithInviteRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	user, err := h.svc.RegisterWithInvite(r.Context(), authsvc.RegisterWithInviteInput{
		Token: req.Token, Username: req.Username, Password: req.Password,
	})
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email})
}
