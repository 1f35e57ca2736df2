// Package handlers implements the HTTP surface: thin adapters from chi
// routes to internal/authsvc and internal/rbac, with all marshaling and
// error-mapping handled by internal/api/helpers.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/api/middleware"
	"github.com/laventecare/authcore/internal/authsvc"
)

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

type AuthHandlers struct {
	svc    *authsvc.Service
	logger *slog.Logger
}

func NewAuthHandlers(svc *authsvc.Service, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{svc: svc, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	user, err := h.svc.Register(r.Context(), authsvc.RegisterInput{
		Email: req.Email, Username: req.Username, Password: req.Password,
	})
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), req.Token); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"verified": true})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OrgID    string `json:"org_id,omitempty"`
}

type loginResponse struct {
	RequiresTwoFactor bool   `json:"requires_two_factor,omitempty"`
	PreAuthToken      string `json:"pre_auth_token,omitempty"`
	AccessToken       string `json:"access_token,omitempty"`
	RefreshToken      string `json:"refresh_token,omitempty"`
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	in := authsvc.LoginInput{Email: req.Email, Password: req.Password, IPAddress: r.RemoteAddr, UserAgent: r.UserAgent()}
	if req.OrgID != "" {
		if parsed, err := parseUUID(req.OrgID); err == nil {
			in.OrgID = parsed
		}
	}

	result, err := h.svc.Login(r.Context(), in)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if len(result.Memberships) > 0 {
		helpers.RespondJSON(w, http.StatusOK, map[string]any{"memberships": result.Memberships})
		return
	}

	if result.AccessToken != "" {
		if _, err := middleware.IssueCSRFCookie(w); err != nil {
			h.logger.Warn("failed to issue csrf cookie", "error", err)
		}
	}

	helpers.RespondJSON(w, http.StatusOK, loginResponse{
		RequiresTwoFactor: result.RequiresTwoFactor,
		PreAuthToken:      result.PreAuthToken,
		AccessToken:       result.AccessToken,
		RefreshToken:      result.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	result, err := h.svc.RefreshSession(r.Context(), req.RefreshToken, r.RemoteAddr, r.UserAgent())
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, loginResponse{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusNoContent, nil)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
	// CurrentRefreshToken identifies the caller's own session so it survives
	// the post-change revocation sweep - everything else gets logged out.
	CurrentRefreshToken string `json:"current_refresh_token"`
}

func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	userID := middleware.MustGetUserID(r.Context())
	if err := h.svc.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword, req.CurrentRefreshToken); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"changed": true})
}

type requestResetRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandlers) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	// Errors are intentionally swallowed here beyond infra failures: the
	// service itself is enumeration-safe and always wants a 204 on a
	// well-formed request.
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"reset": true})
}
