package handlers

import (
	"net/http"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/api/middleware"
	"github.com/laventecare/authcore/internal/authsvc"
)

type MFAHandlers struct {
	svc *authsvc.Service
}

func NewMFAHandlers(svc *authsvc.Service) *MFAHandlers {
	return &MFAHandlers{svc: svc}
}

type enableTwoFactorRequest struct {
	AccountName string `json:"account_name"`
}

func (h *MFAHandlers) Enable(w http.ResponseWriter, r *http.Request) {
	var req enableTwoFactorRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	userID := middleware.MustGetUserID(r.Context())
	url, err := h.svc.EnableTwoFactor(r.Context(), userID, req.AccountName)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"otpauth_url": url})
}

type confirmTwoFactorRequest struct {
	Code string `json:"code"`
}

func (h *MFAHandlers) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmTwoFactorRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	userID := middleware.MustGetUserID(r.Context())
	codes, err := h.svc.ConfirmTwoFactor(r.Context(), userID, req.Code)
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"backup_codes": codes})
}

type disableTwoFactorRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

func (h *MFAHandlers) Disable(w http.ResponseWriter, r *http.Request) {
	var req disableTwoFactorRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	userID := middleware.MustGetUserID(r.Context())
	if err := h.svc.DisableTwoFactor(r.Context(), userID, req.Password, req.Code); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"disabled": true})
}

type completeTwoFactorRequest struct {
	PreAuthToken string `json:"pre_auth_token"`
	Code         string `json:"code"`
}

func (h *MFAHandlers) CompleteLogin(w http.ResponseWriter, r *http.Request) {
	var req completeTwoFactorRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	result, err := h.svc.CompleteTwoFactorLogin(r.Context(), req.PreAuthToken, req.Code, r.RemoteAddr, r.UserAgent())
	if err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	if _, err := middleware.IssueCSRFCookie(w); err != nil {
		helpers.RespondError(w, middleware.GetCorrelationID(r.Context()), err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, loginResponse{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
}
