package middleware

import (
	"net/http"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/crypto"
)

const csrfCookieName = "authcore_csrf"
const csrfHeaderName = "X-CSRF-Token"

// CSRF enforces the double-submit cookie pattern on state-changing requests:
// the cookie value must match the header value, which a cross-site form post
// cannot forge since it can't read the cookie to copy it into the header.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil {
			helpers.RespondError(w, GetCorrelationID(r.Context()), apperr.New(apperr.KindValidationFailed, "missing csrf cookie"))
			return
		}
		header := r.Header.Get(csrfHeaderName)
		if header == "" || !crypto.ConstantTimeEqual(header, cookie.Value) {
			helpers.RespondError(w, GetCorrelationID(r.Context()), apperr.New(apperr.KindValidationFailed, "csrf token mismatch"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IssueCSRFCookie sets a fresh CSRF cookie, called on login/session start.
func IssueCSRFCookie(w http.ResponseWriter) (string, error) {
	token, err := crypto.GenerateOpaqueToken(24)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // must be readable by JS to echo into the header
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}
