package middleware

import (
	"net/http"
	"strings"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/authsvc"
)

// RequireAuth parses the Bearer access token, validates it, and injects the
// authenticated user id and org id into the request context.
func RequireAuth(svc *authsvc.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				helpers.RespondError(w, GetCorrelationID(r.Context()), apperr.New(apperr.KindInvalidToken, "missing bearer token"))
				return
			}

			claims, err := svc.ValidateAccessToken(strings.TrimPrefix(header, prefix))
			if err != nil {
				helpers.RespondError(w, GetCorrelationID(r.Context()), err)
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			ctx = WithOrgID(ctx, claims.OrgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
