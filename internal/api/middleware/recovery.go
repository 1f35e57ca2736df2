package middleware

import (
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/apperr"
)

// Recover catches a panic in any downstream handler, reports it to Sentry,
// and answers with a generic 500 instead of tearing down the connection.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					hub := sentry.GetHubFromContext(r.Context())
					if hub == nil {
						hub = sentry.CurrentHub().Clone()
					}
					hub.Recover(rec)

					logger.Error("panic recovered", "panic", rec, "path", r.URL.Path, "correlation_id", GetCorrelationID(r.Context()))
					helpers.RespondError(w, GetCorrelationID(r.Context()), apperr.New(apperr.KindInternal, "an unexpected error occurred"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
