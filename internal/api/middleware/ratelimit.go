package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/laventecare/authcore/internal/api/helpers"
	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/kvs"
)

// RateLimit enforces limit requests per window, keyed by route plus the
// caller's IP (or, once authenticated, their user id) - generalized from a
// single in-process IP limiter to a KVS counter so the limit holds across
// every instance behind the load balancer.
func RateLimit(store kvs.Store, routeName string, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := r.RemoteAddr
			if userID, ok := GetUserID(r.Context()); ok {
				principal = userID.String()
			}

			key := kvs.PrefixRateLimit + fmt.Sprintf("%s:%s", routeName, principal)
			count, err := store.IncrTTL(r.Context(), key, window)
			if err != nil {
				// Fail open: a KVS outage should degrade to unlimited, not lock out
				// every request.
				next.ServeHTTP(w, r)
				return
			}

			if count > limit {
				helpers.RespondError(w, GetCorrelationID(r.Context()), apperr.New(apperr.KindRateLimited, "rate limit exceeded, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
