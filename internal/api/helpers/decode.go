package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/laventecare/authcore/internal/apperr"
)

// DecodeJSON decodes the request body into v, rejecting unknown fields so
// typos in client payloads surface immediately instead of being silently
// dropped.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Withf(apperr.KindValidationFailed, "malformed request body", map[string]any{"error": err.Error()})
	}
	return nil
}

// ClientIP returns the request's best-guess client address, preferring the
// value chi's RealIP middleware already resolved onto RemoteAddr.
func ClientIP(r *http.Request) string {
	return r.RemoteAddr
}
