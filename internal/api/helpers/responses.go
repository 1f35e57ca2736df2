// Package helpers holds small HTTP plumbing shared by every handler:
// JSON encode/decode and the error envelope.
package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/laventecare/authcore/internal/apperr"
)

// RespondJSON writes v as a JSON body with status.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode json response", "error", err)
	}
}

// errorEnvelope is the wire shape of every error response; RespondError
// sends it wrapped under a top-level "error" key.
type errorEnvelope struct {
	Kind      apperr.Kind    `json:"kind"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
}

// RespondError maps err to its Kind's HTTP status and writes the envelope.
// This is the single place an error Kind becomes a status code.
func RespondError(w http.ResponseWriter, traceID string, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		RespondJSON(w, appErr.HTTPStatus(), map[string]errorEnvelope{"error": {
			Kind: appErr.Kind, Message: appErr.Message, Details: appErr.Details, TraceID: traceID,
		}})
		return
	}

	slog.Default().Error("unhandled internal error", "error", err, "trace_id", traceID)
	RespondJSON(w, http.StatusInternalServerError, map[string]errorEnvelope{"error": {
		Kind: apperr.KindInternal, Message: "an unexpected error occurred", TraceID: traceID,
	}})
}
