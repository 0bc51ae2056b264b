package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kestrelproxy/messages-bridge/internal/apierror"
	wire "github.com/kestrelproxy/messages-bridge/internal/translate/anthropic"
)

// writeJSON writes a JSON response with the given status code, logging
// encoding failures internally rather than surfacing a second error to an
// already-committed response.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeError writes the Anthropic error envelope with the given HTTP
// status.
func writeError(ctx context.Context, w http.ResponseWriter, envelope *wire.ErrorEnvelope, status int) {
	writeJSON(ctx, w, envelope, status)
}

// apiErrorEnvelope builds a generic api_error envelope that leaks no
// internal diagnostic detail, for use on the panic-recovery path.
func apiErrorEnvelope() *wire.ErrorEnvelope {
	return apierror.New(apierror.APIError, "internal error")
}
