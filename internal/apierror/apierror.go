// Package apierror centralizes the Anthropic error envelope and the
// upstream-status-to-error-kind mapping shared by the non-streaming JSON
// error path and the streaming SSE error-event path.
package apierror

import (
	"net/http"
	"strings"

	wire "github.com/kestrelproxy/messages-bridge/internal/translate/anthropic"
)

// Kind names one of the Anthropic error taxonomy values.
type Kind string

const (
	InvalidRequest Kind = "invalid_request_error"
	Authentication Kind = "authentication_error"
	Permission     Kind = "permission_error"
	NotFound       Kind = "not_found_error"
	RateLimit      Kind = "rate_limit_error"
	APIError       Kind = "api_error"
	Overloaded     Kind = "overloaded_error"
)

// FromStatus maps an upstream HTTP status (and, for 5xx, the message text)
// to an Anthropic error kind, per spec.md §6.
func FromStatus(status int, message string) Kind {
	switch status {
	case http.StatusBadRequest:
		return InvalidRequest
	case http.StatusUnauthorized:
		return Authentication
	case http.StatusForbidden:
		return Permission
	case http.StatusNotFound:
		return NotFound
	case http.StatusTooManyRequests:
		return RateLimit
	}
	if status >= 500 {
		if strings.Contains(strings.ToLower(message), "overloaded") {
			return Overloaded
		}
		return APIError
	}
	return APIError
}

// New builds an envelope-ready error with the given kind and message.
func New(kind Kind, message string) *wire.ErrorEnvelope {
	return &wire.ErrorEnvelope{
		Type: "error",
		Error: wire.ErrorBody{
			Type:    string(kind),
			Message: message,
		},
	}
}
