package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kestrelproxy/messages-bridge/internal/apierror"
	"github.com/kestrelproxy/messages-bridge/internal/bridge"
	"github.com/kestrelproxy/messages-bridge/internal/metrics"
	wire "github.com/kestrelproxy/messages-bridge/internal/translate/anthropic"
)

// handler holds the dependencies shared by the front-end routes.
type handler struct {
	dispatcher *bridge.Dispatcher
	metrics    *metrics.Recorder
	logger     *slog.Logger
}

// healthResponse is the GET /health body, per spec.md §4.7.
type healthResponse struct {
	Status       string       `json:"status"`
	Proxy        string       `json:"proxy"`
	Version      string       `json:"version"`
	Capabilities capabilities `json:"capabilities"`
}

type capabilities struct {
	SupportsResponses   bool `json:"supports_responses"`
	RetryOnNotChatModel bool `json:"retry_on_not_chat_model"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, healthResponse{
		Status:  "ok",
		Proxy:   "model-router",
		Version: version,
		Capabilities: capabilities{
			SupportsResponses:   true,
			RetryOnNotChatModel: true,
		},
	}, http.StatusOK)
}

func (h *handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(r.Context(), w, apierror.New(apierror.NotFound, "no such route"), http.StatusNotFound)
}

// bearerToken extracts the caller's presented credential from Authorization
// ("Bearer <token>") or x-api-key, per spec.md §6. The proxy forwards this
// token verbatim upstream; it never stores or validates it itself.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
	}
	return r.Header.Get("x-api-key")
}

func (h *handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		writeError(ctx, w, apierror.New(apierror.Authentication, "missing Authorization or x-api-key header"), http.StatusUnauthorized)
		return
	}

	var req wire.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, apierror.New(apierror.InvalidRequest, "malformed request body"), http.StatusBadRequest)
		return
	}

	flavor := string(h.dispatcher.Flavor(h.dispatcher.ResolveModel(req.Model)))
	start := time.Now()

	if req.Stream {
		h.handleMessagesStream(ctx, w, &req, token, flavor, start)
		return
	}
	h.handleMessagesOnce(ctx, w, &req, token, flavor, start)
}

func (h *handler) handleMessagesOnce(ctx context.Context, w http.ResponseWriter, req *wire.Request, token, flavor string, start time.Time) {
	resp, err := h.dispatcher.Dispatch(ctx, req, token)
	if err != nil {
		kind, message := bridge.KindForError(err)
		status := statusForKind(kind)
		h.logger.ErrorContext(ctx, "dispatch failed", "error", err)
		h.metrics.RecordRequest(flavor, status, time.Since(start))
		writeError(ctx, w, apierror.New(kind, message), status)
		return
	}

	h.metrics.RecordRequest(flavor, http.StatusOK, time.Since(start))
	writeJSON(ctx, w, resp, http.StatusOK)
}

func (h *handler) handleMessagesStream(ctx context.Context, w http.ResponseWriter, req *wire.Request, token, flavor string, start time.Time) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		h.logger.ErrorContext(ctx, "SSE not supported by response writer", "error", err)
		writeError(ctx, w, apiErrorEnvelope(), http.StatusInternalServerError)
		return
	}

	err = h.dispatcher.DispatchStream(ctx, req, token, sse)
	status := http.StatusOK
	switch {
	case err == nil:
		// no-op, status stays 200
	case isStreamTranslateError(err):
		// The translator already wrote its own best-effort error/
		// message_stop sequence (preceded by message_start if the failure
		// hit before it) — no further frames to send here.
		h.logger.ErrorContext(ctx, "stream interrupted", "error", err)
		status = http.StatusBadGateway
	default:
		// A pre-translate failure (upstream connect/HTTP-status failure):
		// the sink has received nothing yet, so this is the first and only
		// chance to tell the client anything went wrong.
		var upstreamErr *bridge.UpstreamError
		if errors.As(err, &upstreamErr) {
			status = upstreamErr.Status
		} else {
			status = http.StatusBadGateway
		}
		h.logger.ErrorContext(ctx, "stream dispatch failed", "error", err)
		kind, message := bridge.KindForError(err)
		_ = sse.Send(wire.StreamEvent{Type: "error", Error: &wire.ErrorBody{Type: string(kind), Message: message}})
		_ = sse.Send(wire.StreamEvent{Type: "message_stop"})
	}

	h.metrics.RecordRequest(flavor, status, time.Since(start))
}

func isStreamTranslateError(err error) bool {
	var translateErr *bridge.StreamTranslateError
	return errors.As(err, &translateErr)
}

// statusForKind maps an Anthropic error kind back to the HTTP status this
// proxy reports for a non-streaming failure, per spec.md §6/§7.
func statusForKind(kind apierror.Kind) int {
	switch kind {
	case apierror.InvalidRequest:
		return http.StatusBadRequest
	case apierror.Authentication:
		return http.StatusUnauthorized
	case apierror.Permission:
		return http.StatusForbidden
	case apierror.NotFound:
		return http.StatusNotFound
	case apierror.RateLimit:
		return http.StatusTooManyRequests
	case apierror.Overloaded, apierror.APIError:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
