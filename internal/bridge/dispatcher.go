// Package bridge implements the request dispatcher (C6): it orchestrates
// the model router, request/response translators, and upstream client,
// including the one-shot API-flavor fallback.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrelproxy/messages-bridge/internal/apierror"
	"github.com/kestrelproxy/messages-bridge/internal/metrics"
	"github.com/kestrelproxy/messages-bridge/internal/router"
	wire "github.com/kestrelproxy/messages-bridge/internal/translate/anthropic"
	"github.com/kestrelproxy/messages-bridge/internal/translate/openai"
	"github.com/kestrelproxy/messages-bridge/internal/upstream"
)

// UpstreamError is returned for any non-2xx, non-retried upstream reply; it
// carries everything apierror needs to build a client-facing envelope.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// Dispatcher orchestrates C1 through C5 for a single request.
type Dispatcher struct {
	client         *upstream.Client
	modelOverrides map[string]string
	defaultModel   string
	metrics        *metrics.Recorder
}

// New builds a Dispatcher against a single configured upstream base URL.
// defaultModel, when non-empty, is substituted into any inbound request
// whose model field is empty (spec.md §6 "default_model_override").
func New(client *upstream.Client, modelOverrides map[string]string, defaultModel string, rec *metrics.Recorder) *Dispatcher {
	return &Dispatcher{client: client, modelOverrides: modelOverrides, defaultModel: defaultModel, metrics: rec}
}

// applyDefaultModel substitutes the configured default model id into req
// when the caller left it empty.
func (d *Dispatcher) applyDefaultModel(req *wire.Request) {
	req.Model = d.ResolveModel(req.Model)
}

// ResolveModel substitutes the configured default model id for an empty
// model field, per spec.md §6's "default_model_override" configuration
// input. Exposed so callers that need the flavor before dispatching (e.g.
// for metrics labeling) see the same effective model Dispatch will use.
func (d *Dispatcher) ResolveModel(modelID string) string {
	if modelID == "" && d.defaultModel != "" {
		return d.defaultModel
	}
	return modelID
}

// recordFallback records a fallback retry away from fromFlavor, tolerating
// a nil recorder so callers never need their own nil check.
func (d *Dispatcher) recordFallback(fromFlavor router.Flavor) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordFallback(string(fromFlavor))
}

// Flavor exposes the router's classification (including configured
// overrides) for a model id, so callers like the HTTP front end can label
// metrics without duplicating the override map.
func (d *Dispatcher) Flavor(modelID string) router.Flavor {
	return router.ClassifyWithOverrides(modelID, d.modelOverrides)
}

// chatFallbackHints are case-insensitive substrings of an upstream error
// message that indicate a model routed to Chat actually requires the
// Responses API.
var chatFallbackHints = []string{
	"not a chat model",
	"must use the responses api",
	"not supported in v1/chat/completions",
	"only supported in v1/responses",
}

// responsesFallbackHints are the symmetric hints for the reverse
// direction. The source corpus for this spec gives exact strings only for
// the chat->responses direction; these mirror that phrasing since no
// upstream is known to emit the opposite hint verbatim.
var responsesFallbackHints = []string{
	"not a responses model",
	"must use the chat completions api",
	"not supported in v1/responses",
	"only supported in v1/chat/completions",
}

func matchesAny(message string, hints []string) bool {
	lower := strings.ToLower(message)
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}

func shouldFallback(flavor router.Flavor, message string) bool {
	if flavor == router.Chat {
		return matchesAny(message, chatFallbackHints)
	}
	return matchesAny(message, responsesFallbackHints)
}

func upstreamPath(flavor router.Flavor) string {
	if flavor == router.Responses {
		return "/responses"
	}
	return "/chat/completions"
}

func headersFor(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
	}
}

func buildBody(flavor router.Flavor, req *wire.Request) ([]byte, error) {
	if flavor == router.Responses {
		body, err := wire.ToResponses(req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(body)
	}
	body, err := wire.ToChatCompletions(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(body)
}

// Dispatch handles a non-streaming request end to end, including the
// one-shot flavor fallback.
func (d *Dispatcher) Dispatch(ctx context.Context, req *wire.Request, token string) (*wire.Response, error) {
	d.applyDefaultModel(req)
	flavor := router.ClassifyWithOverrides(req.Model, d.modelOverrides)

	resp, status, body, err := d.post(ctx, flavor, req, token)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		message := extractErrorMessage(body)
		if shouldFallback(flavor, message) {
			d.recordFallback(flavor)
			flavor = router.Other(flavor)
			resp, status, body, err = d.post(ctx, flavor, req, token)
			if err != nil {
				return nil, err
			}
		}
	}

	if status < 200 || status >= 300 {
		message := extractErrorMessage(body)
		return nil, &UpstreamError{Status: status, Message: message}
	}
	_ = resp

	return translateNonStream(flavor, req.Model, body)
}

// post issues one upstream call for the given flavor and fully buffers the
// response body (safe for both the happy path and the error-hint check).
func (d *Dispatcher) post(ctx context.Context, flavor router.Flavor, req *wire.Request, token string) (*upstream.Response, int, []byte, error) {
	payload, err := buildBody(flavor, req)
	if err != nil {
		return nil, 0, nil, err
	}
	resp, err := d.client.Post(ctx, upstreamPath(flavor), headersFor(token), payload)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Close()
	body, err := resp.ReadAll()
	if err != nil {
		return nil, 0, nil, err
	}
	return resp, resp.StatusCode, body, nil
}

func translateNonStream(flavor router.Flavor, model string, body []byte) (*wire.Response, error) {
	if flavor == router.Responses {
		var upstreamResp openai.Response
		if err := json.Unmarshal(body, &upstreamResp); err != nil {
			return nil, fmt.Errorf("decode upstream responses body: %w", err)
		}
		return wire.FromResponses(model, &upstreamResp)
	}
	var upstreamResp openai.ChatResponse
	if err := json.Unmarshal(body, &upstreamResp); err != nil {
		return nil, fmt.Errorf("decode upstream chat body: %w", err)
	}
	return wire.FromChatCompletions(model, &upstreamResp)
}

// DispatchStream handles a streaming request, performing the flavor
// fallback check against the upstream's initial HTTP status before any
// event is written to sink, then handing the live body to the stream
// translator. Once sink.Send has been called once, no further fallback is
// attempted — failures become a best-effort SSE error + message_stop,
// produced by the translator itself.
func (d *Dispatcher) DispatchStream(ctx context.Context, req *wire.Request, token string, sink wire.EventSink) error {
	d.applyDefaultModel(req)
	flavor := router.ClassifyWithOverrides(req.Model, d.modelOverrides)

	resp, err := d.postForStream(ctx, flavor, req, token)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := resp.ReadAll()
		resp.Close()
		if readErr != nil {
			return readErr
		}
		message := extractErrorMessage(body)
		if shouldFallback(flavor, message) {
			d.recordFallback(flavor)
			flavor = router.Other(flavor)
			resp, err = d.postForStream(ctx, flavor, req, token)
			if err != nil {
				return err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, readErr := resp.ReadAll()
				resp.Close()
				if readErr != nil {
					return readErr
				}
				return &UpstreamError{Status: resp.StatusCode, Message: extractErrorMessage(body)}
			}
		} else {
			return &UpstreamError{Status: resp.StatusCode, Message: message}
		}
	}
	defer resp.Close()

	var translateErr error
	if flavor == router.Responses {
		translateErr = wire.TranslateResponsesStream(sink, req.Model, resp.Lines())
	} else {
		translateErr = wire.TranslateChatStream(sink, req.Model, resp.Lines())
	}
	if translateErr != nil {
		// The translator itself is responsible for the terminal SSE frames
		// once message_start has been sent (see its finishErr); wrap so the
		// caller knows not to write anything further to sink.
		return &StreamTranslateError{Err: translateErr}
	}
	return nil
}

// StreamTranslateError marks an error that occurred once the stream
// translator had already begun writing SSE frames to the sink. By the time
// this is returned, the translator has already emitted its own best-effort
// error/message_stop sequence, preceded by message_start if that had not
// been sent yet. Either way the caller must not write
// any further events to sink — it exists purely so the HTTP front end can
// log and record metrics without re-framing the response.
type StreamTranslateError struct {
	Err error
}

func (e *StreamTranslateError) Error() string {
	return fmt.Sprintf("stream translation: %v", e.Err)
}

func (e *StreamTranslateError) Unwrap() error {
	return e.Err
}

func (d *Dispatcher) postForStream(ctx context.Context, flavor router.Flavor, req *wire.Request, token string) (*upstream.Response, error) {
	payload, err := buildBody(flavor, req)
	if err != nil {
		return nil, err
	}
	return d.client.Post(ctx, upstreamPath(flavor), headersFor(token), payload)
}

// KindForError maps a dispatcher-level error to an Anthropic error kind,
// for the non-streaming JSON error path (C7).
func KindForError(err error) (apierror.Kind, string) {
	var upstreamErr *UpstreamError
	if ok := asUpstreamError(err, &upstreamErr); ok {
		return apierror.FromStatus(upstreamErr.Status, upstreamErr.Message), upstreamErr.Message
	}
	return apierror.APIError, "internal error"
}

func asUpstreamError(err error, target **UpstreamError) bool {
	if ue, ok := err.(*UpstreamError); ok {
		*target = ue
		return true
	}
	return false
}
