package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	wire "github.com/kestrelproxy/messages-bridge/internal/translate/anthropic"
)

// dataReplacer escapes embedded newlines in SSE data fields, since the SSE
// spec requires each line of a multi-line data field to be prefixed.
var dataReplacer = strings.NewReplacer(
	"\n", "\ndata:",
	"\r", "\\r",
)

var (
	sseEventPrefix = []byte("event: ")
	sseDataPrefix  = []byte("data: ")
	sseTerminator  = []byte("\n\n")
	sseNewline     = []byte("\n")
)

// SSEWriter wraps http.ResponseWriter with the named-event SSE framing the
// Anthropic Messages API streaming contract requires: an "event: <name>"
// line followed by a "data: <json>" line, blank-line terminated.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter validates flushing support and sets the SSE response
// headers.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter doesn't implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent writes one named SSE event with a JSON-encoded data payload
// and flushes immediately.
func (s *SSEWriter) WriteEvent(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal sse event: %w", err)
	}

	if _, err := s.w.Write(sseEventPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte(name)); err != nil {
		return err
	}
	if _, err := s.w.Write(sseNewline); err != nil {
		return err
	}
	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := dataReplacer.WriteString(s.w, string(data)); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

// Send implements wire.EventSink, translating a StreamEvent into its named
// SSE frame. The event's own Type names the SSE event.
func (s *SSEWriter) Send(e wire.StreamEvent) error {
	return s.WriteEvent(e.Type, e)
}
