// Package upstream is the thin HTTP client (C5) that issues requests
// against the configured OpenAI-compatible backend and exposes SSE
// streams as a line iterator.
package upstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"
)

// Client posts requests to a single upstream base URL, forwarding the
// caller's own bearer token rather than storing credentials itself.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a Client configured the way claudine-proxy's DefaultTransport
// is: a dedicated http.Transport clone with a response-header timeout, but
// no read-timeout on the body so streaming responses are never cut off.
func New(baseURL string) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second

	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Response wraps the raw upstream reply; the caller decides whether to
// read it as a single JSON body (ReadAll) or a line-delimited SSE stream
// (Lines), then must call Close.
type Response struct {
	StatusCode int
	Header     http.Header
	body       io.ReadCloser
}

// Close releases the underlying connection. Safe to call once.
func (r *Response) Close() error {
	return r.body.Close()
}

// ReadAll buffers the entire body, for non-streaming responses and for
// reading a small error payload before deciding whether to fall back.
func (r *Response) ReadAll() ([]byte, error) {
	return io.ReadAll(r.body)
}

// Lines yields successive SSE "data:" payloads, stripping the prefix and
// delimiting on blank lines, matching the iterator contract from C5.
// Parsing stops, without error, once a payload equal to "[DONE]" is seen
// or the stream ends.
func (r *Response) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(r.body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			if !yield(payload, nil) {
				return
			}
			if payload == "[DONE]" {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("upstream stream read: %w", err))
		}
	}
}

// Post issues an HTTP POST against path (joined to the configured base
// URL) with the given headers and body. The caller owns the returned
// Response and must Close it.
func (c *Client) Post(ctx context.Context, path string, headers map[string]string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, body: resp.Body}, nil
}
