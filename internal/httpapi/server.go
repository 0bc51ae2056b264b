// Package httpapi is the HTTP front end (C7): it accepts POST /v1/messages
// and GET /health, parses headers, and writes either a JSON body or an SSE
// stream back to the client.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelproxy/messages-bridge/internal/bridge"
	"github.com/kestrelproxy/messages-bridge/internal/metrics"
)

// version is reported on GET /health.
const version = "0.1.0"

// Server is the bridge's HTTP front end: a POST /v1/messages endpoint, a
// health check, a GET /metrics Prometheus endpoint, and a 404 handler for
// everything else.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Server implements http.Handler.
var _ http.Handler = (*Server)(nil)

// New builds a Server that dispatches translated requests through d and
// records outcomes on rec.
func New(d *bridge.Dispatcher, rec *metrics.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{dispatcher: d, metrics: rec, logger: logger}

	mux := http.NewServeMux()
	mux.Handle("GET /health", applyMiddlewares(http.HandlerFunc(h.handleHealth), Logging(logger), Recovery))
	mux.Handle("POST /v1/messages", applyMiddlewares(http.HandlerFunc(h.handleMessages), Logging(logger), Recovery))
	mux.Handle("GET /metrics", applyMiddlewares(promhttp.Handler(), Logging(logger), Recovery))
	mux.Handle("/", applyMiddlewares(http.HandlerFunc(h.handleNotFound), Logging(logger), Recovery))

	return &Server{mux: mux}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Startup errors (port in use, permission denied) are returned synchronously;
// runtime errors are delivered on the returned channel. The caller must
// call Shutdown to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // long enough for an SSE stream
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
