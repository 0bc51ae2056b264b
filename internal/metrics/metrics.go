// Package metrics exposes Prometheus counters and histograms for the
// bridge's request path. It is ambient observability, not request-body
// logging or persistence.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_bridge_requests_total",
			Help: "Total number of POST /v1/messages requests by flavor and status",
		},
		[]string{"flavor", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messages_bridge_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"flavor"},
	)

	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_bridge_fallback_total",
			Help: "Total number of API-flavor fallback retries",
		},
		[]string{"from_flavor"},
	)
)

// Recorder records per-request outcomes. The zero value disables
// recording, matching the teacher's enabled-flag pattern; a nil *Recorder
// is not safe to call.
type Recorder struct {
	enabled bool
}

// New builds a Recorder; enabled controls whether metrics are actually
// written (kept consistent even when disabled, so call sites never need
// nil checks).
func New(enabled bool) *Recorder {
	return &Recorder{enabled: enabled}
}

// RecordRequest records one request's flavor, final HTTP status, and
// duration.
func (r *Recorder) RecordRequest(flavor string, status int, duration time.Duration) {
	if !r.enabled {
		return
	}
	RequestsTotal.WithLabelValues(flavor, statusClass(status)).Inc()
	RequestDuration.WithLabelValues(flavor).Observe(duration.Seconds())
}

// RecordFallback records a single API-flavor fallback retry.
func (r *Recorder) RecordFallback(fromFlavor string) {
	if !r.enabled {
		return
	}
	FallbackTotal.WithLabelValues(fromFlavor).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
