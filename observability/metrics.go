// Package observability exposes request metrics in Prometheus format.
package observability

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Outcome labels.
const (
	OutcomeOK              = "ok"
	OutcomeUnknownEndpoint = "unknown_endpoint"
	OutcomeHandlerError    = "handler_error"
	OutcomeRateLimited     = "rate_limited"
)

var (
	registerOnce sync.Once

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infer_rpc",
			Name:      "requests_total",
			Help:      "Total dispatched requests.",
		},
		[]string{"node", "endpoint", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "infer_rpc",
			Name:      "request_duration_seconds",
			Help:      "Handler duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "endpoint", "outcome"},
	)
	malformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infer_rpc",
			Name:      "malformed_requests_total",
			Help:      "Requests whose frame or payload could not be decoded.",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requests, requestDuration, malformed)
	})
}

func RecordRequest(node, endpoint, outcome string, duration time.Duration) {
	RegisterMetrics()
	requests.WithLabelValues(node, endpoint, outcome).Inc()
	requestDuration.WithLabelValues(node, endpoint, outcome).Observe(duration.Seconds())
}

func RecordMalformed(node string) {
	RegisterMetrics()
	malformed.WithLabelValues(node).Inc()
}

func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// ServeMetrics serves /metrics on addr in the background. The returned server
// is closed by the caller.
func ServeMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}
