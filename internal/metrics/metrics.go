package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Auth metrics

	AuthEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "todoapi",
		Name:      "auth_events_total",
		Help:      "Auth service operations, by event and outcome.",
	}, []string{"event", "outcome"})

	// Pruner metrics

	TokensPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "todoapi",
		Name:      "tokens_pruned_users_total",
		Help:      "Users whose expired tokens were dropped by the pruner.",
	})

	PruneDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "todoapi",
		Name:      "token_prune_duration_seconds",
		Help:      "Time taken for one prune cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "todoapi",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "todoapi",
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "todoapi",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "todoapi",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the credential endpoint rate limiter.",
	}, []string{"path"})
)

// Auth event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		AuthEventsTotal,
		TokensPrunedTotal,
		PruneDuration,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		HTTPRequestsTotal,
		RateLimitedTotal,
	)
}

// NewServer serves /metrics plus liveness and readiness probes on addr.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
