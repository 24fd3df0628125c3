package health

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function (e.g. a redis client ping) to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type dependency struct {
	name   string
	pinger Pinger
}

// Checker verifies that all registered dependencies are reachable.
type Checker struct {
	deps   []dependency
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

// NewChecker creates a health checker and registers its Prometheus gauge.
// deps maps a dependency name ("postgres", "redis") to its pinger; nil
// pingers are skipped so optional dependencies can be passed unconditionally.
func NewChecker(deps map[string]Pinger, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "todoapi",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	c := &Checker{
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
	for name, p := range deps {
		if p == nil {
			continue
		}
		c.deps = append(c.deps, dependency{name: name, pinger: p})
	}
	sort.Slice(c.deps, func(i, j int) bool { return c.deps[i].name < c.deps[j].name })
	return c
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness pings every dependency and reports per-check status.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult, len(c.deps)),
	}

	for _, d := range c.deps {
		if err := d.pinger.Ping(checkCtx); err != nil {
			c.logger.Warn("health check failed", "dependency", d.name, "error", err)
			result.Status = "down"
			result.Checks[d.name] = CheckResult{Status: "down", Error: err.Error()}
			c.gauge.WithLabelValues(d.name).Set(0)
			continue
		}
		result.Checks[d.name] = CheckResult{Status: "up"}
		c.gauge.WithLabelValues(d.name).Set(1)
	}

	return result
}
