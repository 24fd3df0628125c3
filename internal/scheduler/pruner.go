package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/metrics"
	"github.com/ErlanBelekov/todo-api/internal/repository"
	"github.com/robfig/cron/v3"
)

const pruneBatchSize = 100

// TokenPruner periodically drops expired tokens from user records. Expired
// tokens already fail verification; pruning only keeps the token lists short.
type TokenPruner struct {
	users    repository.UserRepository
	logger   *slog.Logger
	schedule cron.Schedule
	spec     string
	now      func() time.Time
}

// NewTokenPruner parses spec as a standard cron expression or descriptor
// ("@every 10m", "@hourly").
func NewTokenPruner(users repository.UserRepository, logger *slog.Logger, spec string) (*TokenPruner, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", spec, err)
	}
	return &TokenPruner{
		users:    users,
		logger:   logger.With("component", "pruner"),
		schedule: schedule,
		spec:     spec,
		now:      time.Now,
	}, nil
}

// Start runs prune cycles on the schedule until ctx is cancelled, then waits
// for an in-flight cycle to finish.
func (p *TokenPruner) Start(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(p.schedule, cron.FuncJob(func() {
		if _, err := p.Prune(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("prune expired tokens", "error", err)
		}
	}))

	p.logger.Info("pruner started", "schedule", p.spec)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	p.logger.Info("pruner shut down")
}

// Prune runs one cycle: batches until a short batch, returning how many users
// had tokens removed.
func (p *TokenPruner) Prune(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.PruneDuration.Observe(time.Since(start).Seconds()) }()

	now := p.now()
	total := 0
	for {
		n, err := p.users.PruneExpiredTokens(ctx, now, pruneBatchSize)
		total += n
		metrics.TokensPrunedTotal.Add(float64(n))
		if err != nil {
			return total, fmt.Errorf("prune batch: %w", err)
		}
		if n < pruneBatchSize {
			break
		}
	}

	if total > 0 {
		p.logger.InfoContext(ctx, "pruned expired tokens", "users", total)
	}
	return total, nil
}
