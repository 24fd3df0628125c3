// pruner drops expired tokens from user records on a cron schedule.
// Run alongside the API server: go run ./cmd/pruner
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/todo-api/config"
	"github.com/ErlanBelekov/todo-api/internal/health"
	"github.com/ErlanBelekov/todo-api/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/todo-api/internal/log"
	"github.com/ErlanBelekov/todo-api/internal/metrics"
	"github.com/ErlanBelekov/todo-api/internal/scheduler"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Store != "postgres" {
		log.Fatalf("pruner requires STORE=postgres, got %q", cfg.Store)
	}

	logger := ctxlog.New(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	metrics.Register(prometheus.DefaultRegisterer)
	checker := health.NewChecker(map[string]health.Pinger{"postgres": pool}, logger, prometheus.DefaultRegisterer)

	pruner, err := scheduler.NewTokenPruner(postgres.NewUserRepository(pool), logger, cfg.TokenPruneSchedule)
	if err != nil {
		stop()
		log.Fatalf("pruner: %v", err)
	}

	done := make(chan struct{})
	go func() {
		pruner.Start(ctx)
		close(done)
	}()

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("pruner shut down")
}
