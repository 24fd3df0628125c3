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
	"github.com/ErlanBelekov/todo-api/internal/email"
	"github.com/ErlanBelekov/todo-api/internal/health"
	"github.com/ErlanBelekov/todo-api/internal/infrastructure/memory"
	"github.com/ErlanBelekov/todo-api/internal/infrastructure/postgres"
	redisinfra "github.com/ErlanBelekov/todo-api/internal/infrastructure/redis"
	ctxlog "github.com/ErlanBelekov/todo-api/internal/log"
	"github.com/ErlanBelekov/todo-api/internal/metrics"
	"github.com/ErlanBelekov/todo-api/internal/password"
	"github.com/ErlanBelekov/todo-api/internal/repository"
	"github.com/ErlanBelekov/todo-api/internal/scheduler"
	"github.com/ErlanBelekov/todo-api/internal/token"
	httptransport "github.com/ErlanBelekov/todo-api/internal/transport/http"
	"github.com/ErlanBelekov/todo-api/internal/transport/http/handler"
	"github.com/ErlanBelekov/todo-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := map[string]health.Pinger{}

	// Stores
	var (
		userRepo repository.UserRepository
		todoRepo repository.TodoRepository
	)
	switch cfg.Store {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		userRepo = memory.NewUserRepository()
		todoRepo = memory.NewTodoRepository()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()

		if cfg.MigrateOnStart {
			if err := postgres.Migrate(pool, logger); err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		userRepo = postgres.NewUserRepository(pool)
		todoRepo = postgres.NewTodoRepository(pool)
		deps["postgres"] = pool
	}

	// the in-memory store lives in this process, so cmd/pruner cannot reach it
	prunerDone := make(chan struct{})
	if cfg.Store == "memory" {
		pruner, err := scheduler.NewTokenPruner(userRepo, logger, cfg.TokenPruneSchedule)
		if err != nil {
			log.Fatalf("pruner: %v", err)
		}
		go func() {
			defer close(prunerDone)
			pruner.Start(ctx)
		}()
	} else {
		close(prunerDone)
	}

	// Rate limiting
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
		deps["redis"] = health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Warn("REDIS_URL not set; credential endpoints are not rate limited")
	}

	// Auth
	codec, err := token.NewCodec(cfg.JWTSecret, cfg.JWTPreviousSecrets, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	authUsecase, err := usecase.NewAuthUsecase(
		userRepo,
		password.NewBcryptHasher(cfg.BcryptCost),
		codec,
		email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger),
		logger,
		cfg.MinPasswordLength,
	)
	if err != nil {
		log.Fatalf("auth usecase: %v", err)
	}
	authHandler := handler.NewAuthHandler(authUsecase, logger)

	// Todos
	todoUsecase := usecase.NewTodoUsecase(todoRepo)
	todoHandler := handler.NewTodoHandler(todoUsecase, logger)

	metrics.Register(prometheus.DefaultRegisterer)
	checker := health.NewChecker(deps, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, todoHandler, authUsecase, httptransport.RouterOptions{
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			Redis:              rdb,
			LoginRateLimit:     cfg.LoginRateLimit,
			LoginRateWindow:    cfg.LoginRateWindow,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	<-prunerDone
}

