package httptransport

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/transport/http/handler"
	"github.com/ErlanBelekov/todo-api/internal/transport/http/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	sloggin "github.com/samber/slog-gin"
)

type RouterOptions struct {
	CORSAllowedOrigins []string

	// Redis backs the credential endpoint rate limiter; nil disables it.
	Redis           *redis.Client
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	todoHandler *handler.TodoHandler,
	verifier middleware.TokenVerifier,
	opts RouterOptions,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	// request_id comes from the ContextHandler, not slog-gin
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		Filters:          []sloggin.Filter{sloggin.IgnoreMethod(http.MethodOptions)},
	}))
	r.Use(middleware.Metrics())
	r.Use(cors.New(corsConfig(opts.CORSAllowedOrigins)))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	authMW := middleware.Auth(verifier, logger)
	limit := middleware.RateLimit(opts.Redis, opts.LoginRateLimit, opts.LoginRateWindow, logger)

	// Public credential routes
	r.POST("/users", limit, authHandler.Register)
	r.POST("/users/login", limit, authHandler.Login)

	// Protected account routes
	me := r.Group("/users/me", authMW)
	me.GET("", authHandler.Me)
	me.DELETE("/token", authHandler.Logout)
	me.PATCH("/password", authHandler.ChangePassword)

	// Protected todo routes
	todos := r.Group("/todos", authMW)
	todos.POST("", todoHandler.Create)
	todos.GET("", todoHandler.List)
	todos.GET("/:id", todoHandler.GetByID)
	todos.PATCH("/:id", todoHandler.Update)
	todos.DELETE("/:id", todoHandler.Delete)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AuthHeader, "X-Request-ID"},
		ExposeHeaders: []string{middleware.AuthHeader, "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
