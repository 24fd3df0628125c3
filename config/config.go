package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	Store          string `env:"STORE" envDefault:"postgres" validate:"oneof=postgres memory"`
	DatabaseURL    string `env:"DATABASE_URL" validate:"required_if=Store postgres"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret          string        `env:"JWT_SECRET,required" validate:"required,min=32"`
	JWTPreviousSecrets []string      `env:"JWT_PREVIOUS_SECRETS" envSeparator:"," validate:"dive,min=32"`
	TokenTTL           time.Duration `env:"TOKEN_TTL" envDefault:"168h" validate:"min=0"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"10" validate:"min=4,max=31"`
	MinPasswordLength  int           `env:"MIN_PASSWORD_LENGTH" envDefault:"6" validate:"min=1,max=72"`

	RedisURL        string        `env:"REDIS_URL"`
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"10" validate:"min=1"`
	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m" validate:"min=1s"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	TokenPruneSchedule string `env:"TOKEN_PRUNE_SCHEDULE" envDefault:"@every 10m" validate:"required"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
