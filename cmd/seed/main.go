// seed registers a demo user with a handful of todos in the local dev
// database and prints a curl walkthrough using a fresh token.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/ErlanBelekov/todo-api/config"
	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/email"
	"github.com/ErlanBelekov/todo-api/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/todo-api/internal/password"
	"github.com/ErlanBelekov/todo-api/internal/token"
	"github.com/ErlanBelekov/todo-api/internal/usecase"
	"github.com/joho/godotenv"
)

const (
	seedEmail    = "seed@test.local"
	seedPassword = "seed-password"
)

var todos = []string{
	"Buy milk",
	"Walk the dog",
	"Renew passport",
	"Book dentist appointment",
	"Read the pgx docs",
}

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := postgres.Migrate(pool, quiet); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	codec, err := token.NewCodec(cfg.JWTSecret, cfg.JWTPreviousSecrets, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	auth, err := usecase.NewAuthUsecase(
		postgres.NewUserRepository(pool),
		password.NewBcryptHasher(cfg.BcryptCost),
		codec,
		email.NewLogSender(quiet),
		quiet,
		cfg.MinPasswordLength,
	)
	if err != nil {
		log.Fatalf("auth usecase: %v", err)
	}

	fresh := true
	if _, err := auth.Register(ctx, seedEmail, seedPassword); err != nil {
		if !errors.Is(err, domain.ErrDuplicateEmail) {
			log.Fatalf("register: %v", err)
		}
		fresh = false
	}

	user, tok, err := auth.Login(ctx, seedEmail, seedPassword)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	if fresh {
		todoUC := usecase.NewTodoUsecase(postgres.NewTodoRepository(pool))
		for i, text := range todos {
			todo, err := todoUC.Create(ctx, user.ID, text)
			if err != nil {
				log.Fatalf("create todo %q: %v", text, err)
			}
			if i%2 == 0 {
				done := true
				if _, err := todoUC.Update(ctx, todo.ID, user.ID, usecase.UpdateTodoInput{Completed: &done}); err != nil {
					log.Fatalf("complete todo %q: %v", text, err)
				}
			}
		}
		fmt.Printf("seeded user %s (%s) with %d todos\n", user.Email, user.ID, len(todos))
	} else {
		fmt.Printf("user %s already seeded, issued a new token\n", user.Email)
	}

	base := "http://localhost:" + cfg.Port
	fmt.Printf(`
export TOKEN=%s

curl -s %s/users/me -H "x-auth: $TOKEN"
curl -s %s/todos -H "x-auth: $TOKEN"
curl -s -X POST %s/todos -H "x-auth: $TOKEN" -H 'Content-Type: application/json' -d '{"text":"from curl"}'
curl -s -X DELETE %s/users/me/token -H "x-auth: $TOKEN"
`, tok, base, base, base, base)
}
