package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/infrastructure/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests run against a real database when TEST_DATABASE_URL is set.
func newPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(pool, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE users CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := postgres.NewUserRepository(newPool(t))
	ctx := context.Background()

	if _, err := repo.Create(ctx, "alice@example.com", "hash"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, "ALICE@example.com", "hash"); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
}

func TestUserRepository_TokenLifecycle(t *testing.T) {
	repo := postgres.NewUserRepository(newPool(t))
	ctx := context.Background()

	u, err := repo.Create(ctx, "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	for _, raw := range []string{"t1", "t2", "t3"} {
		if _, err := repo.AppendToken(ctx, u.ID, domain.Token{Scope: domain.ScopeAuth, Token: raw, ExpiresAt: &exp}); err != nil {
			t.Fatalf("append %s: %v", raw, err)
		}
	}

	if err := repo.RemoveToken(ctx, u.ID, "t2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := repo.RemoveToken(ctx, u.ID, "t2"); err != nil {
		t.Fatalf("second remove: %v", err)
	}

	got, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Tokens) != 2 || got.Tokens[0].Token != "t1" || got.Tokens[1].Token != "t3" {
		t.Fatalf("tokens = %+v, want [t1 t3]", got.Tokens)
	}
	if got.Tokens[0].ExpiresAt == nil || !got.Tokens[0].ExpiresAt.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got.Tokens[0].ExpiresAt, exp)
	}

	if _, err := repo.FindByActiveToken(ctx, u.ID, "t2", domain.ScopeAuth); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("revoked token: want ErrUserNotFound, got %v", err)
	}
	if _, err := repo.FindByActiveToken(ctx, u.ID, "t1", "other"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("wrong scope: want ErrUserNotFound, got %v", err)
	}
	if _, err := repo.FindByActiveToken(ctx, u.ID, "t1", domain.ScopeAuth); err != nil {
		t.Errorf("active token: %v", err)
	}
	if _, err := repo.FindByActiveToken(ctx, "not-a-uuid", "t1", domain.ScopeAuth); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("bad id: want ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_ConcurrentAppends(t *testing.T) {
	repo := postgres.NewUserRepository(newPool(t))
	ctx := context.Background()

	u, err := repo.Create(ctx, "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 20
	raws := make([]string, n)
	for i := range raws {
		raws[i] = uuid.NewString()
	}
	var wg sync.WaitGroup
	for _, raw := range raws {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AppendToken(ctx, u.ID, domain.Token{Scope: domain.ScopeAuth, Token: raw}); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Tokens) != n {
		t.Fatalf("tokens = %d, want %d", len(got.Tokens), n)
	}
	for i, raw := range raws {
		if !got.HasToken(raw, domain.ScopeAuth) {
			t.Errorf("token %d lost", i)
		}
	}

	if err := repo.RemoveToken(ctx, u.ID, raws[0]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	for i, raw := range raws[1:] {
		if _, err := repo.FindByActiveToken(ctx, u.ID, raw, domain.ScopeAuth); err != nil {
			t.Errorf("token %d after removing token 0: %v", i+1, err)
		}
	}
}

func TestUserRepository_PruneExpiredTokens(t *testing.T) {
	repo := postgres.NewUserRepository(newPool(t))
	ctx := context.Background()

	u, err := repo.Create(ctx, "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	now := time.Now().UTC()
	past, future := now.Add(-time.Minute), now.Add(time.Hour)
	for _, tok := range []domain.Token{
		{Scope: domain.ScopeAuth, Token: "old", ExpiresAt: &past},
		{Scope: domain.ScopeAuth, Token: "new", ExpiresAt: &future},
		{Scope: domain.ScopeAuth, Token: "forever"},
	} {
		if _, err := repo.AppendToken(ctx, u.ID, tok); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := repo.PruneExpiredTokens(ctx, now, 100)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned users = %d, want 1", n)
	}

	got, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.HasToken("old", domain.ScopeAuth) || !got.HasToken("new", domain.ScopeAuth) || !got.HasToken("forever", domain.ScopeAuth) {
		t.Errorf("tokens after prune = %+v", got.Tokens)
	}
}

func TestTodoRepository_OwnerScoping(t *testing.T) {
	pool := newPool(t)
	users := postgres.NewUserRepository(pool)
	todos := postgres.NewTodoRepository(pool)
	ctx := context.Background()

	alice, err := users.Create(ctx, "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bob, err := users.Create(ctx, "bob@example.com", "hash")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	todo, err := todos.Create(ctx, &domain.Todo{OwnerID: alice.ID, Text: "milk"})
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}

	if _, err := todos.GetByID(ctx, todo.ID, bob.ID); !errors.Is(err, domain.ErrTodoNotFound) {
		t.Errorf("foreign get: %v", err)
	}
	if _, err := todos.GetByID(ctx, "not-a-uuid", alice.ID); !errors.Is(err, domain.ErrTodoNotFound) {
		t.Errorf("bad id: %v", err)
	}

	now := time.Now().UTC()
	updated, err := todos.Update(ctx, todo.ID, alice.ID, domain.TodoPatch{Completed: true, CompletedAt: &now})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Text != "milk" || !updated.Completed || updated.CompletedAt == nil {
		t.Errorf("updated = %+v", updated)
	}

	list, err := todos.List(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("bob sees %d todos", len(list))
	}

	if _, err := todos.Delete(ctx, todo.ID, alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := todos.Delete(ctx, todo.ID, alice.ID); !errors.Is(err, domain.ErrTodoNotFound) {
		t.Errorf("second delete: %v", err)
	}
}
