package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/infrastructure/memory"
)

func TestTodoRepository_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTodoRepository()

	mine, err := repo.Create(ctx, &domain.Todo{OwnerID: "alice", Text: "buy milk"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, &domain.Todo{OwnerID: "bob", Text: "walk dog"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := repo.List(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("alice sees %+v, want only her todo", list)
	}

	if _, err := repo.GetByID(ctx, mine.ID, "bob"); !errors.Is(err, domain.ErrTodoNotFound) {
		t.Errorf("GetByID as bob: want ErrTodoNotFound, got %v", err)
	}
	if _, err := repo.Update(ctx, mine.ID, "bob", domain.TodoPatch{Completed: true}); !errors.Is(err, domain.ErrTodoNotFound) {
		t.Errorf("Update as bob: want ErrTodoNotFound, got %v", err)
	}
	if _, err := repo.Delete(ctx, mine.ID, "bob"); !errors.Is(err, domain.ErrTodoNotFound) {
		t.Errorf("Delete as bob: want ErrTodoNotFound, got %v", err)
	}

	deleted, err := repo.Delete(ctx, mine.ID, "alice")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Text != "buy milk" {
		t.Errorf("deleted todo = %+v", deleted)
	}
	if _, err := repo.GetByID(ctx, mine.ID, "alice"); !errors.Is(err, domain.ErrTodoNotFound) {
		t.Errorf("deleted todo still readable: %v", err)
	}
}

func TestTodoRepository_UpdateCompletion(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTodoRepository()
	todo, _ := repo.Create(ctx, &domain.Todo{OwnerID: "alice", Text: "buy milk"})

	at := time.Now()
	text := "buy oat milk"
	got, err := repo.Update(ctx, todo.ID, "alice", domain.TodoPatch{Text: &text, Completed: true, CompletedAt: &at})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.Completed || got.CompletedAt == nil || got.Text != text {
		t.Fatalf("update not applied: %+v", got)
	}

	got, err = repo.Update(ctx, todo.ID, "alice", domain.TodoPatch{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Completed || got.CompletedAt != nil {
		t.Errorf("completion not cleared: %+v", got)
	}
	if got.Text != text {
		t.Errorf("text changed by nil patch: %q", got.Text)
	}
}
