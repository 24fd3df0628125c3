package repository

import (
	"context"

	"github.com/ErlanBelekov/todo-api/internal/domain"
)

// TodoRepository methods are always scoped to ownerID. A todo owned by someone
// else is reported as domain.ErrTodoNotFound.
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error)
	List(ctx context.Context, ownerID string) ([]*domain.Todo, error)
	GetByID(ctx context.Context, id, ownerID string) (*domain.Todo, error)
	Update(ctx context.Context, id, ownerID string, patch domain.TodoPatch) (*domain.Todo, error)
	Delete(ctx context.Context, id, ownerID string) (*domain.Todo, error)
}
