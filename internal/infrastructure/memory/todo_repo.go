package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/repository"
	"github.com/google/uuid"
)

var _ repository.TodoRepository = (*TodoRepository)(nil)

type TodoRepository struct {
	mu    sync.RWMutex
	todos map[string]*domain.Todo
	now   func() time.Time
}

func NewTodoRepository() *TodoRepository {
	return &TodoRepository{todos: make(map[string]*domain.Todo), now: time.Now}
}

func (r *TodoRepository) Create(_ context.Context, todo *domain.Todo) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	t := cloneTodo(todo)
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.todos[t.ID] = t
	return cloneTodo(t), nil
}

func (r *TodoRepository) List(_ context.Context, ownerID string) ([]*domain.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todos := make([]*domain.Todo, 0)
	for _, t := range r.todos {
		if t.OwnerID == ownerID {
			todos = append(todos, cloneTodo(t))
		}
	}
	sort.Slice(todos, func(i, j int) bool {
		if todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].ID < todos[j].ID
		}
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})
	return todos, nil
}

func (r *TodoRepository) GetByID(_ context.Context, id, ownerID string) (*domain.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrTodoNotFound
	}
	return cloneTodo(t), nil
}

func (r *TodoRepository) Update(_ context.Context, id, ownerID string, patch domain.TodoPatch) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrTodoNotFound
	}
	if patch.Text != nil {
		t.Text = *patch.Text
	}
	t.Completed = patch.Completed
	t.CompletedAt = nil
	if patch.CompletedAt != nil {
		at := *patch.CompletedAt
		t.CompletedAt = &at
	}
	t.UpdatedAt = r.now()
	return cloneTodo(t), nil
}

func (r *TodoRepository) Delete(_ context.Context, id, ownerID string) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrTodoNotFound
	}
	delete(r.todos, id)
	return t, nil
}

func cloneTodo(t *domain.Todo) *domain.Todo {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
