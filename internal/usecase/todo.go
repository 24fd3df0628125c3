package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/repository"
)

// UpdateTodoInput carries a partial update. Nil fields are left unchanged.
type UpdateTodoInput struct {
	Text      *string
	Completed *bool
}

type TodoUsecase struct {
	repo repository.TodoRepository
	now  func() time.Time
}

func NewTodoUsecase(repo repository.TodoRepository) *TodoUsecase {
	return &TodoUsecase{repo: repo, now: time.Now}
}

func (u *TodoUsecase) Create(ctx context.Context, ownerID, text string) (*domain.Todo, error) {
	text, err := validateText(text)
	if err != nil {
		return nil, err
	}

	todo, err := u.repo.Create(ctx, &domain.Todo{OwnerID: ownerID, Text: text})
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return todo, nil
}

func (u *TodoUsecase) List(ctx context.Context, ownerID string) ([]*domain.Todo, error) {
	todos, err := u.repo.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (u *TodoUsecase) Get(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	todo, err := u.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, wrapTodoErr("get todo", err)
	}
	return todo, nil
}

// Update applies in. Marking a todo completed stamps CompletedAt with the
// current time; marking it not completed clears CompletedAt.
func (u *TodoUsecase) Update(ctx context.Context, id, ownerID string, in UpdateTodoInput) (*domain.Todo, error) {
	current, err := u.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, wrapTodoErr("get todo", err)
	}

	patch := domain.TodoPatch{
		Completed:   current.Completed,
		CompletedAt: current.CompletedAt,
	}
	if in.Text != nil {
		text, err := validateText(*in.Text)
		if err != nil {
			return nil, err
		}
		patch.Text = &text
	}
	if in.Completed != nil {
		patch.Completed = *in.Completed
		patch.CompletedAt = nil
		if *in.Completed {
			now := u.now().UTC()
			patch.CompletedAt = &now
		}
	}

	todo, err := u.repo.Update(ctx, id, ownerID, patch)
	if err != nil {
		return nil, wrapTodoErr("update todo", err)
	}
	return todo, nil
}

// Delete removes the todo and returns what was deleted.
func (u *TodoUsecase) Delete(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	todo, err := u.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return nil, wrapTodoErr("delete todo", err)
	}
	return todo, nil
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewValidationError("text", "is required")
	}
	return text, nil
}

func wrapTodoErr(op string, err error) error {
	if errors.Is(err, domain.ErrTodoNotFound) {
		return domain.ErrTodoNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
