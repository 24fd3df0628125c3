package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ repository.TodoRepository = (*TodoRepository)(nil)

const todoColumns = `id, owner_id, text, completed, completed_at, created_at, updated_at`

type TodoRepository struct {
	pool *pgxpool.Pool
}

func NewTodoRepository(pool *pgxpool.Pool) *TodoRepository {
	return &TodoRepository{pool: pool}
}

func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error) {
	query := `
		INSERT INTO todos (owner_id, text, completed, completed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + todoColumns

	created, err := scanTodo(r.pool.QueryRow(ctx, query,
		todo.OwnerID, todo.Text, todo.Completed, todo.CompletedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return created, nil
}

func (r *TodoRepository) List(ctx context.Context, ownerID string) ([]*domain.Todo, error) {
	if !validID(ownerID) {
		return []*domain.Todo{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+todoColumns+`
		FROM   todos
		WHERE  owner_id = $1
		ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]*domain.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (r *TodoRepository) GetByID(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	if !validID(id) || !validID(ownerID) {
		return nil, domain.ErrTodoNotFound
	}
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND owner_id = $2`
	return scanTodo(r.pool.QueryRow(ctx, query, id, ownerID))
}

func (r *TodoRepository) Update(ctx context.Context, id, ownerID string, patch domain.TodoPatch) (*domain.Todo, error) {
	if !validID(id) || !validID(ownerID) {
		return nil, domain.ErrTodoNotFound
	}
	query := `
		UPDATE todos
		SET    text         = COALESCE($3, text),
		       completed    = $4,
		       completed_at = $5,
		       updated_at   = NOW()
		WHERE  id = $1 AND owner_id = $2
		RETURNING ` + todoColumns

	return scanTodo(r.pool.QueryRow(ctx, query, id, ownerID, patch.Text, patch.Completed, patch.CompletedAt))
}

func (r *TodoRepository) Delete(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	if !validID(id) || !validID(ownerID) {
		return nil, domain.ErrTodoNotFound
	}
	query := `DELETE FROM todos WHERE id = $1 AND owner_id = $2 RETURNING ` + todoColumns
	return scanTodo(r.pool.QueryRow(ctx, query, id, ownerID))
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*domain.Todo, error) {
	var t domain.Todo
	err := row.Scan(&t.ID, &t.OwnerID, &t.Text, &t.Completed, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTodoNotFound
		}
		return nil, fmt.Errorf("scan todo: %w", err)
	}
	return &t, nil
}
