package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ repository.UserRepository = (*UserRepository)(nil)

const userColumns = `id, email, password_hash, tokens, created_at, updated_at`

// tokenDoc is one element of users.tokens (jsonb array).
type tokenDoc struct {
	Scope     string     `json:"scope"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	query := `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, email, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrUserNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// AppendToken pushes onto the jsonb array in a single statement, so concurrent
// logins for the same user are additive.
func (r *UserRepository) AppendToken(ctx context.Context, userID string, token domain.Token) (*domain.User, error) {
	if !validID(userID) {
		return nil, domain.ErrUserNotFound
	}
	doc, err := json.Marshal([]tokenDoc{{Scope: token.Scope, Token: token.Token, ExpiresAt: token.ExpiresAt}})
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}

	query := `
		UPDATE users
		SET    tokens     = tokens || $2::jsonb,
		       updated_at = NOW()
		WHERE  id = $1
		RETURNING ` + userColumns

	return scanUser(r.pool.QueryRow(ctx, query, userID, string(doc)))
}

func (r *UserRepository) RemoveToken(ctx context.Context, userID, token string) error {
	if !validID(userID) {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET    tokens = COALESCE((
		           SELECT jsonb_agg(t.elem ORDER BY t.ord)
		           FROM   jsonb_array_elements(tokens) WITH ORDINALITY AS t(elem, ord)
		           WHERE  t.elem->>'token' <> $2
		       ), '[]'::jsonb),
		       updated_at = NOW()
		WHERE  id = $1
		  AND  tokens @> jsonb_build_array(jsonb_build_object('token', $2::text))`,
		userID, token)
	if err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByActiveToken(ctx context.Context, userID, token, scope string) (*domain.User, error) {
	if !validID(userID) {
		return nil, domain.ErrUserNotFound
	}
	query := `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  id = $1
		  AND  tokens @> jsonb_build_array(jsonb_build_object('token', $2::text, 'scope', $3::text))`

	return scanUser(r.pool.QueryRow(ctx, query, userID, token, scope))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if !validID(userID) {
		return domain.ErrUserNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) PruneExpiredTokens(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET    tokens = COALESCE((
		           SELECT jsonb_agg(t.elem ORDER BY t.ord)
		           FROM   jsonb_array_elements(tokens) WITH ORDINALITY AS t(elem, ord)
		           WHERE  t.elem->>'expires_at' IS NULL
		              OR  (t.elem->>'expires_at')::timestamptz > $1
		       ), '[]'::jsonb),
		       updated_at = NOW()
		WHERE id IN (
			SELECT id FROM users
			WHERE EXISTS (
				SELECT 1 FROM jsonb_array_elements(tokens) AS e
				WHERE  e->>'expires_at' IS NOT NULL
				  AND  (e->>'expires_at')::timestamptz <= $1
			)
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, now, limit)
	if err != nil {
		return 0, fmt.Errorf("prune expired tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		docs []tokenDoc
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &docs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Tokens = make([]domain.Token, len(docs))
	for i, d := range docs {
		u.Tokens[i] = domain.Token{Scope: d.Scope, Token: d.Token, ExpiresAt: d.ExpiresAt}
	}
	return &u, nil
}
