package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/domain"
)

// UserRepository is the credential store. Token mutations must be atomic at the
// storage layer: concurrent appends for one user never drop each other.
type UserRepository interface {
	// Create inserts a user. Returns domain.ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, email, passwordHash string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// AppendToken adds token to the end of the user's token list.
	AppendToken(ctx context.Context, userID string, token domain.Token) (*domain.User, error)

	// RemoveToken drops every entry matching token exactly.
	// Removing an absent token is not an error.
	RemoveToken(ctx context.Context, userID, token string) error

	// FindByActiveToken matches user id, token and scope together.
	// Returns domain.ErrUserNotFound when nothing matches.
	FindByActiveToken(ctx context.Context, userID, token, scope string) (*domain.User, error)

	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// PruneExpiredTokens removes tokens that expired at or before now from at most
	// limit users and returns how many users were touched.
	PruneExpiredTokens(ctx context.Context, now time.Time, limit int) (int, error)
}
