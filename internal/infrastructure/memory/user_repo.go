// Package memory holds in-process repository implementations used for STORE=memory
// and in tests. They honour the same contracts as the postgres repositories.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/repository"
	"github.com/google/uuid"
)

var _ repository.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string // lower-cased email -> id
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UserRepository) Create(_ context.Context, email, passwordHash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(email)
	if _, taken := r.byEmail[key]; taken {
		return nil, domain.ErrDuplicateEmail
	}

	now := r.now()
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Tokens:       []domain.Token{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byEmail[key] = u.ID
	return cloneUser(u), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) AppendToken(_ context.Context, userID string, token domain.Token) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Tokens = append(u.Tokens, cloneToken(token))
	u.UpdatedAt = r.now()
	return cloneUser(u), nil
}

func (r *UserRepository) RemoveToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return nil
	}
	kept := u.Tokens[:0]
	for _, t := range u.Tokens {
		if t.Token != token {
			kept = append(kept, t)
		}
	}
	if len(kept) != len(u.Tokens) {
		u.UpdatedAt = r.now()
	}
	u.Tokens = kept
	return nil
}

func (r *UserRepository) FindByActiveToken(_ context.Context, userID, token, scope string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[userID]
	if !ok || !u.HasToken(token, scope) {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.now()
	return nil
}

func (r *UserRepository) PruneExpiredTokens(_ context.Context, now time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := 0
	for _, u := range r.byID {
		if touched >= limit {
			break
		}
		kept := make([]domain.Token, 0, len(u.Tokens))
		for _, t := range u.Tokens {
			if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == len(u.Tokens) {
			continue
		}
		u.Tokens = kept
		u.UpdatedAt = r.now()
		touched++
	}
	return touched, nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Tokens = make([]domain.Token, len(u.Tokens))
	for i, t := range u.Tokens {
		c.Tokens[i] = cloneToken(t)
	}
	return &c
}

func cloneToken(t domain.Token) domain.Token {
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		t.ExpiresAt = &exp
	}
	return t
}
