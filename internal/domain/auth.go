package domain

import (
	"errors"
	"time"
)

// ScopeAuth is the scope of tokens handed out by login and registration.
const ScopeAuth = "auth"

var (
	ErrValidation         = errors.New("validation failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("token is invalid")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// ValidationError describes a single rejected input field.
// errors.Is(err, ErrValidation) reports true for it.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Token is an issued bearer token still accepted for its scope.
type Token struct {
	Scope     string
	Token     string
	ExpiresAt *time.Time // nil means no expiry
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Tokens       []Token
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the only user representation that leaves the service.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email}
}

// HasToken reports whether raw is an active token of the given scope.
func (u *User) HasToken(raw, scope string) bool {
	for _, t := range u.Tokens {
		if t.Token == raw && t.Scope == scope {
			return true
		}
	}
	return false
}
