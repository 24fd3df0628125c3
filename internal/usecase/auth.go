package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/email"
	"github.com/ErlanBelekov/todo-api/internal/metrics"
	"github.com/ErlanBelekov/todo-api/internal/password"
	"github.com/ErlanBelekov/todo-api/internal/repository"
	"github.com/ErlanBelekov/todo-api/internal/token"
	"github.com/go-playground/validator/v10"
)

// PasswordHasher is satisfied by *password.BcryptHasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) bool
}

// TokenCodec is satisfied by *token.Codec.
type TokenCodec interface {
	NewClaims(userID, scope string) token.Claims
	Issue(claims token.Claims) (string, error)
	Verify(raw string) (token.Claims, error)
}

// compared against when the email is unknown so both login failures cost one hash
const dummyPassword = "dummy-password-for-timing"

type AuthUsecase struct {
	users     repository.UserRepository
	hasher    PasswordHasher
	codec     TokenCodec
	email     email.Sender
	logger    *slog.Logger
	validate  *validator.Validate
	minPwLen  int
	dummyHash string
}

func NewAuthUsecase(
	users repository.UserRepository,
	hasher PasswordHasher,
	codec TokenCodec,
	emailSender email.Sender,
	logger *slog.Logger,
	minPasswordLength int,
) (*AuthUsecase, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	if minPasswordLength < 1 {
		minPasswordLength = 1
	}
	return &AuthUsecase{
		users:     users,
		hasher:    hasher,
		codec:     codec,
		email:     emailSender,
		logger:    logger.With("component", "auth"),
		validate:  validator.New(),
		minPwLen:  minPasswordLength,
		dummyHash: dummy,
	}, nil
}

// Register creates a user with a hashed password. Uniqueness is enforced by
// the store, so two concurrent registrations of one email yield exactly one
// user and one ErrDuplicateEmail.
func (u *AuthUsecase) Register(ctx context.Context, emailAddr, plain string) (user *domain.User, err error) {
	defer func() { u.record("register", err) }()

	emailAddr = strings.TrimSpace(emailAddr)
	if err = u.validateEmail(emailAddr); err != nil {
		return nil, err
	}
	if err = u.validatePassword(plain); err != nil {
		return nil, err
	}

	hash, err := u.hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err = u.users.Create(ctx, emailAddr, hash)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	subject, body := email.Welcome(user.Email)
	if sendErr := u.email.Send(ctx, user.Email, subject, body); sendErr != nil {
		u.logger.WarnContext(ctx, "welcome email failed", "user_id", user.ID, "error", sendErr)
	}
	return user, nil
}

// Login checks credentials and issues a fresh token. Unknown email and wrong
// password are reported identically.
func (u *AuthUsecase) Login(ctx context.Context, emailAddr, plain string) (user *domain.User, raw string, err error) {
	defer func() { u.record("login", err) }()

	user, err = u.users.FindByEmail(ctx, strings.TrimSpace(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			u.hasher.Verify(plain, u.dummyHash)
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if !u.hasher.Verify(plain, user.PasswordHash) {
		return nil, "", domain.ErrInvalidCredentials
	}

	raw, err = u.issue(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, raw, nil
}

// IssueToken signs a new auth token for user and records it as active.
func (u *AuthUsecase) IssueToken(ctx context.Context, user *domain.User) (raw string, err error) {
	defer func() { u.record("issue", err) }()
	return u.issue(ctx, user)
}

func (u *AuthUsecase) issue(ctx context.Context, user *domain.User) (string, error) {
	claims := u.codec.NewClaims(user.ID, domain.ScopeAuth)
	raw, err := u.codec.Issue(claims)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	tok := domain.Token{Scope: claims.Scope, Token: raw}
	if !claims.ExpiresAt.IsZero() {
		exp := claims.ExpiresAt
		tok.ExpiresAt = &exp
	}
	if _, err := u.users.AppendToken(ctx, user.ID, tok); err != nil {
		return "", fmt.Errorf("append token: %w", err)
	}
	return raw, nil
}

// VerifyToken resolves raw to the user it is active for.
func (u *AuthUsecase) VerifyToken(ctx context.Context, raw string) (user *domain.User, err error) {
	defer func() { u.record("verify", err) }()

	claims, err := u.codec.Verify(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if claims.Scope != domain.ScopeAuth {
		return nil, fmt.Errorf("%w: unexpected scope %q", domain.ErrInvalidToken, claims.Scope)
	}

	user, err = u.users.FindByActiveToken(ctx, claims.UserID, raw, claims.Scope)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenRevoked
		}
		return nil, fmt.Errorf("find token owner: %w", err)
	}
	return user, nil
}

// RevokeToken deactivates raw for user. Revoking an inactive token is a no-op.
func (u *AuthUsecase) RevokeToken(ctx context.Context, user *domain.User, raw string) (err error) {
	defer func() { u.record("revoke", err) }()

	if err = u.users.RemoveToken(ctx, user.ID, raw); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// ChangePassword replaces the user's password after re-checking the current one.
// Issued tokens stay active.
func (u *AuthUsecase) ChangePassword(ctx context.Context, user *domain.User, current, next string) (err error) {
	defer func() { u.record("change_password", err) }()

	if !u.hasher.Verify(current, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if err = u.validatePassword(next); err != nil {
		return err
	}

	hash, err := u.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err = u.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (u *AuthUsecase) validateEmail(addr string) error {
	if addr == "" {
		return domain.NewValidationError("email", "is required")
	}
	if err := u.validate.Var(addr, "email"); err != nil {
		return domain.NewValidationError("email", "is not a valid email")
	}
	return nil
}

func (u *AuthUsecase) validatePassword(plain string) error {
	if len(plain) < u.minPwLen {
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", u.minPwLen))
	}
	if len(plain) > password.MaxLength {
		return domain.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", password.MaxLength))
	}
	return nil
}

func (u *AuthUsecase) record(event string, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrTokenRevoked):
		outcome = metrics.OutcomeFailure
	default:
		outcome = metrics.OutcomeError
	}
	metrics.AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}
