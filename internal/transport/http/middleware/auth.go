package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/requestid"
	"github.com/gin-gonic/gin"
)

const (
	errUnauthorized    = "Unauthorized"
	errInternalServer  = "Internal server error"
	errTooManyRequests = "Too many requests"
)

// AuthHeader carries the raw token on requests and on register/login responses.
const AuthHeader = "x-auth"

const (
	userKey  = "auth.user"
	tokenKey = "auth.token"
)

// TokenVerifier is satisfied by *usecase.AuthUsecase.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*domain.User, error)
}

// Auth resolves the request's token to its user. The token is read from the
// x-auth header, falling back to "Authorization: Bearer". Rejections never
// say why; storage failures are logged and answered with 500.
func Auth(verifier TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "auth_middleware")

	return func(c *gin.Context) {
		raw := extractToken(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		ctx := c.Request.Context()
		user, err := verifier.VerifyToken(ctx, raw)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrTokenRevoked) {
				logger.DebugContext(ctx, "token rejected", "error", err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			logger.ErrorContext(ctx, "verify token", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
			return
		}

		c.Request = c.Request.WithContext(requestid.WithUserID(ctx, user.ID))
		c.Set(userKey, user)
		c.Set(tokenKey, raw)
		c.Next()
	}
}

func extractToken(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get(AuthHeader)); raw != "" {
		return raw
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// CurrentUser returns the user resolved by Auth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}

// CurrentToken returns the raw token the request authenticated with.
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
