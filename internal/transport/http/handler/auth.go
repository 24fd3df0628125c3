package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	IssueToken(ctx context.Context, user *domain.User) (string, error)
	RevokeToken(ctx context.Context, user *domain.User, raw string) error
	ChangePassword(ctx context.Context, user *domain.User, current, next string) error
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// POST /users
// Creates the user and signs it in: the token comes back in x-auth.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	ctx := c.Request.Context()
	user, err := h.authUsecase.Register(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}

	// the account already exists here; a retry gets 409 and must log in instead
	raw, err := h.authUsecase.IssueToken(ctx, user)
	if err != nil {
		h.logger.ErrorContext(ctx, "registration incomplete: user created without token",
			"user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.Header(middleware.AuthHeader, raw)
	c.JSON(http.StatusOK, user.Public())
}

// POST /users/login
// Bad email and bad password both get a bare 401.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	user, raw, err := h.authUsecase.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	c.Header(middleware.AuthHeader, raw)
	c.JSON(http.StatusOK, user.Public())
}

// GET /users/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

// DELETE /users/me/token
// Revokes the token this request authenticated with; other sessions survive.
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}

	if err := h.authUsecase.RevokeToken(c.Request.Context(), user, middleware.CurrentToken(c)); err != nil {
		respondError(c, h.logger, "revoke token", err)
		return
	}
	c.Status(http.StatusOK)
}

// PATCH /users/me/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	if err := h.authUsecase.ChangePassword(c.Request.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, h.logger, "change password", err)
		return
	}
	c.Status(http.StatusNoContent)
}
