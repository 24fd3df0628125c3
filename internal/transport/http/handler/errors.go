package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer = "Internal server error"
	errInvalidBody    = "Invalid request body"
	errDuplicateEmail = "Email is already registered"
	errTodoNotFound   = "Todo not found"
)

// respondError maps domain errors to responses. Anything unrecognised is a
// storage or programming failure: logged, reported as a generic 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, domain.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": errDuplicateEmail})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.Status(http.StatusUnauthorized)
	case errors.Is(err, domain.ErrTodoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errTodoNotFound})
	default:
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
