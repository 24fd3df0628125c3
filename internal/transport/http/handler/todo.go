package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/domain"
	"github.com/ErlanBelekov/todo-api/internal/transport/http/middleware"
	"github.com/ErlanBelekov/todo-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type todoUsecaser interface {
	Create(ctx context.Context, ownerID, text string) (*domain.Todo, error)
	List(ctx context.Context, ownerID string) ([]*domain.Todo, error)
	Get(ctx context.Context, id, ownerID string) (*domain.Todo, error)
	Update(ctx context.Context, id, ownerID string, in usecase.UpdateTodoInput) (*domain.Todo, error)
	Delete(ctx context.Context, id, ownerID string) (*domain.Todo, error)
}

type TodoHandler struct {
	todoUsecase todoUsecaser
	logger      *slog.Logger
}

func NewTodoHandler(todoUsecase todoUsecaser, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{todoUsecase: todoUsecase, logger: logger.With("component", "todo_handler")}
}

type createTodoRequest struct {
	Text string `json:"text"`
}

type updateTodoRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

type todoResponse struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toTodoResponse(t *domain.Todo) todoResponse {
	return todoResponse{
		ID:          t.ID,
		Text:        t.Text,
		Completed:   t.Completed,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// ownerID is only called behind middleware.Auth.
func ownerID(c *gin.Context) (string, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return "", false
	}
	return user.ID, true
}

// POST /todos
func (h *TodoHandler) Create(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	todo, err := h.todoUsecase.Create(c.Request.Context(), owner, req.Text)
	if err != nil {
		respondError(c, h.logger, "create todo", err)
		return
	}
	c.JSON(http.StatusCreated, toTodoResponse(todo))
}

// GET /todos
func (h *TodoHandler) List(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	todos, err := h.todoUsecase.List(c.Request.Context(), owner)
	if err != nil {
		respondError(c, h.logger, "list todos", err)
		return
	}

	resp := make([]todoResponse, len(todos))
	for i, t := range todos {
		resp[i] = toTodoResponse(t)
	}
	c.JSON(http.StatusOK, gin.H{"todos": resp})
}

// GET /todos/:id
func (h *TodoHandler) GetByID(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	todo, err := h.todoUsecase.Get(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		respondError(c, h.logger, "get todo", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"todo": toTodoResponse(todo)})
}

// PATCH /todos/:id
func (h *TodoHandler) Update(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req updateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	todo, err := h.todoUsecase.Update(c.Request.Context(), c.Param("id"), owner, usecase.UpdateTodoInput{
		Text:      req.Text,
		Completed: req.Completed,
	})
	if err != nil {
		respondError(c, h.logger, "update todo", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"todo": toTodoResponse(todo)})
}

// DELETE /todos/:id
func (h *TodoHandler) Delete(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	todo, err := h.todoUsecase.Delete(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		respondError(c, h.logger, "delete todo", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"todo": toTodoResponse(todo)})
}
