package domain

import (
	"errors"
	"time"
)

var ErrTodoNotFound = errors.New("todo not found")

type Todo struct {
	ID          string
	OwnerID     string
	Text        string
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoPatch is the resolved set of fields an update writes.
// Text is nil when the text is left unchanged.
type TodoPatch struct {
	Text        *string
	Completed   bool
	CompletedAt *time.Time
}
