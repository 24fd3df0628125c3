package requestid_test

import (
	"context"
	"testing"

	"github.com/ErlanBelekov/todo-api/internal/requestid"
	"github.com/google/uuid"
)

func TestNew_IsUUID(t *testing.T) {
	if _, err := uuid.Parse(requestid.New()); err != nil {
		t.Errorf("New() is not a uuid: %v", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if requestid.FromContext(ctx) != "" || requestid.UserIDFromContext(ctx) != "" {
		t.Fatal("empty context should carry no ids")
	}

	ctx = requestid.WithRequestID(ctx, "req-1")
	ctx = requestid.WithUserID(ctx, "user-1")

	if got := requestid.FromContext(ctx); got != "req-1" {
		t.Errorf("request id = %q, want req-1", got)
	}
	if got := requestid.UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("user id = %q, want user-1", got)
	}
}
