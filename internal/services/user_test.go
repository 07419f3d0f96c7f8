package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/feedpress/apiserver/internal/testutil"
	"github.com/feedpress/apiserver/types"
)

func TestUserService_GetByIDMissing(t *testing.T) {
	t.Parallel()
	users := NewUserService(testutil.NewMemStore().Users())

	_, err := users.GetByID(context.Background(), 404)
	if !errors.Is(err, types.ErrUserNotFound) {
		t.Fatalf("expected UserNotFound, got %v", err)
	}
	if typed, _ := types.AsError(err); typed.Code != http.StatusUnauthorized {
		t.Errorf("expected code 401, got %d", typed.Code)
	}
}

func TestUserService_UpdateStatus(t *testing.T) {
	t.Parallel()
	mem := testutil.NewMemStore()
	users := NewUserService(mem.Users())

	created, err := mem.Users().Create(context.Background(), types.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	updated, err := users.UpdateStatus(context.Background(), created.ID, "writing a compiler")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.Status != "writing a compiler" {
		t.Errorf("expected status to change, got %q", updated.Status)
	}

	reloaded, err := users.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Status != "writing a compiler" {
		t.Errorf("expected persisted status, got %q", reloaded.Status)
	}

	if _, err := users.UpdateStatus(context.Background(), 999, "ghost"); !errors.Is(err, types.ErrUserNotFound) {
		t.Errorf("expected UserNotFound for missing user, got %v", err)
	}
}
