//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/feedpress/apiserver/internal/store"
	"github.com/feedpress/apiserver/internal/testutil"
	"github.com/feedpress/apiserver/types"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := testutil.RequireEnv(t, "DATABASE_URL")

	migrator, err := migrate.New("file://../db/migrations", dsn)
	if err != nil {
		t.Fatalf("init migrator: %v", err)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
	_, _ = migrator.Close()

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@example.com", prefix, time.Now().UnixNano())
}

func TestUserRepository(t *testing.T) {
	conn := openDB(t)
	users := store.NewUserRepository(conn)
	ctx := context.Background()
	email := uniqueEmail("ada")

	created, err := users.Create(ctx, types.User{Email: email, Name: "Ada", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID < 1 || created.Status != types.DefaultUserStatus || len(created.PostIDs) != 0 {
		t.Fatalf("unexpected user %+v", created)
	}

	if _, err := users.Create(ctx, types.User{Email: email, Name: "Again", PasswordHash: "hash"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	byEmail, err := users.GetByEmail(ctx, email)
	if err != nil || byEmail.ID != created.ID || byEmail.PasswordHash != "hash" {
		t.Fatalf("GetByEmail = %+v, %v", byEmail, err)
	}

	updated, err := users.UpdateStatus(ctx, created.ID, "busy")
	if err != nil || updated.Status != "busy" {
		t.Fatalf("UpdateStatus = %+v, %v", updated, err)
	}

	if _, err := users.GetByID(ctx, -1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := users.UpdateStatus(ctx, -1, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostRepository(t *testing.T) {
	conn := openDB(t)
	users := store.NewUserRepository(conn)
	posts := store.NewPostRepository(conn)
	ctx := context.Background()

	owner, err := users.Create(ctx, types.User{Email: uniqueEmail("owner"), Name: "Owner", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}

	first, err := posts.Create(ctx, types.Post{Title: "first", Content: "c", ImageURL: "images/a.png", CreatorID: owner.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := posts.Create(ctx, types.Post{Title: "second", Content: "c", CreatorID: owner.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	reloaded, err := users.GetByID(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(reloaded.PostIDs) != 2 || reloaded.PostIDs[0] != first.ID || reloaded.PostIDs[1] != second.ID {
		t.Fatalf("expected owned posts [%d %d], got %v", first.ID, second.ID, reloaded.PostIDs)
	}

	fetched, err := posts.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Creator == nil || fetched.Creator.Name != "Owner" || fetched.ImageURL != "images/a.png" {
		t.Fatalf("unexpected post %+v", fetched)
	}

	page, total, err := posts.List(ctx, 0, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total < 2 || len(page) != 2 || page[0].ID != second.ID {
		t.Fatalf("expected newest first, got total %d page %+v", total, page)
	}

	fetched.Title = "first edited"
	edited, err := posts.Update(ctx, fetched)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if edited.Title != "first edited" || edited.UpdatedAt.Before(edited.CreatedAt) {
		t.Fatalf("unexpected updated post %+v", edited)
	}

	if err := posts.Delete(ctx, first.ID, owner.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := posts.Get(ctx, first.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := posts.Delete(ctx, first.ID, owner.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	reloaded, err = users.GetByID(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(reloaded.PostIDs) != 1 || reloaded.PostIDs[0] != second.ID {
		t.Fatalf("expected owned posts [%d], got %v", second.ID, reloaded.PostIDs)
	}
}
