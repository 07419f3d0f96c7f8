package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"testing"

	"github.com/feedpress/apiserver/config"
	"github.com/feedpress/apiserver/internal/testutil"
	"github.com/feedpress/apiserver/types"
)

type postEnv struct {
	mem    *testutil.MemStore
	posts  *PostService
	images *testutil.RecordingImages
	events *testutil.RecordingPublisher
	owner  types.User
	other  types.User
}

// Images uploaded by the owner and the other user of a fresh postEnv, which
// are always the first two users created.
const (
	ownerImage = "images/1/"
	otherImage = "images/2/"
)

func newPostEnv(t *testing.T, mode string) *postEnv {
	t.Helper()
	mem := testutil.NewMemStore()
	images := &testutil.RecordingImages{}
	events := &testutil.RecordingPublisher{}
	posts := NewPostService(mem.Posts(), PostServiceOptions{
		ImageURLMode: mode,
		Images:       images,
		Events:       events,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	users := mem.Users()
	owner, err := users.Create(context.Background(), types.User{Email: "owner@example.com", Name: "Owner", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	other, err := users.Create(context.Background(), types.User{Email: "other@example.com", Name: "Other", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	if owner.ID != 1 || other.ID != 2 {
		t.Fatalf("unexpected user ids %d, %d", owner.ID, other.ID)
	}

	return &postEnv{mem: mem, posts: posts, images: images, events: events, owner: owner, other: other}
}

func authAs(user types.User) types.AuthState {
	return types.AuthState{Authenticated: true, UserID: user.ID, Email: user.Email}
}

func strPtr(s string) *string {
	return &s
}

func (e *postEnv) create(t *testing.T, title, imageURL string) types.Post {
	t.Helper()
	post, err := e.posts.Create(context.Background(), e.owner, PostInput{Title: title, Content: "content of " + title, ImageURL: strPtr(imageURL)})
	if err != nil {
		t.Fatalf("create post %q: %v", title, err)
	}
	return post
}

func TestPostService_ListPagination(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	for i := 1; i <= 5; i++ {
		env.create(t, fmt.Sprintf("post %d", i), "")
	}

	page1, err := env.posts.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List(1) failed: %v", err)
	}
	if page1.TotalPosts != 5 {
		t.Errorf("expected total 5, got %d", page1.TotalPosts)
	}
	if len(page1.Posts) != 2 {
		t.Fatalf("expected 2 posts on page 1, got %d", len(page1.Posts))
	}
	if page1.Posts[0].Title != "post 5" || page1.Posts[1].Title != "post 4" {
		t.Errorf("expected newest first, got %q, %q", page1.Posts[0].Title, page1.Posts[1].Title)
	}
	if page1.Posts[0].Creator == nil || page1.Posts[0].Creator.ID != env.owner.ID {
		t.Error("expected creator to be resolved")
	}

	page3, err := env.posts.List(context.Background(), 3)
	if err != nil {
		t.Fatalf("List(3) failed: %v", err)
	}
	if len(page3.Posts) != 1 || page3.Posts[0].Title != "post 1" {
		t.Fatalf("expected the oldest post alone on page 3, got %+v", page3.Posts)
	}
	if page3.TotalPosts != 5 {
		t.Errorf("expected total 5 on page 3, got %d", page3.TotalPosts)
	}

	for _, page := range []int{0, -3} {
		got, err := env.posts.List(context.Background(), page)
		if err != nil {
			t.Fatalf("List(%d) failed: %v", page, err)
		}
		if len(got.Posts) != len(page1.Posts) || got.Posts[0].ID != page1.Posts[0].ID || got.Posts[1].ID != page1.Posts[1].ID {
			t.Errorf("List(%d) differs from page 1", page)
		}
	}

	beyond, err := env.posts.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List(10) failed: %v", err)
	}
	if len(beyond.Posts) != 0 || beyond.TotalPosts != 5 {
		t.Errorf("expected empty window with total 5, got %d posts, total %d", len(beyond.Posts), beyond.TotalPosts)
	}
}

func TestPostService_CreateIndexesOwner(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)

	post := env.create(t, "first", ownerImage + "a.png")

	if post.CreatorID != env.owner.ID {
		t.Errorf("expected creator %d, got %d", env.owner.ID, post.CreatorID)
	}
	if post.CreatedAt.IsZero() || post.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set by persistence")
	}
	owned := env.mem.OwnedPostIDs(env.owner.ID)
	if len(owned) != 1 || owned[0] != post.ID {
		t.Errorf("expected owner index [%d], got %v", post.ID, owned)
	}

	if len(env.events.Messages) != 1 {
		t.Fatalf("expected 1 event, got %d", len(env.events.Messages))
	}
	msg := env.events.Messages[0]
	if msg.Channel != PostEventsChannel {
		t.Errorf("expected channel %q, got %q", PostEventsChannel, msg.Channel)
	}
	var event types.PostEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Action != types.PostCreated || event.PostID != fmt.Sprint(post.ID) {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestPostService_CreateFailureLeavesNoPost(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	env.mem.FailIndex = errors.New("connection reset")

	if _, err := env.posts.Create(context.Background(), env.owner, PostInput{Title: "t", Content: "c"}); err == nil {
		t.Fatal("expected create to fail")
	}
	env.mem.FailIndex = nil

	page, err := env.posts.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.TotalPosts != 0 {
		t.Errorf("expected no posts after failed create, got %d", page.TotalPosts)
	}
	if len(env.events.Messages) != 0 {
		t.Errorf("expected no events after failed create, got %d", len(env.events.Messages))
	}
}

func TestPostService_GetMissing(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)

	_, err := env.posts.Get(context.Background(), 999)
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	typed, _ := types.AsError(err)
	if typed.Code != http.StatusNotFound {
		t.Errorf("expected code 404, got %d", typed.Code)
	}
}

func TestPostService_OwnershipEnforced(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	post := env.create(t, "mine", "")

	_, err := env.posts.Update(context.Background(), post.ID, authAs(env.other), PostInput{Title: "hijack", Content: "x"})
	if !errors.Is(err, types.ErrForbidden) {
		t.Errorf("update by non-owner: expected Forbidden, got %v", err)
	}
	if typed, ok := types.AsError(err); ok && typed.Code != http.StatusForbidden {
		t.Errorf("expected code 403, got %d", typed.Code)
	}

	err = env.posts.Delete(context.Background(), post.ID, authAs(env.other))
	if !errors.Is(err, types.ErrForbidden) {
		t.Errorf("delete by non-owner: expected Forbidden, got %v", err)
	}

	stored, err := env.posts.Get(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("post should still exist: %v", err)
	}
	if stored.Title != "mine" {
		t.Errorf("post was modified by non-owner: %q", stored.Title)
	}
}

func TestPostService_NotFoundBeforeForbidden(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)

	_, err := env.posts.Update(context.Background(), 12345, authAs(env.other), PostInput{Title: "t", Content: "c"})
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("update: expected NotFound, got %v", err)
	}
	err = env.posts.Delete(context.Background(), 12345, authAs(env.other))
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("delete: expected NotFound, got %v", err)
	}
}

func TestPostService_UpdateImageURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mode      string
		imageURL  *string
		wantImage string
	}{
		{name: "sentinel keeps on undefined", mode: config.ImageURLSentinel, imageURL: strPtr("undefined"), wantImage: ownerImage + "old.png"},
		// An omitted field keeps the image in both modes rather than being
		// read as a replacement.
		{name: "sentinel keeps on absent", mode: config.ImageURLSentinel, imageURL: nil, wantImage: ownerImage + "old.png"},
		{name: "sentinel replaces with text", mode: config.ImageURLSentinel, imageURL: strPtr(ownerImage + "new.png"), wantImage: ownerImage + "new.png"},
		{name: "sentinel replaces with empty", mode: config.ImageURLSentinel, imageURL: strPtr(""), wantImage: ""},
		{name: "absent keeps on absent", mode: config.ImageURLAbsent, imageURL: nil, wantImage: ownerImage + "old.png"},
		{name: "absent stores undefined literally", mode: config.ImageURLAbsent, imageURL: strPtr("undefined"), wantImage: "undefined"},
		{name: "absent replaces with empty", mode: config.ImageURLAbsent, imageURL: strPtr(""), wantImage: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newPostEnv(t, tt.mode)
			post := env.create(t, "original", ownerImage + "old.png")

			updated, err := env.posts.Update(context.Background(), post.ID, authAs(env.owner), PostInput{
				Title:    "new title",
				Content:  "new content",
				ImageURL: tt.imageURL,
			})
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			if updated.Title != "new title" || updated.Content != "new content" {
				t.Errorf("expected title and content overwritten, got %q / %q", updated.Title, updated.Content)
			}
			if updated.ImageURL != tt.wantImage {
				t.Errorf("expected image %q, got %q", tt.wantImage, updated.ImageURL)
			}

			replaced := tt.wantImage != ownerImage + "old.png"
			if replaced && (len(env.images.Removed) != 1 || env.images.Removed[0] != ownerImage + "old.png") {
				t.Errorf("expected old image removal, got %v", env.images.Removed)
			}
			if !replaced && len(env.images.Removed) != 0 {
				t.Errorf("expected no image removal, got %v", env.images.Removed)
			}
		})
	}
}

func TestPostService_DeleteUnindexes(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	keep := env.create(t, "keep", "")
	drop := env.create(t, "drop", ownerImage + "drop.png")

	if err := env.posts.Delete(context.Background(), drop.ID, authAs(env.owner)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := env.posts.Get(context.Background(), drop.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected deleted post to be NotFound, got %v", err)
	}
	owned := env.mem.OwnedPostIDs(env.owner.ID)
	if len(owned) != 1 || owned[0] != keep.ID {
		t.Errorf("expected owner index [%d], got %v", keep.ID, owned)
	}
	page, err := env.posts.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, p := range page.Posts {
		if p.ID == drop.ID {
			t.Error("deleted post still listed")
		}
	}
	if len(env.images.Removed) != 1 || env.images.Removed[0] != ownerImage + "drop.png" {
		t.Errorf("expected image cleanup, got %v", env.images.Removed)
	}
	last := env.events.Messages[len(env.events.Messages)-1]
	if last.Attrs["action"] != types.PostDeleted {
		t.Errorf("expected deleted event, got %v", last.Attrs)
	}
}

func TestPostService_SideEffectFailuresIgnored(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	env.events.Err = errors.New("broker down")
	env.images.Err = errors.New("bucket gone")

	post := env.create(t, "resilient", ownerImage + "a.png")
	if err := env.posts.Delete(context.Background(), post.ID, authAs(env.owner)); err != nil {
		t.Fatalf("Delete should ignore cleanup failures, got %v", err)
	}
}

func TestPostService_UnmanagedImageKept(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	post := env.create(t, "external", "https://cdn.example.com/a.png")

	if err := env.posts.Delete(context.Background(), post.ID, authAs(env.owner)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(env.images.Removed) != 0 {
		t.Errorf("expected unmanaged image untouched, got %v", env.images.Removed)
	}
}

func TestPostService_ListPageOutOfRange(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	for i := 1; i <= 3; i++ {
		env.create(t, fmt.Sprintf("post %d", i), "")
	}

	for _, page := range []int{math.MaxInt, math.MaxInt/DefaultPerPage + 2, math.MaxInt / DefaultPerPage} {
		got, err := env.posts.List(context.Background(), page)
		if err != nil {
			t.Fatalf("List(%d) failed: %v", page, err)
		}
		if len(got.Posts) != 0 || got.TotalPosts != 3 {
			t.Errorf("List(%d): expected empty window with total 3, got %d posts, total %d", page, len(got.Posts), got.TotalPosts)
		}
	}
}

func TestPostService_OmittedImageURLKeepsImage(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	post := env.create(t, "with image", ownerImage+"keep.png")

	updated, err := env.posts.Update(context.Background(), post.ID, authAs(env.owner), PostInput{Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ImageURL != ownerImage+"keep.png" {
		t.Errorf("omitting imageUrl must keep the stored image, got %q", updated.ImageURL)
	}
	if len(env.images.Removed) != 0 {
		t.Errorf("expected no removal, got %v", env.images.Removed)
	}
}

func TestPostService_ForeignImageRejected(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)
	victim := env.create(t, "victim", ownerImage+"victim.png")

	_, err := env.posts.Create(context.Background(), env.other, PostInput{Title: "t", Content: "c", ImageURL: strPtr(ownerImage + "victim.png")})
	if !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("create with another user's image: expected Forbidden, got %v", err)
	}

	mine, err := env.posts.Create(context.Background(), env.other, PostInput{Title: "t", Content: "c", ImageURL: strPtr(otherImage + "mine.png")})
	if err != nil {
		t.Fatalf("create with own image failed: %v", err)
	}
	_, err = env.posts.Update(context.Background(), mine.ID, authAs(env.other), PostInput{Title: "t", Content: "c", ImageURL: strPtr(ownerImage + "victim.png")})
	if !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("update to another user's image: expected Forbidden, got %v", err)
	}

	if err := env.posts.Delete(context.Background(), mine.ID, authAs(env.other)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	for _, removed := range env.images.Removed {
		if removed == victim.ImageURL {
			t.Fatalf("another user's delete removed %q", removed)
		}
	}
	if len(env.images.Removed) != 1 || env.images.Removed[0] != otherImage+"mine.png" {
		t.Errorf("expected only the deleter's image removed, got %v", env.images.Removed)
	}
}

func TestPostService_ForeignImageNotRemoved(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)

	// Seeded directly in the store, so the creator never uploaded the key.
	post, err := env.mem.Posts().Create(context.Background(), types.Post{Title: "t", Content: "c", ImageURL: otherImage + "theirs.png", CreatorID: env.owner.ID})
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	if err := env.posts.Delete(context.Background(), post.ID, authAs(env.owner)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(env.images.Removed) != 0 {
		t.Errorf("expected foreign image kept, got %v", env.images.Removed)
	}
}

func TestPostService_PerPageFixed(t *testing.T) {
	t.Parallel()
	env := newPostEnv(t, config.ImageURLSentinel)

	if env.posts.PerPage() != 2 {
		t.Errorf("expected 2 posts per page, got %d", env.posts.PerPage())
	}
}
