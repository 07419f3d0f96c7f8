// Package testutil provides in-memory repositories and helpers shared by
// package tests.
package testutil

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/feedpress/apiserver/internal/store"
	"github.com/feedpress/apiserver/types"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// Clock hands out strictly increasing timestamps so that creation order
// is observable through createdAt.
type Clock struct {
	mu   sync.Mutex
	next time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{next: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(time.Second)
	return now
}

// MemStore is an in-memory stand-in for the postgres repositories. It
// records how many calls reached it so tests can assert that guards fail
// before persistence is touched.
type MemStore struct {
	mu         sync.Mutex
	clock      *Clock
	users      map[int64]types.User
	posts      map[int64]types.Post
	owned      map[int64][]int64
	nextUserID int64
	nextPostID int64
	calls      int

	// FailIndex makes the ownership-index write of Create fail, leaving no
	// trace of the post, like a rolled back transaction.
	FailIndex error
}

func NewMemStore() *MemStore {
	return &MemStore{
		clock: NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		users: map[int64]types.User{},
		posts: map[int64]types.Post{},
		owned: map[int64][]int64{},
	}
}

// Calls returns the number of repository calls made so far.
func (m *MemStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Users returns the user repository view of the store.
func (m *MemStore) Users() *MemUsers {
	return &MemUsers{m: m}
}

// Posts returns the post repository view of the store.
func (m *MemStore) Posts() *MemPosts {
	return &MemPosts{m: m}
}

// OwnedPostIDs returns the ownership index of a user.
func (m *MemStore) OwnedPostIDs(userID int64) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.owned[userID]...)
}

func (m *MemStore) userWithIndex(user types.User) types.User {
	user.PostIDs = append([]int64{}, m.owned[user.ID]...)
	return user
}

func (m *MemStore) withCreator(post types.Post) types.Post {
	if creator, ok := m.users[post.CreatorID]; ok {
		c := m.userWithIndex(creator)
		post.Creator = &c
	}
	return post
}

// MemUsers implements services.UserRepository.
type MemUsers struct {
	m *MemStore
}

func (r *MemUsers) GetByID(ctx context.Context, id int64) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++
	user, ok := r.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.m.userWithIndex(user), nil
}

func (r *MemUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++
	for _, user := range r.m.users {
		if user.Email == email {
			return r.m.userWithIndex(user), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *MemUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++
	for _, existing := range r.m.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	r.m.nextUserID++
	now := r.m.clock.Now()
	user.ID = r.m.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = types.DefaultUserStatus
	}
	r.m.users[user.ID] = user
	return r.m.userWithIndex(user), nil
}

func (r *MemUsers) UpdateStatus(ctx context.Context, id int64, status string) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++
	user, ok := r.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Status = status
	user.UpdatedAt = r.m.clock.Now()
	r.m.users[id] = user
	return r.m.userWithIndex(user), nil
}

// Delete removes a user without touching their posts. Tests use it to
// simulate a token that outlives its account.
func (r *MemUsers) Delete(id int64) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.users, id)
}

// MemPosts implements services.PostRepository.
type MemPosts struct {
	m *MemStore
}

func (r *MemPosts) List(ctx context.Context, offset, limit int) ([]types.Post, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++

	all := make([]types.Post, 0, len(r.m.posts))
	for _, post := range r.m.posts {
		all = append(all, post)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	window := make([]types.Post, 0, end-offset)
	for _, post := range all[offset:end] {
		window = append(window, r.m.withCreator(post))
	}
	return window, total, nil
}

func (r *MemPosts) Get(ctx context.Context, id int64) (types.Post, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++
	post, ok := r.m.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return r.m.withCreator(post), nil
}

func (r *MemPosts) Create(ctx context.Context, post types.Post) (types.Post, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++
	if r.m.FailIndex != nil {
		return types.Post{}, r.m.FailIndex
	}
	r.m.nextPostID++
	now := r.m.clock.Now()
	post.ID = r.m.nextPostID
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Creator = nil
	r.m.posts[post.ID] = post
	r.m.owned[post.CreatorID] = append(r.m.owned[post.CreatorID], post.ID)
	return post, nil
}

func (r *MemPosts) Update(ctx context.Context, post types.Post) (types.Post, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++
	existing, ok := r.m.posts[post.ID]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	existing.Title = post.Title
	existing.Content = post.Content
	existing.ImageURL = post.ImageURL
	existing.UpdatedAt = r.m.clock.Now()
	r.m.posts[post.ID] = existing
	return existing, nil
}

func (r *MemPosts) Delete(ctx context.Context, id, ownerID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.calls++
	if _, ok := r.m.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.posts, id)
	ids := r.m.owned[ownerID]
	kept := ids[:0]
	for _, owned := range ids {
		if owned != id {
			kept = append(kept, owned)
		}
	}
	r.m.owned[ownerID] = kept
	return nil
}
