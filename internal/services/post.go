package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/feedpress/apiserver/config"
	"github.com/feedpress/apiserver/internal/store"
	"github.com/feedpress/apiserver/types"
)

const (
	// DefaultPerPage is the fixed pagination window size.
	DefaultPerPage = 2

	// PostEventsChannel is the broker channel post events are published on.
	PostEventsChannel = "posts"

	// imageURLUnset is the literal text clients send to keep the current
	// image in sentinel mode.
	imageURLUnset = "undefined"

	msgNoPost  = "no post found"
	msgNoPosts = "No posts available"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Post, int, error)
	Get(ctx context.Context, id int64) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id, ownerID int64) error
}

// ImageRemover deletes post images held in object storage. Managed
// images carry the id of the user who uploaded them.
type ImageRemover interface {
	Managed(path string) bool
	OwnedBy(path string, userID int64) bool
	Remove(ctx context.Context, path string) error
}

// EventPublisher delivers post events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// PostInput carries the client-supplied fields of a post. A nil ImageURL
// means the field was absent from the request.
type PostInput struct {
	Title    string
	Content  string
	ImageURL *string
}

// PostServiceOptions configures a PostService. Images and Events are
// optional.
type PostServiceOptions struct {
	ImageURLMode string
	Images       ImageRemover
	Events       EventPublisher
	Logger       *slog.Logger
}

// PostService encapsulates post use-cases.
type PostService struct {
	repo      PostRepository
	perPage   int
	imageMode string
	images    ImageRemover
	events    EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewPostService(repo PostRepository, opts PostServiceOptions) *PostService {
	mode := opts.ImageURLMode
	if mode != config.ImageURLAbsent {
		mode = config.ImageURLSentinel
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		repo:      repo,
		perPage:   DefaultPerPage,
		imageMode: mode,
		images:    opts.Images,
		events:    opts.Events,
		logger:    logger,
		now:       time.Now,
	}
}

// PerPage returns the pagination window size.
func (s *PostService) PerPage() int {
	return s.perPage
}

// List returns the requested page, newest first. Pages below 1 are
// treated as page 1.
func (s *PostService) List(ctx context.Context, page int) (types.PostPage, error) {
	if page < 1 {
		page = 1
	}
	// Pages past the addressable range yield an empty window.
	offset := math.MaxInt
	if page-1 <= math.MaxInt/s.perPage {
		offset = (page - 1) * s.perPage
	}

	posts, total, err := s.repo.List(ctx, offset, s.perPage)
	if err != nil {
		return types.PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	return types.PostPage{Posts: posts, TotalPosts: total}, nil
}

func (s *PostService) Get(ctx context.Context, id int64) (types.Post, error) {
	return s.load(ctx, id, msgNoPost)
}

// Create stores a post owned by creator and records it in the creator's
// ownership index.
func (s *PostService) Create(ctx context.Context, creator types.User, input PostInput) (types.Post, error) {
	if input.ImageURL != nil {
		if err := s.checkImage(*input.ImageURL, creator.ID); err != nil {
			return types.Post{}, err
		}
	}

	post := types.Post{
		Title:     input.Title,
		Content:   input.Content,
		CreatorID: creator.ID,
	}
	if input.ImageURL != nil {
		post.ImageURL = *input.ImageURL
	}

	created, err := s.repo.Create(ctx, post)
	if err != nil {
		return types.Post{}, fmt.Errorf("create post: %w", err)
	}
	created.Creator = &creator

	s.publish(ctx, types.PostCreated, created)
	return created, nil
}

// Update overwrites title and content and, depending on the image URL
// mode, the image. Only the creator may update a post.
func (s *PostService) Update(ctx context.Context, id int64, requester types.AuthState, input PostInput) (types.Post, error) {
	post, err := s.load(ctx, id, msgNoPosts)
	if err != nil {
		return types.Post{}, err
	}
	if err := RequireOwner(post, requester); err != nil {
		return types.Post{}, err
	}

	previousImage := post.ImageURL
	post.Title = input.Title
	post.Content = input.Content
	if s.replacesImage(input.ImageURL) {
		if err := s.checkImage(*input.ImageURL, requester.UserID); err != nil {
			return types.Post{}, err
		}
		post.ImageURL = *input.ImageURL
	}

	updated, err := s.repo.Update(ctx, post)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, types.NewNotFound(msgNoPosts)
		}
		return types.Post{}, fmt.Errorf("update post: %w", err)
	}
	updated.Creator = post.Creator

	if previousImage != updated.ImageURL {
		s.removeImage(ctx, previousImage, updated.CreatorID)
	}
	s.publish(ctx, types.PostUpdated, updated)
	return updated, nil
}

// Delete removes a post and its ownership index entry. Only the creator
// may delete a post.
func (s *PostService) Delete(ctx context.Context, id int64, requester types.AuthState) error {
	post, err := s.load(ctx, id, msgNoPosts)
	if err != nil {
		return err
	}
	if err := RequireOwner(post, requester); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, post.ID, post.CreatorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.NewNotFound(msgNoPosts)
		}
		return fmt.Errorf("delete post: %w", err)
	}

	s.removeImage(ctx, post.ImageURL, post.CreatorID)
	s.publish(ctx, types.PostDeleted, post)
	return nil
}

func (s *PostService) load(ctx context.Context, id int64, notFound string) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, types.NewNotFound(notFound)
		}
		return types.Post{}, fmt.Errorf("load post: %w", err)
	}
	return post, nil
}

// replacesImage reports whether a supplied image URL overwrites the stored
// one. An absent field never does. In sentinel mode the literal text
// "undefined" doesn't either; any other text, including "", does.
func (s *PostService) replacesImage(imageURL *string) bool {
	if imageURL == nil {
		return false
	}
	if s.imageMode == config.ImageURLSentinel && *imageURL == imageURLUnset {
		return false
	}
	return true
}

// checkImage rejects a managed image uploaded by someone other than userID.
// Unmanaged URLs are stored as given.
func (s *PostService) checkImage(path string, userID int64) error {
	if s.images == nil || !s.images.Managed(path) {
		return nil
	}
	if !s.images.OwnedBy(path, userID) {
		return types.NewForbidden(msgAccessDenied)
	}
	return nil
}

// removeImage deletes the post's previous image if ownerID uploaded it.
func (s *PostService) removeImage(ctx context.Context, path string, ownerID int64) {
	if s.images == nil || path == "" || !s.images.OwnedBy(path, ownerID) {
		return
	}
	if err := s.images.Remove(ctx, path); err != nil {
		s.logger.WarnContext(ctx, "failed to remove post image", "path", path, "error", err)
	}
}

func (s *PostService) publish(ctx context.Context, action string, post types.Post) {
	if s.events == nil {
		return
	}
	event := types.PostEvent{
		Action:    action,
		PostID:    strconv.FormatInt(post.ID, 10),
		CreatorID: strconv.FormatInt(post.CreatorID, 10),
		At:        s.now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode post event", "action", action, "error", err)
		return
	}
	attrs := map[string]string{"action": action, "content_type": "application/json"}
	if _, err := s.events.Publish(ctx, PostEventsChannel, data, attrs); err != nil {
		s.logger.WarnContext(ctx, "failed to publish post event", "action", action, "post_id", event.PostID, "error", err)
	}
}
