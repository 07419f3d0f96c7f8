package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/feedpress/apiserver/internal/resolvers"
	"github.com/go-chi/chi/v5"
)

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	resolver *resolvers.Resolver
	logger   *slog.Logger
}

// NewPostHandler constructs a PostHandler with the provided dependencies.
func NewPostHandler(resolver *resolvers.Resolver, logger *slog.Logger) *PostHandler {
	return &PostHandler{resolver: resolver, logger: loggerOrDefault(logger)}
}

// PostRouter registers post routes on the given router.
func PostRouter(r chi.Router, resolver *resolvers.Resolver, logger *slog.Logger) {
	handler := NewPostHandler(resolver, logger)

	r.Get("/", handler.ListPosts)
	r.Post("/", handler.CreatePost)
	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handler.GetPost)
		r.Put("/", handler.UpdatePost)
		r.Delete("/", handler.DeletePost)
	})
}

// DeleteResponse reports a completed deletion.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ListPosts returns one page of posts, newest first.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(r)
	if !ok {
		writeStatus(w, http.StatusBadRequest, "invalid page")
		return
	}

	posts, err := h.resolver.Posts(r.Context(), AuthStateFromContext(r.Context()), resolvers.PostsArgs{Page: page})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, posts)
}

// CreatePost stores a post owned by the requester.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req resolvers.PostInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	post, err := h.resolver.CreatePost(r.Context(), AuthStateFromContext(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// GetPost returns a single post.
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.resolver.Post(r.Context(), AuthStateFromContext(r.Context()), resolvers.PostArgs{ID: chi.URLParam(r, "postID")})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// UpdatePost edits a post the requester owns.
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req resolvers.PostInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	post, err := h.resolver.UpdatePost(r.Context(), AuthStateFromContext(r.Context()), resolvers.UpdatePostArgs{
		ID:        chi.URLParam(r, "postID"),
		PostInput: req,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// DeletePost removes a post the requester owns.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.resolver.DeletePost(r.Context(), AuthStateFromContext(r.Context()), resolvers.PostArgs{ID: chi.URLParam(r, "postID")})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// parsePage reads ?page. An absent value is 0, which the post service
// treats as the first page.
func parsePage(r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 0, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return page, true
}
