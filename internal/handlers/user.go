package handlers

import (
	"log/slog"
	"net/http"

	"github.com/feedpress/apiserver/internal/resolvers"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves the requester's own account.
type UserHandler struct {
	resolver *resolvers.Resolver
	logger   *slog.Logger
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(resolver *resolvers.Resolver, logger *slog.Logger) *UserHandler {
	return &UserHandler{resolver: resolver, logger: loggerOrDefault(logger)}
}

// UserRouter registers account routes on the given router.
func UserRouter(r chi.Router, resolver *resolvers.Resolver, logger *slog.Logger) {
	handler := NewUserHandler(resolver, logger)

	r.Get("/me", handler.Me)
	r.Patch("/me/status", handler.UpdateStatus)
}

// Me returns the requester's account.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolver.User(r.Context(), AuthStateFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateStatus replaces the requester's status line.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req resolvers.StatusArgs
	if err := decodeJSON(w, r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	user, err := h.resolver.UpdateStatus(r.Context(), AuthStateFromContext(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
