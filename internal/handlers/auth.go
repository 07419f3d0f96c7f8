package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/feedpress/apiserver/internal/resolvers"
	"github.com/feedpress/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// TokenValidator turns a bearer token into an auth state.
type TokenValidator interface {
	ValidateToken(token string) types.AuthState
}

// Authenticate attaches the auth state of the bearer token, if any, to the
// request context. It never rejects; operations decide what to require.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := types.Anonymous
			if token, err := bearerToken(r); err == nil {
				state = validator.ValidateToken(token)
			}
			next.ServeHTTP(w, r.WithContext(WithAuthState(r.Context(), state)))
		})
	}
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	resolver *resolvers.Resolver
	logger   *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(resolver *resolvers.Resolver, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{resolver: resolver, logger: loggerOrDefault(logger)}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, resolver *resolvers.Resolver, logger *slog.Logger) {
	handler := NewAuthHandler(resolver, logger)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

// Register creates a new account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req resolvers.UserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	user, err := h.resolver.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req resolvers.LoginArgs
	if err := decodeJSON(w, r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	payload, err := h.resolver.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
