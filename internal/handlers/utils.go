package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/feedpress/apiserver/types"
)

const (
	maxJSONBodyBytes = 1 << 20
	msgInternal      = "An error occurred."
	msgBadRequest    = "invalid request"
)

type contextKey string

const contextAuthKey contextKey = "auth"

// ErrorResponse is the error envelope every failing route writes.
type ErrorResponse struct {
	Message string             `json:"message"`
	Code    int                `json:"code"`
	Data    []types.FieldError `json:"data,omitempty"`
}

// WithAuthState stores the request's auth state. It is written once by the
// Authenticate middleware and only read afterwards.
func WithAuthState(ctx context.Context, state types.AuthState) context.Context {
	return context.WithValue(ctx, contextAuthKey, state)
}

// AuthStateFromContext returns the request's auth state, or Anonymous when
// no middleware set one.
func AuthStateFromContext(ctx context.Context) types.AuthState {
	state, ok := ctx.Value(contextAuthKey).(types.AuthState)
	if !ok {
		return types.Anonymous
	}
	return state
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message, Code: status})
}

// writeError renders err with the envelope. Errors that are not a
// *types.Error are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	typed, ok := types.AsError(err)
	if !ok {
		logger.Error("request failed", slog.Any("error", err))
		writeStatus(w, http.StatusInternalServerError, msgInternal)
		return
	}

	status := statusFor(typed)
	writeJSON(w, status, ErrorResponse{
		Message: typed.Message,
		Code:    status,
		Data:    typed.Data,
	})
}

func statusFor(err *types.Error) int {
	if errors.Is(err, types.ErrConflict) {
		return http.StatusConflict
	}
	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
