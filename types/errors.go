package types

import (
	"errors"
	"net/http"
)

// ErrorKind classifies an Error independently of its message.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindUserNotFound       ErrorKind = "user_not_found"
	KindConflict           ErrorKind = "conflict"
	KindNotFound           ErrorKind = "not_found"
	KindForbidden          ErrorKind = "forbidden"
)

// FieldError is a single validation violation.
type FieldError struct {
	Message string `json:"message"`
}

// Error is the structured failure every operation raises. Code is the
// status the operation assigns; it is zero when the boundary layer picks it.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    int
	Data    []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so the package-level sentinels
// work with errors.Is regardless of message or data.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrUserNotFound       = &Error{Kind: KindUserNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
)

func NewInvalidInput(violations []FieldError) *Error {
	return &Error{Kind: KindInvalidInput, Message: "Invalid input", Code: http.StatusUnprocessableEntity, Data: violations}
}

func NewUnauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "Not authenticated", Code: http.StatusUnauthorized}
}

func NewInvalidCredentials(message string) *Error {
	return &Error{Kind: KindInvalidCredentials, Message: message, Code: http.StatusUnauthorized}
}

func NewUserNotFound() *Error {
	return &Error{Kind: KindUserNotFound, Message: "User not found", Code: http.StatusUnauthorized}
}

func NewConflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Code: http.StatusNotFound}
}

func NewForbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message, Code: http.StatusForbidden}
}

// AsError unwraps err into an *Error if it carries one.
func AsError(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}
