// Package apperr defines the failure kinds shared by the services and the
// HTTP layer. Every error returned to a client unwraps to exactly one kind.
package apperr

import "errors"

var (
	ErrConflict       = errors.New("resource already exists")
	ErrAuthentication = errors.New("invalid email or password")
	ErrInvalidToken   = errors.New("invalid token")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid request")
)

// Error is a categorized failure carrying a message that is safe to show to
// the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New returns an error of the given kind with a client-facing message.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Conflict(message string) error     { return New(ErrConflict, message) }
func NotFound(message string) error     { return New(ErrNotFound, message) }
func Forbidden(message string) error    { return New(ErrForbidden, message) }
func InvalidInput(message string) error { return New(ErrInvalidInput, message) }

// Message returns the client-facing text of err. Errors that do not carry one
// fall back to the text of their kind, or "" for unknown errors.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}

var kinds = []error{
	ErrConflict,
	ErrAuthentication,
	ErrInvalidToken,
	ErrNotFound,
	ErrForbidden,
	ErrInvalidInput,
}
