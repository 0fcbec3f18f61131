package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/youssefsiam38/activitypg/blob"
	"github.com/youssefsiam38/activitypg/driver"
)

// Gateway errors. Every error returned by the gateway is a *Error wrapping
// one of these or a backend error.
var (
	// ErrNotFound is returned when the record does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("gateway: not found")

	// ErrUnauthenticated is returned when the context carries no user.
	ErrUnauthenticated = errors.New("gateway: unauthenticated")

	// ErrInvalidInput is returned when required fields are missing or malformed.
	ErrInvalidInput = errors.New("gateway: invalid input")

	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("gateway: conflict")
)

// Error carries the operation context of a failed gateway call.
type Error struct {
	Op     string // Operation that failed
	Entity string // Entity kind
	ID     string // Record ID if applicable
	Err    error  // Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s (id=%s): %v", e.Entity, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Entity, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// normalize maps backend errors onto gateway sentinels, keeping the
// original in the chain.
func normalize(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, driver.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, driver.ErrConflict), errors.Is(err, blob.ErrExists):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, blob.ErrInvalidKey):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// Retryable reports whether err may succeed when the call is repeated.
// Client errors and cancellation are not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConflict),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
