// Package listing implements an incrementally loaded, filterable list of
// records fetched page by page from a remote source.
//
// A Controller accumulates pages in backend order, stops at the first short
// page and discards pages that complete after a Reset. Mutations are applied
// to the accumulated items only after the remote call has succeeded.
package listing

import (
	"context"
	"fmt"
	"time"
)

// Defaults for Config.
const (
	DefaultPageSize       = 10
	DefaultRequestTimeout = 15 * time.Second
	DefaultRetries        = 1
)

// Item is a record with a unique identifier.
type Item interface {
	Key() string
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort selects the backend ordering. An empty Field uses the backend default.
type Sort struct {
	Field string
	Dir   Direction
}

// Query is one page request.
type Query struct {
	Filter string
	Sort   Sort
	Offset int
	Limit  int
}

// FetchFunc loads the page described by q.
type FetchFunc[T Item] func(ctx context.Context, q Query) ([]T, error)

// Outcome reports what LoadNextPage did.
type Outcome int

const (
	// Appended means a page was fetched and appended.
	Appended Outcome = iota
	// Busy means a fetch was already in flight; the request was dropped.
	Busy
	// EndReached means the last page was already loaded; nothing was fetched.
	EndReached
	// Stale means the page arrived after a Reset and was discarded.
	Stale
	// Failed means the fetch returned an error; state is unchanged.
	Failed
	// Skipped means a Sentinel update was not a becoming-visible event.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Busy:
		return "busy"
	case EndReached:
		return "end_reached"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Logger is the logging interface used by the controller.
// Compatible with activitypg.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config configures a Controller.
type Config struct {
	// PageSize is the number of items requested per page.
	// Defaults to 10.
	PageSize int

	// RequestTimeout bounds each fetch attempt.
	// Defaults to 15 seconds.
	RequestTimeout time.Duration

	// Retries is the number of extra attempts after a failed fetch.
	// Defaults to 1. Use a negative value to disable retries.
	Retries int

	// ShouldRetry reports whether a failed fetch may be retried.
	// Defaults to retrying every error.
	ShouldRetry func(error) bool

	// OnError is called once for every failed fetch or mutation.
	OnError func(error)

	// Logger receives retry and failure logs. Nil disables logging.
	Logger Logger
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	} else if c.Retries < 0 {
		c.Retries = 0
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = func(error) bool { return true }
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
