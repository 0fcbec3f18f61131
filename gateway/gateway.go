// Package gateway translates list, read and mutation intents into store and
// blob calls for each entity kind, scoped to the user carried in the
// context.
//
// Every call is reported to the hooks registry, failures are logged and
// returned as *Error, and confirmed mutations are published as notifier
// change events.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/activitypg/auth"
	"github.com/youssefsiam38/activitypg/blob"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/hooks"
	"github.com/youssefsiam38/activitypg/notifier"
)

// Entity names used in errors, hooks and metrics.
const (
	EntityNote    = "note"
	EntityTodo    = "todo"
	EntityPhoto   = "photo"
	EntityReview  = "review"
	EntityProfile = "profile"
)

// Operation names used in errors, hooks and metrics.
const (
	OpList   = "list"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpUpsert = "upsert"
	OpEnsure = "ensure"
)

// Logger interface for structured logging.
// Compatible with activitypg.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher sends change events. *notifier.Notifier satisfies it.
type Publisher interface {
	NotifyJSON(ctx context.Context, eventType notifier.EventType, v any) error
}

// Config configures a Gateway.
type Config struct {
	// Blobs stores photo images. Defaults to an in-memory store.
	Blobs blob.Store

	// Hooks observe every call. Optional.
	Hooks *hooks.Registry

	// Publisher receives change events after confirmed mutations. Optional.
	Publisher Publisher

	// URLExpiry is the lifetime of presigned photo URLs.
	// Defaults to blob.DefaultURLExpiry.
	URLExpiry time.Duration

	// Logger for call failures. Nil disables logging.
	Logger Logger
}

// Gateway groups the per-entity gateways over one store.
type Gateway struct {
	store     driver.Store
	blobs     blob.Store
	hooks     *hooks.Registry
	publisher Publisher
	urlExpiry time.Duration
	logger    Logger

	Notes    *Notes
	Todos    *Todos
	Photos   *Photos
	Reviews  *Reviews
	Profiles *Profiles
}

// New creates a gateway over store. A nil config uses defaults.
func New(store driver.Store, config *Config) *Gateway {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	if cfg.Blobs == nil {
		cfg.Blobs = blob.NewMemory("")
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = blob.DefaultURLExpiry
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	g := &Gateway{
		store:     store,
		blobs:     cfg.Blobs,
		hooks:     cfg.Hooks,
		publisher: cfg.Publisher,
		urlExpiry: cfg.URLExpiry,
		logger:    cfg.Logger,
	}
	g.Notes = &Notes{g: g}
	g.Todos = &Todos{g: g}
	g.Photos = &Photos{g: g}
	g.Reviews = &Reviews{g: g}
	g.Profiles = &Profiles{g: g}
	return g
}

// Blobs returns the blob store used for photos.
func (g *Gateway) Blobs() blob.Store { return g.blobs }

// do runs fn as one instrumented call. Errors are normalized, logged and
// wrapped in *Error.
func (g *Gateway) do(ctx context.Context, call hooks.Call, fn func(ctx context.Context) error) error {
	if err := g.hooks.TriggerBeforeCall(ctx, call); err != nil {
		return &Error{Op: call.Op, Entity: call.Entity, ID: call.ID, Err: err}
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		err = &Error{Op: call.Op, Entity: call.Entity, ID: call.ID, Err: normalize(err)}
		g.logger.Warn("gateway call failed", "entity", call.Entity, "op", call.Op, "id", call.ID, "error", err)
	}
	if hookErr := g.hooks.TriggerAfterCall(ctx, call, hooks.Result{Duration: duration, Err: err}); hookErr != nil {
		g.logger.Warn("after-call hook failed", "entity", call.Entity, "op", call.Op, "error", hookErr)
	}
	return err
}

// changed reports a confirmed mutation to hooks and, when event is set, to
// the publisher. Failures are logged; the mutation itself has already
// succeeded.
func (g *Gateway) changed(ctx context.Context, call hooks.Call, event notifier.EventType) {
	if err := g.hooks.TriggerMutation(ctx, call); err != nil {
		g.logger.Warn("mutation hook failed", "entity", call.Entity, "op", call.Op, "error", err)
	}
	if g.publisher == nil || event == "" {
		return
	}
	change := notifier.Change{Op: call.Op, ID: call.ID, UserID: call.UserID}
	if err := g.publisher.NotifyJSON(ctx, event, change); err != nil {
		g.logger.Warn("failed to publish change", "entity", call.Entity, "op", call.Op, "error", err)
	}
}

func (g *Gateway) page(ctx context.Context, call hooks.Call, offset, limit, count int) {
	page := hooks.Page{Offset: offset, Limit: limit, Count: count, HasMore: count >= limit}
	if err := g.hooks.TriggerPage(ctx, call, page); err != nil {
		g.logger.Warn("page hook failed", "entity", call.Entity, "error", err)
	}
}

// newCall describes an operation by the user in ctx.
func newCall(ctx context.Context, entity, op, id string) hooks.Call {
	call := hooks.Call{Entity: entity, Op: op, ID: id}
	if user, ok := auth.UserFromContext(ctx); ok {
		call.UserID = user.ID.String()
	}
	return call
}

// currentUser returns the authenticated user from ctx.
func currentUser(ctx context.Context) (*driver.User, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// parseID parses a record identifier.
func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, invalid("malformed id %q", id)
	}
	return parsed, nil
}

// owned hides records of other users behind ErrNotFound.
func owned(owner uuid.UUID, user *driver.User) error {
	if owner != user.ID {
		return driver.ErrNotFound
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
