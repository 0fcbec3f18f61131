// Package hooks provides callback registries that observe gateway calls.
package hooks

import (
	"context"
	"sync"
	"time"
)

// Call identifies a single gateway operation.
type Call struct {
	Entity string // "note", "todo", "photo", "review", "profile"
	Op     string // "list", "get", "create", "update", "delete", ...
	ID     string // empty for list and create
	UserID string // empty when unauthenticated
}

// Result describes a finished gateway operation.
type Result struct {
	Duration time.Duration
	Err      error
}

// Page describes a page returned by a list operation.
type Page struct {
	Offset  int
	Limit   int
	Count   int
	HasMore bool
}

// BeforeCallHook is called before a gateway operation reaches the store.
// Returning an error aborts the operation.
type BeforeCallHook func(ctx context.Context, call Call) error

// AfterCallHook is called after a gateway operation, successful or not
type AfterCallHook func(ctx context.Context, call Call, result Result) error

// PageHook is called after a list operation returns a page
type PageHook func(ctx context.Context, call Call, page Page) error

// MutationHook is called after the store confirms a create, update or delete
type MutationHook func(ctx context.Context, call Call) error

// Registry holds all registered hooks
type Registry struct {
	mu         sync.RWMutex
	beforeCall []BeforeCallHook
	afterCall  []AfterCallHook
	page       []PageHook
	mutation   []MutationHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		beforeCall: []BeforeCallHook{},
		afterCall:  []AfterCallHook{},
		page:       []PageHook{},
		mutation:   []MutationHook{},
	}
}

// OnBeforeCall registers a hook to be called before each operation
func (r *Registry) OnBeforeCall(hook BeforeCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCall = append(r.beforeCall, hook)
}

// OnAfterCall registers a hook to be called after each operation
func (r *Registry) OnAfterCall(hook AfterCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCall = append(r.afterCall, hook)
}

// OnPage registers a hook to be called for each loaded page
func (r *Registry) OnPage(hook PageHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.page = append(r.page, hook)
}

// OnMutation registers a hook to be called for each confirmed mutation
func (r *Registry) OnMutation(hook MutationHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutation = append(r.mutation, hook)
}

// Register adds every method of h that matches a hook signature.
func (r *Registry) Register(h any) {
	if hook, ok := h.(interface {
		BeforeCall(context.Context, Call) error
	}); ok {
		r.OnBeforeCall(hook.BeforeCall)
	}
	if hook, ok := h.(interface {
		AfterCall(context.Context, Call, Result) error
	}); ok {
		r.OnAfterCall(hook.AfterCall)
	}
	if hook, ok := h.(interface {
		Page(context.Context, Call, Page) error
	}); ok {
		r.OnPage(hook.Page)
	}
	if hook, ok := h.(interface {
		Mutation(context.Context, Call) error
	}); ok {
		r.OnMutation(hook.Mutation)
	}
}

// TriggerBeforeCall calls all registered before-call hooks, stopping at the
// first error.
func (r *Registry) TriggerBeforeCall(ctx context.Context, call Call) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	hooks := make([]BeforeCallHook, len(r.beforeCall))
	copy(hooks, r.beforeCall)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, call); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCall calls all registered after-call hooks
func (r *Registry) TriggerAfterCall(ctx context.Context, call Call, result Result) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	hooks := make([]AfterCallHook, len(r.afterCall))
	copy(hooks, r.afterCall)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, call, result); err != nil {
			return err
		}
	}
	return nil
}

// TriggerPage calls all registered page hooks
func (r *Registry) TriggerPage(ctx context.Context, call Call, page Page) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	hooks := make([]PageHook, len(r.page))
	copy(hooks, r.page)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, call, page); err != nil {
			return err
		}
	}
	return nil
}

// TriggerMutation calls all registered mutation hooks
func (r *Registry) TriggerMutation(ctx context.Context, call Call) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	hooks := make([]MutationHook, len(r.mutation))
	copy(hooks, r.mutation)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, call); err != nil {
			return err
		}
	}
	return nil
}
