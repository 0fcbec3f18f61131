// Package activity composes a list controller, a debounced search filter and
// an editor into the state of one mini-app page, with a selected item and
// the modal currently shown.
package activity

import (
	"context"
	"errors"
	"sync"

	"k8s.io/utils/clock"

	"github.com/youssefsiam38/activitypg/draft"
	"github.com/youssefsiam38/activitypg/editor"
	"github.com/youssefsiam38/activitypg/listing"
	"github.com/youssefsiam38/activitypg/search"
)

var (
	// ErrNoSelection is returned by operations that need a selected item.
	ErrNoSelection = errors.New("activity: no item selected")

	// ErrMissingFetch is returned by New without a fetch function.
	ErrMissingFetch = errors.New("activity: fetch function is required")
)

// Modal is the overlay currently shown on a page.
type Modal int

const (
	ModalNone Modal = iota
	ModalCreate
	ModalView
	ModalEdit
)

func (m Modal) String() string {
	switch m {
	case ModalCreate:
		return "create"
	case ModalView:
		return "view"
	case ModalEdit:
		return "edit"
	default:
		return "none"
	}
}

// Logger is the logging interface used by this package.
// Compatible with activitypg.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config describes one page over records of type T.
type Config[T listing.Item] struct {
	// Fetch loads a page of records. Required.
	Fetch listing.FetchFunc[T]

	// Fields are the editor inputs.
	Fields []editor.Field

	// Create stores a new record from editor values.
	Create func(ctx context.Context, values editor.Values) (T, error)

	// Update applies editor values to item.
	Update func(ctx context.Context, item T, values editor.Values) (T, error)

	// Delete removes item.
	Delete func(ctx context.Context, item T) (bool, error)

	// Defaults seed the create form when no draft exists.
	Defaults editor.Values

	// Snapshot returns the editable values of item, used as draft fallback
	// when editing.
	Snapshot func(item T) editor.Values

	// Drafts persists editor input and the search query. Nil keeps them in
	// memory only.
	Drafts *draft.Drafts

	// QuerySlot is the draft slot of the search input. Empty disables
	// query persistence.
	QuerySlot draft.Slot

	// List configures the list controller.
	List *listing.Config

	// Clock drives the search debounce and editor error timers.
	Clock clock.WithDelayedExecution

	// Logger for background load failures. Nil disables logging.
	Logger Logger
}

// Page is the state of one mini-app page. It is safe for concurrent use.
type Page[T listing.Item] struct {
	cfg      Config[T]
	logger   Logger
	list     *listing.Controller[T]
	sentinel *listing.Sentinel[T]
	search   *search.Filter
	editor   *editor.Editor

	// ctx bounds loads started by search commits.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	modal    Modal
	selected T
	hasSel   bool
}

// New creates a page. The search input is restored from its draft and used
// as the initial filter. ctx bounds loads triggered by search commits; Close
// cancels it.
func New[T listing.Item](ctx context.Context, cfg Config[T]) (*Page[T], error) {
	if cfg.Fetch == nil {
		return nil, ErrMissingFetch
	}
	if cfg.Drafts == nil {
		cfg.Drafts = draft.New(draft.NewMemoryStore(), nil)
	}
	var logger Logger = nopLogger{}
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	p := &Page[T]{cfg: cfg, logger: logger}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.list = listing.New(cfg.Fetch, cfg.List)
	p.sentinel = listing.NewSentinel(p.list)

	initial := ""
	if cfg.QuerySlot != "" {
		initial = cfg.Drafts.Load(cfg.QuerySlot, "")
	}
	p.list.Reset(initial)
	p.search = search.NewFilter(p.onCommit, &search.Config{Initial: initial, Clock: cfg.Clock})
	p.editor = editor.New(cfg.Fields, p.save, &editor.Config{
		Drafts: cfg.Drafts,
		Clock:  cfg.Clock,
		Logger: cfg.Logger,
	})
	return p, nil
}

// List returns the list controller.
func (p *Page[T]) List() *listing.Controller[T] { return p.list }

// Sentinel returns the end-of-list marker that loads more items when shown.
func (p *Page[T]) Sentinel() *listing.Sentinel[T] { return p.sentinel }

// Search returns the search filter.
func (p *Page[T]) Search() *search.Filter { return p.search }

// Editor returns the create/edit form.
func (p *Page[T]) Editor() *editor.Editor { return p.editor }

// Load fetches the next page.
func (p *Page[T]) Load(ctx context.Context) (listing.Outcome, error) {
	return p.list.LoadNextPage(ctx)
}

// SetQuery records search input. The list is reset and reloaded once the
// input has been quiet for search.DebounceInterval and differs from the
// active filter.
func (p *Page[T]) SetQuery(raw string) {
	if p.cfg.QuerySlot != "" {
		p.cfg.Drafts.Save(p.cfg.QuerySlot, raw)
	}
	p.search.SetRaw(raw)
}

func (p *Page[T]) onCommit(filter string) {
	p.list.Reset(filter)
	if _, err := p.list.LoadNextPage(p.ctx); err != nil {
		p.logger.Warn("failed to load filtered page", "filter", filter, "error", err)
	}
}

// SetSort changes the ordering and reloads from the first page.
func (p *Page[T]) SetSort(ctx context.Context, s listing.Sort) (listing.Outcome, error) {
	p.list.SetSort(s)
	return p.list.LoadNextPage(ctx)
}

// Modal returns the overlay currently shown.
func (p *Page[T]) Modal() Modal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modal
}

// Selected returns the selected item.
func (p *Page[T]) Selected() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected, p.hasSel
}

// OpenCreate shows the create form, restoring any draft.
func (p *Page[T]) OpenCreate() {
	p.mu.Lock()
	p.modal = ModalCreate
	p.mu.Unlock()
	p.editor.Open(editor.ModeCreate, p.cfg.Defaults)
}

// Select shows the loaded item with key. It reports whether the item is
// loaded.
func (p *Page[T]) Select(key string) bool {
	item, ok := p.list.Get(key)
	if !ok {
		return false
	}
	p.mu.Lock()
	p.selected, p.hasSel = item, true
	p.modal = ModalView
	p.mu.Unlock()
	return true
}

// OpenEdit shows the edit form for the selected item.
func (p *Page[T]) OpenEdit() error {
	p.mu.Lock()
	if !p.hasSel {
		p.mu.Unlock()
		return ErrNoSelection
	}
	item := p.selected
	p.modal = ModalEdit
	p.mu.Unlock()

	var current editor.Values
	if p.cfg.Snapshot != nil {
		current = p.cfg.Snapshot(item)
	}
	p.editor.Open(editor.ModeEdit, current)
	return nil
}

// Submit validates and saves the open form. A created item is prepended and
// the modal closes; an updated item replaces the loaded one in place and
// stays selected.
func (p *Page[T]) Submit(ctx context.Context) error {
	return p.editor.Submit(ctx)
}

func (p *Page[T]) save(ctx context.Context, mode editor.Mode, values editor.Values) error {
	switch mode {
	case editor.ModeCreate:
		if p.cfg.Create == nil {
			return errors.ErrUnsupported
		}
		_, err := p.list.Create(ctx, func(ctx context.Context) (T, error) {
			return p.cfg.Create(ctx, values)
		})
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.modal = ModalNone
		p.mu.Unlock()
		return nil

	case editor.ModeEdit:
		if p.cfg.Update == nil {
			return errors.ErrUnsupported
		}
		p.mu.Lock()
		item, ok := p.selected, p.hasSel
		p.mu.Unlock()
		if !ok {
			return ErrNoSelection
		}
		updated, err := p.list.Update(ctx, func(ctx context.Context) (T, error) {
			return p.cfg.Update(ctx, item, values)
		})
		if err != nil {
			return err
		}
		p.mu.Lock()
		if p.hasSel && p.selected.Key() == updated.Key() {
			p.selected = updated
		}
		p.modal = ModalView
		p.mu.Unlock()
		return nil
	}
	return editor.ErrClosed
}

// Delete removes the selected item. On success it leaves the list, and the
// selection and any edit form for it are closed; on failure all are unchanged.
func (p *Page[T]) Delete(ctx context.Context) error {
	if p.cfg.Delete == nil {
		return errors.ErrUnsupported
	}
	p.mu.Lock()
	item, ok := p.selected, p.hasSel
	p.mu.Unlock()
	if !ok {
		return ErrNoSelection
	}

	err := p.list.Delete(ctx, item.Key(), func(ctx context.Context) (bool, error) {
		return p.cfg.Delete(ctx, item)
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	closing := p.hasSel && p.selected.Key() == item.Key()
	if closing {
		var zero T
		p.selected, p.hasSel = zero, false
		p.modal = ModalNone
	}
	p.mu.Unlock()

	// An edit form for the deleted record has nothing left to save.
	if closing && p.editor.Mode() == editor.ModeEdit {
		p.editor.Cancel()
	}
	return nil
}

// CancelEdit discards the form and its drafts. Editing returns to the
// selected item; creating closes the modal.
func (p *Page[T]) CancelEdit() {
	p.editor.Cancel()
	p.mu.Lock()
	if p.modal == ModalEdit && p.hasSel {
		p.modal = ModalView
	} else {
		p.modal = ModalNone
	}
	p.mu.Unlock()
}

// CloseModal hides any overlay and clears the selection. Form drafts are
// kept for the next time the form opens.
func (p *Page[T]) CloseModal() {
	p.editor.Dismiss()
	p.mu.Lock()
	var zero T
	p.selected, p.hasSel = zero, false
	p.modal = ModalNone
	p.mu.Unlock()
}

// Close stops the page timers and cancels loads started by search commits.
func (p *Page[T]) Close() {
	p.search.Close()
	p.editor.Close()
	p.cancel()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
