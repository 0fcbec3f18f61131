package activity

import (
	"context"
	"slices"
	"sync"

	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/editor"
	"github.com/youssefsiam38/activitypg/gateway"
)

// ReviewPanel holds the reviews of one photo, oldest first, and the review
// form. Like list mutations, changes are applied only after the gateway
// confirms them.
type ReviewPanel struct {
	reviews *gateway.Reviews
	photoID string
	editor  *editor.Editor

	mu      sync.Mutex
	items   []*driver.Review
	editing string
}

// NewReviewPanel creates the panel for photoID.
func NewReviewPanel(reviews *gateway.Reviews, photoID string, o *Options) *ReviewPanel {
	r := &ReviewPanel{reviews: reviews, photoID: photoID}
	cfg := &editor.Config{}
	if o != nil {
		cfg.Drafts = o.Drafts
		cfg.Clock = o.Clock
		cfg.Logger = o.Logger
	}
	r.editor = editor.New(editor.ReviewFields, r.save, cfg)
	return r
}

// Load replaces the panel with the photo's current reviews.
func (r *ReviewPanel) Load(ctx context.Context) error {
	items, err := r.reviews.List(ctx, r.photoID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.items = items
	r.mu.Unlock()
	return nil
}

// Items returns a copy of the loaded reviews.
func (r *ReviewPanel) Items() []*driver.Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// Editor returns the review form.
func (r *ReviewPanel) Editor() *editor.Editor { return r.editor }

// OpenCreate shows an empty review form, restoring any draft.
func (r *ReviewPanel) OpenCreate() {
	r.mu.Lock()
	r.editing = ""
	r.mu.Unlock()
	r.editor.Open(editor.ModeCreate, nil)
}

// OpenEdit shows the form for the loaded review with id.
func (r *ReviewPanel) OpenEdit(id string) error {
	r.mu.Lock()
	i := r.index(id)
	if i < 0 {
		r.mu.Unlock()
		return ErrNoSelection
	}
	current := editor.Values{"content": r.items[i].Content}
	r.editing = id
	r.mu.Unlock()
	r.editor.Open(editor.ModeEdit, current)
	return nil
}

// Submit validates and saves the review form.
func (r *ReviewPanel) Submit(ctx context.Context) error {
	return r.editor.Submit(ctx)
}

func (r *ReviewPanel) save(ctx context.Context, mode editor.Mode, values editor.Values) error {
	switch mode {
	case editor.ModeCreate:
		review, err := r.reviews.Create(ctx, r.photoID, values["content"])
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.items = append(r.items, review)
		r.mu.Unlock()
		return nil

	case editor.ModeEdit:
		r.mu.Lock()
		id := r.editing
		r.mu.Unlock()
		if id == "" {
			return ErrNoSelection
		}
		review, err := r.reviews.Update(ctx, id, values["content"])
		if err != nil {
			return err
		}
		r.mu.Lock()
		if i := r.index(id); i >= 0 {
			r.items[i] = review
		}
		r.editing = ""
		r.mu.Unlock()
		return nil
	}
	return editor.ErrClosed
}

// Delete removes the review with id.
func (r *ReviewPanel) Delete(ctx context.Context, id string) error {
	if _, err := r.reviews.Delete(ctx, id); err != nil {
		return err
	}
	r.mu.Lock()
	if i := r.index(id); i >= 0 {
		r.items = slices.Delete(r.items, i, i+1)
	}
	r.mu.Unlock()
	return nil
}

// Close stops the form timers.
func (r *ReviewPanel) Close() { r.editor.Close() }

func (r *ReviewPanel) index(id string) int {
	return slices.IndexFunc(r.items, func(rv *driver.Review) bool { return rv.Key() == id })
}
