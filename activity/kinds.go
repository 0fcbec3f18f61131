package activity

import (
	"context"
	"sync"

	"k8s.io/utils/clock"

	"github.com/youssefsiam38/activitypg/draft"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/editor"
	"github.com/youssefsiam38/activitypg/gateway"
	"github.com/youssefsiam38/activitypg/listing"
)

// Options are the page settings shared by every kind.
type Options struct {
	Drafts *draft.Drafts
	List   *listing.Config
	Clock  clock.WithDelayedExecution
	Logger Logger
}

// optionsConfig copies o into cfg. Page fetches are retried only for
// errors gateway.Retryable accepts.
func optionsConfig[T listing.Item](o *Options, cfg *Config[T]) {
	var list listing.Config
	if o != nil {
		cfg.Drafts = o.Drafts
		cfg.Clock = o.Clock
		cfg.Logger = o.Logger
		if o.List != nil {
			list = *o.List
		}
	}
	if list.ShouldRetry == nil {
		list.ShouldRetry = gateway.Retryable
	}
	cfg.List = &list
}

func optional(values editor.Values, name string) *string {
	v, ok := values[name]
	if !ok {
		return nil
	}
	return &v
}

// NewNotesPage creates the markdown notes page.
func NewNotesPage(ctx context.Context, notes *gateway.Notes, o *Options) (*Page[*driver.Note], error) {
	cfg := Config[*driver.Note]{
		Fetch:     notes.ListPage,
		Fields:    editor.NoteFields,
		QuerySlot: draft.NoteQuery,
		Create: func(ctx context.Context, v editor.Values) (*driver.Note, error) {
			return notes.Create(ctx, gateway.NoteInput{Title: v["title"], Content: v["content"]})
		},
		Update: func(ctx context.Context, n *driver.Note, v editor.Values) (*driver.Note, error) {
			return notes.Update(ctx, n.Key(), gateway.NotePatch{
				Title:   optional(v, "title"),
				Content: optional(v, "content"),
			})
		},
		Delete: func(ctx context.Context, n *driver.Note) (bool, error) {
			return notes.Delete(ctx, n.Key())
		},
		Snapshot: func(n *driver.Note) editor.Values {
			return editor.Values{"title": n.Title, "content": n.Content}
		},
	}
	optionsConfig(o, &cfg)
	return New(ctx, cfg)
}

// NewTodosPage creates the todo board page.
func NewTodosPage(ctx context.Context, todos *gateway.Todos, o *Options) (*Page[*driver.Todo], error) {
	cfg := Config[*driver.Todo]{
		Fetch:     todos.ListPage,
		Fields:    editor.TodoFields,
		QuerySlot: draft.TodoQuery,
		Create: func(ctx context.Context, v editor.Values) (*driver.Todo, error) {
			return todos.Create(ctx, gateway.TodoInput{Title: v["title"], Content: v["content"], Level: v["level"]})
		},
		Update: func(ctx context.Context, t *driver.Todo, v editor.Values) (*driver.Todo, error) {
			return todos.Update(ctx, t.Key(), gateway.TodoPatch{
				Title:   optional(v, "title"),
				Content: optional(v, "content"),
				Level:   optional(v, "level"),
			})
		},
		Delete: func(ctx context.Context, t *driver.Todo) (bool, error) {
			return todos.Delete(ctx, t.Key())
		},
		Snapshot: func(t *driver.Todo) editor.Values {
			return editor.Values{"title": t.Title, "content": t.Content, "level": t.Level}
		},
	}
	optionsConfig(o, &cfg)
	return New(ctx, cfg)
}

// PhotoPage is a gallery page for one category. The image to upload is held
// outside the editor since it is not text.
type PhotoPage struct {
	*Page[*driver.Photo]

	drafts   *draft.Drafts
	category string

	mu    sync.Mutex
	image *gateway.Image
}

// NewPhotoPage creates the gallery page for category. An empty category
// shows every category. A non-empty category is used for every photo the
// page creates. The sort controls are restored from drafts.
func NewPhotoPage(ctx context.Context, photos *gateway.Photos, category string, o *Options) (*PhotoPage, error) {
	pp := &PhotoPage{category: category}
	cfg := Config[*driver.Photo]{
		Fetch:     photos.Fetcher(category),
		Fields:    editor.PhotoFields,
		QuerySlot: draft.PhotoQuery,
		Defaults:  editor.Values{"category": category},
		Create: func(ctx context.Context, v editor.Values) (*driver.Photo, error) {
			in := gateway.PhotoInput{Name: v["name"], Category: v["category"]}
			// A gallery page only creates photos in its own category.
			if pp.category != "" {
				in.Category = pp.category
			}
			if img := pp.attached(); img != nil {
				in.Image = *img
			}
			return photos.Create(ctx, in)
		},
		Update: func(ctx context.Context, p *driver.Photo, v editor.Values) (*driver.Photo, error) {
			return photos.Update(ctx, p.Key(), gateway.PhotoPatch{Name: optional(v, "name"), Image: pp.attached()})
		},
		Delete: func(ctx context.Context, p *driver.Photo) (bool, error) {
			return photos.Delete(ctx, p.Key())
		},
		Snapshot: func(p *driver.Photo) editor.Values {
			return editor.Values{"name": p.Name, "category": p.Category}
		},
	}
	optionsConfig(o, &cfg)

	page, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pp.Page = page
	pp.drafts = page.cfg.Drafts

	sort := listing.Sort{
		Field: pp.drafts.Load(draft.PhotoSortBy, ""),
		Dir:   listing.Direction(pp.drafts.Load(draft.PhotoOrderBy, "")),
	}
	if sort != (listing.Sort{}) {
		page.List().SetSort(sort)
	}
	return pp, nil
}

// Category returns the gallery category.
func (pp *PhotoPage) Category() string { return pp.category }

// SetImage attaches the image uploaded by the next submit.
func (pp *PhotoPage) SetImage(img gateway.Image) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.image = &img
}

func (pp *PhotoPage) attached() *gateway.Image {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.image
}

// Submit saves the open form. The attached image is released only when the
// save succeeds.
func (pp *PhotoPage) Submit(ctx context.Context) error {
	if err := pp.Page.Submit(ctx); err != nil {
		return err
	}
	pp.mu.Lock()
	pp.image = nil
	pp.mu.Unlock()
	return nil
}

// SetSort persists the sort controls and reloads from the first page.
func (pp *PhotoPage) SetSort(ctx context.Context, s listing.Sort) (listing.Outcome, error) {
	pp.drafts.Save(draft.PhotoSortBy, s.Field)
	pp.drafts.Save(draft.PhotoOrderBy, string(s.Dir))
	return pp.Page.SetSort(ctx, s)
}
