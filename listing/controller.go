package listing

import (
	"context"
	"sync"
)

// Controller accumulates pages of T. It is safe for concurrent use; the
// fetch function is called without holding the controller's lock.
type Controller[T Item] struct {
	fetch FetchFunc[T]
	cfg   Config

	mu         sync.Mutex
	items      []T
	keys       map[string]struct{}
	filter     string
	sort       Sort
	offset     int
	endReached bool
	fetching   bool
	generation uint64
}

// New creates a controller over fetch. A nil cfg uses defaults.
func New[T Item](fetch FetchFunc[T], cfg *Config) *Controller[T] {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.applyDefaults()
	return &Controller[T]{
		fetch: fetch,
		cfg:   c,
		keys:  make(map[string]struct{}),
	}
}

// Reset discards accumulated items and starts a new generation with filter.
// Pages requested before the reset are discarded when they complete.
func (c *Controller[T]) Reset(filter string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
	c.resetLocked()
}

// SetSort changes the ordering and resets like a filter change.
func (c *Controller[T]) SetSort(s Sort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort = s
	c.resetLocked()
}

func (c *Controller[T]) resetLocked() {
	c.generation++
	c.items = nil
	c.keys = make(map[string]struct{})
	c.offset = 0
	c.endReached = false
	// The in-flight fetch belongs to the old generation and will not clear
	// this flag.
	c.fetching = false
}

// LoadNextPage fetches the page after the last one loaded. It returns Busy
// while another fetch is in flight and EndReached once a short page has been
// seen. Errors leave the accumulated state unchanged.
func (c *Controller[T]) LoadNextPage(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		return Busy, nil
	}
	if c.endReached {
		c.mu.Unlock()
		return EndReached, nil
	}
	c.fetching = true
	gen := c.generation
	q := Query{Filter: c.filter, Sort: c.sort, Offset: c.offset, Limit: c.cfg.PageSize}
	c.mu.Unlock()

	page, err := c.fetchPage(ctx, q)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.cfg.Logger.Debug("discarding stale page", "offset", q.Offset, "filter", q.Filter)
		return Stale, nil
	}
	c.fetching = false
	if err != nil {
		c.mu.Unlock()
		c.fail("load page failed", err)
		return Failed, err
	}
	for _, item := range page {
		key := item.Key()
		if _, dup := c.keys[key]; dup {
			continue
		}
		c.keys[key] = struct{}{}
		c.items = append(c.items, item)
	}
	c.offset += c.cfg.PageSize
	if len(page) < c.cfg.PageSize {
		c.endReached = true
	}
	c.mu.Unlock()
	return Appended, nil
}

// fetchPage runs fetch under the request timeout, retrying per Config.
func (c *Controller[T]) fetchPage(ctx context.Context, q Query) ([]T, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			c.cfg.Logger.Warn("retrying page fetch", "attempt", attempt, "offset", q.Offset, "error", lastErr)
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		page, err := c.fetch(reqCtx, q)
		cancel()
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil || !c.cfg.ShouldRetry(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Controller[T]) fail(msg string, err error) {
	c.cfg.Logger.Error(msg, "error", err)
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

// Create runs create and, on success, prepends the returned item.
// Cursor and end-of-data state are not changed.
func (c *Controller[T]) Create(ctx context.Context, create func(context.Context) (T, error)) (T, error) {
	item, err := create(ctx)
	if err != nil {
		c.fail("create failed", err)
		var zero T
		return zero, err
	}
	c.Prepend(item)
	return item, nil
}

// Update runs update and, on success, replaces the item with the same key
// in place.
func (c *Controller[T]) Update(ctx context.Context, update func(context.Context) (T, error)) (T, error) {
	item, err := update(ctx)
	if err != nil {
		c.fail("update failed", err)
		var zero T
		return zero, err
	}
	c.Replace(item)
	return item, nil
}

// Delete runs remove and, on success, drops the item with key.
func (c *Controller[T]) Delete(ctx context.Context, key string, remove func(context.Context) (bool, error)) error {
	if _, err := remove(ctx); err != nil {
		c.fail("delete failed", err)
		return err
	}
	c.Remove(key)
	return nil
}

// Prepend inserts item at the front. An item with the same key is removed
// first.
func (c *Controller[T]) Prepend(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := item.Key()
	if _, ok := c.keys[key]; ok {
		c.removeLocked(key)
	}
	c.keys[key] = struct{}{}
	c.items = append([]T{item}, c.items...)
}

// Replace swaps the item with the same key, keeping its position. It reports
// whether such an item was present.
func (c *Controller[T]) Replace(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := item.Key()
	for i := range c.items {
		if c.items[i].Key() == key {
			c.items[i] = item
			return true
		}
	}
	return false
}

// Remove drops the item with key, reporting whether it was present.
func (c *Controller[T]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(key)
}

func (c *Controller[T]) removeLocked(key string) bool {
	if _, ok := c.keys[key]; !ok {
		return false
	}
	delete(c.keys, key)
	for i := range c.items {
		if c.items[i].Key() == key {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			break
		}
	}
	return true
}

// Items returns a copy of the accumulated items.
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the accumulated item with key.
func (c *Controller[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if item.Key() == key {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of accumulated items.
func (c *Controller[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Offset returns the offset of the next page.
func (c *Controller[T]) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// EndReached reports whether the last page has been loaded.
func (c *Controller[T]) EndReached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endReached
}

// Fetching reports whether a page fetch of the current generation is in flight.
func (c *Controller[T]) Fetching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

// Generation returns the number of resets so far.
func (c *Controller[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Filter returns the active filter.
func (c *Controller[T]) Filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Sort returns the active ordering.
func (c *Controller[T]) Sort() Sort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sort
}

// PageSize returns the configured page size.
func (c *Controller[T]) PageSize() int { return c.cfg.PageSize }

// Sentinel triggers page loads when it becomes visible, like a marker
// element at the end of a scrolled list.
type Sentinel[T Item] struct {
	c *Controller[T]

	mu      sync.Mutex
	visible bool
}

// NewSentinel creates a hidden sentinel for c.
func NewSentinel[T Item](c *Controller[T]) *Sentinel[T] {
	return &Sentinel[T]{c: c}
}

// SetVisible records the sentinel's visibility. A transition from hidden to
// visible calls LoadNextPage once; any other update returns Skipped.
func (s *Sentinel[T]) SetVisible(ctx context.Context, visible bool) (Outcome, error) {
	s.mu.Lock()
	becameVisible := visible && !s.visible
	s.visible = visible
	s.mu.Unlock()
	if !becameVisible {
		return Skipped, nil
	}
	return s.c.LoadNextPage(ctx)
}

// Visible reports the last recorded visibility.
func (s *Sentinel[T]) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}
