// Package draft keeps in-progress editor input in a client-local key-value
// store so it survives an accidental dismissal or restart.
//
// Drafts never fail the caller: when the store is unavailable reads return
// the fallback and writes are dropped.
package draft

import "sync"

// Slot names a draft value. Only the slots declared here are accepted.
type Slot string

// Note editor slots.
const (
	NoteTitle   Slot = "draftTitle"
	NoteContent Slot = "draftContent"
)

// Todo editor slots.
const (
	TodoTitle   Slot = "draftTodoTitle"
	TodoContent Slot = "draftTodoContent"
	TodoLevel   Slot = "draftLevel"
)

// Photo and review editor slots.
const (
	PhotoName     Slot = "draftAddPhoto"
	PhotoCategory Slot = "draftPhotoCategory"
	ReviewContent Slot = "draftReview"
)

// Search and sort slots.
const (
	NoteQuery    Slot = "draftQuery"
	TodoQuery    Slot = "draftTodoQuery"
	PhotoQuery   Slot = "draftPhotoQuery"
	PhotoSortBy  Slot = "sortBy"
	PhotoOrderBy Slot = "orderBy"
)

// Slot sets per editor kind. Clearing a kind clears its whole set.
var (
	NoteSlots   = []Slot{NoteTitle, NoteContent}
	TodoSlots   = []Slot{TodoTitle, TodoContent, TodoLevel}
	PhotoSlots  = []Slot{PhotoName, PhotoCategory}
	ReviewSlots = []Slot{ReviewContent}
	SearchSlots = []Slot{NoteQuery, TodoQuery, PhotoQuery, PhotoSortBy, PhotoOrderBy}
)

// AllSlots returns every declared slot.
func AllSlots() []Slot {
	var all []Slot
	for _, set := range [][]Slot{NoteSlots, TodoSlots, PhotoSlots, ReviewSlots, SearchSlots} {
		all = append(all, set...)
	}
	return all
}

// Store is a synchronous key-value store. Implementations never fail the
// caller; they log and degrade instead.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// Logger is the logging interface used by this package.
// Compatible with activitypg.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Drafts reads and writes declared slots in a Store.
type Drafts struct {
	store  Store
	logger Logger
	known  map[Slot]struct{}
}

// New wraps store. A nil store behaves like Unavailable; a nil logger
// disables logging.
func New(store Store, logger Logger) *Drafts {
	if store == nil {
		store = Unavailable{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	known := make(map[Slot]struct{})
	for _, s := range AllSlots() {
		known[s] = struct{}{}
	}
	return &Drafts{store: store, logger: logger, known: known}
}

func (d *Drafts) accept(slot Slot) bool {
	if _, ok := d.known[slot]; ok {
		return true
	}
	d.logger.Warn("rejecting undeclared draft slot", "slot", string(slot))
	return false
}

// Save overwrites the value stored under slot.
func (d *Drafts) Save(slot Slot, value string) {
	if !d.accept(slot) {
		return
	}
	d.store.Set(string(slot), value)
}

// Load returns the value stored under slot, or fallback when it is absent
// or empty.
func (d *Drafts) Load(slot Slot, fallback string) string {
	if !d.accept(slot) {
		return fallback
	}
	v, ok := d.store.Get(string(slot))
	if !ok || v == "" {
		return fallback
	}
	return v
}

// Clear removes the given slots.
func (d *Drafts) Clear(slots ...Slot) {
	for _, s := range slots {
		if d.accept(s) {
			d.store.Remove(string(s))
		}
	}
}

// ResetAll removes every declared slot, as on sign-out.
func (d *Drafts) ResetAll() {
	d.Clear(AllSlots()...)
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryStore) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Unavailable is a Store for contexts without client-local storage. Reads
// miss and writes are dropped.
type Unavailable struct{}

func (Unavailable) Get(string) (string, bool) { return "", false }
func (Unavailable) Set(string, string)        {}
func (Unavailable) Remove(string)             {}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = Unavailable{}
)
