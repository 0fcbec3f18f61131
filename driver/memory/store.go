package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
	"k8s.io/utils/clock"
)

// Store implements driver.Store in memory. Returned records are copies.
type Store struct {
	clock clock.PassiveClock

	mu       sync.RWMutex
	users    map[uuid.UUID]*driver.User
	sessions map[string]*driver.AuthSession
	profiles map[uuid.UUID]*driver.Profile
	notes    map[uuid.UUID]*driver.Note
	todos    map[uuid.UUID]*driver.Todo
	photos   map[uuid.UUID]*driver.Photo
	reviews  map[uuid.UUID]*driver.Review
	leases   map[string]lease
}

type lease struct {
	leaderID  string
	expiresAt time.Time
}

// NewStore creates an empty Store stamping records with c.
func NewStore(c clock.PassiveClock) *Store {
	return &Store{
		clock:    c,
		users:    make(map[uuid.UUID]*driver.User),
		sessions: make(map[string]*driver.AuthSession),
		profiles: make(map[uuid.UUID]*driver.Profile),
		notes:    make(map[uuid.UUID]*driver.Note),
		todos:    make(map[uuid.UUID]*driver.Todo),
		photos:   make(map[uuid.UUID]*driver.Photo),
		reviews:  make(map[uuid.UUID]*driver.Review),
		leases:   make(map[string]lease),
	}
}

func notFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", driver.ErrNotFound, entity, id)
}

// contains reports whether any field contains term, ignoring case.
func contains(term string, fields ...string) bool {
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// sortPage orders items by the compare function chosen for orderBy, breaks
// ties by id in the same direction, and applies limit and offset.
func sortPage[T any](items []T, params driver.ListParams, columns map[string]func(a, b T) int, defaultColumn string, id func(T) uuid.UUID) []T {
	compare, ok := columns[params.OrderBy]
	if !ok {
		compare = columns[defaultColumn]
	}
	desc := !strings.EqualFold(params.OrderDir, "asc")

	slices.SortFunc(items, func(a, b T) int {
		c := compare(a, b)
		if c == 0 {
			ia, ib := id(a), id(b)
			c = bytes.Compare(ia[:], ib[:])
		}
		if desc {
			return -c
		}
		return c
	})

	if params.Offset > 0 {
		if params.Offset >= len(items) {
			return items[:0]
		}
		items = items[params.Offset:]
	}
	if params.Limit > 0 && params.Limit < len(items) {
		items = items[:params.Limit]
	}
	return items
}

// Notes

var noteColumns = map[string]func(a, b *driver.Note) int{
	"created_at": func(a, b *driver.Note) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b *driver.Note) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"title":      func(a, b *driver.Note) int { return strings.Compare(a.Title, b.Title) },
}

func (s *Store) CreateNote(_ context.Context, params driver.CreateNoteParams) (*driver.Note, error) {
	now := s.clock.Now()
	n := &driver.Note{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Title:     params.Title,
		Content:   params.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.notes[n.ID] = n
	s.mu.Unlock()
	cp := *n
	return &cp, nil
}

func (s *Store) GetNote(_ context.Context, id uuid.UUID) (*driver.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, notFound("note", id)
	}
	cp := *n
	return &cp, nil
}

func (s *Store) ListNotes(_ context.Context, params driver.ListParams) ([]*driver.Note, error) {
	s.mu.RLock()
	notes := []*driver.Note{}
	for _, n := range s.notes {
		if params.UserID != uuid.Nil && n.UserID != params.UserID {
			continue
		}
		if params.Search != "" && !contains(params.Search, n.Title, n.Content) {
			continue
		}
		cp := *n
		notes = append(notes, &cp)
	}
	s.mu.RUnlock()
	return sortPage(notes, params, noteColumns, "updated_at", func(n *driver.Note) uuid.UUID { return n.ID }), nil
}

func (s *Store) UpdateNote(_ context.Context, id uuid.UUID, params driver.UpdateNoteParams) (*driver.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, notFound("note", id)
	}
	if params.Title != nil {
		n.Title = *params.Title
	}
	if params.Content != nil {
		n.Content = *params.Content
	}
	n.UpdatedAt = s.clock.Now()
	cp := *n
	return &cp, nil
}

func (s *Store) DeleteNote(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notes[id]
	delete(s.notes, id)
	return ok, nil
}

// Todos

var todoColumns = map[string]func(a, b *driver.Todo) int{
	"created_at": func(a, b *driver.Todo) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b *driver.Todo) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"title":      func(a, b *driver.Todo) int { return strings.Compare(a.Title, b.Title) },
	"level":      func(a, b *driver.Todo) int { return strings.Compare(a.Level, b.Level) },
}

func (s *Store) CreateTodo(_ context.Context, params driver.CreateTodoParams) (*driver.Todo, error) {
	level := params.Level
	if level == "" {
		level = driver.LevelLow
	}
	now := s.clock.Now()
	t := &driver.Todo{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Title:     params.Title,
		Content:   params.Content,
		Level:     level,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.todos[t.ID] = t
	s.mu.Unlock()
	cp := *t
	return &cp, nil
}

func (s *Store) GetTodo(_ context.Context, id uuid.UUID) (*driver.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.todos[id]
	if !ok {
		return nil, notFound("todo", id)
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTodos(_ context.Context, params driver.ListParams) ([]*driver.Todo, error) {
	s.mu.RLock()
	todos := []*driver.Todo{}
	for _, t := range s.todos {
		if params.UserID != uuid.Nil && t.UserID != params.UserID {
			continue
		}
		if params.Search != "" && !contains(params.Search, t.Title, t.Content) {
			continue
		}
		cp := *t
		todos = append(todos, &cp)
	}
	s.mu.RUnlock()
	return sortPage(todos, params, todoColumns, "created_at", func(t *driver.Todo) uuid.UUID { return t.ID }), nil
}

func (s *Store) UpdateTodo(_ context.Context, id uuid.UUID, params driver.UpdateTodoParams) (*driver.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok {
		return nil, notFound("todo", id)
	}
	if params.Title != nil {
		t.Title = *params.Title
	}
	if params.Content != nil {
		t.Content = *params.Content
	}
	if params.Level != nil {
		t.Level = *params.Level
	}
	t.UpdatedAt = s.clock.Now()
	cp := *t
	return &cp, nil
}

func (s *Store) DeleteTodo(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.todos[id]
	delete(s.todos, id)
	return ok, nil
}

// Photos

var photoColumns = map[string]func(a, b *driver.Photo) int{
	"name":        func(a, b *driver.Photo) int { return strings.Compare(a.Name, b.Name) },
	"upload_date": func(a, b *driver.Photo) int { return a.UploadDate.Compare(b.UploadDate) },
}

func (s *Store) CreatePhoto(_ context.Context, params driver.CreatePhotoParams) (*driver.Photo, error) {
	p := &driver.Photo{
		ID:         uuid.New(),
		UserID:     params.UserID,
		Name:       params.Name,
		Category:   params.Category,
		ObjectKey:  params.ObjectKey,
		UploadDate: s.clock.Now(),
	}
	s.mu.Lock()
	s.photos[p.ID] = p
	s.mu.Unlock()
	cp := *p
	return &cp, nil
}

func (s *Store) GetPhoto(_ context.Context, id uuid.UUID) (*driver.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, notFound("photo", id)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListPhotos(_ context.Context, params driver.ListParams) ([]*driver.Photo, error) {
	s.mu.RLock()
	photos := []*driver.Photo{}
	for _, p := range s.photos {
		if params.UserID != uuid.Nil && p.UserID != params.UserID {
			continue
		}
		if params.Category != "" && p.Category != params.Category {
			continue
		}
		if params.Search != "" && !contains(params.Search, p.Name) {
			continue
		}
		cp := *p
		photos = append(photos, &cp)
	}
	s.mu.RUnlock()
	return sortPage(photos, params, photoColumns, "upload_date", func(p *driver.Photo) uuid.UUID { return p.ID }), nil
}

func (s *Store) UpdatePhoto(_ context.Context, id uuid.UUID, params driver.UpdatePhotoParams) (*driver.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, notFound("photo", id)
	}
	if params.Name != nil {
		p.Name = *params.Name
	}
	if params.ObjectKey != nil {
		p.ObjectKey = *params.ObjectKey
	}
	cp := *p
	return &cp, nil
}

// DeletePhoto removes a photo together with its reviews.
func (s *Store) DeletePhoto(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.photos[id]
	delete(s.photos, id)
	for rid, r := range s.reviews {
		if r.PhotoID == id {
			delete(s.reviews, rid)
		}
	}
	return ok, nil
}

// Reviews

func (s *Store) CreateReview(_ context.Context, params driver.CreateReviewParams) (*driver.Review, error) {
	r := &driver.Review{
		ID:        uuid.New(),
		PhotoID:   params.PhotoID,
		UserID:    params.UserID,
		Content:   params.Content,
		CreatedAt: s.clock.Now(),
	}
	s.mu.Lock()
	s.reviews[r.ID] = r
	s.mu.Unlock()
	cp := *r
	return &cp, nil
}

func (s *Store) GetReview(_ context.Context, id uuid.UUID) (*driver.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, notFound("review", id)
	}
	cp := *r
	return &cp, nil
}

var reviewColumns = map[string]func(a, b *driver.Review) int{
	"created_at": func(a, b *driver.Review) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (s *Store) ListReviews(_ context.Context, photoID uuid.UUID) ([]*driver.Review, error) {
	s.mu.RLock()
	reviews := []*driver.Review{}
	for _, r := range s.reviews {
		if r.PhotoID == photoID {
			cp := *r
			reviews = append(reviews, &cp)
		}
	}
	s.mu.RUnlock()
	return sortPage(reviews, driver.ListParams{OrderDir: "asc"}, reviewColumns, "created_at", func(r *driver.Review) uuid.UUID { return r.ID }), nil
}

func (s *Store) UpdateReview(_ context.Context, id uuid.UUID, content string) (*driver.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, notFound("review", id)
	}
	r.Content = content
	cp := *r
	return &cp, nil
}

func (s *Store) DeleteReview(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reviews[id]
	delete(s.reviews, id)
	return ok, nil
}

// Profiles

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*driver.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, notFound("profile", id)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpsertProfile(_ context.Context, id uuid.UUID, fullName string) (*driver.Profile, error) {
	p := &driver.Profile{ID: id, FullName: fullName, UpdatedAt: s.clock.Now()}
	s.mu.Lock()
	s.profiles[id] = p
	s.mu.Unlock()
	cp := *p
	return &cp, nil
}

// Users

func (s *Store) CreateUser(_ context.Context, params driver.CreateUserParams) (*driver.User, error) {
	email := strings.ToLower(params.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return nil, fmt.Errorf("%w: email %s", driver.ErrConflict, email)
		}
	}
	u := &driver.User{
		ID:           uuid.New(),
		Email:        email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		CreatedAt:    s.clock.Now(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*driver.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*driver.User, error) {
	email = strings.ToLower(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFound("user", email)
}

func (s *Store) CreateAuthSession(_ context.Context, session *driver.AuthSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.clock.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Token]; ok {
		return fmt.Errorf("%w: auth session", driver.ErrConflict)
	}
	cp := *session
	s.sessions[session.Token] = &cp
	return nil
}

func (s *Store) GetAuthSession(_ context.Context, token string) (*driver.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.sessions[token]
	if !ok {
		return nil, notFound("auth session", "<redacted>")
	}
	cp := *a
	return &cp, nil
}

func (s *Store) DeleteAuthSession(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[token]
	delete(s.sessions, token)
	return ok, nil
}

// DeleteExpiredAuthSessions removes sessions that expired before the given
// time, oldest expiry first.
func (s *Store) DeleteExpiredAuthSessions(_ context.Context, before time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*driver.AuthSession
	for token, a := range s.sessions {
		if a.ExpiresAt.Before(before) {
			expired = append(expired, a)
			delete(s.sessions, token)
		}
	}
	slices.SortFunc(expired, func(a, b *driver.AuthSession) int { return a.ExpiresAt.Compare(b.ExpiresAt) })

	var userIDs []uuid.UUID
	for _, a := range expired {
		userIDs = append(userIDs, a.UserID)
	}
	return userIDs, nil
}

// LeaderAttemptElect takes the named lease if it is free or expired.
func (s *Store) LeaderAttemptElect(_ context.Context, params *driver.LeaderElectParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if cur, ok := s.leases[params.Name]; ok && !cur.expiresAt.Before(now) {
		return false, nil
	}
	s.leases[params.Name] = lease{leaderID: params.LeaderID, expiresAt: now.Add(params.TTL)}
	return true, nil
}

// LeaderAttemptReelect extends the lease held by params.LeaderID.
func (s *Store) LeaderAttemptReelect(_ context.Context, params *driver.LeaderElectParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cur, ok := s.leases[params.Name]
	if !ok || cur.leaderID != params.LeaderID || cur.expiresAt.Before(now) {
		return false, nil
	}
	s.leases[params.Name] = lease{leaderID: params.LeaderID, expiresAt: now.Add(params.TTL)}
	return true, nil
}

// LeaderResign releases the lease if leaderID holds it.
func (s *Store) LeaderResign(_ context.Context, name, leaderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.leases[name]; ok && cur.leaderID == leaderID {
		delete(s.leases, name)
	}
	return nil
}

// Compile-time check
var _ driver.Store = (*Store)(nil)
