package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/youssefsiam38/activitypg/auth"
	"github.com/youssefsiam38/activitypg/blob"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/driver/memory"
	"github.com/youssefsiam38/activitypg/hooks"
	"github.com/youssefsiam38/activitypg/listing"
	"github.com/youssefsiam38/activitypg/notifier"
)

type published struct {
	Event  notifier.EventType
	Change notifier.Change
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) NotifyJSON(_ context.Context, eventType notifier.EventType, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Event: eventType, Change: v.(notifier.Change)})
	return nil
}

func (p *recordingPublisher) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, string(e.Event)+":"+e.Change.Op)
	}
	return out
}

type testEnv struct {
	gw        *Gateway
	store     driver.Store
	blobs     *blob.MemoryStore
	publisher *recordingPublisher
	clock     *clocktesting.FakePassiveClock
	ctx       context.Context
	user      *driver.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clk := clocktesting.NewFakePassiveClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := memory.New(memory.WithClock(clk)).GetStore()
	blobs := blob.NewMemory("http://localhost/blobs")
	pub := &recordingPublisher{}
	gw := New(store, &Config{Blobs: blobs, Publisher: pub})
	user := &driver.User{ID: uuid.New(), Email: "ash@example.com", FullName: "Ash"}
	return &testEnv{
		gw:        gw,
		store:     store,
		blobs:     blobs,
		publisher: pub,
		clock:     clk,
		ctx:       auth.WithUser(context.Background(), user),
		user:      user,
	}
}

// tick advances the store clock so records get distinct timestamps.
func (e *testEnv) tick() {
	e.clock.SetTime(e.clock.Now().Add(time.Second))
}

func otherUser(ctx context.Context) context.Context {
	return auth.WithUser(ctx, &driver.User{ID: uuid.New()})
}

func TestNotes_CRUD(t *testing.T) {
	env := newTestEnv(t)
	notes := env.gw.Notes

	created, err := notes.Create(env.ctx, NoteInput{Title: "Shopping", Content: "eggs and milk"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.UserID != env.user.ID {
		t.Errorf("UserID = %s, want %s", created.UserID, env.user.ID)
	}

	got, err := notes.Get(env.ctx, created.Key())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	title := "Groceries"
	updated, err := notes.Update(env.ctx, created.Key(), NotePatch{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Groceries" || updated.Content != "eggs and milk" {
		t.Errorf("Update() = %+v", updated)
	}

	deleted, err := notes.Delete(env.ctx, created.Key())
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v", deleted, err)
	}
	if _, err := notes.Get(env.ctx, created.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	want := []string{"note_changed:create", "note_changed:update", "note_changed:delete"}
	if diff := cmp.Diff(want, env.publisher.ops()); diff != "" {
		t.Errorf("published events mismatch (-want +got):\n%s", diff)
	}
	for _, e := range env.publisher.events {
		if e.Change.ID != created.Key() || e.Change.UserID != env.user.ID.String() {
			t.Errorf("change payload = %+v", e.Change)
		}
	}
}

func TestNotes_ListPage(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"alpha", "beta", "gamma", "alphabet"} {
		if _, err := env.gw.Notes.Create(env.ctx, NoteInput{Title: title}); err != nil {
			t.Fatal(err)
		}
		env.tick()
	}
	// Notes of another user never appear.
	if _, err := env.gw.Notes.Create(otherUser(env.ctx), NoteInput{Title: "alpha of someone else"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query listing.Query
		want  []string
	}{
		{"default newest first", listing.Query{Limit: 10}, []string{"alphabet", "gamma", "beta", "alpha"}},
		{"filter", listing.Query{Filter: "ALPHA", Limit: 10}, []string{"alphabet", "alpha"}},
		{"title asc", listing.Query{Sort: listing.Sort{Field: "title", Dir: listing.Asc}, Limit: 10}, []string{"alpha", "alphabet", "beta", "gamma"}},
		{"paged", listing.Query{Offset: 1, Limit: 2}, []string{"gamma", "beta"}},
		{"unknown sort field uses default", listing.Query{Sort: listing.Sort{Field: "content; DROP TABLE"}, Limit: 10}, []string{"alphabet", "gamma", "beta", "alpha"}},
		{"zero limit clamps to one", listing.Query{Limit: 0}, []string{"alphabet"}},
		{"negative offset clamps to zero", listing.Query{Offset: -5, Limit: 1}, []string{"alphabet"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes, err := env.gw.Notes.ListPage(env.ctx, tt.query)
			if err != nil {
				t.Fatalf("ListPage() error = %v", err)
			}
			var titles []string
			for _, n := range notes {
				titles = append(titles, n.Title)
			}
			if diff := cmp.Diff(tt.want, titles); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotes_Errors(t *testing.T) {
	env := newTestEnv(t)
	note, err := env.gw.Notes.Create(env.ctx, NoteInput{Title: "mine"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
		want error
		op   string
	}{
		{"create unauthenticated", func() error {
			_, err := env.gw.Notes.Create(context.Background(), NoteInput{Title: "x"})
			return err
		}, ErrUnauthenticated, OpCreate},
		{"list unauthenticated", func() error {
			_, err := env.gw.Notes.ListPage(context.Background(), listing.Query{})
			return err
		}, ErrUnauthenticated, OpList},
		{"create empty title", func() error {
			_, err := env.gw.Notes.Create(env.ctx, NoteInput{Title: "  "})
			return err
		}, ErrInvalidInput, OpCreate},
		{"malformed id", func() error {
			_, err := env.gw.Notes.Get(env.ctx, "not-a-uuid")
			return err
		}, ErrInvalidInput, OpGet},
		{"other user's note", func() error {
			_, err := env.gw.Notes.Get(otherUser(env.ctx), note.Key())
			return err
		}, ErrNotFound, OpGet},
		{"delete other user's note", func() error {
			_, err := env.gw.Notes.Delete(otherUser(env.ctx), note.Key())
			return err
		}, ErrNotFound, OpDelete},
		{"missing note", func() error {
			_, err := env.gw.Notes.Update(env.ctx, uuid.NewString(), NotePatch{})
			return err
		}, ErrNotFound, OpUpdate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var gwErr *Error
			if !errors.As(err, &gwErr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if gwErr.Op != tt.op || gwErr.Entity != EntityNote {
				t.Errorf("Error = {Op:%s Entity:%s}, want {Op:%s Entity:note}", gwErr.Op, gwErr.Entity, tt.op)
			}
		})
	}

	if _, err := env.gw.Notes.Get(env.ctx, note.Key()); err != nil {
		t.Errorf("owner lost access: %v", err)
	}
	if len(env.publisher.ops()) != 1 {
		t.Errorf("failed calls published events: %v", env.publisher.ops())
	}
}

func TestTodos_Levels(t *testing.T) {
	env := newTestEnv(t)
	todo, err := env.gw.Todos.Create(env.ctx, TodoInput{Title: "wash car"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if todo.Level != driver.LevelLow {
		t.Errorf("Level = %q, want low", todo.Level)
	}

	high := driver.LevelHigh
	todo, err = env.gw.Todos.Update(env.ctx, todo.Key(), TodoPatch{Level: &high})
	if err != nil || todo.Level != driver.LevelHigh {
		t.Fatalf("Update() = %+v, %v", todo, err)
	}

	bogus := "urgent"
	if _, err := env.gw.Todos.Update(env.ctx, todo.Key(), TodoPatch{Level: &bogus}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Update() with bogus level error = %v, want ErrInvalidInput", err)
	}
	if _, err := env.gw.Todos.Create(env.ctx, TodoInput{Title: "x", Level: "urgent"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Create() with bogus level error = %v, want ErrInvalidInput", err)
	}

	page, err := env.gw.Todos.ListPage(env.ctx, listing.Query{Limit: 10})
	if err != nil || len(page) != 1 {
		t.Fatalf("ListPage() = %d items, %v", len(page), err)
	}
	if deleted, err := env.gw.Todos.Delete(env.ctx, todo.Key()); err != nil || !deleted {
		t.Errorf("Delete() = %v, %v", deleted, err)
	}
}

func TestPhotos_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	photos := env.gw.Photos

	photo, err := photos.Create(env.ctx, PhotoInput{
		Name:     "Pikachu",
		Category: "pokemon",
		Image:    Image{Filename: "pika.PNG", ContentType: "image/png", Body: strings.NewReader("png")},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(photo.ObjectKey, "photos/"+env.user.ID.String()+"/") || !strings.HasSuffix(photo.ObjectKey, ".png") {
		t.Errorf("ObjectKey = %q", photo.ObjectKey)
	}
	if photo.ImageURL != "http://localhost/blobs/"+photo.ObjectKey {
		t.Errorf("ImageURL = %q", photo.ImageURL)
	}
	env.tick()
	if _, err := photos.Create(env.ctx, PhotoInput{
		Name: "Mustang", Category: "cars", Image: Image{Body: strings.NewReader("jpg")},
	}); err != nil {
		t.Fatal(err)
	}

	page, err := photos.ListPage(env.ctx, "pokemon", listing.Query{Limit: 10})
	if err != nil || len(page) != 1 || page[0].Name != "Pikachu" {
		t.Fatalf("ListPage(pokemon) = %v, %v", page, err)
	}
	if page[0].ImageURL == "" {
		t.Error("ListPage() did not resolve ImageURL")
	}
	all, err := photos.Fetcher("")(env.ctx, listing.Query{Limit: 10, Filter: "u"})
	if err != nil || len(all) != 2 {
		t.Errorf("Fetcher(\"\") = %d items, %v; want 2", len(all), err)
	}

	oldKey := photo.ObjectKey
	name := "Raichu"
	photo, err = photos.Update(env.ctx, photo.Key(), PhotoPatch{
		Name:  &name,
		Image: &Image{Filename: "raichu.png", Body: strings.NewReader("new png")},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if photo.Name != "Raichu" || photo.ObjectKey == oldKey {
		t.Errorf("Update() = %+v", photo)
	}
	if _, err := env.blobs.Head(env.ctx, oldKey); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("replaced object still stored: %v", err)
	}

	if deleted, err := photos.Delete(env.ctx, photo.Key()); err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v", deleted, err)
	}
	if _, err := env.blobs.Head(env.ctx, photo.ObjectKey); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("deleted photo object still stored: %v", err)
	}
}

func TestPhotos_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []PhotoInput{
		{Name: "", Category: "c", Image: Image{Body: strings.NewReader("x")}},
		{Name: "n", Category: "", Image: Image{Body: strings.NewReader("x")}},
		{Name: "n", Category: "c"},
	}
	for _, in := range tests {
		if _, err := env.gw.Photos.Create(env.ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Create(%+v) error = %v, want ErrInvalidInput", in, err)
		}
	}
	infos, _ := env.blobs.List(env.ctx, "")
	if len(infos) != 0 {
		t.Errorf("invalid creates left %d objects", len(infos))
	}
}

// failingPhotoStore fails photo inserts.
type failingPhotoStore struct {
	driver.Store
}

func (failingPhotoStore) CreatePhoto(context.Context, driver.CreatePhotoParams) (*driver.Photo, error) {
	return nil, errors.New("insert failed")
}

func TestPhotos_CreateRemovesObjectOnInsertFailure(t *testing.T) {
	env := newTestEnv(t)
	gw := New(failingPhotoStore{env.store}, &Config{Blobs: env.blobs})

	_, err := gw.Photos.Create(env.ctx, PhotoInput{Name: "n", Category: "c", Image: Image{Body: strings.NewReader("x")}})
	if err == nil {
		t.Fatal("Expected Create() to fail")
	}
	if !Retryable(err) {
		t.Errorf("backend failure should be retryable: %v", err)
	}
	infos, _ := env.blobs.List(env.ctx, "")
	if len(infos) != 0 {
		t.Errorf("object left behind after failed insert: %+v", infos)
	}
}

func TestReviews(t *testing.T) {
	env := newTestEnv(t)
	photo, err := env.gw.Photos.Create(env.ctx, PhotoInput{Name: "n", Category: "c", Image: Image{Body: strings.NewReader("x")}})
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, content := range []string{"first", "second", "third"} {
		r, err := env.gw.Reviews.Create(env.ctx, photo.Key(), content)
		if err != nil {
			t.Fatalf("Create(%q) error = %v", content, err)
		}
		ids = append(ids, r.Key())
		env.tick()
	}

	if _, err := env.gw.Reviews.Update(env.ctx, ids[1], "second, edited"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := env.gw.Reviews.Update(otherUser(env.ctx), ids[1], "hijack"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() by another user error = %v, want ErrNotFound", err)
	}
	if _, err := env.gw.Reviews.Create(env.ctx, photo.Key(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Create() empty error = %v, want ErrInvalidInput", err)
	}
	if deleted, err := env.gw.Reviews.Delete(env.ctx, ids[2]); err != nil || !deleted {
		t.Errorf("Delete() = %v, %v", deleted, err)
	}

	reviews, err := env.gw.Reviews.List(env.ctx, photo.Key())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var contents []string
	for _, r := range reviews {
		contents = append(contents, r.Content)
	}
	if diff := cmp.Diff([]string{"first", "second, edited"}, contents); diff != "" {
		t.Errorf("reviews mismatch (-want +got):\n%s", diff)
	}

	if _, err := env.gw.Reviews.List(otherUser(env.ctx), photo.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("List() of another user's photo error = %v, want ErrNotFound", err)
	}
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t)
	profiles := env.gw.Profiles

	if _, err := profiles.Get(env.ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() before ensure error = %v, want ErrNotFound", err)
	}

	p, err := profiles.Ensure(env.ctx, env.user.ID, "Ash Ketchum")
	if err != nil || p.FullName != "Ash Ketchum" {
		t.Fatalf("Ensure() = %+v, %v", p, err)
	}
	p, err = profiles.Ensure(env.ctx, env.user.ID, "Someone Else")
	if err != nil || p.FullName != "Ash Ketchum" {
		t.Errorf("second Ensure() changed the profile: %+v, %v", p, err)
	}

	p, err = profiles.Upsert(env.ctx, "Ash")
	if err != nil || p.FullName != "Ash" {
		t.Fatalf("Upsert() = %+v, %v", p, err)
	}
	got, err := profiles.Get(env.ctx)
	if err != nil || got.FullName != "Ash" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
}

func TestHooks(t *testing.T) {
	env := newTestEnv(t)
	registry := hooks.NewRegistry()
	gw := New(env.store, &Config{Blobs: env.blobs, Hooks: registry})

	var mu sync.Mutex
	var events []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, s)
	}
	registry.OnBeforeCall(func(_ context.Context, c hooks.Call) error {
		record("before " + c.Entity + " " + c.Op)
		return nil
	})
	registry.OnAfterCall(func(_ context.Context, c hooks.Call, r hooks.Result) error {
		status := "ok"
		if r.Err != nil {
			status = "err"
		}
		record("after " + c.Entity + " " + c.Op + " " + status)
		return nil
	})
	registry.OnPage(func(_ context.Context, c hooks.Call, p hooks.Page) error {
		record("page " + c.Entity)
		return nil
	})
	registry.OnMutation(func(_ context.Context, c hooks.Call) error {
		if c.UserID != env.user.ID.String() || c.ID == "" {
			t.Errorf("mutation call = %+v", c)
		}
		record("mutation " + c.Entity + " " + c.Op)
		return nil
	})

	if _, err := gw.Notes.Create(env.ctx, NoteInput{Title: "hooked"}); err != nil {
		t.Fatal(err)
	}
	if _, err := gw.Notes.ListPage(env.ctx, listing.Query{Limit: 5}); err != nil {
		t.Fatal(err)
	}
	_, _ = gw.Notes.Create(env.ctx, NoteInput{})

	want := []string{
		"before note create", "after note create ok", "mutation note create",
		"before note list", "page note", "after note list ok",
		"before note create", "after note create err",
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("hook events mismatch (-want +got):\n%s", diff)
	}
}

func TestHooks_BeforeCallAborts(t *testing.T) {
	env := newTestEnv(t)
	registry := hooks.NewRegistry()
	denied := errors.New("read-only mode")
	registry.OnBeforeCall(func(_ context.Context, c hooks.Call) error {
		if c.Op != OpList {
			return denied
		}
		return nil
	})
	gw := New(env.store, &Config{Hooks: registry})

	if _, err := gw.Notes.Create(env.ctx, NoteInput{Title: "x"}); !errors.Is(err, denied) {
		t.Errorf("Create() error = %v, want %v", err, denied)
	}
	notes, err := gw.Notes.ListPage(env.ctx, listing.Query{Limit: 10})
	if err != nil || len(notes) != 0 {
		t.Errorf("ListPage() = %v, %v; want empty", notes, err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection reset"), true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{&Error{Op: OpGet, Err: ErrNotFound}, false},
		{&Error{Op: OpCreate, Err: ErrUnauthenticated}, false},
		{&Error{Op: OpCreate, Err: invalid("bad")}, false},
		{&Error{Op: OpCreate, Err: normalize(driver.ErrConflict)}, false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Op: OpDelete, Entity: EntityTodo, ID: "abc", Err: ErrNotFound}
	if got, want := err.Error(), "todo delete (id=abc): gateway: not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	err = &Error{Op: OpList, Entity: EntityNote, Err: ErrUnauthenticated}
	if got, want := err.Error(), "note list: gateway: unauthenticated"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
