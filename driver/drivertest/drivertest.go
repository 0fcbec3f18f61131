// Package drivertest holds a conformance suite run against every
// driver.Store implementation.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
)

// RunStoreTests runs the conformance suite. newStore must return an empty
// store for every call.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) driver.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, store driver.Store)
	}{
		{"NoteLifecycle", testNoteLifecycle},
		{"NoteSearchAndPaging", testNoteSearchAndPaging},
		{"NoteOwnership", testNoteOwnership},
		{"TodoLevels", testTodoLevels},
		{"PhotoFilters", testPhotoFilters},
		{"ReviewsCascade", testReviewsCascade},
		{"ProfileUpsert", testProfileUpsert},
		{"UserAccounts", testUserAccounts},
		{"AuthSessions", testAuthSessions},
		{"LeaderLease", testLeaderLease},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newUser(t *testing.T, store driver.Store, email string) *driver.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), driver.CreateUserParams{
		Email:        email,
		FullName:     "Test " + email,
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", email, err)
	}
	return user
}

func ptr[T any](v T) *T { return &v }

func noteTitles(notes []*driver.Note) []string {
	titles := make([]string, len(notes))
	for i, n := range notes {
		titles[i] = n.Title
	}
	return titles
}

func testNoteLifecycle(t *testing.T, store driver.Store) {
	ctx := context.Background()
	user := newUser(t, store, "notes@example.com")

	note, err := store.CreateNote(ctx, driver.CreateNoteParams{UserID: user.ID, Title: "Groceries", Content: "milk and eggs"})
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if note.ID == uuid.Nil {
		t.Fatal("Expected non-nil note ID")
	}
	if note.CreatedAt.IsZero() || note.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	got, err := store.GetNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.Title != "Groceries" || got.UserID != user.ID {
		t.Errorf("GetNote = %+v, want title Groceries owned by %s", got, user.ID)
	}

	updated, err := store.UpdateNote(ctx, note.ID, driver.UpdateNoteParams{Title: ptr("Shopping")})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if updated.Title != "Shopping" {
		t.Errorf("Expected title Shopping, got %q", updated.Title)
	}
	if updated.Content != "milk and eggs" {
		t.Errorf("Expected content to be unchanged, got %q", updated.Content)
	}
	if updated.UpdatedAt.Before(note.UpdatedAt) {
		t.Error("Expected updated_at not to move backwards")
	}

	if _, err := store.UpdateNote(ctx, uuid.New(), driver.UpdateNoteParams{Title: ptr("x")}); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("UpdateNote(missing) error = %v, want ErrNotFound", err)
	}

	deleted, err := store.DeleteNote(ctx, note.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteNote = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = store.DeleteNote(ctx, note.ID)
	if err != nil || deleted {
		t.Errorf("second DeleteNote = %v, %v; want false, nil", deleted, err)
	}
	if _, err := store.GetNote(ctx, note.ID); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("GetNote(deleted) error = %v, want ErrNotFound", err)
	}
}

func testNoteSearchAndPaging(t *testing.T, store driver.Store) {
	ctx := context.Background()
	user := newUser(t, store, "paging@example.com")

	for i := range 5 {
		if _, err := store.CreateNote(ctx, driver.CreateNoteParams{
			UserID: user.ID, Title: fmt.Sprintf("alpha %d", i), Content: "body text",
		}); err != nil {
			t.Fatalf("CreateNote failed: %v", err)
		}
	}
	for _, title := range []string{"100% done", "beta"} {
		if _, err := store.CreateNote(ctx, driver.CreateNoteParams{UserID: user.ID, Title: title, Content: "other"}); err != nil {
			t.Fatalf("CreateNote failed: %v", err)
		}
	}

	params := driver.ListParams{UserID: user.ID, Search: "ALPHA", OrderBy: "title", OrderDir: "asc", Limit: 2}
	var pages [][]string
	for {
		notes, err := store.ListNotes(ctx, params)
		if err != nil {
			t.Fatalf("ListNotes failed: %v", err)
		}
		if len(notes) == 0 {
			break
		}
		pages = append(pages, noteTitles(notes))
		params.Offset += len(notes)
	}
	want := [][]string{{"alpha 0", "alpha 1"}, {"alpha 2", "alpha 3"}, {"alpha 4"}}
	if diff := cmp.Diff(want, pages); diff != "" {
		t.Errorf("paged search mismatch (-want +got):\n%s", diff)
	}

	notes, err := store.ListNotes(ctx, driver.ListParams{UserID: user.ID, Search: "%"})
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if diff := cmp.Diff([]string{"100% done"}, noteTitles(notes)); diff != "" {
		t.Errorf("wildcard search mismatch (-want +got):\n%s", diff)
	}

	notes, err = store.ListNotes(ctx, driver.ListParams{UserID: user.ID, Search: "OTHER", OrderBy: "title", OrderDir: "desc"})
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if diff := cmp.Diff([]string{"beta", "100% done"}, noteTitles(notes)); diff != "" {
		t.Errorf("content search mismatch (-want +got):\n%s", diff)
	}
}

func testNoteOwnership(t *testing.T, store driver.Store) {
	ctx := context.Background()
	alice := newUser(t, store, "alice@example.com")
	bob := newUser(t, store, "bob@example.com")

	for _, u := range []*driver.User{alice, bob} {
		if _, err := store.CreateNote(ctx, driver.CreateNoteParams{UserID: u.ID, Title: u.Email, Content: "mine"}); err != nil {
			t.Fatalf("CreateNote failed: %v", err)
		}
	}

	notes, err := store.ListNotes(ctx, driver.ListParams{UserID: alice.ID})
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if diff := cmp.Diff([]string{"alice@example.com"}, noteTitles(notes)); diff != "" {
		t.Errorf("owner filter mismatch (-want +got):\n%s", diff)
	}
}

func testTodoLevels(t *testing.T, store driver.Store) {
	ctx := context.Background()
	user := newUser(t, store, "todos@example.com")

	todo, err := store.CreateTodo(ctx, driver.CreateTodoParams{UserID: user.ID, Title: "Laundry", Content: "whites only"})
	if err != nil {
		t.Fatalf("CreateTodo failed: %v", err)
	}
	if todo.Level != driver.LevelLow {
		t.Errorf("Expected default level %q, got %q", driver.LevelLow, todo.Level)
	}

	updated, err := store.UpdateTodo(ctx, todo.ID, driver.UpdateTodoParams{Level: ptr(driver.LevelHigh)})
	if err != nil {
		t.Fatalf("UpdateTodo failed: %v", err)
	}
	if updated.Level != driver.LevelHigh || updated.Title != "Laundry" {
		t.Errorf("UpdateTodo = %+v, want level high and unchanged title", updated)
	}

	todos, err := store.ListTodos(ctx, driver.ListParams{UserID: user.ID, Search: "whites"})
	if err != nil {
		t.Fatalf("ListTodos failed: %v", err)
	}
	if len(todos) != 1 || todos[0].ID != todo.ID {
		t.Errorf("Expected search to find the todo, got %d results", len(todos))
	}

	if deleted, err := store.DeleteTodo(ctx, todo.ID); err != nil || !deleted {
		t.Fatalf("DeleteTodo = %v, %v; want true, nil", deleted, err)
	}
	if _, err := store.GetTodo(ctx, todo.ID); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("GetTodo(deleted) error = %v, want ErrNotFound", err)
	}
}

func testPhotoFilters(t *testing.T, store driver.Store) {
	ctx := context.Background()
	user := newUser(t, store, "photos@example.com")

	fixtures := []struct{ name, category string }{
		{"Sunset", "nature"},
		{"Mountain", "nature"},
		{"Skyline", "city"},
	}
	for _, f := range fixtures {
		if _, err := store.CreatePhoto(ctx, driver.CreatePhotoParams{
			UserID: user.ID, Name: f.name, Category: f.category, ObjectKey: "photos/" + f.name,
		}); err != nil {
			t.Fatalf("CreatePhoto failed: %v", err)
		}
	}

	photos, err := store.ListPhotos(ctx, driver.ListParams{UserID: user.ID, Category: "nature", OrderBy: "name", OrderDir: "asc"})
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	var names []string
	for _, p := range photos {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"Mountain", "Sunset"}, names); diff != "" {
		t.Errorf("category filter mismatch (-want +got):\n%s", diff)
	}

	photos, err = store.ListPhotos(ctx, driver.ListParams{UserID: user.ID, Search: "sky"})
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	if len(photos) != 1 || photos[0].Name != "Skyline" {
		t.Fatalf("Expected name search to find Skyline, got %d results", len(photos))
	}

	updated, err := store.UpdatePhoto(ctx, photos[0].ID, driver.UpdatePhotoParams{Name: ptr("Night Skyline")})
	if err != nil {
		t.Fatalf("UpdatePhoto failed: %v", err)
	}
	if updated.Name != "Night Skyline" || updated.ObjectKey != "photos/Skyline" || updated.Category != "city" {
		t.Errorf("UpdatePhoto = %+v, want renamed photo with unchanged key and category", updated)
	}
}

func testReviewsCascade(t *testing.T, store driver.Store) {
	ctx := context.Background()
	user := newUser(t, store, "reviews@example.com")

	photo, err := store.CreatePhoto(ctx, driver.CreatePhotoParams{UserID: user.ID, Name: "Beach", ObjectKey: "photos/beach"})
	if err != nil {
		t.Fatalf("CreatePhoto failed: %v", err)
	}
	other, err := store.CreatePhoto(ctx, driver.CreatePhotoParams{UserID: user.ID, Name: "Forest", ObjectKey: "photos/forest"})
	if err != nil {
		t.Fatalf("CreatePhoto failed: %v", err)
	}

	first, err := store.CreateReview(ctx, driver.CreateReviewParams{PhotoID: photo.ID, UserID: user.ID, Content: "great light"})
	if err != nil {
		t.Fatalf("CreateReview failed: %v", err)
	}
	if _, err := store.CreateReview(ctx, driver.CreateReviewParams{PhotoID: photo.ID, UserID: user.ID, Content: "nice colors"}); err != nil {
		t.Fatalf("CreateReview failed: %v", err)
	}
	if _, err := store.CreateReview(ctx, driver.CreateReviewParams{PhotoID: other.ID, UserID: user.ID, Content: "green"}); err != nil {
		t.Fatalf("CreateReview failed: %v", err)
	}

	reviews, err := store.ListReviews(ctx, photo.ID)
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("Expected 2 reviews, got %d", len(reviews))
	}

	updated, err := store.UpdateReview(ctx, first.ID, "stunning light")
	if err != nil {
		t.Fatalf("UpdateReview failed: %v", err)
	}
	if updated.Content != "stunning light" || updated.PhotoID != photo.ID {
		t.Errorf("UpdateReview = %+v", updated)
	}

	if _, err := store.DeletePhoto(ctx, photo.ID); err != nil {
		t.Fatalf("DeletePhoto failed: %v", err)
	}
	reviews, err = store.ListReviews(ctx, photo.ID)
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(reviews) != 0 {
		t.Errorf("Expected reviews to be removed with their photo, got %d", len(reviews))
	}
	if _, err := store.GetReview(ctx, first.ID); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("GetReview(cascaded) error = %v, want ErrNotFound", err)
	}

	reviews, err = store.ListReviews(ctx, other.ID)
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(reviews) != 1 {
		t.Errorf("Expected other photo to keep its review, got %d", len(reviews))
	}
}

func testProfileUpsert(t *testing.T, store driver.Store) {
	ctx := context.Background()
	user := newUser(t, store, "profile@example.com")

	if _, err := store.GetProfile(ctx, user.ID); !errors.Is(err, driver.ErrNotFound) {
		t.Fatalf("GetProfile(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := store.UpsertProfile(ctx, user.ID, "First Name"); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	profile, err := store.UpsertProfile(ctx, user.ID, "Second Name")
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if profile.FullName != "Second Name" {
		t.Errorf("Expected upsert to overwrite full_name, got %q", profile.FullName)
	}

	got, err := store.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.FullName != "Second Name" || got.ID != user.ID {
		t.Errorf("GetProfile = %+v", got)
	}
}

func testUserAccounts(t *testing.T, store driver.Store) {
	ctx := context.Background()
	user := newUser(t, store, "Mixed@Example.com")

	if user.Email != "mixed@example.com" {
		t.Errorf("Expected email to be lower-cased, got %q", user.Email)
	}

	got, err := store.GetUserByEmail(ctx, "MIXED@example.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID || got.PasswordHash != "hash" {
		t.Errorf("GetUserByEmail = %+v", got)
	}

	_, err = store.CreateUser(ctx, driver.CreateUserParams{Email: "mixed@EXAMPLE.com", PasswordHash: "other"})
	if !errors.Is(err, driver.ErrConflict) {
		t.Errorf("duplicate CreateUser error = %v, want ErrConflict", err)
	}

	if _, err := store.GetUser(ctx, uuid.New()); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func testAuthSessions(t *testing.T, store driver.Store) {
	ctx := context.Background()
	alice := newUser(t, store, "alice.sessions@example.com")
	bob := newUser(t, store, "bob.sessions@example.com")
	now := time.Now()

	live := &driver.AuthSession{Token: "live-token", UserID: alice.ID, ExpiresAt: now.Add(time.Hour)}
	expired := &driver.AuthSession{Token: "expired-token", UserID: bob.ID, ExpiresAt: now.Add(-time.Minute)}
	for _, s := range []*driver.AuthSession{live, expired} {
		if err := store.CreateAuthSession(ctx, s); err != nil {
			t.Fatalf("CreateAuthSession failed: %v", err)
		}
		if s.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	}

	got, err := store.GetAuthSession(ctx, "live-token")
	if err != nil {
		t.Fatalf("GetAuthSession failed: %v", err)
	}
	if got.UserID != alice.ID || got.Expired(now) {
		t.Errorf("GetAuthSession = %+v", got)
	}

	userIDs, err := store.DeleteExpiredAuthSessions(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredAuthSessions failed: %v", err)
	}
	if diff := cmp.Diff([]uuid.UUID{bob.ID}, userIDs); diff != "" {
		t.Errorf("expired sessions mismatch (-want +got):\n%s", diff)
	}
	if _, err := store.GetAuthSession(ctx, "expired-token"); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("GetAuthSession(expired) error = %v, want ErrNotFound", err)
	}

	deleted, err := store.DeleteAuthSession(ctx, "live-token")
	if err != nil || !deleted {
		t.Fatalf("DeleteAuthSession = %v, %v; want true, nil", deleted, err)
	}
	if _, err := store.GetAuthSession(ctx, "live-token"); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("GetAuthSession(deleted) error = %v, want ErrNotFound", err)
	}
}

func testLeaderLease(t *testing.T, store driver.Store) {
	ctx := context.Background()
	elect := func(id string, ttl time.Duration) bool {
		t.Helper()
		ok, err := store.LeaderAttemptElect(ctx, &driver.LeaderElectParams{Name: "cleanup", LeaderID: id, TTL: ttl})
		if err != nil {
			t.Fatalf("LeaderAttemptElect(%s) failed: %v", id, err)
		}
		return ok
	}
	reelect := func(id string) bool {
		t.Helper()
		ok, err := store.LeaderAttemptReelect(ctx, &driver.LeaderElectParams{Name: "cleanup", LeaderID: id, TTL: time.Hour})
		if err != nil {
			t.Fatalf("LeaderAttemptReelect(%s) failed: %v", id, err)
		}
		return ok
	}

	if !elect("a", time.Hour) {
		t.Fatal("Expected a to take the free lease")
	}
	if elect("b", time.Hour) {
		t.Error("Expected b to lose while a holds the lease")
	}
	if !reelect("a") {
		t.Error("Expected a to renew its lease")
	}
	if reelect("b") {
		t.Error("Expected b not to renew a lease it does not hold")
	}

	// Other names are independent.
	ok, err := store.LeaderAttemptElect(ctx, &driver.LeaderElectParams{Name: "other", LeaderID: "b", TTL: time.Hour})
	if err != nil || !ok {
		t.Errorf("LeaderAttemptElect(other) = %v, %v; want true, nil", ok, err)
	}

	if err := store.LeaderResign(ctx, "cleanup", "b"); err != nil {
		t.Fatalf("LeaderResign(b) failed: %v", err)
	}
	if elect("b", time.Hour) {
		t.Error("Expected resigning a lease b does not hold to keep a as leader")
	}
	if err := store.LeaderResign(ctx, "cleanup", "a"); err != nil {
		t.Fatalf("LeaderResign(a) failed: %v", err)
	}

	// A lease that is already expired can be taken over.
	if !elect("b", -time.Second) {
		t.Fatal("Expected b to take the released lease")
	}
	if reelect("b") {
		t.Error("Expected an expired lease not to renew")
	}
	if !elect("a", time.Hour) {
		t.Error("Expected a to take over the expired lease")
	}
}
