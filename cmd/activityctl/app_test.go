package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/youssefsiam38/activitypg"
	"github.com/youssefsiam38/activitypg/activity"
	"github.com/youssefsiam38/activitypg/draft"
	"github.com/youssefsiam38/activitypg/driver/memory"
	"github.com/youssefsiam38/activitypg/listing"
)

// scripted answers prompts from a fixed list. Select answers name the
// option by prefix. Running out of answers aborts the prompt.
type scripted struct {
	t       *testing.T
	answers []string
	infos   []string
}

func (s *scripted) next(kind, message string) (string, error) {
	if len(s.answers) == 0 {
		s.t.Logf("no answer for %s %q", kind, message)
		return "", ErrAborted
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scripted) Input(ctx context.Context, cfg InputConfig) (string, error) {
	return s.next("input", cfg.Message)
}

func (s *scripted) Password(ctx context.Context, cfg InputConfig) (string, error) {
	return s.next("password", cfg.Message)
}

func (s *scripted) TextArea(ctx context.Context, cfg InputConfig) (string, error) {
	return s.next("textarea", cfg.Message)
}

func (s *scripted) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	a, err := s.next("confirm", message)
	if err != nil {
		return false, err
	}
	return a == "yes", nil
}

func (s *scripted) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	a, err := s.next("select", cfg.Message)
	if err != nil {
		return 0, err
	}
	for i, opt := range cfg.Options {
		if strings.HasPrefix(opt, a) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("select %q: no option %q in %q", cfg.Message, a, cfg.Options)
}

func (s *scripted) Info(ctx context.Context, msg string) error {
	s.infos = append(s.infos, msg)
	return nil
}

type memTokens struct{ token string }

func (m *memTokens) Load() string            { return m.token }
func (m *memTokens) Save(token string) error { m.token = token; return nil }

type testApp struct {
	*app
	prompt *scripted
	tokens *memTokens
	drafts *draft.MemoryStore
}

func newTestApp(t *testing.T, answers ...string) *testApp {
	t.Helper()
	client, err := activitypg.NewClient(memory.New(), &activitypg.ClientConfig{BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	store := draft.NewMemoryStore()
	prompt := &scripted{t: t, answers: answers}
	tokens := &memTokens{}
	a := newApp(client, prompt, tokens, &activity.Options{Drafts: draft.New(store, nil)})
	t.Cleanup(a.provider.Close)
	return &testApp{app: a, prompt: prompt, tokens: tokens, drafts: store}
}

func (ta *testApp) noteTitles(t *testing.T) []string {
	t.Helper()
	notes, err := ta.gw.Notes.ListPage(ta.provider.Context(context.Background()), listing.Query{Limit: 100})
	if err != nil {
		t.Fatalf("ListPage() error = %v", err)
	}
	var titles []string
	for _, n := range notes {
		titles = append(titles, n.Title)
	}
	return titles
}

func TestApp_SignUpAndCreateNote(t *testing.T) {
	ta := newTestApp(t,
		"Sign up", "ash@example.com", "pikachu", "Ash Ketchum",
		"Notes",
		"New", "Pallet Town", "Home sweet home",
		"Back",
		"Quit",
	)

	if err := ta.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if ta.tokens.token == "" {
		t.Error("session token was not saved")
	}
	if diff := cmp.Diff([]string{"Pallet Town"}, ta.noteTitles(t)); diff != "" {
		t.Errorf("notes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Signed in as Ash Ketchum.", "Saved."}, ta.prompt.infos); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if ta.drafts.Len() != 0 {
		t.Errorf("drafts left after save: %d", ta.drafts.Len())
	}
}

func TestApp_InvalidNoteIsNotSaved(t *testing.T) {
	ta := newTestApp(t,
		"Sign up", "misty@example.com", "starmie", "Misty",
		"Notes",
		"New", "M", "Hi",
		"no",
		"Back",
		"Quit",
	)

	if err := ta.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if titles := ta.noteTitles(t); len(titles) != 0 {
		t.Errorf("notes = %v, want none", titles)
	}
	want := []string{
		"Signed in as Misty.",
		"  Content must be at least 5 characters.",
		"  Title must be at least 2 characters.",
	}
	if diff := cmp.Diff(want, ta.prompt.infos); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if ta.drafts.Len() != 0 {
		t.Errorf("declined form kept %d drafts", ta.drafts.Len())
	}
}

func TestApp_InterruptKeepsDrafts(t *testing.T) {
	// The script ends inside the form, which aborts it.
	ta := newTestApp(t,
		"Sign up", "brock@example.com", "onixxx", "Brock",
		"Notes",
		"New", "Pewter City",
	)

	if err := ta.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	store := ta.opts.Drafts
	if got := store.Load(draft.NoteTitle, ""); got != "Pewter City" {
		t.Errorf("title draft = %q, want %q", got, "Pewter City")
	}
}

func TestApp_EditAndDeleteNote(t *testing.T) {
	ta := newTestApp(t,
		"Sign up", "ash@example.com", "pikachu", "Ash",
		"Notes",
		"New", "Route 1", "Tall grass ahead",
		"Route 1", "Edit", "Route 2", "Tall grass ahead",
		"Delete", "yes",
		"Back",
		"Quit",
	)

	if err := ta.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if titles := ta.noteTitles(t); len(titles) != 0 {
		t.Errorf("notes = %v, want none after delete", titles)
	}
	want := []string{"Signed in as Ash.", "Saved.", "Saved.", "Deleted."}
	var got []string
	for _, msg := range ta.prompt.infos {
		// Item details are printed before every item menu.
		if !strings.HasPrefix(msg, "# ") {
			got = append(got, msg)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestApp_SignOutForgetsToken(t *testing.T) {
	ta := newTestApp(t,
		"Sign up", "gary@example.com", "eevee1", "Gary",
		"Sign out",
		"Quit",
	)

	if err := ta.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if ta.tokens.token != "" {
		t.Errorf("token = %q after sign out, want empty", ta.tokens.token)
	}
	if ta.provider.State().SignedIn() {
		t.Error("still signed in after sign out")
	}
}

func TestApp_RestoresSession(t *testing.T) {
	ta := newTestApp(t, "Quit")
	ctx := context.Background()
	if _, err := ta.auth.SignUp(ctx, "oak@example.com", "pokedex", "Professor Oak"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	sess, err := ta.auth.SignIn(ctx, "oak@example.com", "pokedex")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	ta.tokens.token = sess.Token

	if err := ta.run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !ta.provider.State().SignedIn() {
		t.Error("stored token did not restore the session")
	}
}
