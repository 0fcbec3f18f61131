package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/youssefsiam38/activitypg/activity"
	"github.com/youssefsiam38/activitypg/auth"
	"github.com/youssefsiam38/activitypg/draft"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/editor"
	"github.com/youssefsiam38/activitypg/gateway"
	"github.com/youssefsiam38/activitypg/listing"
	"github.com/youssefsiam38/activitypg/markdown"
	"github.com/youssefsiam38/activitypg/session"
)

// Authenticator signs users up, in and out. *auth.Service satisfies it.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, fullName string) (*driver.User, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
}

// TokenStore keeps the session token between runs.
type TokenStore interface {
	Load() string
	Save(token string) error
}

// fileTokens stores the token in a file readable only by the user.
type fileTokens string

func (f fileTokens) Load() string {
	b, err := os.ReadFile(string(f))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (f fileTokens) Save(token string) error {
	if token == "" {
		if err := os.Remove(string(f)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(string(f)), 0o700); err != nil {
		return err
	}
	return os.WriteFile(string(f), []byte(token), 0o600)
}

// backend is the part of activitypg.Client the terminal uses.
type backend interface {
	Auth() *auth.Service
	Gateway() *gateway.Gateway
	NewSessionProvider(drafts *draft.Drafts) *session.Provider
}

func newApp(b backend, prompt PromptDriver, tokens TokenStore, opts *activity.Options) *app {
	var drafts *draft.Drafts
	if opts != nil {
		drafts = opts.Drafts
	}
	return &app{
		prompt:   prompt,
		auth:     b.Auth(),
		gw:       b.Gateway(),
		provider: b.NewSessionProvider(drafts),
		tokens:   tokens,
		opts:     opts,
	}
}

// app is one interactive terminal session.
type app struct {
	prompt   PromptDriver
	auth     Authenticator
	gw       *gateway.Gateway
	provider *session.Provider
	tokens   TokenStore
	opts     *activity.Options
}

const listPageSize = 15

// run signs the user in when needed and shows the main menu until quit.
func (a *app) run(ctx context.Context) error {
	if err := a.provider.Init(ctx, a.tokens.Load()); err != nil {
		return err
	}
	for {
		if !a.provider.State().SignedIn() {
			done, err := a.authMenu(ctx)
			if err != nil || done {
				return err
			}
			continue
		}
		done, err := a.mainMenu(ctx)
		if err != nil || done {
			return err
		}
	}
}

func (a *app) authMenu(ctx context.Context) (bool, error) {
	choice, err := a.prompt.Select(ctx, SelectConfig{
		Message: "Welcome",
		Options: []string{"Sign in", "Sign up", "Quit"},
	})
	if err != nil {
		return true, ignoreAbort(err)
	}
	switch choice {
	case 0:
		return false, a.signIn(ctx, false)
	case 1:
		return false, a.signIn(ctx, true)
	}
	return true, nil
}

func (a *app) signIn(ctx context.Context, signUp bool) error {
	email, err := a.prompt.Input(ctx, InputConfig{Message: "Email"})
	if err != nil {
		return ignoreAbort(err)
	}
	password, err := a.prompt.Password(ctx, InputConfig{Message: "Password"})
	if err != nil {
		return ignoreAbort(err)
	}
	if signUp {
		name, err := a.prompt.Input(ctx, InputConfig{Message: "Full name"})
		if err != nil {
			return ignoreAbort(err)
		}
		if _, err := a.auth.SignUp(ctx, email, password, name); err != nil {
			return a.info(ctx, "Sign up failed: %v", err)
		}
	}
	sess, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		return a.info(ctx, "Sign in failed: %v", err)
	}
	if err := a.tokens.Save(sess.Token); err != nil {
		_ = a.info(ctx, "Could not remember the session: %v", err)
	}
	a.provider.SetSession(ctx, sess)
	return a.info(ctx, "Signed in as %s.", a.provider.State().FullName)
}

func (a *app) signOut(ctx context.Context) error {
	st := a.provider.State()
	if st.Session != nil {
		if err := a.auth.SignOut(ctx, st.Session.Token); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
			return err
		}
	}
	a.provider.SignOut()
	return a.tokens.Save("")
}

func (a *app) mainMenu(ctx context.Context) (bool, error) {
	st := a.provider.State()
	choice, err := a.prompt.Select(ctx, SelectConfig{
		Message: fmt.Sprintf("Hello, %s", displayName(st.FullName)),
		Options: []string{"Notes", "Todos", "Photos", "Profile", "Sign out", "Quit"},
	})
	if err != nil {
		return true, ignoreAbort(err)
	}

	// Gateway calls run as the signed-in user.
	uctx := a.provider.Context(ctx)
	switch choice {
	case 0:
		return false, a.notes(uctx)
	case 1:
		return false, a.todos(uctx)
	case 2:
		return false, a.photos(uctx)
	case 3:
		return false, a.profile(uctx)
	case 4:
		return false, a.signOut(ctx)
	}
	return true, nil
}

func (a *app) notes(ctx context.Context) error {
	page, err := activity.NewNotesPage(ctx, a.gw.Notes, a.opts)
	if err != nil {
		return err
	}
	defer page.Close()
	return browse(ctx, a, view[*driver.Note]{
		title:  "Notes",
		page:   page,
		fields: editor.NoteFields,
		submit: page.Submit,
		label: func(n *driver.Note) string {
			return fmt.Sprintf("%s  %s", n.Title, markdown.Excerpt(n.Content, 40))
		},
		detail: func(n *driver.Note) string {
			return fmt.Sprintf("# %s\n\n%s\n\nupdated %s", n.Title, n.Content, n.UpdatedAt.Format("2006-01-02 15:04"))
		},
	})
}

func (a *app) todos(ctx context.Context) error {
	page, err := activity.NewTodosPage(ctx, a.gw.Todos, a.opts)
	if err != nil {
		return err
	}
	defer page.Close()
	return browse(ctx, a, view[*driver.Todo]{
		title:  "Todos",
		page:   page,
		fields: editor.TodoFields,
		submit: page.Submit,
		label: func(t *driver.Todo) string {
			return fmt.Sprintf("[%s] %s", t.Level, t.Title)
		},
		detail: func(t *driver.Todo) string {
			return fmt.Sprintf("%s (%s)\n\n%s", t.Title, t.Level, t.Content)
		},
	})
}

func (a *app) photos(ctx context.Context) error {
	category, err := a.prompt.Input(ctx, InputConfig{Message: "Category (empty for all)"})
	if err != nil {
		return ignoreAbort(err)
	}
	page, err := activity.NewPhotoPage(ctx, a.gw.Photos, strings.TrimSpace(category), a.opts)
	if err != nil {
		return err
	}
	defer page.Close()
	return browse(ctx, a, view[*driver.Photo]{
		title:  "Photos",
		page:   page.Page,
		fields: editor.PhotoFields,
		submit: page.Submit,
		label: func(p *driver.Photo) string {
			return fmt.Sprintf("%s (%s)", p.Name, p.Category)
		},
		detail: func(p *driver.Photo) string {
			return fmt.Sprintf("%s\ncategory: %s\nuploaded: %s\n%s", p.Name, p.Category, p.UploadDate.Format("2006-01-02"), p.ImageURL)
		},
		beforeSubmit: func(ctx context.Context, mode editor.Mode) error {
			return a.attachImage(ctx, page, mode)
		},
		sort: page.SetSort,
		actions: []itemAction[*driver.Photo]{
			{name: "Reviews", run: a.reviews},
		},
	})
}

// attachImage asks for an image file. It is required when creating.
func (a *app) attachImage(ctx context.Context, page *activity.PhotoPage, mode editor.Mode) error {
	msg := "Image file"
	if mode == editor.ModeEdit {
		msg = "Replace image (empty keeps the current one)"
	}
	path, err := a.prompt.Input(ctx, InputConfig{Message: msg})
	if err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	page.SetImage(gateway.Image{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Body:        bytes.NewReader(data),
	})
	return nil
}

func (a *app) reviews(ctx context.Context, photo *driver.Photo) error {
	panel := activity.NewReviewPanel(a.gw.Reviews, photo.Key(), a.opts)
	defer panel.Close()
	if err := panel.Load(ctx); err != nil {
		return a.info(ctx, "Could not load reviews: %v", err)
	}

	for {
		items := panel.Items()
		options := make([]string, 0, len(items)+2)
		for _, r := range items {
			options = append(options, fmt.Sprintf("%s  %s", r.CreatedAt.Format("2006-01-02"), r.Content))
		}
		options = append(options, "New review", "Back")

		choice, err := a.prompt.Select(ctx, SelectConfig{
			Message:  fmt.Sprintf("Reviews of %s", photo.Name),
			Options:  options,
			PageSize: listPageSize,
		})
		if err != nil {
			return ignoreAbort(err)
		}
		switch {
		case choice < len(items):
			if err := a.reviewActions(ctx, panel, items[choice]); err != nil {
				return err
			}
		case choice == len(items):
			panel.OpenCreate()
			if err := a.fillAndSubmit(ctx, reviewForm(panel)); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (a *app) reviewActions(ctx context.Context, panel *activity.ReviewPanel, review *driver.Review) error {
	choice, err := a.prompt.Select(ctx, SelectConfig{
		Message: review.Content,
		Options: []string{"Edit", "Delete", "Back"},
	})
	if err != nil {
		return ignoreAbort(err)
	}
	switch choice {
	case 0:
		if err := panel.OpenEdit(review.Key()); err != nil {
			return err
		}
		return a.fillAndSubmit(ctx, reviewForm(panel))
	case 1:
		if ok, err := a.prompt.Confirm(ctx, "Delete this review?", false); err != nil || !ok {
			return ignoreAbort(err)
		}
		if err := panel.Delete(ctx, review.Key()); err != nil {
			return a.info(ctx, "Delete failed: %v", err)
		}
	}
	return nil
}

func (a *app) profile(ctx context.Context) error {
	profile, err := a.gw.Profiles.Get(ctx)
	if err != nil {
		return a.info(ctx, "Could not load profile: %v", err)
	}
	name, err := a.prompt.Input(ctx, InputConfig{Message: "Full name", Default: profile.FullName})
	if err != nil {
		return ignoreAbort(err)
	}
	if name == profile.FullName {
		return nil
	}
	if _, err := a.gw.Profiles.Upsert(ctx, name); err != nil {
		return a.info(ctx, "Update failed: %v", err)
	}
	return a.info(ctx, "Profile updated.")
}

// form is an open editor and what to do with it.
type form struct {
	ed     *editor.Editor
	fields []editor.Field
	submit func(context.Context) error
	before func(context.Context, editor.Mode) error
	cancel func()
}

// fillAndSubmit asks for every field, prefilled from the editor, and
// submits. Invalid input is shown and the form asked again; declining a
// retry discards the form and its drafts. An interrupt keeps the drafts.
func (a *app) fillAndSubmit(ctx context.Context, f form) error {
	ed := f.ed
	for {
		for _, field := range f.fields {
			value, err := a.askField(ctx, field, ed.Value(field.Name))
			if err != nil {
				if errors.Is(err, ErrAborted) {
					ed.Dismiss()
					return nil
				}
				return err
			}
			if err := ed.Set(field.Name, value); err != nil {
				return err
			}
		}
		if f.before != nil {
			if err := f.before(ctx, ed.Mode()); err != nil {
				if errors.Is(err, ErrAborted) {
					ed.Dismiss()
					return nil
				}
				_ = a.info(ctx, "%v", err)
				continue
			}
		}

		err := f.submit(ctx)
		if err == nil {
			return a.info(ctx, "Saved.")
		}
		var invalid editor.ValidationErrors
		if errors.As(err, &invalid) {
			names := make([]string, 0, len(invalid))
			for name := range invalid {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				_ = a.info(ctx, "  %s", invalid[name])
			}
		} else {
			_ = a.info(ctx, "Save failed: %v", err)
		}

		again, err := a.prompt.Confirm(ctx, "Try again?", true)
		if err != nil || !again {
			f.cancel()
			return ignoreAbort(err)
		}
	}
}

func (a *app) askField(ctx context.Context, f editor.Field, current string) (string, error) {
	if len(f.Choices) > 0 {
		def := 0
		for i, c := range f.Choices {
			if c == current {
				def = i
			}
		}
		i, err := a.prompt.Select(ctx, SelectConfig{Message: f.Label, Options: f.Choices, DefaultIndex: def})
		if err != nil {
			return "", err
		}
		return f.Choices[i], nil
	}
	cfg := InputConfig{Message: f.Label, Default: current}
	if f.Name == "content" {
		return a.prompt.TextArea(ctx, cfg)
	}
	return a.prompt.Input(ctx, cfg)
}

func (a *app) info(ctx context.Context, format string, args ...any) error {
	return a.prompt.Info(ctx, fmt.Sprintf(format, args...))
}

// view describes how one kind of record is listed and edited.
type view[T listing.Item] struct {
	title        string
	page         *activity.Page[T]
	fields       []editor.Field
	submit       func(context.Context) error
	label        func(T) string
	detail       func(T) string
	beforeSubmit func(context.Context, editor.Mode) error
	sort         func(context.Context, listing.Sort) (listing.Outcome, error)
	actions      []itemAction[T]
}

func (v view[T]) form() form {
	return form{
		ed:     v.page.Editor(),
		fields: v.fields,
		submit: v.submit,
		before: v.beforeSubmit,
		cancel: v.page.CancelEdit,
	}
}

func reviewForm(panel *activity.ReviewPanel) form {
	return form{
		ed:     panel.Editor(),
		fields: editor.ReviewFields,
		submit: panel.Submit,
		cancel: panel.Editor().Cancel,
	}
}

type itemAction[T listing.Item] struct {
	name string
	run  func(ctx context.Context, item T) error
}

// Fixed list menu entries, shown after the items.
const (
	entryMore = iota
	entrySearch
	entrySort
	entryNew
	entryBack
)

// browse lists v until the user goes back. Choosing "Load more" plays the
// role of scrolling the end-of-list sentinel into view.
func browse[T listing.Item](ctx context.Context, a *app, v view[T]) error {
	if _, err := v.page.Load(ctx); err != nil {
		_ = a.info(ctx, "Could not load %s: %v", strings.ToLower(v.title), err)
	}

	for {
		list := v.page.List()
		items := list.Items()
		options := make([]string, 0, len(items)+5)
		for _, item := range items {
			options = append(options, v.label(item))
		}
		var entries []int
		if !list.EndReached() {
			entries = append(entries, entryMore)
		}
		entries = append(entries, entrySearch)
		if v.sort != nil {
			entries = append(entries, entrySort)
		}
		entries = append(entries, entryNew, entryBack)
		for _, e := range entries {
			options = append(options, entryLabel(e, list.Filter()))
		}

		choice, err := a.prompt.Select(ctx, SelectConfig{
			Message:  fmt.Sprintf("%s (%d)", v.title, len(items)),
			Options:  options,
			PageSize: listPageSize,
		})
		if err != nil {
			return ignoreAbort(err)
		}
		if choice < len(items) {
			if err := showItem(ctx, a, v, items[choice]); err != nil {
				return err
			}
			continue
		}

		switch entries[choice-len(items)] {
		case entryMore:
			sentinel := v.page.Sentinel()
			if _, err := sentinel.SetVisible(ctx, true); err != nil {
				_ = a.info(ctx, "Could not load more: %v", err)
			}
			_, _ = sentinel.SetVisible(ctx, false)
		case entrySearch:
			raw, err := a.prompt.Input(ctx, InputConfig{Message: "Search", Default: v.page.Search().Raw()})
			if err != nil {
				if errors.Is(err, ErrAborted) {
					continue
				}
				return err
			}
			v.page.SetQuery(raw)
			// A submitted line is final input; commit it without waiting.
			v.page.Search().Flush()
		case entrySort:
			if err := chooseSort(ctx, a, v); err != nil {
				return err
			}
		case entryNew:
			v.page.OpenCreate()
			if err := a.fillAndSubmit(ctx, v.form()); err != nil {
				return err
			}
		case entryBack:
			return nil
		}
	}
}

func entryLabel(entry int, filter string) string {
	switch entry {
	case entryMore:
		return "Load more"
	case entrySearch:
		if filter != "" {
			return fmt.Sprintf("Search (%q)", filter)
		}
		return "Search"
	case entrySort:
		return "Sort"
	case entryNew:
		return "New"
	}
	return "Back"
}

var sortChoices = []struct {
	label string
	sort  listing.Sort
}{
	{"Newest first", listing.Sort{Field: "upload_date", Dir: listing.Desc}},
	{"Oldest first", listing.Sort{Field: "upload_date", Dir: listing.Asc}},
	{"Name A-Z", listing.Sort{Field: "name", Dir: listing.Asc}},
	{"Name Z-A", listing.Sort{Field: "name", Dir: listing.Desc}},
}

func chooseSort[T listing.Item](ctx context.Context, a *app, v view[T]) error {
	options := make([]string, len(sortChoices))
	def := 0
	current := v.page.List().Sort()
	for i, c := range sortChoices {
		options[i] = c.label
		if c.sort == current {
			def = i
		}
	}
	i, err := a.prompt.Select(ctx, SelectConfig{Message: "Sort by", Options: options, DefaultIndex: def})
	if err != nil {
		return ignoreAbort(err)
	}
	if _, err := v.sort(ctx, sortChoices[i].sort); err != nil {
		return a.info(ctx, "Could not load: %v", err)
	}
	return nil
}

func showItem[T listing.Item](ctx context.Context, a *app, v view[T], item T) error {
	if !v.page.Select(item.Key()) {
		return nil
	}
	defer func() {
		if v.page.Modal() != activity.ModalNone {
			v.page.CloseModal()
		}
	}()

	for {
		selected, ok := v.page.Selected()
		if !ok {
			return nil
		}
		if err := a.info(ctx, "%s", v.detail(selected)); err != nil {
			return err
		}

		options := []string{"Edit", "Delete"}
		for _, act := range v.actions {
			options = append(options, act.name)
		}
		options = append(options, "Back")
		choice, err := a.prompt.Select(ctx, SelectConfig{Message: v.label(selected), Options: options})
		if err != nil {
			return ignoreAbort(err)
		}

		switch {
		case choice == 0:
			if err := v.page.OpenEdit(); err != nil {
				return err
			}
			if err := a.fillAndSubmit(ctx, v.form()); err != nil {
				return err
			}
		case choice == 1:
			ok, err := a.prompt.Confirm(ctx, "Delete this item?", false)
			if err != nil {
				return ignoreAbort(err)
			}
			if !ok {
				continue
			}
			if err := v.page.Delete(ctx); err != nil {
				_ = a.info(ctx, "Delete failed: %v", err)
				continue
			}
			return a.info(ctx, "Deleted.")
		case choice-2 < len(v.actions):
			if err := v.actions[choice-2].run(ctx, selected); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

func ignoreAbort(err error) error {
	if errors.Is(err, ErrAborted) {
		return nil
	}
	return err
}

// draftsFor opens the durable draft store at path, falling back to memory
// when it cannot be opened.
func draftsFor(path string, logger draft.Logger) (*draft.Drafts, func()) {
	if path == "" {
		return draft.New(draft.NewMemoryStore(), logger), func() {}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger.Warn("drafts unavailable, keeping them in memory", "path", path, "error", err)
		return draft.New(draft.NewMemoryStore(), logger), func() {}
	}
	store, err := draft.OpenSQLite(path, logger)
	if err != nil {
		logger.Warn("drafts unavailable, keeping them in memory", "path", path, "error", err)
		return draft.New(draft.NewMemoryStore(), logger), func() {}
	}
	return draft.New(store, logger), func() { _ = store.Close() }
}
