package gateway

import (
	"context"
	"strings"

	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/listing"
	"github.com/youssefsiam38/activitypg/notifier"
)

// NoteInput holds editable note fields.
type NoteInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NotePatch holds changed note fields; nil fields are left unchanged.
type NotePatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Notes is the gateway for the current user's notes.
type Notes struct {
	g *Gateway
}

// ListPage returns one page of notes matching q.
func (n *Notes) ListPage(ctx context.Context, q listing.Query) ([]*driver.Note, error) {
	var notes []*driver.Note
	call := newCall(ctx, EntityNote, OpList, "")
	err := n.g.do(ctx, call, func(ctx context.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		params := listParams(user.ID, q, AllowedNoteOrderBy)
		notes, err = n.g.store.ListNotes(ctx, params)
		if err != nil {
			return err
		}
		n.g.page(ctx, call, params.Offset, params.Limit, len(notes))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// Get returns the note with id.
func (n *Notes) Get(ctx context.Context, id string) (*driver.Note, error) {
	var note *driver.Note
	err := n.g.do(ctx, newCall(ctx, EntityNote, OpGet, id), func(ctx context.Context) (err error) {
		note, err = n.get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (n *Notes) get(ctx context.Context, id string) (*driver.Note, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	noteID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	note, err := n.g.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := owned(note.UserID, user); err != nil {
		return nil, err
	}
	return note, nil
}

// Create stores a new note for the current user.
func (n *Notes) Create(ctx context.Context, in NoteInput) (*driver.Note, error) {
	var note *driver.Note
	call := newCall(ctx, EntityNote, OpCreate, "")
	err := n.g.do(ctx, call, func(ctx context.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.Title) == "" {
			return invalid("title is required")
		}
		note, err = n.g.store.CreateNote(ctx, driver.CreateNoteParams{
			UserID:  user.ID,
			Title:   in.Title,
			Content: in.Content,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	call.ID = note.Key()
	n.g.changed(ctx, call, notifier.EventNoteChanged)
	return note, nil
}

// Update applies patch to the note with id.
func (n *Notes) Update(ctx context.Context, id string, patch NotePatch) (*driver.Note, error) {
	var note *driver.Note
	call := newCall(ctx, EntityNote, OpUpdate, id)
	err := n.g.do(ctx, call, func(ctx context.Context) error {
		current, err := n.get(ctx, id)
		if err != nil {
			return err
		}
		if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
			return invalid("title must not be empty")
		}
		note, err = n.g.store.UpdateNote(ctx, current.ID, driver.UpdateNoteParams{
			Title:   patch.Title,
			Content: patch.Content,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	n.g.changed(ctx, call, notifier.EventNoteChanged)
	return note, nil
}

// Delete removes the note with id.
func (n *Notes) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	call := newCall(ctx, EntityNote, OpDelete, id)
	err := n.g.do(ctx, call, func(ctx context.Context) error {
		current, err := n.get(ctx, id)
		if err != nil {
			return err
		}
		deleted, err = n.g.store.DeleteNote(ctx, current.ID)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		n.g.changed(ctx, call, notifier.EventNoteChanged)
	}
	return deleted, nil
}
