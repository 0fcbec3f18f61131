package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
)

// scanner is satisfied by both driver.Row and driver.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const noteColumns = `id, user_id, title, content, created_at, updated_at`

var noteOrderColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
}

func scanNote(row scanner) (*driver.Note, error) {
	var n driver.Note
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNote inserts a note and returns it with server-assigned id and timestamps.
func (s *Store) CreateNote(ctx context.Context, params driver.CreateNoteParams) (*driver.Note, error) {
	query := `
		INSERT INTO activitypg_notes (id, user_id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + noteColumns

	note, err := scanNote(s.getExecutor(ctx).QueryRow(ctx, query, uuid.New(), params.UserID, params.Title, params.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return note, nil
}

// GetNote retrieves a note by ID.
func (s *Store) GetNote(ctx context.Context, id uuid.UUID) (*driver.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM activitypg_notes WHERE id = $1`

	note, err := scanNote(s.getExecutor(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "note", id)
	}
	return note, nil
}

// ListNotes returns one page of a user's notes, newest update first by default.
// Search matches title or content case-insensitively.
func (s *Store) ListNotes(ctx context.Context, params driver.ListParams) ([]*driver.Note, error) {
	var w whereBuilder
	if params.UserID != uuid.Nil {
		w.add("user_id = ?", params.UserID)
	}
	if params.Search != "" {
		w.add("(title ILIKE ? OR content ILIKE ?)", likePattern(params.Search), likePattern(params.Search))
	}
	query := fmt.Sprintf(`SELECT %s FROM activitypg_notes %s %s %s`,
		noteColumns,
		w.String(),
		orderClause(params.OrderBy, params.OrderDir, noteOrderColumns, "updated_at"),
		limitOffset(&w, params.Limit, params.Offset),
	)

	rows, err := s.getExecutor(ctx).Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []*driver.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

// UpdateNote applies the changed fields and bumps updated_at.
func (s *Store) UpdateNote(ctx context.Context, id uuid.UUID, params driver.UpdateNoteParams) (*driver.Note, error) {
	query := `
		UPDATE activitypg_notes
		SET title = COALESCE($2, title),
		    content = COALESCE($3, content),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + noteColumns

	note, err := scanNote(s.getExecutor(ctx).QueryRow(ctx, query, id, params.Title, params.Content))
	if err != nil {
		return nil, notFound(err, "note", id)
	}
	return note, nil
}

// DeleteNote removes a note. It reports whether a row was deleted.
func (s *Store) DeleteNote(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM activitypg_notes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	return affected > 0, nil
}
