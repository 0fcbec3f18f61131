package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
)

const todoColumns = `id, user_id, title, content, level, created_at, updated_at`

var todoOrderColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"level":      true,
}

func scanTodo(row scanner) (*driver.Todo, error) {
	var t driver.Todo
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Content, &t.Level, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTodo inserts a todo. An empty level defaults to low.
func (s *Store) CreateTodo(ctx context.Context, params driver.CreateTodoParams) (*driver.Todo, error) {
	level := params.Level
	if level == "" {
		level = driver.LevelLow
	}
	query := `
		INSERT INTO activitypg_todos (id, user_id, title, content, level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + todoColumns

	todo, err := scanTodo(s.getExecutor(ctx).QueryRow(ctx, query, uuid.New(), params.UserID, params.Title, params.Content, level))
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return todo, nil
}

// GetTodo retrieves a todo by ID.
func (s *Store) GetTodo(ctx context.Context, id uuid.UUID) (*driver.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM activitypg_todos WHERE id = $1`

	todo, err := scanTodo(s.getExecutor(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "todo", id)
	}
	return todo, nil
}

// ListTodos returns one page of a user's todos, newest first by default.
func (s *Store) ListTodos(ctx context.Context, params driver.ListParams) ([]*driver.Todo, error) {
	var w whereBuilder
	if params.UserID != uuid.Nil {
		w.add("user_id = ?", params.UserID)
	}
	if params.Search != "" {
		w.add("(title ILIKE ? OR content ILIKE ?)", likePattern(params.Search), likePattern(params.Search))
	}
	query := fmt.Sprintf(`SELECT %s FROM activitypg_todos %s %s %s`,
		todoColumns,
		w.String(),
		orderClause(params.OrderBy, params.OrderDir, todoOrderColumns, "created_at"),
		limitOffset(&w, params.Limit, params.Offset),
	)

	rows, err := s.getExecutor(ctx).Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	todos := []*driver.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating todos: %w", err)
	}
	return todos, nil
}

// UpdateTodo applies the changed fields and bumps updated_at.
func (s *Store) UpdateTodo(ctx context.Context, id uuid.UUID, params driver.UpdateTodoParams) (*driver.Todo, error) {
	query := `
		UPDATE activitypg_todos
		SET title = COALESCE($2, title),
		    content = COALESCE($3, content),
		    level = COALESCE($4, level),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + todoColumns

	todo, err := scanTodo(s.getExecutor(ctx).QueryRow(ctx, query, id, params.Title, params.Content, params.Level))
	if err != nil {
		return nil, notFound(err, "todo", id)
	}
	return todo, nil
}

// DeleteTodo removes a todo. It reports whether a row was deleted.
func (s *Store) DeleteTodo(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM activitypg_todos WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	return affected > 0, nil
}
