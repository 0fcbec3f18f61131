package gateway

import (
	"context"
	"strings"

	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/listing"
	"github.com/youssefsiam38/activitypg/notifier"
)

// TodoInput holds editable todo fields. An empty Level means low.
type TodoInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Level   string `json:"level"`
}

// TodoPatch holds changed todo fields; nil fields are left unchanged.
type TodoPatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Level   *string `json:"level,omitempty"`
}

// ValidLevel reports whether level is a known todo priority.
func ValidLevel(level string) bool {
	switch level {
	case driver.LevelLow, driver.LevelMedium, driver.LevelHigh:
		return true
	}
	return false
}

// Todos is the gateway for the current user's todos.
type Todos struct {
	g *Gateway
}

// ListPage returns one page of todos matching q.
func (t *Todos) ListPage(ctx context.Context, q listing.Query) ([]*driver.Todo, error) {
	var todos []*driver.Todo
	call := newCall(ctx, EntityTodo, OpList, "")
	err := t.g.do(ctx, call, func(ctx context.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		params := listParams(user.ID, q, AllowedTodoOrderBy)
		todos, err = t.g.store.ListTodos(ctx, params)
		if err != nil {
			return err
		}
		t.g.page(ctx, call, params.Offset, params.Limit, len(todos))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// Get returns the todo with id.
func (t *Todos) Get(ctx context.Context, id string) (*driver.Todo, error) {
	var todo *driver.Todo
	err := t.g.do(ctx, newCall(ctx, EntityTodo, OpGet, id), func(ctx context.Context) (err error) {
		todo, err = t.get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return todo, nil
}

func (t *Todos) get(ctx context.Context, id string) (*driver.Todo, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	todoID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	todo, err := t.g.store.GetTodo(ctx, todoID)
	if err != nil {
		return nil, err
	}
	if err := owned(todo.UserID, user); err != nil {
		return nil, err
	}
	return todo, nil
}

// Create stores a new todo for the current user.
func (t *Todos) Create(ctx context.Context, in TodoInput) (*driver.Todo, error) {
	var todo *driver.Todo
	call := newCall(ctx, EntityTodo, OpCreate, "")
	err := t.g.do(ctx, call, func(ctx context.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.Title) == "" {
			return invalid("title is required")
		}
		level := in.Level
		if level == "" {
			level = driver.LevelLow
		}
		if !ValidLevel(level) {
			return invalid("unknown level %q", level)
		}
		todo, err = t.g.store.CreateTodo(ctx, driver.CreateTodoParams{
			UserID:  user.ID,
			Title:   in.Title,
			Content: in.Content,
			Level:   level,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	call.ID = todo.Key()
	t.g.changed(ctx, call, notifier.EventTodoChanged)
	return todo, nil
}

// Update applies patch to the todo with id.
func (t *Todos) Update(ctx context.Context, id string, patch TodoPatch) (*driver.Todo, error) {
	var todo *driver.Todo
	call := newCall(ctx, EntityTodo, OpUpdate, id)
	err := t.g.do(ctx, call, func(ctx context.Context) error {
		current, err := t.get(ctx, id)
		if err != nil {
			return err
		}
		if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
			return invalid("title must not be empty")
		}
		if patch.Level != nil && !ValidLevel(*patch.Level) {
			return invalid("unknown level %q", *patch.Level)
		}
		todo, err = t.g.store.UpdateTodo(ctx, current.ID, driver.UpdateTodoParams{
			Title:   patch.Title,
			Content: patch.Content,
			Level:   patch.Level,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	t.g.changed(ctx, call, notifier.EventTodoChanged)
	return todo, nil
}

// Delete removes the todo with id.
func (t *Todos) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	call := newCall(ctx, EntityTodo, OpDelete, id)
	err := t.g.do(ctx, call, func(ctx context.Context) error {
		current, err := t.get(ctx, id)
		if err != nil {
			return err
		}
		deleted, err = t.g.store.DeleteTodo(ctx, current.ID)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		t.g.changed(ctx, call, notifier.EventTodoChanged)
	}
	return deleted, nil
}
