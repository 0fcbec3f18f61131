// Package sqlstore implements driver.Store with PostgreSQL SQL shared by the
// pgx/v5 and database/sql drivers.
//
// The store never talks to a connection pool directly. Each call resolves a
// driver.Executor: the transaction stored in the context by
// driver.WithExecutor if present, otherwise the driver's pool executor.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/youssefsiam38/activitypg/driver"
)

// ExecutorSource provides the default (non-transactional) executor.
type ExecutorSource interface {
	GetExecutor() driver.Executor
}

// Store implements driver.Store on top of a driver.Executor.
type Store struct {
	source ExecutorSource
}

// New creates a new Store using the given executor source.
func New(source ExecutorSource) *Store {
	return &Store{source: source}
}

// getExecutor returns the executor from context if present, otherwise the default pool executor.
func (s *Store) getExecutor(ctx context.Context) driver.Executor {
	if exec := driver.ExecutorFromContext(ctx); exec != nil {
		return exec
	}
	return s.source.GetExecutor()
}

// notFound maps driver.ErrNoRows to driver.ErrNotFound with the entity name attached.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, driver.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", driver.ErrNotFound, entity, id)
	}
	return err
}

// whereBuilder accumulates AND-ed conditions with numbered placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

// add appends a condition. Each "?" in clause is replaced by the next $N placeholder.
func (w *whereBuilder) add(clause string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

// next returns the placeholder for an argument appended after the conditions.
func (w *whereBuilder) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

// likePattern escapes LIKE wildcards and wraps the term for substring matching.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// orderClause renders an ORDER BY clause from whitelisted columns.
// Unknown columns fall back to the default; the id tie-breaker keeps
// offset pagination stable across equal sort keys.
func orderClause(orderBy, orderDir string, allowed map[string]bool, defaultColumn string) string {
	column := defaultColumn
	if allowed[orderBy] {
		column = orderBy
	}
	dir := "DESC"
	if strings.EqualFold(orderDir, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", column, dir, dir)
}

// limitOffset appends LIMIT/OFFSET placeholders when a limit is set.
func limitOffset(w *whereBuilder, limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	clause := "LIMIT " + w.next(limit)
	if offset > 0 {
		clause += " OFFSET " + w.next(offset)
	}
	return clause
}

// Compile-time check
var _ driver.Store = (*Store)(nil)
