package sqlstore

import (
	"context"
	"fmt"
)

// Schema creates every table used by the store. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS activitypg_users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		full_name     TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS activitypg_auth_sessions (
		token      TEXT PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES activitypg_users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS activitypg_auth_sessions_expires_idx
		ON activitypg_auth_sessions (expires_at)`,
	`CREATE TABLE IF NOT EXISTS activitypg_profiles (
		id         UUID PRIMARY KEY REFERENCES activitypg_users(id) ON DELETE CASCADE,
		full_name  TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS activitypg_notes (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES activitypg_users(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS activitypg_notes_user_updated_idx
		ON activitypg_notes (user_id, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS activitypg_todos (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES activitypg_users(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		level      TEXT NOT NULL DEFAULT 'low' CHECK (level IN ('low', 'medium', 'high')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS activitypg_todos_user_created_idx
		ON activitypg_todos (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS activitypg_photos (
		id          UUID PRIMARY KEY,
		user_id     UUID NOT NULL REFERENCES activitypg_users(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT '',
		object_key  TEXT NOT NULL,
		upload_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS activitypg_photos_user_category_idx
		ON activitypg_photos (user_id, category)`,
	`CREATE TABLE IF NOT EXISTS activitypg_reviews (
		id         UUID PRIMARY KEY,
		photo_id   UUID NOT NULL REFERENCES activitypg_photos(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL REFERENCES activitypg_users(id) ON DELETE CASCADE,
		content    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS activitypg_reviews_photo_idx
		ON activitypg_reviews (photo_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS activitypg_leader (
		name       TEXT PRIMARY KEY,
		leader_id  TEXT NOT NULL,
		elected_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Tables lists the tables created by Migrate, children first.
var Tables = []string{
	"activitypg_leader",
	"activitypg_reviews",
	"activitypg_photos",
	"activitypg_todos",
	"activitypg_notes",
	"activitypg_profiles",
	"activitypg_auth_sessions",
	"activitypg_users",
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	exec := s.getExecutor(ctx)
	for i, stmt := range Schema {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
