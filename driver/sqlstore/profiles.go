package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
)

// GetProfile retrieves a profile by user ID.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*driver.Profile, error) {
	var p driver.Profile
	err := s.getExecutor(ctx).QueryRow(ctx,
		`SELECT id, full_name, updated_at FROM activitypg_profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.FullName, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "profile", id)
	}
	return &p, nil
}

// UpsertProfile inserts the profile or updates full_name on conflict.
func (s *Store) UpsertProfile(ctx context.Context, id uuid.UUID, fullName string) (*driver.Profile, error) {
	query := `
		INSERT INTO activitypg_profiles (id, full_name, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    updated_at = NOW()
		RETURNING id, full_name, updated_at`

	var p driver.Profile
	if err := s.getExecutor(ctx).QueryRow(ctx, query, id, fullName).Scan(&p.ID, &p.FullName, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return &p, nil
}
