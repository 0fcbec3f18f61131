package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/youssefsiam38/activitypg/driver"
)

// LeaderAttemptElect inserts the lease, or takes it over once the previous
// holder let it expire.
func (s *Store) LeaderAttemptElect(ctx context.Context, params *driver.LeaderElectParams) (bool, error) {
	now := time.Now()
	query := `
		INSERT INTO activitypg_leader (name, leader_id, elected_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET leader_id = EXCLUDED.leader_id,
			elected_at = EXCLUDED.elected_at,
			expires_at = EXCLUDED.expires_at
		WHERE activitypg_leader.expires_at < $3
	`
	affected, err := s.getExecutor(ctx).Exec(ctx, query, params.Name, params.LeaderID, now, now.Add(params.TTL))
	if err != nil {
		return false, fmt.Errorf("failed to attempt election: %w", err)
	}
	return affected > 0, nil
}

// LeaderAttemptReelect extends the lease held by params.LeaderID.
func (s *Store) LeaderAttemptReelect(ctx context.Context, params *driver.LeaderElectParams) (bool, error) {
	now := time.Now()
	query := `
		UPDATE activitypg_leader
		SET expires_at = $3
		WHERE name = $1 AND leader_id = $2 AND expires_at >= $4
	`
	affected, err := s.getExecutor(ctx).Exec(ctx, query, params.Name, params.LeaderID, now.Add(params.TTL), now)
	if err != nil {
		return false, fmt.Errorf("failed to attempt reelection: %w", err)
	}
	return affected > 0, nil
}

// LeaderResign deletes the lease if leaderID holds it.
func (s *Store) LeaderResign(ctx context.Context, name, leaderID string) error {
	_, err := s.getExecutor(ctx).Exec(ctx,
		`DELETE FROM activitypg_leader WHERE name = $1 AND leader_id = $2`, name, leaderID)
	if err != nil {
		return fmt.Errorf("failed to resign leadership: %w", err)
	}
	return nil
}
