package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
)

const userColumns = `id, email, full_name, password_hash, created_at`

func scanUser(row scanner) (*driver.User, error) {
	var u driver.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts an account. Emails are stored lower-cased; a duplicate
// email surfaces as driver.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, params driver.CreateUserParams) (*driver.User, error) {
	query := `
		INSERT INTO activitypg_users (id, email, full_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + userColumns

	user, err := scanUser(s.getExecutor(ctx).QueryRow(ctx, query,
		uuid.New(), strings.ToLower(params.Email), params.FullName, params.PasswordHash))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves an account by ID.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*driver.User, error) {
	user, err := scanUser(s.getExecutor(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM activitypg_users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return user, nil
}

// GetUserByEmail retrieves an account by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*driver.User, error) {
	user, err := scanUser(s.getExecutor(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM activitypg_users WHERE email = $1`, strings.ToLower(email)))
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return user, nil
}

// CreateAuthSession stores a bearer session. CreatedAt is set when zero.
func (s *Store) CreateAuthSession(ctx context.Context, session *driver.AuthSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	_, err := s.getExecutor(ctx).Exec(ctx, `
		INSERT INTO activitypg_auth_sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`,
		session.Token, session.UserID, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create auth session: %w", err)
	}
	return nil
}

// GetAuthSession retrieves a session by token. Expired sessions are returned
// as-is; callers check AuthSession.Expired.
func (s *Store) GetAuthSession(ctx context.Context, token string) (*driver.AuthSession, error) {
	var a driver.AuthSession
	err := s.getExecutor(ctx).QueryRow(ctx,
		`SELECT token, user_id, expires_at, created_at FROM activitypg_auth_sessions WHERE token = $1`, token,
	).Scan(&a.Token, &a.UserID, &a.ExpiresAt, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "auth session", "<redacted>")
	}
	return &a, nil
}

// DeleteAuthSession removes a session by token.
func (s *Store) DeleteAuthSession(ctx context.Context, token string) (bool, error) {
	affected, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM activitypg_auth_sessions WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("failed to delete auth session: %w", err)
	}
	return affected > 0, nil
}

// DeleteExpiredAuthSessions removes sessions that expired before the given
// time and returns the owning user IDs.
func (s *Store) DeleteExpiredAuthSessions(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	rows, err := s.getExecutor(ctx).Query(ctx,
		`DELETE FROM activitypg_auth_sessions WHERE expires_at < $1 RETURNING user_id`, before)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired auth sessions: %w", err)
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired sessions: %w", err)
	}
	return userIDs, nil
}
