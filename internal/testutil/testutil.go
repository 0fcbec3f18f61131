// Package testutil provides test utilities for activitypg
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/youssefsiam38/activitypg/driver/sqlstore"
)

// TestDB wraps a PostgreSQL connection pool for testing
type TestDB struct {
	Pool *pgxpool.Pool
	URL  string
}

// NewTestDB creates a test database connection from DATABASE_URL env var.
// The test is skipped if DATABASE_URL is not set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	db := &TestDB{Pool: pool, URL: dbURL}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate database: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// Migrate creates the activitypg tables through the pool.
func (db *TestDB) Migrate(ctx context.Context) error {
	for _, stmt := range sqlstore.Schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (db *TestDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CleanTables truncates all tables for test isolation
func (db *TestDB) CleanTables(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(sqlstore.Tables, ", ")))
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

// SetupTestUser creates a user and returns its ID
func (db *TestDB) SetupTestUser(ctx context.Context, t *testing.T, email string) string {
	t.Helper()

	var userID string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO activitypg_users (id, email, full_name, password_hash, created_at)
		VALUES (gen_random_uuid(), $1, 'Test User', 'x', NOW())
		RETURNING id::text
	`, email).Scan(&userID)

	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}

// RequireIntegration skips the test if not running integration tests
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
}
