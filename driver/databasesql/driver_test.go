package databasesql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/driver/drivertest"
	"github.com/youssefsiam38/activitypg/internal/testutil"
)

func newTestDriver(t *testing.T) (*Driver, *testutil.TestDB) {
	t.Helper()
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	drv, err := Open(db.URL)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = drv.Close() })
	return drv, db
}

func TestIntegration_Store(t *testing.T) {
	drv, db := newTestDriver(t)

	drivertest.RunStoreTests(t, func(t *testing.T) driver.Store {
		if err := db.CleanTables(context.Background()); err != nil {
			t.Fatalf("Failed to clean tables: %v", err)
		}
		return drv.GetStore()
	})
}

func TestIntegration_SavepointRollback(t *testing.T) {
	drv, db := newTestDriver(t)
	ctx := context.Background()
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("Failed to clean tables: %v", err)
	}
	store := drv.GetStore()

	tx, err := drv.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback(ctx)

	outer, err := store.CreateUser(driver.WithExecutor(ctx, tx), driver.CreateUserParams{Email: "outer@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	nested, err := tx.Begin(ctx)
	if err != nil {
		t.Fatalf("nested Begin failed: %v", err)
	}
	inner, err := store.CreateUser(driver.WithExecutor(ctx, nested), driver.CreateUserParams{Email: "inner@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := nested.Rollback(ctx); err != nil {
		t.Fatalf("savepoint Rollback failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, err := store.GetUser(ctx, outer.ID); err != nil {
		t.Errorf("Expected outer user to be committed, got %v", err)
	}
	if _, err := store.GetUser(ctx, inner.ID); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("Expected inner user to be rolled back, got %v", err)
	}
}

func TestIntegration_ListenNotify(t *testing.T) {
	drv, _ := newTestDriver(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	listener, err := drv.GetListener(ctx)
	if err != nil {
		t.Fatalf("GetListener failed: %v", err)
	}
	defer listener.Close(ctx)

	if err := listener.Listen(ctx, driver.ChannelTodoChanged); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if err := drv.GetNotifier().Notify(ctx, driver.ChannelTodoChanged, "payload"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	n, err := listener.WaitForNotification(ctx)
	if err != nil {
		t.Fatalf("WaitForNotification failed: %v", err)
	}
	if n.Channel != driver.ChannelTodoChanged || n.Payload != "payload" {
		t.Errorf("Unexpected notification: %+v", n)
	}
}

func TestDriver_WithoutConnString(t *testing.T) {
	drv := New(nil, "")
	if drv.SupportsListener() {
		t.Error("Expected SupportsListener to be false without a connection string")
	}
	if drv.PoolIsSet() {
		t.Error("Expected PoolIsSet to be false for a nil DB")
	}
	if _, err := drv.GetListener(context.Background()); err == nil {
		t.Error("Expected GetListener to fail without a connection string")
	}
}
