package pgxv5

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/driver/drivertest"
	"github.com/youssefsiam38/activitypg/internal/testutil"
)

func TestIntegration_Store(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	drv := New(db.Pool)

	drivertest.RunStoreTests(t, func(t *testing.T) driver.Store {
		if err := db.CleanTables(context.Background()); err != nil {
			t.Fatalf("Failed to clean tables: %v", err)
		}
		return drv.GetStore()
	})
}

func TestIntegration_TransactionRollback(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	ctx := context.Background()
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("Failed to clean tables: %v", err)
	}

	drv := New(db.Pool)
	store := drv.GetStore()

	tx, err := drv.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	txCtx := driver.WithExecutor(ctx, tx)
	user, err := store.CreateUser(txCtx, driver.CreateUserParams{Email: "tx@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	if _, err := store.GetUser(ctx, user.ID); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("Expected rolled back user to be missing, got %v", err)
	}
}

func TestIntegration_ListenNotify(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	drv := New(db.Pool)
	listener, err := drv.GetListener(ctx)
	if err != nil {
		t.Fatalf("GetListener failed: %v", err)
	}
	defer listener.Close(ctx)

	if err := listener.Listen(ctx, driver.ChannelNoteChanged); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if err := drv.GetNotifier().Notify(ctx, driver.ChannelNoteChanged, `{"op":"create"}`); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	n, err := listener.WaitForNotification(ctx)
	if err != nil {
		t.Fatalf("WaitForNotification failed: %v", err)
	}
	if n.Channel != driver.ChannelNoteChanged || n.Payload != `{"op":"create"}` {
		t.Errorf("Unexpected notification: %+v", n)
	}

	if err := listener.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := listener.WaitForNotification(ctx); !errors.Is(err, driver.ErrListenerClosed) {
		t.Errorf("WaitForNotification after Close error = %v, want ErrListenerClosed", err)
	}
}
