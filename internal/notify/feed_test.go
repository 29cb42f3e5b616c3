package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", msg)
}

func TestPollingSourceDeliversSnapshots(t *testing.T) {
	backend := newBackendEmulator()
	backend.seed(makeNotification("n1", 10, false))

	source := NewPollingSource(backend, 5*time.Millisecond, DefaultRetainLimit)
	if source.Name() != "polling" {
		t.Errorf("Expected transport name polling, got %s", source.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	snapshots := make(chan Snapshot, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		source.Run(ctx, "user-a", func(snap Snapshot) {
			select {
			case snapshots <- snap:
			default:
			}
		}, func(err error) {
			t.Errorf("Unexpected transport error: %v", err)
		})
	}()

	select {
	case snap := <-snapshots:
		if len(snap) != 1 || snap[0].ID != "n1" {
			t.Errorf("Expected snapshot with n1, got %v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for first snapshot")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for Run to return after cancel")
	}
}

func TestSubscriptionKeepsStoreSynchronized(t *testing.T) {
	backend := newBackendEmulator()
	backend.seed(
		makeNotification("n1", 10, false),
		makeNotification("n2", 20, true),
	)

	store := NewStore(DefaultRetainLimit, log)
	sub := NewSubscription(NewPollingSource(backend, 5*time.Millisecond, DefaultRetainLimit), store, log)

	if err := sub.Start(context.Background(), "user-a"); err != nil {
		t.Fatalf("Failed to start subscription: %v", err)
	}

	waitFor(t, func() bool { return store.Len() == 2 }, "snapshot to land in store")
	if got := store.UnreadCount(); got != 1 {
		t.Errorf("Expected unread count 1, got %d", got)
	}

	sub.Stop()
	if store.Ready() {
		t.Error("Expected store reset after stop")
	}

	// No snapshot lands after teardown.
	time.Sleep(25 * time.Millisecond)
	if got := store.Len(); got != 0 {
		t.Errorf("Expected no entries after stop, got %d", got)
	}
}

func TestSubscriptionStartWithEmptyUser(t *testing.T) {
	store := NewStore(DefaultRetainLimit, log)
	sub := NewSubscription(NewPollingSource(newBackendEmulator(), time.Millisecond, DefaultRetainLimit), store, log)

	if err := sub.Start(context.Background(), ""); err != ErrNotAuthenticated {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSubscriptionUserSwitch(t *testing.T) {
	backend := newBackendEmulator()
	backend.seed(makeNotification("n1", 10, false))

	other := makeNotification("n-b", 5, false)
	other.UserID = "user-b"
	backend.seed(other)

	store := NewStore(DefaultRetainLimit, log)
	sub := NewSubscription(NewPollingSource(backend, 5*time.Millisecond, DefaultRetainLimit), store, log)

	if err := sub.Start(context.Background(), "user-a"); err != nil {
		t.Fatalf("Failed to start for user-a: %v", err)
	}
	waitFor(t, func() bool { return store.Len() == 1 }, "user-a snapshot")

	// Switching users restarts the stream against a clean store.
	if err := sub.Start(context.Background(), "user-b"); err != nil {
		t.Fatalf("Failed to switch to user-b: %v", err)
	}
	if got := store.UserID(); got != "user-b" {
		t.Errorf("Expected store bound to user-b, got %s", got)
	}

	waitFor(t, func() bool { return store.Len() == 1 }, "user-b snapshot")
	entries := store.List(Filter{})
	for _, n := range entries {
		if n.UserID != "user-b" {
			t.Errorf("Expected only user-b entries after switch, got %s owned by %s", n.ID, n.UserID)
		}
	}

	sub.Stop()
}

func TestSubscriptionErrorFlagRecovers(t *testing.T) {
	backend := newBackendEmulator()
	backend.seed(makeNotification("n1", 10, false))
	backend.listErr = errors.New("backend unavailable")

	store := NewStore(DefaultRetainLimit, log)
	sub := NewSubscription(NewPollingSource(backend, 5*time.Millisecond, DefaultRetainLimit), store, log)

	if err := sub.Start(context.Background(), "user-a"); err != nil {
		t.Fatalf("Failed to start subscription: %v", err)
	}
	defer sub.Stop()

	waitFor(t, func() bool { return sub.Erroring() }, "error flag to be set")

	// Recovery: polling keeps its cadence, and the next good snapshot
	// clears the flag.
	backend.mu.Lock()
	backend.listErr = nil
	backend.mu.Unlock()

	waitFor(t, func() bool { return !sub.Erroring() && store.Len() == 1 }, "error flag to clear")
}
