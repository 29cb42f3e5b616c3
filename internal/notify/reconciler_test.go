package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// backendEmulator is an in-memory Backend for exercising the reconciler
// and the polling feed without a real store behind them.
type backendEmulator struct {
	mu            sync.Mutex
	entries       map[string]*Notification
	markReadCalls int
	failMarkRead  map[string]error
	failDelete    error
	listErr       error
}

func newBackendEmulator() *backendEmulator {
	return &backendEmulator{
		entries:      make(map[string]*Notification),
		failMarkRead: make(map[string]error),
	}
}

func (b *backendEmulator) seed(entries ...Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range entries {
		n := entries[i]
		b.entries[n.ID] = &n
	}
}

func (b *backendEmulator) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listErr != nil {
		return nil, b.listErr
	}

	out := make([]Notification, 0, len(b.entries))
	for _, n := range b.entries {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (b *backendEmulator) MarkRead(ctx context.Context, userID string, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.markReadCalls++
	for _, id := range ids {
		if err, bad := b.failMarkRead[id]; bad {
			return err
		}
		if n, ok := b.entries[id]; ok {
			n.Read = true
		}
	}
	return nil
}

func (b *backendEmulator) Delete(ctx context.Context, userID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failDelete != nil {
		return b.failDelete
	}
	if _, ok := b.entries[id]; !ok {
		return ErrNotFound
	}
	delete(b.entries, id)
	return nil
}

func (b *backendEmulator) Create(ctx context.Context, n *Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n.ID == "" {
		n.ID = fmt.Sprintf("generated-%d", len(b.entries)+1)
	}
	if _, exists := b.entries[n.ID]; exists {
		return nil
	}
	copied := *n
	b.entries[n.ID] = &copied
	return nil
}

func (b *backendEmulator) isRead(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.entries[id]
	return ok && n.Read
}

func newReconcilerFixture(t *testing.T, rollback bool, entries ...Notification) (*Store, *backendEmulator, *Reconciler) {
	t.Helper()

	store := newTestStore(t)
	if err := store.ApplySnapshot(Snapshot(entries)); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	backend := newBackendEmulator()
	backend.seed(entries...)

	rec := NewReconciler(store, backend, log, ReconcilerOptions{RollbackOnFailure: rollback})
	return store, backend, rec
}

func TestMarkAsReadWritesThrough(t *testing.T) {
	store, backend, rec := newReconcilerFixture(t, false,
		makeNotification("n1", 10, false),
		makeNotification("n2", 20, false),
	)

	if err := rec.MarkAsRead(context.Background(), "n1"); err != nil {
		t.Fatalf("Failed to mark as read: %v", err)
	}

	if got := store.UnreadCount(); got != 1 {
		t.Errorf("Expected unread count 1, got %d", got)
	}
	if !backend.isRead("n1") {
		t.Error("Expected backend entry n1 to be read")
	}

	// Marking again is a no-op on the count.
	if err := rec.MarkAsRead(context.Background(), "n1"); err != nil {
		t.Fatalf("Second mark failed: %v", err)
	}
	if got := store.UnreadCount(); got != 1 {
		t.Errorf("Expected unread count unchanged at 1, got %d", got)
	}
}

func TestMarkAsReadUnknownID(t *testing.T) {
	_, backend, rec := newReconcilerFixture(t, false, makeNotification("n1", 10, false))

	if err := rec.MarkAsRead(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if backend.markReadCalls != 0 {
		t.Errorf("Expected no backend writes for unknown id, got %d", backend.markReadCalls)
	}
}

func TestMarkAsReadWriteFailureStaysOptimistic(t *testing.T) {
	store, backend, rec := newReconcilerFixture(t, false, makeNotification("n1", 10, false))
	backend.failMarkRead["n1"] = errors.New("backend unavailable")

	if err := rec.MarkAsRead(context.Background(), "n1"); err == nil {
		t.Fatal("Expected error from failed write")
	}

	// Without rollback the optimistic patch stands until the next snapshot.
	if got := store.UnreadCount(); got != 0 {
		t.Errorf("Expected unread count 0 without rollback, got %d", got)
	}
}

func TestMarkAsReadWriteFailureRollsBack(t *testing.T) {
	store, backend, rec := newReconcilerFixture(t, true, makeNotification("n1", 10, false))
	backend.failMarkRead["n1"] = errors.New("backend unavailable")

	if err := rec.MarkAsRead(context.Background(), "n1"); err == nil {
		t.Fatal("Expected error from failed write")
	}

	if got := store.UnreadCount(); got != 1 {
		t.Errorf("Expected unread count restored to 1, got %d", got)
	}
}

func TestMarkAllAsRead(t *testing.T) {
	store, backend, rec := newReconcilerFixture(t, false,
		makeNotification("n1", 10, false),
		makeNotification("n2", 20, false),
		makeNotification("n3", 30, false),
		makeNotification("n4", 40, true),
	)

	if err := rec.MarkAllAsRead(context.Background()); err != nil {
		t.Fatalf("Failed to mark all as read: %v", err)
	}

	if got := store.UnreadCount(); got != 0 {
		t.Errorf("Expected unread count 0, got %d", got)
	}
	for _, id := range []string{"n1", "n2", "n3"} {
		if !backend.isRead(id) {
			t.Errorf("Expected backend entry %s to be read", id)
		}
	}
}

func TestMarkAllAsReadNoUnread(t *testing.T) {
	_, backend, rec := newReconcilerFixture(t, false, makeNotification("n1", 10, true))

	if err := rec.MarkAllAsRead(context.Background()); err != nil {
		t.Fatalf("Expected nil for no unread entries, got %v", err)
	}
	if backend.markReadCalls != 0 {
		t.Errorf("Expected no backend writes, got %d", backend.markReadCalls)
	}
}

func TestMarkAllAsReadPartialFailure(t *testing.T) {
	store, backend, rec := newReconcilerFixture(t, false,
		makeNotification("n1", 10, false),
		makeNotification("n2", 20, false),
		makeNotification("n3", 30, false),
	)
	backend.failMarkRead["n2"] = errors.New("backend unavailable")

	err := rec.MarkAllAsRead(context.Background())
	if err == nil {
		t.Fatal("Expected partial failure error")
	}

	var partial *PartialFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("Expected PartialFailureError, got %T: %v", err, err)
	}
	if len(partial.FailedIDs) != 1 || partial.Total != 3 {
		t.Errorf("Expected 1 of 3 failed, got %d of %d", len(partial.FailedIDs), partial.Total)
	}
	if _, ok := partial.FailedIDs["n2"]; !ok {
		t.Errorf("Expected n2 among failed ids, got %v", partial.FailedIDs)
	}

	// The succeeded writes are patched locally; the failed one stays unread.
	if got := store.UnreadCount(); got != 1 {
		t.Errorf("Expected unread count 1 after partial failure, got %d", got)
	}
}

// TestMarkAsReadConvergesAfterStaleSnapshot chains a single store through
// the full read-state lifecycle: a targeted read, a stale server snapshot
// undoing it, then a mark-all bringing the backend and the store to zero
// unread.
func TestMarkAsReadConvergesAfterStaleSnapshot(t *testing.T) {
	entries := []Notification{
		makeNotification("n1", 10, false),
		makeNotification("n2", 20, false),
		makeNotification("n3", 30, false),
		makeNotification("n4", 40, true),
		makeNotification("n5", 50, true),
	}
	store, backend, rec := newReconcilerFixture(t, false, entries...)

	if err := rec.MarkAsRead(context.Background(), "n1"); err != nil {
		t.Fatalf("Failed to mark as read: %v", err)
	}
	if got := store.UnreadCount(); got != 2 {
		t.Fatalf("Expected unread count 2 after targeted read, got %d", got)
	}

	// A snapshot captured before the write reaches the client late. The
	// server list replaces the local state wholesale, so the read reverts
	// until a fresh snapshot arrives.
	if err := store.ApplySnapshot(Snapshot(entries)); err != nil {
		t.Fatalf("Failed to apply stale snapshot: %v", err)
	}
	if got := store.UnreadCount(); got != 3 {
		t.Fatalf("Expected unread count 3 after stale snapshot, got %d", got)
	}

	if err := rec.MarkAllAsRead(context.Background()); err != nil {
		t.Fatalf("Failed to mark all as read: %v", err)
	}
	if got := store.UnreadCount(); got != 0 {
		t.Errorf("Expected unread count 0 after mark all, got %d", got)
	}

	// The backend now agrees, so the next snapshot keeps the count at zero.
	fresh, err := backend.ListNotifications(context.Background(), "user-a", 50)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if err := store.ApplySnapshot(Snapshot(fresh)); err != nil {
		t.Fatalf("Failed to apply fresh snapshot: %v", err)
	}
	if got := store.UnreadCount(); got != 0 {
		t.Errorf("Expected unread count 0 after fresh snapshot, got %d", got)
	}
}

func TestDeleteRemovesLocallyAndRemotely(t *testing.T) {
	store, backend, rec := newReconcilerFixture(t, false,
		makeNotification("n1", 10, false),
		makeNotification("n2", 20, true),
	)

	if err := rec.Delete(context.Background(), "n1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	if got := store.Len(); got != 1 {
		t.Errorf("Expected 1 entry after delete, got %d", got)
	}
	if got := store.UnreadCount(); got != 0 {
		t.Errorf("Expected unread count 0, got %d", got)
	}
	if _, err := backend.ListNotifications(context.Background(), "user-a", 50); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if backend.isRead("n1") {
		t.Error("Expected backend entry n1 to be gone")
	}
}

func TestDeleteNotFoundOnBackendIsSuccess(t *testing.T) {
	store, backend, rec := newReconcilerFixture(t, true, makeNotification("n1", 10, false))

	// Simulate the entry having been deleted from another device already.
	if err := backend.Delete(context.Background(), "user-a", "n1"); err != nil {
		t.Fatalf("Setup delete failed: %v", err)
	}

	if err := rec.Delete(context.Background(), "n1"); err != nil {
		t.Errorf("Expected backend not-found to count as success, got %v", err)
	}
	if got := store.Len(); got != 0 {
		t.Errorf("Expected entry removed locally, got %d entries", got)
	}
}

func TestDeleteFailureRollsBack(t *testing.T) {
	store, backend, rec := newReconcilerFixture(t, true, makeNotification("n1", 10, false))
	backend.failDelete = errors.New("backend unavailable")

	if err := rec.Delete(context.Background(), "n1"); err == nil {
		t.Fatal("Expected error from failed delete")
	}

	if got := store.Len(); got != 1 {
		t.Errorf("Expected entry restored after rollback, got %d entries", got)
	}
	if got := store.UnreadCount(); got != 1 {
		t.Errorf("Expected unread count restored to 1, got %d", got)
	}
}
