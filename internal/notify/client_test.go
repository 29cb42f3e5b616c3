package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/whatsport/notification-core/internal/config"
)

func pollingConfig() *config.Config {
	return &config.Config{
		FeedTransport:      config.FeedTransportPolling,
		FeedPollInterval:   5 * time.Millisecond,
		FeedSnapshotLimit:  50,
		ReconcilerTimeout:  3 * time.Second,
		MarkAllParallelism: 4,
	}
}

func TestNewFeedSourceSelectsTransport(t *testing.T) {
	backend := newBackendEmulator()

	source, err := NewFeedSource(pollingConfig(), backend, nil)
	if err != nil {
		t.Fatalf("Failed to build polling source: %v", err)
	}
	if got := source.Name(); got != "polling" {
		t.Errorf("Expected polling source, got %s", got)
	}

	cfg := pollingConfig()
	cfg.FeedTransport = config.FeedTransportFirestore
	if _, err := NewFeedSource(cfg, backend, nil); err == nil {
		t.Error("Expected error for firestore transport without a client")
	}

	cfg.FeedTransport = "carrier-pigeon"
	if _, err := NewFeedSource(cfg, backend, nil); err == nil {
		t.Error("Expected error for unknown transport")
	}
}

func TestNewCoreAppliesReconcilerConfig(t *testing.T) {
	cfg := pollingConfig()
	cfg.ReconcilerRollback = true

	core, err := NewCore(cfg, newBackendEmulator(), nil, log)
	if err != nil {
		t.Fatalf("Failed to build core: %v", err)
	}

	if !core.Reconciler.rollback {
		t.Error("Expected rollback enabled from config")
	}
	if core.Reconciler.timeout != 3*time.Second {
		t.Errorf("Expected write timeout 3s, got %v", core.Reconciler.timeout)
	}
	if core.Reconciler.parallelism != 4 {
		t.Errorf("Expected parallelism 4, got %d", core.Reconciler.parallelism)
	}
}

func TestCoreRollbackDrivenByConfig(t *testing.T) {
	cfg := pollingConfig()
	cfg.ReconcilerRollback = true

	backend := newBackendEmulator()
	backend.seed(makeNotification("n1", 10, false))

	core, err := NewCore(cfg, backend, nil, log)
	if err != nil {
		t.Fatalf("Failed to build core: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := core.Feed.Start(ctx, "user-a"); err != nil {
		t.Fatalf("Failed to start feed: %v", err)
	}
	defer core.Feed.Stop()

	waitFor(t, func() bool { return core.Store.Len() == 1 }, "store never synchronized")

	backend.mu.Lock()
	backend.failMarkRead["n1"] = errors.New("backend unavailable")
	backend.mu.Unlock()

	if err := core.Reconciler.MarkAsRead(ctx, "n1"); err == nil {
		t.Fatal("Expected error from failed write")
	}
	if got := core.Store.UnreadCount(); got != 1 {
		t.Errorf("Expected unread count restored to 1, got %d", got)
	}
}
