package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whatsport/notification-core/internal/logger"
)

// Reconciler translates user intents (mark one read, mark all read, delete
// one) into backend writes with optimistic local effect. The local patch is
// applied before the write; whether a failed write rolls the patch back is
// a deployment choice. Without rollback the store stays optimistic until
// the next feed snapshot corrects it, which is the system's consistency
// guarantee either way.
//
// Operations may be invoked concurrently. Writes for different ids are
// independent; two in-flight writes for the same id are last-write-wins at
// the store.
type Reconciler struct {
	store       *Store
	backend     Backend
	logger      *logger.Logger
	rollback    bool
	timeout     time.Duration
	parallelism int
}

// ReconcilerOptions tunes write behavior.
type ReconcilerOptions struct {
	// RollbackOnFailure reverts the optimistic local patch when the
	// backend write fails.
	RollbackOnFailure bool

	// WriteTimeout bounds each backend write. Zero means 10 seconds.
	WriteTimeout time.Duration

	// MarkAllParallelism caps concurrent per-id writes in MarkAllAsRead.
	// Zero means 8.
	MarkAllParallelism int
}

// NewReconciler creates a reconciler bound to a store and backend.
func NewReconciler(store *Store, backend Backend, log *logger.Logger, opts ReconcilerOptions) *Reconciler {
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	parallelism := opts.MarkAllParallelism
	if parallelism <= 0 {
		parallelism = 8
	}

	return &Reconciler{
		store:       store,
		backend:     backend,
		logger:      log.WithComponent("reconciler"),
		rollback:    opts.RollbackOnFailure,
		timeout:     timeout,
		parallelism: parallelism,
	}
}

// MarkAsRead optimistically flags the entry read, then writes through.
// Idempotent: marking an already-read entry never moves the unread count.
func (r *Reconciler) MarkAsRead(ctx context.Context, id string) error {
	wasUnread := false
	err := r.store.ApplyLocalPatch(id, func(n *Notification) {
		wasUnread = !n.Read
		n.Read = true
	})
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.backend.MarkRead(writeCtx, r.store.UserID(), []string{id}); err != nil {
		reconcilerWritesTotal.WithLabelValues("mark_read", "failure").Inc()
		r.logger.Error("mark-as-read write failed",
			slog.String("notification_id", id),
			slog.Bool("rolled_back", r.rollback && wasUnread),
			slog.String("error", err.Error()))

		if r.rollback && wasUnread {
			// Restore the unread flag; ErrNotFound here means a snapshot
			// replaced the entry meanwhile, and the snapshot wins.
			_ = r.store.ApplyLocalPatch(id, func(n *Notification) { n.Read = false })
		}
		return fmt.Errorf("mark as read %s: %w", id, err)
	}

	reconcilerWritesTotal.WithLabelValues("mark_read", "success").Inc()
	return nil
}

// MarkAllAsRead marks every currently-unread entry read. The unread set is
// fixed at call time; per-id writes run in parallel and are independent.
// Entries whose write succeeded are patched read locally even when others
// fail, in which case a PartialFailureError names the failures.
func (r *Reconciler) MarkAllAsRead(ctx context.Context) error {
	unread := r.store.List(Filter{UnreadOnly: true})
	if len(unread) == 0 {
		return nil
	}

	userID := r.store.UserID()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	sem := make(chan struct{}, r.parallelism)

	for i := range unread {
		id := unread[i].ID
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			writeCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			if err := r.backend.MarkRead(writeCtx, userID, []string{id}); err != nil {
				mu.Lock()
				failed[id] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Apply local patches only after all writes settled, and only for the
	// ids that were actually written.
	for i := range unread {
		id := unread[i].ID
		if _, bad := failed[id]; bad {
			continue
		}
		_ = r.store.ApplyLocalPatch(id, func(n *Notification) { n.Read = true })
		reconcilerWritesTotal.WithLabelValues("mark_all_read", "success").Inc()
	}

	if len(failed) > 0 {
		for id, err := range failed {
			reconcilerWritesTotal.WithLabelValues("mark_all_read", "failure").Inc()
			r.logger.Error("mark-all-as-read write failed",
				slog.String("notification_id", id),
				slog.String("error", err.Error()))
		}
		return &PartialFailureError{FailedIDs: failed, Total: len(unread)}
	}

	return nil
}

// Delete removes the entry locally, then from the backend. A backend
// ErrNotFound counts as success: the entry is already gone.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	removed, err := r.store.Remove(id)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.backend.Delete(writeCtx, r.store.UserID(), id); err != nil && !errors.Is(err, ErrNotFound) {
		reconcilerWritesTotal.WithLabelValues("delete", "failure").Inc()
		r.logger.Error("delete write failed",
			slog.String("notification_id", id),
			slog.Bool("rolled_back", r.rollback),
			slog.String("error", err.Error()))

		if r.rollback {
			_ = r.store.Restore(removed)
		}
		return fmt.Errorf("delete %s: %w", id, err)
	}

	reconcilerWritesTotal.WithLabelValues("delete", "success").Inc()
	return nil
}
