package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/whatsport/notification-core/internal/logger"
)

// FeedSource is a feed change stream: it delivers full snapshots of a
// user's notification list until its context is canceled. The two
// implementations (Firestore live listener, interval polling) are
// interchangeable; deployment config picks one.
type FeedSource interface {
	// Name identifies the transport in logs and metrics.
	Name() string

	// Run blocks, invoking deliver for every new snapshot and onError for
	// recoverable transport errors, until ctx is canceled. Transport
	// errors do not stop the stream; Run keeps attempting on its normal
	// cadence.
	Run(ctx context.Context, userID string, deliver func(Snapshot), onError func(error))
}

// Subscription keeps a Store synchronized with the backend feed for one
// user at a time. Switching users tears down the previous stream before
// the new one starts; no snapshot is delivered after teardown.
type Subscription struct {
	source FeedSource
	store  *Store
	logger *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	userID string

	errored atomic.Bool
}

// NewSubscription creates a subscription feeding the given store.
func NewSubscription(source FeedSource, store *Store, log *logger.Logger) *Subscription {
	return &Subscription{
		source: source,
		store:  store,
		logger: log.WithComponent("feed-subscription"),
	}
}

// Start begins streaming for userID. Any stream for a previous user is
// stopped, and its goroutine fully drained, before the store is
// re-initialized for the new user.
func (s *Subscription) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if err := s.store.Initialize(userID); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.userID = userID
	s.errored.Store(false)

	go func() {
		defer close(done)
		s.source.Run(runCtx, userID, s.apply, s.onError)
	}()

	s.logger.Info("feed subscription started",
		slog.String("transport", s.source.Name()),
		slog.String("user_id", userID))
	return nil
}

// Stop tears down the active stream and waits for its goroutine to exit,
// then resets the store. Safe to call repeatedly.
func (s *Subscription) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.store.Reset()
}

func (s *Subscription) stopLocked() {
	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done

	s.logger.Info("feed subscription stopped",
		slog.String("user_id", s.userID))

	s.cancel = nil
	s.done = nil
	s.userID = ""
}

// Erroring reports whether the last transport attempt failed. Cleared by
// the next successful snapshot.
func (s *Subscription) Erroring() bool {
	return s.errored.Load()
}

func (s *Subscription) apply(snap Snapshot) {
	if err := s.store.ApplySnapshot(snap); err != nil {
		s.logger.Error("failed to apply snapshot",
			slog.String("error", err.Error()))
		return
	}

	s.errored.Store(false)
	snapshotsAppliedTotal.WithLabelValues(s.source.Name()).Inc()
}

func (s *Subscription) onError(err error) {
	s.errored.Store(true)
	feedErrorsTotal.WithLabelValues(s.source.Name()).Inc()
	s.logger.Warn("feed transport error",
		slog.String("transport", s.source.Name()),
		slog.String("error", err.Error()))
}
