package notify

import (
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/whatsport/notification-core/internal/config"
	"github.com/whatsport/notification-core/internal/logger"
)

// NewFeedSource picks the feed transport from deployment config. The
// firestore transport needs a live client; polling works against any
// Backend.
func NewFeedSource(cfg *config.Config, backend Backend, client *firestore.Client) (FeedSource, error) {
	switch cfg.FeedTransport {
	case config.FeedTransportFirestore:
		if client == nil {
			return nil, fmt.Errorf("firestore feed transport requires a firestore client")
		}
		return NewFirestoreSource(client, cfg.FeedSnapshotLimit), nil
	case config.FeedTransportPolling:
		return NewPollingSource(backend, cfg.FeedPollInterval, cfg.FeedSnapshotLimit), nil
	default:
		return nil, fmt.Errorf("invalid feed transport %q", cfg.FeedTransport)
	}
}

// Core bundles the per-user synchronization pieces: the store holding the
// current list, the feed subscription keeping it fresh, and the reconciler
// writing read-state intents through. One Core serves one signed-in user
// at a time.
type Core struct {
	Store      *Store
	Feed       *Subscription
	Reconciler *Reconciler
}

// NewCore builds the synchronization core from deployment config: feed
// transport, snapshot cap, and the reconciler's rollback, timeout, and
// parallelism knobs all come from cfg.
func NewCore(cfg *config.Config, backend Backend, client *firestore.Client, log *logger.Logger) (*Core, error) {
	source, err := NewFeedSource(cfg, backend, client)
	if err != nil {
		return nil, err
	}

	store := NewStore(cfg.FeedSnapshotLimit, log)
	return &Core{
		Store: store,
		Feed:  NewSubscription(source, store, log),
		Reconciler: NewReconciler(store, backend, log, ReconcilerOptions{
			RollbackOnFailure:  cfg.ReconcilerRollback,
			WriteTimeout:       cfg.ReconcilerTimeout,
			MarkAllParallelism: cfg.MarkAllParallelism,
		}),
	}, nil
}
