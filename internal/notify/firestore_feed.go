package notify

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FirestoreSource implements FeedSource as a live Firestore listener on
// the user's notification query. Document changes push new snapshots the
// moment they commit; there is no polling interval.
type FirestoreSource struct {
	client *firestore.Client
	limit  int

	// retryWait is how long to wait before re-establishing a broken
	// listener. Matches the polling cadence rather than backing off.
	retryWait time.Duration
}

// NewFirestoreSource creates a live-listener feed source.
func NewFirestoreSource(client *firestore.Client, limit int) *FirestoreSource {
	if limit <= 0 {
		limit = DefaultRetainLimit
	}
	return &FirestoreSource{
		client:    client,
		limit:     limit,
		retryWait: 30 * time.Second,
	}
}

func (f *FirestoreSource) Name() string { return "firestore" }

// Run listens for query snapshots until ctx is canceled. A broken listener
// is surfaced as a recoverable error and re-established after retryWait.
func (f *FirestoreSource) Run(ctx context.Context, userID string, deliver func(Snapshot), onError func(error)) {
	query := f.client.Collection(notificationsCollection).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc).
		Limit(f.limit)

	for ctx.Err() == nil {
		f.listen(ctx, query, deliver, onError)

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.retryWait):
		}
	}
}

// listen consumes one snapshot iterator until it breaks or ctx ends.
func (f *FirestoreSource) listen(ctx context.Context, query firestore.Query, deliver func(Snapshot), onError func(error)) {
	it := query.Snapshots(ctx)
	defer it.Stop()

	for {
		qsnap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			onError(err)
			return
		}

		snap, err := decodeSnapshot(qsnap.Documents, qsnap.Size)
		if err != nil {
			// A truncated snapshot must not replace the list wholesale.
			if ctx.Err() != nil {
				return
			}
			onError(err)
			return
		}

		if ctx.Err() != nil {
			return
		}
		deliver(snap)
	}
}

// docIterator is the slice of firestore's document iterator the decode
// loop needs.
type docIterator interface {
	Next() (*firestore.DocumentSnapshot, error)
}

// decodeSnapshot drains one query snapshot into a Snapshot. An iterator
// error mid-stream fails the whole snapshot; a malformed document is
// skipped rather than poisoning it.
func decodeSnapshot(docs docIterator, size int) (Snapshot, error) {
	entries := make([]Notification, 0, size)
	for {
		doc, err := docs.Next()
		if err == iterator.Done {
			return Snapshot(entries), nil
		}
		if err != nil {
			return nil, err
		}
		n, err := notificationFromDoc(doc)
		if err != nil {
			continue
		}
		entries = append(entries, n)
	}
}
