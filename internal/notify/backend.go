package notify

import "context"

// Backend is the persistence contract the notification core consumes.
// Two interchangeable implementations exist: Firestore (live-capable) and
// Postgres (poll-only). Constructed explicitly and injected; there is no
// package-level client.
type Backend interface {
	// ListNotifications returns the newest notifications for a user,
	// ordered by creation time descending, at most limit entries.
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)

	// MarkRead sets the read flag on the given notifications. Marking an
	// already-read notification is a no-op, not an error.
	MarkRead(ctx context.Context, userID string, ids []string) error

	// Delete removes a notification. Deleting an absent id returns
	// ErrNotFound.
	Delete(ctx context.Context, userID string, id string) error

	// Create persists a new notification and assigns its ID if empty.
	Create(ctx context.Context, n *Notification) error
}
