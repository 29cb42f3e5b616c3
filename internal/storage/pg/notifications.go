package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/whatsport/notification-core/internal/notify"
)

// NotificationStore implements notify.Backend on Postgres. It is the
// poll-only counterpart of the Firestore backend: deployments that pick it
// pair it with the polling feed transport.
type NotificationStore struct {
	db *sql.DB
}

// NewNotificationStore creates a Postgres-backed notification store.
func NewNotificationStore(db *Database) *NotificationStore {
	return &NotificationStore{db: db.DB}
}

// ListNotifications returns the user's newest notifications, capped at limit.
func (s *NotificationStore) ListNotifications(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	if userID == "" {
		return nil, notify.ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = notify.DefaultRetainLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, related_id, action_url, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var (
			n         notify.Notification
			rawType   string
			relatedID sql.NullString
			actionURL sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &rawType, &n.Title, &n.Message, &relatedID, &actionURL, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		parsed, err := notify.ParseNotificationType(rawType)
		if err != nil {
			// A row with an unknown tag is skipped rather than poisoning
			// the whole snapshot.
			continue
		}
		n.Type = parsed
		n.RelatedID = relatedID.String
		n.ActionURL = actionURL.String
		out = append(out, n)
	}

	return out, rows.Err()
}

// MarkRead flips the read flag on the given ids. Missing or already-read
// rows are not an error.
func (s *NotificationStore) MarkRead(ctx context.Context, userID string, ids []string) error {
	if userID == "" {
		return notify.ErrNotAuthenticated
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark notifications read for user %s: %w", userID, err)
	}
	return nil
}

// Delete removes a notification owned by the user.
func (s *NotificationStore) Delete(ctx context.Context, userID string, id string) error {
	if userID == "" {
		return notify.ErrNotAuthenticated
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for %s: %w", id, err)
	}
	if affected == 0 {
		return notify.ErrNotFound
	}
	return nil
}

// Create persists a notification, generating an id if absent. Conflicting
// ids are a no-op so retried writes stay idempotent.
func (s *NotificationStore) Create(ctx context.Context, n *notify.Notification) error {
	if n == nil || n.UserID == "" {
		return fmt.Errorf("notification and userID must be non-empty")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, related_id, action_url, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.RelatedID, n.ActionURL, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification user=%s id=%s: %w", n.UserID, n.ID, err)
	}
	return nil
}
