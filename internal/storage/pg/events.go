package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/whatsport/notification-core/internal/reminder"
)

// EventStore implements reminder.EventSource on Postgres.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a Postgres-backed event source for the reminder
// scheduler.
func NewEventStore(db *Database) *EventStore {
	return &EventStore{db: db.DB}
}

// UpcomingEvents returns non-canceled events starting within the window,
// with their participant user ids.
func (s *EventStore) UpcomingEvents(ctx context.Context, window time.Duration) ([]reminder.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, e.start_time,
		       COALESCE(array_agg(p.user_id) FILTER (WHERE p.user_id IS NOT NULL), '{}')
		FROM events e
		LEFT JOIN event_participants p ON p.event_id = e.id
		WHERE NOT e.canceled
		  AND e.start_time > now()
		  AND e.start_time <= now() + $1::interval
		GROUP BY e.id, e.title, e.start_time
		ORDER BY e.start_time`, fmt.Sprintf("%d seconds", int(window.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	defer rows.Close()

	var out []reminder.Event
	for rows.Next() {
		var event reminder.Event
		if err := rows.Scan(&event.ID, &event.Title, &event.StartTime, pq.Array(&event.Participants)); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, event)
	}

	return out, rows.Err()
}

// ClaimReminder inserts the (event, user) reminder marker. Returns false
// when the marker already exists.
func (s *EventStore) ClaimReminder(ctx context.Context, eventID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_reminders (event_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (event_id, user_id) DO NOTHING`, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder event=%s user=%s: %w", eventID, userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return affected > 0, nil
}
