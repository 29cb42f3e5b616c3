package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/whatsport/notification-core/internal/logger"
	"github.com/whatsport/notification-core/internal/notify"
)

// Event is the slice of an event the reminder pass needs.
type Event struct {
	ID           string
	Title        string
	StartTime    time.Time
	Participants []string
}

// EventSource lists upcoming events and records which reminders were
// already sent.
type EventSource interface {
	// UpcomingEvents returns non-canceled events starting within the
	// window from now.
	UpcomingEvents(ctx context.Context, window time.Duration) ([]Event, error)

	// ClaimReminder records that a reminder for (eventID, userID) is being
	// sent. Returns false when one was already claimed, which makes the
	// reminder pass safe to re-run.
	ClaimReminder(ctx context.Context, eventID, userID string) (bool, error)
}

// Scheduler produces event_reminder notifications for participants of
// events starting soon. Runs on a cron cadence; each pass is idempotent
// because reminders are claimed per (event, participant).
type Scheduler struct {
	source   EventSource
	producer *notify.Producer
	window   time.Duration
	cronSpec string
	cron     *cron.Cron
	logger   *logger.Logger
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(source EventSource, producer *notify.Producer, cronSpec string, window time.Duration, log *logger.Logger) *Scheduler {
	if cronSpec == "" {
		cronSpec = "*/5 * * * *"
	}
	if window <= 0 {
		window = time.Hour
	}
	return &Scheduler{
		source:   source,
		producer: producer,
		window:   window,
		cronSpec: cronSpec,
		logger:   log.WithComponent("reminder-scheduler"),
	}
}

// Start registers the cron entry and begins running passes.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cronSpec, func() {
		s.RunPass(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()

	s.logger.Info("reminder scheduler started",
		slog.String("cron_spec", s.cronSpec),
		slog.Duration("window", s.window))
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("reminder scheduler stopped")
}

// RunPass sends reminders for every not-yet-reminded participant of every
// event starting within the window.
func (s *Scheduler) RunPass(ctx context.Context) {
	events, err := s.source.UpcomingEvents(ctx, s.window)
	if err != nil {
		s.logger.Error("failed to list upcoming events",
			slog.String("error", err.Error()))
		return
	}

	sent := 0
	for _, event := range events {
		for _, userID := range event.Participants {
			claimed, err := s.source.ClaimReminder(ctx, event.ID, userID)
			if err != nil {
				s.logger.Error("failed to claim reminder",
					slog.String("event_id", event.ID),
					slog.String("user_id", userID),
					slog.String("error", err.Error()))
				continue
			}
			if !claimed {
				continue
			}

			if err := s.producer.EventReminder(ctx, userID, event.Title, event.ID, event.StartTime); err != nil {
				s.logger.Error("failed to produce reminder",
					slog.String("event_id", event.ID),
					slog.String("user_id", userID),
					slog.String("error", err.Error()))
				continue
			}
			sent++
		}
	}

	if sent > 0 {
		s.logger.Info("reminder pass completed",
			slog.Int("events", len(events)),
			slog.Int("reminders_sent", sent))
	}
}
