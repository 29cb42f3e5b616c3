package notify

import (
	"context"
	"time"
)

// PollingSource implements FeedSource by polling the backend's list
// endpoint on a fixed interval. The interval does not back off on error;
// every tick is an independent attempt.
type PollingSource struct {
	backend  Backend
	interval time.Duration
	limit    int
}

// NewPollingSource creates a polling feed source. A non-positive interval
// defaults to 30 seconds.
func NewPollingSource(backend Backend, interval time.Duration, limit int) *PollingSource {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if limit <= 0 {
		limit = DefaultRetainLimit
	}
	return &PollingSource{
		backend:  backend,
		interval: interval,
		limit:    limit,
	}
}

func (p *PollingSource) Name() string { return "polling" }

// Run polls immediately, then on every tick, until ctx is canceled. The
// ticker is stopped on return so no timer outlives the subscription.
func (p *PollingSource) Run(ctx context.Context, userID string, deliver func(Snapshot), onError func(error)) {
	p.poll(ctx, userID, deliver, onError)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, userID, deliver, onError)
		}
	}
}

func (p *PollingSource) poll(ctx context.Context, userID string, deliver func(Snapshot), onError func(error)) {
	entries, err := p.backend.ListNotifications(ctx, userID, p.limit)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		onError(err)
		return
	}

	if ctx.Err() != nil {
		return
	}
	deliver(Snapshot(entries))
}
