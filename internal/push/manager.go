package push

import (
	"context"
	"log/slog"
	"sync"

	"github.com/whatsport/notification-core/internal/logger"
)

// Provider abstracts the platform push provider: permission prompt and
// token issuance.
type Provider interface {
	// Supported reports whether the runtime can receive push at all.
	// Queried once per Manager; the result is cached.
	Supported() bool

	// RequestPermission prompts for notification permission.
	RequestPermission(ctx context.Context) (bool, error)

	// GetToken obtains a device token from the provider.
	GetToken(ctx context.Context) (string, error)
}

// TokenStore persists the device token into the user's registered-token
// set. Implemented by TokenManager.
type TokenStore interface {
	SaveToken(ctx context.Context, userID, deviceID, token string) error
	RemoveToken(ctx context.Context, userID, deviceID string) error
}

// Manager owns the device's push-token lifecycle: acquire, persist,
// revoke. It also folds foreground push deliveries into a transient toast
// stream. A foreground payload is never written into the notification
// store; the next feed snapshot is authoritative, which is what prevents
// a push and its feed entry from counting as two unread notifications.
type Manager struct {
	provider Provider
	store    TokenStore
	logger   *logger.Logger

	userID   string
	deviceID string

	mu    sync.Mutex
	token string

	supportOnce sync.Once
	supported   bool

	toasts chan Toast
}

// NewManager creates a push registration manager for one device of one
// user.
func NewManager(provider Provider, store TokenStore, userID, deviceID string, log *logger.Logger) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		logger:   log.WithComponent("push-manager"),
		userID:   userID,
		deviceID: deviceID,
		toasts:   make(chan Toast, 16),
	}
}

// Register obtains a token and persists it into the user's token set.
// Fails with ErrUnsupported before ever touching the provider's token API
// when the platform has no push support, and with ErrPermissionDenied
// when the permission prompt is refused. Registering an already-saved
// token is a no-op.
func (m *Manager) Register(ctx context.Context) error {
	m.supportOnce.Do(func() {
		m.supported = m.provider.Supported()
	})
	if !m.supported {
		return ErrUnsupported
	}

	granted, err := m.provider.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return ErrPermissionDenied
	}

	token, err := m.provider.GetToken(ctx)
	if err != nil {
		return err
	}

	if err := m.store.SaveToken(ctx, m.userID, m.deviceID, token); err != nil {
		return err
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.logger.Info("push registration complete",
		slog.String("user_id", m.userID),
		slog.String("device_id", m.deviceID))
	return nil
}

// Deregister removes this device's token from the user's token set and
// drops the local copy. Idempotent: deregistering with no held or
// persisted token succeeds silently.
func (m *Manager) Deregister(ctx context.Context) error {
	if err := m.store.RemoveToken(ctx, m.userID, m.deviceID); err != nil {
		return err
	}

	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	m.logger.Info("push registration revoked",
		slog.String("user_id", m.userID),
		slog.String("device_id", m.deviceID))
	return nil
}

// Token returns the currently held token, if any.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// OnForegroundMessage handles a push that arrived while the app is in the
// foreground, where the OS will not display it. The payload becomes a
// toast only. Even when the payload carries the persisted notification
// id, the store entry arrives via the feed snapshot, never from here.
func (m *Manager) OnForegroundMessage(payload Payload) {
	toast := Toast{
		Title:     payload.Title,
		Body:      payload.Body,
		ActionURL: payload.Data["action_url"],
	}

	select {
	case m.toasts <- toast:
	default:
		m.logger.Warn("toast channel full, dropping foreground message",
			slog.String("title", payload.Title))
	}
}

// Toasts is the stream of transient affordances for foreground pushes.
func (m *Manager) Toasts() <-chan Toast {
	return m.toasts
}
