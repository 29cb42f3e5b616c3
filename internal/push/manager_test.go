package push

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/whatsport/notification-core/internal/logger"
)

var (
	log *logger.Logger
)

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Verbose() {
		log = logger.New(logger.Config{Level: slog.LevelDebug})
	} else {
		log = logger.New(logger.Config{Level: slog.LevelError})
	}

	exitCode := m.Run()

	os.Exit(exitCode)
}

type providerEmulator struct {
	supported     bool
	granted       bool
	permissionErr error
	token         string
	tokenErr      error

	permissionCalls int
	tokenCalls      int
}

func (p *providerEmulator) Supported() bool { return p.supported }

func (p *providerEmulator) RequestPermission(ctx context.Context) (bool, error) {
	p.permissionCalls++
	return p.granted, p.permissionErr
}

func (p *providerEmulator) GetToken(ctx context.Context) (string, error) {
	p.tokenCalls++
	return p.token, p.tokenErr
}

type tokenStoreEmulator struct {
	mu          sync.Mutex
	saved       map[string]string // deviceID -> token
	saveErr     error
	removeCalls int
}

func newTokenStoreEmulator() *tokenStoreEmulator {
	return &tokenStoreEmulator{saved: make(map[string]string)}
}

func (s *tokenStoreEmulator) SaveToken(ctx context.Context, userID, deviceID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[deviceID] = token
	return nil
}

func (s *tokenStoreEmulator) RemoveToken(ctx context.Context, userID, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCalls++
	delete(s.saved, deviceID)
	return nil
}

func (s *tokenStoreEmulator) tokenFor(deviceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[deviceID]
}

func TestRegisterSavesToken(t *testing.T) {
	provider := &providerEmulator{supported: true, granted: true, token: "tok-1"}
	store := newTokenStoreEmulator()
	manager := NewManager(provider, store, "user-a", "device-1", log)

	if err := manager.Register(context.Background()); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	if got := store.tokenFor("device-1"); got != "tok-1" {
		t.Errorf("Expected saved token tok-1, got %q", got)
	}
	if got := manager.Token(); got != "tok-1" {
		t.Errorf("Expected held token tok-1, got %q", got)
	}

	// Re-registering the same token is a no-op at the token set.
	if err := manager.Register(context.Background()); err != nil {
		t.Fatalf("Second register failed: %v", err)
	}
	if got := store.tokenFor("device-1"); got != "tok-1" {
		t.Errorf("Expected token unchanged, got %q", got)
	}
}

func TestRegisterUnsupportedNeverRequestsToken(t *testing.T) {
	provider := &providerEmulator{supported: false}
	store := newTokenStoreEmulator()
	manager := NewManager(provider, store, "user-a", "device-1", log)

	if err := manager.Register(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Expected ErrUnsupported, got %v", err)
	}

	if provider.permissionCalls != 0 {
		t.Errorf("Expected no permission prompt on unsupported platform, got %d", provider.permissionCalls)
	}
	if provider.tokenCalls != 0 {
		t.Errorf("Expected no token request on unsupported platform, got %d", provider.tokenCalls)
	}
	if len(store.saved) != 0 {
		t.Errorf("Expected nothing saved, got %v", store.saved)
	}
}

func TestRegisterPermissionDenied(t *testing.T) {
	provider := &providerEmulator{supported: true, granted: false}
	store := newTokenStoreEmulator()
	manager := NewManager(provider, store, "user-a", "device-1", log)

	if err := manager.Register(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}
	if provider.tokenCalls != 0 {
		t.Errorf("Expected no token request after denial, got %d", provider.tokenCalls)
	}
}

func TestRegisterSaveFailureKeepsNoToken(t *testing.T) {
	provider := &providerEmulator{supported: true, granted: true, token: "tok-1"}
	store := newTokenStoreEmulator()
	store.saveErr = errors.New("firestore unavailable")
	manager := NewManager(provider, store, "user-a", "device-1", log)

	if err := manager.Register(context.Background()); err == nil {
		t.Fatal("Expected error from failed save")
	}
	if got := manager.Token(); got != "" {
		t.Errorf("Expected no held token after failed save, got %q", got)
	}
}

func TestDeregisterIsIdempotent(t *testing.T) {
	provider := &providerEmulator{supported: true, granted: true, token: "tok-1"}
	store := newTokenStoreEmulator()
	manager := NewManager(provider, store, "user-a", "device-1", log)

	if err := manager.Register(context.Background()); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := manager.Deregister(context.Background()); err != nil {
			t.Fatalf("Deregister %d failed: %v", i, err)
		}
	}

	if got := manager.Token(); got != "" {
		t.Errorf("Expected held token cleared, got %q", got)
	}
	if got := store.tokenFor("device-1"); got != "" {
		t.Errorf("Expected token removed from store, got %q", got)
	}
}

func TestForegroundMessageBecomesToastOnly(t *testing.T) {
	provider := &providerEmulator{supported: true, granted: true, token: "tok-1"}
	store := newTokenStoreEmulator()
	manager := NewManager(provider, store, "user-a", "device-1", log)

	manager.OnForegroundMessage(Payload{
		Title: "Reserva aprovada",
		Body:  "Sua reserva foi aprovada",
		Data: map[string]string{
			"notification_id": "n1",
			"action_url":      "/player/reservations/res-1",
		},
	})

	select {
	case toast := <-manager.Toasts():
		if toast.Title != "Reserva aprovada" {
			t.Errorf("Expected toast title, got %q", toast.Title)
		}
		if toast.ActionURL != "/player/reservations/res-1" {
			t.Errorf("Expected action url carried into toast, got %q", toast.ActionURL)
		}
	default:
		t.Fatal("Expected a toast on the channel")
	}

	// A foreground push never writes anywhere.
	if len(store.saved) != 0 {
		t.Errorf("Expected token store untouched, got %v", store.saved)
	}
}

func TestForegroundMessageDropsWhenFull(t *testing.T) {
	manager := NewManager(&providerEmulator{}, newTokenStoreEmulator(), "user-a", "device-1", log)

	// Fill the buffer and then some; must never block.
	for i := 0; i < 32; i++ {
		manager.OnForegroundMessage(Payload{Title: "overflow"})
	}

	drained := 0
	for {
		select {
		case <-manager.Toasts():
			drained++
			continue
		default:
		}
		break
	}

	if drained != 16 {
		t.Errorf("Expected 16 buffered toasts, got %d", drained)
	}
}

func TestPayloadNotificationID(t *testing.T) {
	withID := Payload{Data: map[string]string{"notification_id": "n1"}}
	if got := withID.NotificationID(); got != "n1" {
		t.Errorf("Expected n1, got %q", got)
	}

	var empty Payload
	if got := empty.NotificationID(); got != "" {
		t.Errorf("Expected empty id for payload without data, got %q", got)
	}
}
