package push

import "errors"

var (
	// ErrPermissionDenied is returned when the platform refuses the
	// notification permission prompt.
	ErrPermissionDenied = errors.New("notification permission denied")

	// ErrUnsupported is returned when the runtime has no push support.
	ErrUnsupported = errors.New("push notifications unsupported on this platform")

	// ErrNoTokens is returned when a user has no registered devices.
	ErrNoTokens = errors.New("no push tokens registered")
)

// TokenInfo represents a push notification token stored in Firestore.
type TokenInfo struct {
	Token         string `firestore:"token"`
	DeviceID      string `firestore:"deviceId"`
	LastUpdatedAt string `firestore:"lastUpdatedAt"`
}

// Payload is the data carried by a push message. Foreground payloads may
// lack the persisted notification id; the feed snapshot stays authoritative
// in that case.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}

// NotificationID returns the backend-assigned id carried in the payload,
// or "" when the payload arrived without one.
func (p Payload) NotificationID() string {
	return p.Data["notification_id"]
}

// Toast is the transient affordance shown for a foreground push. It is
// display-only: a toast never enters the notification store.
type Toast struct {
	Title string
	Body  string
	// ActionURL routes a tap, when the payload carried one.
	ActionURL string
}

// SendResult represents the result of sending a notification to a device.
type SendResult struct {
	Token    string
	Success  bool
	Response string
	Error    string
}
