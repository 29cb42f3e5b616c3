package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType is the closed set of notification kinds the platform
// emits. Unknown tags are rejected at the deserialization boundary instead
// of falling through silently.
type NotificationType string

const (
	TypeEventInvitation      NotificationType = "event_invitation"
	TypeEventReminder        NotificationType = "event_reminder"
	TypeEventCreated         NotificationType = "event_created"
	TypeEventUpdated         NotificationType = "event_updated"
	TypeEventCanceled        NotificationType = "event_canceled"
	TypeEventNewParticipant  NotificationType = "event_new_participant"
	TypeEventParticipantLeft NotificationType = "event_participant_left"
	TypeReservationRequest   NotificationType = "reservation_request"
	TypeReservationApproved  NotificationType = "reservation_approved"
	TypeReservationRejected  NotificationType = "reservation_rejected"
	TypeReservationCanceled  NotificationType = "reservation_canceled"
	TypeFriendRequest        NotificationType = "friend_request"
	TypeNewMessage           NotificationType = "new_message"
)

// Category groups notification types for the list view's filter tabs.
type Category string

const (
	CategoryEvent       Category = "event"
	CategoryReservation Category = "reservation"
	CategorySocial      Category = "social"
)

// ParseNotificationType validates a raw type tag against the closed set.
func ParseNotificationType(raw string) (NotificationType, error) {
	t := NotificationType(raw)
	switch t {
	case TypeEventInvitation, TypeEventReminder, TypeEventCreated,
		TypeEventUpdated, TypeEventCanceled, TypeEventNewParticipant,
		TypeEventParticipantLeft, TypeReservationRequest,
		TypeReservationApproved, TypeReservationRejected,
		TypeReservationCanceled, TypeFriendRequest, TypeNewMessage:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, raw)
}

// Category returns the filter category for this type. The switch is
// exhaustive over the closed enum.
func (t NotificationType) Category() Category {
	switch t {
	case TypeEventInvitation, TypeEventReminder, TypeEventCreated,
		TypeEventUpdated, TypeEventCanceled, TypeEventNewParticipant,
		TypeEventParticipantLeft:
		return CategoryEvent
	case TypeReservationRequest, TypeReservationApproved,
		TypeReservationRejected, TypeReservationCanceled:
		return CategoryReservation
	case TypeFriendRequest, TypeNewMessage:
		return CategorySocial
	}
	// Unreachable for values produced by ParseNotificationType.
	return CategorySocial
}

// UnmarshalJSON enforces the closed enum when decoding API payloads.
func (t *NotificationType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := ParseNotificationType(raw)
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

// Notification is a single entry in a user's feed. The ID is backend
// assigned and is the de-duplication key across transports.
type Notification struct {
	ID        string           `json:"id" firestore:"-"`
	UserID    string           `json:"user_id" firestore:"user_id"`
	Type      NotificationType `json:"type" firestore:"type"`
	Title     string           `json:"title" firestore:"title"`
	Message   string           `json:"message" firestore:"message"`
	RelatedID string           `json:"related_id,omitempty" firestore:"related_id,omitempty"`
	ActionURL string           `json:"action_url,omitempty" firestore:"action_url,omitempty"`
	Read      bool             `json:"is_read" firestore:"is_read"`
	CreatedAt time.Time        `json:"created_at" firestore:"created_at"`
}

// Snapshot is a full point-in-time replacement of a user's notification
// list, as opposed to an incremental delta.
type Snapshot []Notification

// UnreadCount scans the snapshot for entries whose read flag is false.
func (s Snapshot) UnreadCount() int {
	count := 0
	for i := range s {
		if !s[i].Read {
			count++
		}
	}
	return count
}
