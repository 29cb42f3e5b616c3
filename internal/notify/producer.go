package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/whatsport/notification-core/internal/logger"
)

// Pusher delivers a freshly produced notification to the owner's devices.
// Push is an enhancement: a push failure never fails the produce.
type Pusher interface {
	SendNotification(ctx context.Context, n *Notification) error
}

// Producer creates the platform's typed notifications: the fan-out the
// event and reservation flows perform when something a user cares about
// happens.
type Producer struct {
	backend Backend
	pusher  Pusher
	logger  *logger.Logger
}

// NewProducer creates a producer. pusher may be nil when push delivery is
// disabled.
func NewProducer(backend Backend, pusher Pusher, log *logger.Logger) *Producer {
	return &Producer{
		backend: backend,
		pusher:  pusher,
		logger:  log.WithComponent("producer"),
	}
}

// Produce persists the notification and pushes it to the owner's devices.
func (p *Producer) Produce(ctx context.Context, n *Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := ParseNotificationType(string(n.Type)); err != nil {
		return err
	}

	if err := p.backend.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	producedTotal.WithLabelValues(string(n.Type)).Inc()

	if p.pusher != nil {
		if err := p.pusher.SendNotification(ctx, n); err != nil {
			p.logger.Warn("push delivery failed",
				slog.String("notification_id", n.ID),
				slog.String("user_id", n.UserID),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// ReservationRequested notifies a space manager about a new reservation.
func (p *Producer) ReservationRequested(ctx context.Context, managerID, organizerName, sportType, spaceName, reservationID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    managerID,
		Type:      TypeReservationRequest,
		Title:     "Nova solicitação de reserva",
		Message:   fmt.Sprintf("Nova reserva de %s para %s em %s", organizerName, sportType, spaceName),
		RelatedID: reservationID,
		ActionURL: fmt.Sprintf("/manager/reservations/%s", reservationID),
	})
}

// ReservationApproved notifies the organizer their reservation was approved.
func (p *Producer) ReservationApproved(ctx context.Context, organizerID, sportType, spaceName, reservationID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    organizerID,
		Type:      TypeReservationApproved,
		Title:     "Reserva aprovada",
		Message:   fmt.Sprintf("Sua reserva para %s em %s foi aprovada", sportType, spaceName),
		RelatedID: reservationID,
		ActionURL: fmt.Sprintf("/player/reservations/%s", reservationID),
	})
}

// ReservationRejected notifies the organizer their reservation was rejected.
func (p *Producer) ReservationRejected(ctx context.Context, organizerID, sportType, spaceName, reservationID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    organizerID,
		Type:      TypeReservationRejected,
		Title:     "Reserva recusada",
		Message:   fmt.Sprintf("Sua reserva para %s em %s foi recusada", sportType, spaceName),
		RelatedID: reservationID,
		ActionURL: fmt.Sprintf("/player/reservations/%s", reservationID),
	})
}

// ReservationCanceled notifies the space manager a reservation was canceled.
func (p *Producer) ReservationCanceled(ctx context.Context, managerID, organizerName, spaceName, reservationID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    managerID,
		Type:      TypeReservationCanceled,
		Title:     "Reserva cancelada",
		Message:   fmt.Sprintf("%s cancelou a reserva em %s", organizerName, spaceName),
		RelatedID: reservationID,
		ActionURL: fmt.Sprintf("/manager/reservations/%s", reservationID),
	})
}

// EventInvitation invites a user to an event.
func (p *Producer) EventInvitation(ctx context.Context, userID, organizerName, eventTitle, eventID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    userID,
		Type:      TypeEventInvitation,
		Title:     "Convite para evento",
		Message:   fmt.Sprintf("%s convidou você para %s", organizerName, eventTitle),
		RelatedID: eventID,
		ActionURL: fmt.Sprintf("/events/%s", eventID),
	})
}

// EventCreated notifies a follower that an organizer created an event.
func (p *Producer) EventCreated(ctx context.Context, userID, organizerName, eventTitle, eventID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    userID,
		Type:      TypeEventCreated,
		Title:     "Novo evento",
		Message:   fmt.Sprintf("%s criou o evento %s", organizerName, eventTitle),
		RelatedID: eventID,
		ActionURL: fmt.Sprintf("/events/%s", eventID),
	})
}

// EventUpdated notifies a participant the event details changed.
func (p *Producer) EventUpdated(ctx context.Context, userID, eventTitle, eventID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    userID,
		Type:      TypeEventUpdated,
		Title:     "Evento atualizado",
		Message:   fmt.Sprintf("O evento %s foi atualizado", eventTitle),
		RelatedID: eventID,
		ActionURL: fmt.Sprintf("/events/%s", eventID),
	})
}

// EventReminder reminds a participant about an upcoming event.
func (p *Producer) EventReminder(ctx context.Context, userID, eventTitle, eventID string, startTime time.Time) error {
	return p.Produce(ctx, &Notification{
		UserID:    userID,
		Type:      TypeEventReminder,
		Title:     "Lembrete de evento",
		Message:   fmt.Sprintf("%s começa às %s", eventTitle, startTime.Local().Format("15:04")),
		RelatedID: eventID,
		ActionURL: fmt.Sprintf("/events/%s", eventID),
	})
}

// EventCanceled notifies a participant an event was canceled.
func (p *Producer) EventCanceled(ctx context.Context, userID, eventTitle, eventID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    userID,
		Type:      TypeEventCanceled,
		Title:     "Evento cancelado",
		Message:   fmt.Sprintf("O evento %s foi cancelado", eventTitle),
		RelatedID: eventID,
		ActionURL: fmt.Sprintf("/events/%s", eventID),
	})
}

// EventNewParticipant notifies the organizer someone joined their event.
func (p *Producer) EventNewParticipant(ctx context.Context, organizerID, participantName, eventTitle, eventID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    organizerID,
		Type:      TypeEventNewParticipant,
		Title:     "Novo participante",
		Message:   fmt.Sprintf("%s entrou no evento %s", participantName, eventTitle),
		RelatedID: eventID,
		ActionURL: fmt.Sprintf("/events/%s", eventID),
	})
}

// EventParticipantLeft notifies the organizer someone left their event.
func (p *Producer) EventParticipantLeft(ctx context.Context, organizerID, participantName, eventTitle, eventID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    organizerID,
		Type:      TypeEventParticipantLeft,
		Title:     "Participante saiu",
		Message:   fmt.Sprintf("%s saiu do evento %s", participantName, eventTitle),
		RelatedID: eventID,
		ActionURL: fmt.Sprintf("/events/%s", eventID),
	})
}

// FriendRequest notifies a user about a friend request.
func (p *Producer) FriendRequest(ctx context.Context, userID, requesterName, requesterID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    userID,
		Type:      TypeFriendRequest,
		Title:     "Pedido de amizade",
		Message:   fmt.Sprintf("%s quer ser seu amigo", requesterName),
		RelatedID: requesterID,
		ActionURL: "/friends/requests",
	})
}

// NewMessage notifies a user about a chat message.
func (p *Producer) NewMessage(ctx context.Context, userID, senderName, conversationID string) error {
	return p.Produce(ctx, &Notification{
		UserID:    userID,
		Type:      TypeNewMessage,
		Title:     "Nova mensagem",
		Message:   fmt.Sprintf("%s enviou uma mensagem", senderName),
		RelatedID: conversationID,
		ActionURL: fmt.Sprintf("/messages/%s", conversationID),
	})
}
