package push

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"firebase.google.com/go/v4/messaging"
	"github.com/whatsport/notification-core/internal/logger"
	"github.com/whatsport/notification-core/internal/notify"
)

// Service handles sending push notifications via Firebase Cloud Messaging.
type Service struct {
	messagingClient *messaging.Client
	tokenManager    *TokenManager
	logger          *logger.Logger
	enabled         bool

	// Debug curl generation for failed sends, off unless enabled.
	debugCredJSON  string
	debugProjectID string
}

// NewService creates a new push notification service.
func NewService(
	messagingClient *messaging.Client,
	firestoreClient *firestore.Client,
	logger *logger.Logger,
	enabled bool,
) *Service {
	return &Service{
		messagingClient: messagingClient,
		tokenManager:    NewTokenManager(firestoreClient, logger),
		logger:          logger,
		enabled:         enabled,
	}
}

// TokenManager exposes the token manager for the registration handlers.
func (s *Service) TokenManager() *TokenManager {
	return s.tokenManager
}

// EnableDebugCurl makes failed sends log a curl command replicating the
// FCM request, so the failure can be reproduced by hand.
func (s *Service) EnableDebugCurl(credJSON, projectID string) {
	s.debugCredJSON = credJSON
	s.debugProjectID = projectID
}

// SendNotification delivers a produced notification to all of the owner's
// registered devices. The FCM data payload carries the backend-assigned
// notification id so a foreground client can de-duplicate against its
// feed.
func (s *Service) SendNotification(ctx context.Context, n *notify.Notification) error {
	log := s.logger.WithContext(ctx).WithComponent("push-service")

	if !s.enabled {
		log.Debug("push notifications disabled, skipping",
			slog.String("user_id", n.UserID),
			slog.String("notification_type", string(n.Type)))
		return nil
	}

	tokens, err := s.tokenManager.GetUserTokens(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to retrieve push tokens: %w", err)
	}

	log.Info("📤 sending push notification",
		slog.String("user_id", n.UserID),
		slog.String("type", string(n.Type)),
		slog.Int("device_count", len(tokens)))

	successCount := 0
	failureCount := 0

	for _, tokenInfo := range tokens {
		result := s.sendToDevice(ctx, tokenInfo, n)
		if result.Success {
			successCount++
		} else {
			failureCount++
			log.Error("❌ device send failed",
				slog.String("device_id", tokenInfo.DeviceID),
				slog.String("error", result.Error))
		}
	}

	log.Info("📊 push delivery summary",
		slog.Int("total_devices", len(tokens)),
		slog.Int("successful", successCount),
		slog.Int("failed", failureCount))

	// Return error only if all deliveries failed.
	if failureCount == len(tokens) {
		return fmt.Errorf("all %d push delivery attempt(s) failed", failureCount)
	}

	return nil
}

// sendToDevice sends a notification to a single device.
func (s *Service) sendToDevice(ctx context.Context, tokenInfo TokenInfo, n *notify.Notification) SendResult {
	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: map[string]string{
			"notification_id": n.ID,
			"type":            string(n.Type),
			"related_id":      n.RelatedID,
			"action_url":      n.ActionURL,
		},
		Token: tokenInfo.Token,
	}

	response, err := s.messagingClient.Send(ctx, message)
	if err != nil {
		pushSendsTotal.WithLabelValues("failure").Inc()
		if s.debugCredJSON != "" {
			s.logger.WithContext(ctx).Debug("failed FCM request as curl",
				slog.String("curl", GenerateDebugCurl(ctx, s.debugCredJSON, s.debugProjectID, message)))
		}
		return SendResult{
			Token:   tokenPrefix(tokenInfo.Token),
			Success: false,
			Error:   err.Error(),
		}
	}

	pushSendsTotal.WithLabelValues("success").Inc()
	return SendResult{
		Token:    tokenPrefix(tokenInfo.Token),
		Success:  true,
		Response: response,
	}
}

// tokenPrefix truncates a token for logging.
func tokenPrefix(token string) string {
	if len(token) > 10 {
		return token[:10] + "..."
	}
	return token
}
