package push

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/whatsport/notification-core/internal/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const tokensCollection = "push_tokens"

// TokenManager handles the persisted form of push registrations. Tokens
// are stored at /push_tokens/{user_id}/ with structure:
//
//	{
//	  tokens: {
//	    deviceId1: {token: "fcm_token_...", deviceId: "device1", lastUpdatedAt: timestamp},
//	    deviceId2: {...}
//	  }
//	}
//
// The map is keyed by device id, so a user may hold one token per device.
type TokenManager struct {
	firestoreClient *firestore.Client
	logger          *logger.Logger
}

// NewTokenManager creates a new token manager.
func NewTokenManager(firestoreClient *firestore.Client, logger *logger.Logger) *TokenManager {
	return &TokenManager{
		firestoreClient: firestoreClient,
		logger:          logger.WithComponent("token-manager"),
	}
}

// GetUserTokens retrieves all push notification tokens for a user.
func (tm *TokenManager) GetUserTokens(ctx context.Context, userID string) ([]TokenInfo, error) {
	log := tm.logger.WithContext(ctx)

	docRef := tm.firestoreClient.Collection(tokensCollection).Doc(userID)
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: user %s", ErrNoTokens, userID)
		}
		log.Error("failed to fetch push tokens document",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to fetch push tokens: %w", err)
	}

	tokensData, ok := doc.Data()["tokens"]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNoTokens, userID)
	}

	tokensMap, ok := tokensData.(map[string]interface{})
	if !ok {
		log.Error("tokens field is not a map",
			slog.String("user_id", userID),
			slog.String("type", fmt.Sprintf("%T", tokensData)))
		return nil, fmt.Errorf("invalid tokens data structure")
	}

	var tokens []TokenInfo
	for deviceID, tokenData := range tokensMap {
		tokenMap, ok := tokenData.(map[string]interface{})
		if !ok {
			log.Warn("skipping invalid token entry",
				slog.String("device_id", deviceID))
			continue
		}

		token, ok := tokenMap["token"].(string)
		if !ok || token == "" {
			log.Warn("skipping token entry with missing token field",
				slog.String("device_id", deviceID))
			continue
		}

		tokenInfo := TokenInfo{
			Token:    token,
			DeviceID: deviceID,
		}
		if lastUpdated, ok := tokenMap["lastUpdatedAt"].(string); ok {
			tokenInfo.LastUpdatedAt = lastUpdated
		}

		tokens = append(tokens, tokenInfo)
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: user %s", ErrNoTokens, userID)
	}

	log.Debug("retrieved push tokens",
		slog.String("user_id", userID),
		slog.Int("token_count", len(tokens)))
	return tokens, nil
}

// SaveToken adds or refreshes a device's token in the user's token map.
// Saving the same token twice is a no-op apart from the timestamp.
func (tm *TokenManager) SaveToken(ctx context.Context, userID, deviceID, token string) error {
	if userID == "" || deviceID == "" || token == "" {
		return fmt.Errorf("userID, deviceID, and token must be non-empty")
	}

	docRef := tm.firestoreClient.Collection(tokensCollection).Doc(userID)
	_, err := docRef.Set(ctx, map[string]interface{}{
		"tokens": map[string]interface{}{
			deviceID: map[string]interface{}{
				"token":         token,
				"deviceId":      deviceID,
				"lastUpdatedAt": time.Now().UTC().Format(time.RFC3339),
			},
		},
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to save push token user=%s device=%s: %w", userID, deviceID, err)
	}

	tm.logger.WithContext(ctx).Info("push token saved",
		slog.String("user_id", userID),
		slog.String("device_id", deviceID))
	return nil
}

// RemoveToken deletes a device's entry from the user's token map.
// Removing an absent device succeeds silently.
func (tm *TokenManager) RemoveToken(ctx context.Context, userID, deviceID string) error {
	if userID == "" || deviceID == "" {
		return fmt.Errorf("userID and deviceID must be non-empty")
	}

	docRef := tm.firestoreClient.Collection(tokensCollection).Doc(userID)
	_, err := docRef.Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"tokens", deviceID}, Value: firestore.Delete},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("failed to remove push token user=%s device=%s: %w", userID, deviceID, err)
	}

	tm.logger.WithContext(ctx).Info("push token removed",
		slog.String("user_id", userID),
		slog.String("device_id", deviceID))
	return nil
}
