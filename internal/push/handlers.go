package push

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/whatsport/notification-core/internal/auth"
	apierrors "github.com/whatsport/notification-core/internal/errors"
	"github.com/whatsport/notification-core/internal/logger"
)

// Handler exposes device token registration over HTTP. Clients call these
// after obtaining a token from the push provider on their side.
type Handler struct {
	tokens *TokenManager
	logger *logger.Logger
}

// NewHandler creates a new push token handler.
func NewHandler(tokens *TokenManager, log *logger.Logger) *Handler {
	return &Handler{
		tokens: tokens,
		logger: log,
	}
}

// RegisterTokenRequest is the payload for POST /api/v1/push/tokens.
type RegisterTokenRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

// RegisterToken handles POST /api/v1/push/tokens.
func (h *Handler) RegisterToken(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("push-handler")

	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "unauthorized", nil)
		return
	}

	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "invalid request body", map[string]interface{}{"details": err.Error()})
		return
	}

	if err := h.tokens.SaveToken(c.Request.Context(), userID, req.DeviceID, req.Token); err != nil {
		log.Error("failed to save push token",
			slog.String("device_id", req.DeviceID),
			slog.String("error", err.Error()))
		apierrors.Internal(c, "failed to register push token", nil)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"device_id": req.DeviceID})
}

// RemoveToken handles DELETE /api/v1/push/tokens/:deviceID.
// Removing an unknown device succeeds; revocation is idempotent.
func (h *Handler) RemoveToken(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("push-handler")

	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "unauthorized", nil)
		return
	}

	deviceID := c.Param("deviceID")
	if deviceID == "" {
		apierrors.BadRequest(c, "device id is required", nil)
		return
	}

	if err := h.tokens.RemoveToken(c.Request.Context(), userID, deviceID); err != nil {
		log.Error("failed to remove push token",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()))
		apierrors.Internal(c, "failed to remove push token", nil)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes mounts the push token routes on an authenticated group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	tokens := group.Group("/push/tokens")
	{
		tokens.POST("", h.RegisterToken)
		tokens.DELETE("/:deviceID", h.RemoveToken)
	}
}
