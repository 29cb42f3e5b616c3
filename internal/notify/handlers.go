package notify

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/whatsport/notification-core/internal/auth"
	apierrors "github.com/whatsport/notification-core/internal/errors"
	"github.com/whatsport/notification-core/internal/logger"
)

// Handler handles HTTP requests for notification operations.
type Handler struct {
	backend Backend
	limit   int
	logger  *logger.Logger
}

// NewHandler creates a new notification handler.
func NewHandler(backend Backend, limit int, log *logger.Logger) *Handler {
	if limit <= 0 {
		limit = DefaultRetainLimit
	}
	return &Handler{
		backend: backend,
		limit:   limit,
		logger:  log,
	}
}

// ListResponse is the payload for GET /api/v1/notifications.
type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	UnreadCount   int            `json:"unread_count"`
}

// MarkReadRequest is the payload for POST /api/v1/notifications/read.
type MarkReadRequest struct {
	NotificationIDs []string `json:"notification_ids" binding:"required"`
}

// List handles GET /api/v1/notifications.
// Supports ?unread_only=true and ?category=event|reservation|social.
func (h *Handler) List(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("notification-handler")

	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "unauthorized", nil)
		return
	}

	entries, err := h.backend.ListNotifications(c.Request.Context(), userID, h.limit)
	if err != nil {
		log.Error("failed to list notifications", slog.String("error", err.Error()))
		apierrors.Internal(c, "failed to list notifications", nil)
		return
	}

	filter := Filter{
		UnreadOnly: c.Query("unread_only") == "true",
		Category:   Category(c.Query("category")),
	}

	unread := Snapshot(entries).UnreadCount()
	filtered := make([]Notification, 0, len(entries))
	for i := range entries {
		if filter.Match(&entries[i]) {
			filtered = append(filtered, entries[i])
		}
	}

	c.JSON(http.StatusOK, ListResponse{
		Notifications: filtered,
		Total:         len(entries),
		UnreadCount:   unread,
	})
}

// MarkRead handles POST /api/v1/notifications/read.
func (h *Handler) MarkRead(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("notification-handler")

	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "unauthorized", nil)
		return
	}

	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "invalid request body", map[string]interface{}{"details": err.Error()})
		return
	}
	if len(req.NotificationIDs) == 0 {
		apierrors.BadRequest(c, "notification_ids must be non-empty", nil)
		return
	}

	if err := h.backend.MarkRead(c.Request.Context(), userID, req.NotificationIDs); err != nil {
		log.Error("failed to mark notifications read",
			slog.Int("count", len(req.NotificationIDs)),
			slog.String("error", err.Error()))
		apierrors.Internal(c, "failed to mark notifications read", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": len(req.NotificationIDs)})
}

// MarkAllRead handles POST /api/v1/notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("notification-handler")

	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "unauthorized", nil)
		return
	}

	entries, err := h.backend.ListNotifications(c.Request.Context(), userID, h.limit)
	if err != nil {
		log.Error("failed to list notifications", slog.String("error", err.Error()))
		apierrors.Internal(c, "failed to mark notifications read", nil)
		return
	}

	ids := make([]string, 0, len(entries))
	for i := range entries {
		if !entries[i].Read {
			ids = append(ids, entries[i].ID)
		}
	}
	if len(ids) == 0 {
		c.JSON(http.StatusOK, gin.H{"marked": 0})
		return
	}

	if err := h.backend.MarkRead(c.Request.Context(), userID, ids); err != nil {
		log.Error("failed to mark all notifications read",
			slog.Int("count", len(ids)),
			slog.String("error", err.Error()))
		apierrors.Internal(c, "failed to mark notifications read", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": len(ids)})
}

// Delete handles DELETE /api/v1/notifications/:id.
func (h *Handler) Delete(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("notification-handler")

	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "unauthorized", nil)
		return
	}

	id := c.Param("id")
	if id == "" {
		apierrors.BadRequest(c, "notification id is required", nil)
		return
	}

	if err := h.backend.Delete(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			apierrors.NotFound(c, "notification not found", map[string]interface{}{"id": id})
			return
		}
		log.Error("failed to delete notification",
			slog.String("notification_id", id),
			slog.String("error", err.Error()))
		apierrors.Internal(c, "failed to delete notification", nil)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes mounts the notification routes on an authenticated group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	notifications := group.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.POST("/read", h.MarkRead)
		notifications.POST("/read-all", h.MarkAllRead)
		notifications.DELETE("/:id", h.Delete)
	}
}
