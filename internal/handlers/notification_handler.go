package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// NotificationHandler serves the in-app notification inbox
type NotificationHandler struct {
	notifications *services.NotificationService
	logger        *logrus.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService, logger *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

// List returns the caller's notifications. ?unread=true filters to unread.
// GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	limit, _ := pagination(c, 50)

	notifications, err := h.notifications.List(c.Request.Context(), actor.AccountID, c.Query("unread") == "true", limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkRead marks one notification as read
// POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), actor.AccountID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllRead marks every notification as read
// POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	count, err := h.notifications.MarkAllRead(c.Request.Context(), actor.AccountID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}
