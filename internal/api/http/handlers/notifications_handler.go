package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// NotificationsHandler serves the header badge for both portals.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List GET /notifications. Support accounts pick up incidents they have
// not been notified about yet.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	ctx := c.UserContext()
	identity := principal.Account.Identity
	if principal.Account.Role == domain.RoleSupport {
		if _, err := h.notifications.SyncAssignedIncidents(ctx, identity); err != nil {
			return err
		}
	}
	items, err := h.notifications.List(ctx, identity)
	if err != nil {
		return err
	}
	unread := 0
	for _, item := range items {
		if !item.Read {
			unread++
		}
	}
	return c.JSON(fiber.Map{"data": dto.NotificationListResponse{Items: items, UnreadCount: unread}})
}

// Acknowledge POST /notifications/:id/ack.
func (h *NotificationsHandler) Acknowledge(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	notification, err := h.notifications.Acknowledge(c.UserContext(), principal.Account.Identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notification})
}
