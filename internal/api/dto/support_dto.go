package dto

import (
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
)

// WorklogRequest records a support action on a ticket.
type WorklogRequest struct {
	Action  events.SupportAction `json:"action"`
	Content string               `json:"content"`
}

// IncidentNoteRequest carries an optional note or reason.
type IncidentNoteRequest struct {
	Note string `json:"note"`
}

// DownloadLinkRequest attaches a document link.
type DownloadLinkRequest struct {
	Link string `json:"link"`
}

// NotificationListResponse wraps a user's notifications.
type NotificationListResponse struct {
	Items       []domain.Notification `json:"items"`
	UnreadCount int                   `json:"unread_count"`
}
