package domain

import "time"

// NotificationType is the visual category of a notification.
type NotificationType string

const (
	NotificationInfo     NotificationType = "info"
	NotificationSuccess  NotificationType = "success"
	NotificationWarning  NotificationType = "warning"
	NotificationResolved NotificationType = "resolved"
	NotificationAssigned NotificationType = "assigned"
)

// Notification is a per-user record shown in the header badge.
// Read is the only field that changes after creation.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	Type      NotificationType `json:"type"`
	TicketID  string           `json:"ticket_id,omitempty"`
	Toast     bool             `json:"toast,omitempty"`
}
