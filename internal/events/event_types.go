package events

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// EventType enumerates the closed set of signals carried by the bus.
type EventType string

const (
	EventTicketCreated            EventType = "ticket_created"
	EventIncidentCreated          EventType = "incident_created"
	EventIncidentAssigned         EventType = "incident_assigned"
	EventSupportActionTaken       EventType = "support_action_taken"
	EventTicketResolved           EventType = "ticket_resolved"
	EventNotificationAcknowledged EventType = "notification_acknowledged"
	EventChatPromptRequested      EventType = "chat_prompt_requested"
)

// AllEventTypes lists every known event type.
func AllEventTypes() []EventType {
	return []EventType{
		EventTicketCreated,
		EventIncidentCreated,
		EventIncidentAssigned,
		EventSupportActionTaken,
		EventTicketResolved,
		EventNotificationAcknowledged,
		EventChatPromptRequested,
	}
}

// Valid reports whether t belongs to the closed set.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Actor identifies who caused an event.
type Actor struct {
	Identity string      `json:"identity"`
	Role     domain.Role `json:"role,omitempty"`
}

// Event represents a signal emitted by a producer.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	RequestedBy string              `json:"requested_by"`
	Title       string              `json:"title"`
	Category    string              `json:"category"`
	Priority    domain.Priority     `json:"priority"`
	Status      domain.TicketStatus `json:"status"`
}

// IncidentCreatedPayload payload.
type IncidentCreatedPayload struct {
	IncidentID string          `json:"incident_id"`
	CreatedBy  string          `json:"created_by"`
	Title      string          `json:"title"`
	Priority   domain.Priority `json:"priority"`
	RelatedSR  string          `json:"related_sr,omitempty"`
}

// IncidentAssignedPayload payload.
type IncidentAssignedPayload struct {
	IncidentID string `json:"incident_id"`
	Recipient  string `json:"recipient"`
}

// SupportAction is a worklog action recorded by a support engineer.
type SupportAction string

const (
	ActionResolutionStepsAdded SupportAction = "Resolution Steps Added"
	ActionResolutionSent       SupportAction = "Resolution Sent"
	ActionTicketResolved       SupportAction = "Ticket Resolved"
)

// Valid reports whether a is a known worklog action.
func (a SupportAction) Valid() bool {
	switch a {
	case ActionResolutionStepsAdded, ActionResolutionSent, ActionTicketResolved:
		return true
	}
	return false
}

// SupportActionPayload payload.
type SupportActionPayload struct {
	Action  SupportAction `json:"action"`
	Content string        `json:"content,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	IncidentID  string `json:"incident_id,omitempty"`
	RequestedBy string `json:"requested_by"`
	Title       string `json:"title"`
}

// NotificationAcknowledgedPayload is the navigate-to-ticket signal.
type NotificationAcknowledgedPayload struct {
	NotificationID string `json:"notification_id"`
	Recipient      string `json:"recipient"`
}

// ChatPromptRequestedPayload asks the chat surface to run a prompt for a user.
type ChatPromptRequestedPayload struct {
	Identity string `json:"identity"`
	Prompt   string `json:"prompt"`
}
