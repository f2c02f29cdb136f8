package domain

import "time"

// ChatRole indicates who authored a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessageType differentiates plain replies from record cards.
type ChatMessageType string

const (
	ChatMessageText     ChatMessageType = "text"
	ChatMessageTicket   ChatMessageType = "ticket"
	ChatMessageIncident ChatMessageType = "incident"
	ChatMessageReport   ChatMessageType = "report"
)

// ChatMessage is one line of a chat conversation.
type ChatMessage struct {
	ID         string          `json:"id"`
	Role       ChatRole        `json:"role"`
	Type       ChatMessageType `json:"type"`
	Content    string          `json:"content"`
	TicketID   string          `json:"ticket_id,omitempty"`
	IncidentID string          `json:"incident_id,omitempty"`
	ReportLink string          `json:"report_link,omitempty"`
	Timeline   []TimelineEntry `json:"timeline,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
