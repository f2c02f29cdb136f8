package domain

import "time"

// TicketStatus enumerates lifecycle states for service requests.
type TicketStatus string

const (
	TicketStatusOpen           TicketStatus = "open"
	TicketStatusInProgress     TicketStatus = "in-progress"
	TicketStatusPending        TicketStatus = "pending"
	TicketStatusResolved       TicketStatus = "resolved"
	TicketStatusCompleted      TicketStatus = "completed"
	TicketStatusWaitingForUser TicketStatus = "waiting-for-user"
	TicketStatusClosed         TicketStatus = "closed"
)

// Priority enumerates urgency shared by tickets and incidents.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Comment is an append-only note on a ticket.
type Comment struct {
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Ticket is a service request raised by a business user.
type Ticket struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      TicketStatus  `json:"status"`
	Priority    Priority      `json:"priority"`
	Assignee    string        `json:"assignee"`
	Category    string        `json:"category"`
	RequestedBy string        `json:"requested_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty"`
	Comments    []Comment     `json:"comments,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t Ticket) Clone() Ticket {
	t.ChatHistory = append([]ChatMessage(nil), t.ChatHistory...)
	t.Comments = append([]Comment(nil), t.Comments...)
	return t
}

// DisplayTime renders a canonical timestamp for presentation only.
func DisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("1/2/2006, 3:04:05 PM")
}
