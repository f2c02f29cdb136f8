package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Status      domain.TicketStatus `json:"status"`
	Priority    domain.Priority     `json:"priority"`
	Category    string              `json:"category"`
	Assignee    string              `json:"assignee"`
	RequestedBy string              `json:"requested_by"`
	Created     string              `json:"created"`
	Updated     string              `json:"updated"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string               `json:"description"`
	Comments    []domain.Comment     `json:"comments"`
	ChatHistory []domain.ChatMessage `json:"chat_history"`
	IncidentID  string               `json:"incident_id,omitempty"`
}

// IncidentResponse represents an incident with its timeline.
type IncidentResponse struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Status         domain.IncidentStatus  `json:"status"`
	Priority       domain.Priority        `json:"priority"`
	Assignee       string                 `json:"assignee"`
	Category       string                 `json:"category"`
	CreatedBy      string                 `json:"created_by"`
	RelatedSR      string                 `json:"related_sr,omitempty"`
	ApprovalStatus domain.ApprovalStatus  `json:"approval_status,omitempty"`
	DownloadLink   string                 `json:"download_link,omitempty"`
	EmailSent      bool                   `json:"email_sent"`
	Timeline       []domain.TimelineEntry `json:"timeline"`
	Created        string                 `json:"created"`
	Updated        string                 `json:"updated"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewTicketSummary maps a ticket to its list view.
func NewTicketSummary(t domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:          t.ID,
		Title:       t.Title,
		Status:      t.Status,
		Priority:    t.Priority,
		Category:    t.Category,
		Assignee:    t.Assignee,
		RequestedBy: t.RequestedBy,
		Created:     domain.DisplayTime(t.CreatedAt),
		Updated:     domain.DisplayTime(t.UpdatedAt),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket to its detail view.
func NewTicketDetail(t domain.Ticket, incidentID string) TicketDetailResponse {
	comments := t.Comments
	if comments == nil {
		comments = []domain.Comment{}
	}
	history := t.ChatHistory
	if history == nil {
		history = []domain.ChatMessage{}
	}
	return TicketDetailResponse{
		TicketSummary: NewTicketSummary(t),
		Description:   t.Description,
		Comments:      comments,
		ChatHistory:   history,
		IncidentID:    incidentID,
	}
}

// NewIncidentResponse maps an incident.
func NewIncidentResponse(i domain.Incident) IncidentResponse {
	timeline := i.Timeline
	if timeline == nil {
		timeline = []domain.TimelineEntry{}
	}
	return IncidentResponse{
		ID:             i.ID,
		Title:          i.Title,
		Description:    i.Description,
		Status:         i.Status,
		Priority:       i.Priority,
		Assignee:       i.Assignee,
		Category:       i.Category,
		CreatedBy:      i.CreatedBy,
		RelatedSR:      i.RelatedSR,
		ApprovalStatus: i.ApprovalStatus,
		DownloadLink:   i.DownloadLink,
		EmailSent:      i.EmailSent,
		Timeline:       timeline,
		Created:        domain.DisplayTime(i.CreatedAt),
		Updated:        domain.DisplayTime(i.UpdatedAt),
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}
