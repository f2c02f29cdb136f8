package domain

import "time"

// IncidentStatus enumerates lifecycle states for escalated requests.
type IncidentStatus string

const (
	IncidentStatusPendingApproval IncidentStatus = "pending-approval"
	IncidentStatusApproved        IncidentStatus = "approved"
	IncidentStatusInProgress      IncidentStatus = "in-progress"
	IncidentStatusEscalated       IncidentStatus = "escalated"
	IncidentStatusResolved        IncidentStatus = "resolved"
	IncidentStatusClosed          IncidentStatus = "closed"
)

// ApprovalStatus tracks the approver's decision on an incident.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// TimelineEntry is one audit record on an incident.
type TimelineEntry struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// Incident is a sensitive or escalated request, optionally linked to the ticket it came from.
type Incident struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Status         IncidentStatus  `json:"status"`
	Priority       Priority        `json:"priority"`
	Assignee       string          `json:"assignee"`
	Category       string          `json:"category"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Timeline       []TimelineEntry `json:"timeline"`
	RelatedSR      string          `json:"related_sr,omitempty"`
	ApprovalStatus ApprovalStatus  `json:"approval_status,omitempty"`
	DownloadLink   string          `json:"download_link,omitempty"`
	EmailSent      bool            `json:"email_sent"`
}

// Clone returns a copy that shares no slices with i.
func (i Incident) Clone() Incident {
	i.Timeline = append([]TimelineEntry(nil), i.Timeline...)
	return i
}
