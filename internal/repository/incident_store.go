package repository

import (
	"strings"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// IncidentPatch lists the fields UpdateIncident merges. A status change
// appends exactly one timeline entry described by Note.
type IncidentPatch struct {
	Status         *domain.IncidentStatus
	Priority       *domain.Priority
	Assignee       *string
	ApprovalStatus *domain.ApprovalStatus
	DownloadLink   *string
	EmailSent      *bool
	Note           string
}

// AddIncident inserts incident at the head of the collection. RelatedSR,
// when set, must name a ticket that exists now.
func (s *Store) AddIncident(incident domain.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addIncidentLocked(incident)
}

// CreateIncident assigns a fresh ID and timestamps, then inserts the incident.
func (s *Store) CreateIncident(incident domain.Incident) (domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	incident.ID = s.nextIncidentIDLocked()
	incident.CreatedAt = now
	incident.UpdatedAt = now
	if err := s.addIncidentLocked(incident); err != nil {
		return domain.Incident{}, err
	}
	return incident.Clone(), nil
}

func (s *Store) addIncidentLocked(incident domain.Incident) error {
	if strings.TrimSpace(incident.ID) == "" {
		return apperrors.NewValidationError("incident id required", nil)
	}
	if !incident.Status.Valid() {
		return apperrors.NewValidationError("unknown incident status", map[string]any{"status": incident.Status})
	}
	if !incident.Priority.Valid() {
		return apperrors.NewValidationError("unknown incident priority", map[string]any{"priority": incident.Priority})
	}
	if s.incidentIndexLocked(incident.ID) >= 0 {
		return apperrors.NewDuplicateID("incident", incident.ID)
	}
	if incident.RelatedSR != "" && s.ticketIndexLocked(incident.RelatedSR) < 0 {
		return apperrors.NewNotFound("related ticket", map[string]any{"id": incident.RelatedSR})
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = s.clock.Now()
	}
	if incident.UpdatedAt.IsZero() {
		incident.UpdatedAt = incident.CreatedAt
	}
	s.incidents = append([]domain.Incident{incident.Clone()}, s.incidents...)
	return nil
}

func (s *Store) nextIncidentIDLocked() string {
	for {
		id := s.ids.NextIncidentID()
		if s.incidentIndexLocked(id) < 0 {
			return id
		}
	}
}

// UpdateIncident merges patch into the current incident. Absent IDs
// return NotFound; illegal status moves and edits of closed incidents
// return InvalidTransition.
func (s *Store) UpdateIncident(id string, patch IncidentPatch) (domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.incidentIndexLocked(id)
	if idx < 0 {
		return domain.Incident{}, apperrors.NewNotFound("incident", map[string]any{"id": id})
	}
	current := s.incidents[idx].Clone()
	now := s.clock.Now()

	if current.Status.Terminal() {
		next := current.Status
		if patch.Status != nil {
			next = *patch.Status
		}
		return domain.Incident{}, apperrors.NewInvalidTransition("incident", string(current.Status), string(next))
	}
	if patch.Status != nil && *patch.Status != current.Status {
		if !patch.Status.Valid() || !current.Status.CanTransition(*patch.Status) {
			return domain.Incident{}, apperrors.NewInvalidTransition("incident", string(current.Status), string(*patch.Status))
		}
		note := patch.Note
		if note == "" {
			note = "Status changed to " + string(*patch.Status)
		}
		current.Status = *patch.Status
		current.Timeline = append(current.Timeline, domain.TimelineEntry{
			Status:      TimelineLabel(current.Status),
			Timestamp:   now,
			Description: note,
		})
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return domain.Incident{}, apperrors.NewValidationError("unknown incident priority", map[string]any{"priority": *patch.Priority})
		}
		current.Priority = *patch.Priority
	}
	if patch.Assignee != nil {
		current.Assignee = *patch.Assignee
	}
	if patch.ApprovalStatus != nil {
		current.ApprovalStatus = *patch.ApprovalStatus
	}
	if patch.DownloadLink != nil {
		current.DownloadLink = *patch.DownloadLink
	}
	if patch.EmailSent != nil {
		current.EmailSent = *patch.EmailSent
	}
	current.UpdatedAt = now

	s.incidents[idx] = current
	return current.Clone(), nil
}

// GetIncidentByID returns the first incident with id, or NotFound.
func (s *Store) GetIncidentByID(id string) (domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.incidentIndexLocked(id)
	if idx < 0 {
		return domain.Incident{}, apperrors.NewNotFound("incident", map[string]any{"id": id})
	}
	return s.incidents[idx].Clone(), nil
}

// IncidentForTicket returns the incident whose RelatedSR is ticketID.
func (s *Store) IncidentForTicket(ticketID string) (domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inc := range s.incidents {
		if inc.RelatedSR == ticketID {
			return inc.Clone(), nil
		}
	}
	return domain.Incident{}, apperrors.NewNotFound("incident", map[string]any{"related_sr": ticketID})
}

// Incidents returns every incident, most recent first.
func (s *Store) Incidents() []domain.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, inc.Clone())
	}
	return out
}

func (s *Store) incidentIndexLocked(id string) int {
	for i := range s.incidents {
		if s.incidents[i].ID == id {
			return i
		}
	}
	return -1
}

// TimelineLabel renders an incident status the way timeline entries show it.
func TimelineLabel(status domain.IncidentStatus) string {
	switch status {
	case domain.IncidentStatusPendingApproval:
		return "Pending Approval"
	case domain.IncidentStatusApproved:
		return "Approved"
	case domain.IncidentStatusInProgress:
		return "In Progress"
	case domain.IncidentStatusEscalated:
		return "Escalated"
	case domain.IncidentStatusResolved:
		return "Resolved"
	case domain.IncidentStatusClosed:
		return "Closed"
	}
	return string(status)
}
