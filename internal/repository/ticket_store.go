package repository

import (
	"strings"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// TicketPatch lists the fields UpdateTicket merges. Nil fields are left alone.
type TicketPatch struct {
	Status         *domain.TicketStatus
	Priority       *domain.Priority
	Assignee       *string
	Category       *string
	AppendComments []domain.Comment
}

// AddTicket inserts ticket at the head of the collection. The ID must be
// set and unused.
func (s *Store) AddTicket(ticket domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTicketLocked(ticket)
}

// CreateTicket assigns a fresh ID and timestamps, then inserts the ticket.
func (s *Store) CreateTicket(ticket domain.Ticket) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	ticket.ID = s.nextTicketIDLocked()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if err := s.addTicketLocked(ticket); err != nil {
		return domain.Ticket{}, err
	}
	return ticket.Clone(), nil
}

func (s *Store) addTicketLocked(ticket domain.Ticket) error {
	if strings.TrimSpace(ticket.ID) == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}
	if !ticket.Status.Valid() {
		return apperrors.NewValidationError("unknown ticket status", map[string]any{"status": ticket.Status})
	}
	if !ticket.Priority.Valid() {
		return apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": ticket.Priority})
	}
	if s.ticketIndexLocked(ticket.ID) >= 0 {
		return apperrors.NewDuplicateID("ticket", ticket.ID)
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = s.clock.Now()
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = ticket.CreatedAt
	}
	s.tickets = append([]domain.Ticket{ticket.Clone()}, s.tickets...)
	return nil
}

func (s *Store) nextTicketIDLocked() string {
	for {
		id := s.ids.NextTicketID(s.clock.Now())
		if s.ticketIndexLocked(id) < 0 {
			return id
		}
	}
}

// UpdateTicket merges patch into the current ticket. Absent IDs return
// NotFound; illegal status moves and edits of closed tickets return
// InvalidTransition. Nothing is written on error.
func (s *Store) UpdateTicket(id string, patch TicketPatch) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.ticketIndexLocked(id)
	if idx < 0 {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	current := s.tickets[idx].Clone()

	if current.Status.Terminal() {
		next := current.Status
		if patch.Status != nil {
			next = *patch.Status
		}
		return domain.Ticket{}, apperrors.NewInvalidTransition("ticket", string(current.Status), string(next))
	}
	if patch.Status != nil {
		if !patch.Status.Valid() || !current.Status.CanTransition(*patch.Status) {
			return domain.Ticket{}, apperrors.NewInvalidTransition("ticket", string(current.Status), string(*patch.Status))
		}
		current.Status = *patch.Status
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return domain.Ticket{}, apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": *patch.Priority})
		}
		current.Priority = *patch.Priority
	}
	if patch.Assignee != nil {
		current.Assignee = *patch.Assignee
	}
	if patch.Category != nil {
		current.Category = *patch.Category
	}
	now := s.clock.Now()
	for _, comment := range patch.AppendComments {
		if comment.Timestamp.IsZero() {
			comment.Timestamp = now
		}
		current.Comments = append(current.Comments, comment)
	}
	current.UpdatedAt = now

	s.tickets[idx] = current
	return current.Clone(), nil
}

// GetTicketByID returns the first ticket with id, or NotFound.
func (s *Store) GetTicketByID(id string) (domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.ticketIndexLocked(id)
	if idx < 0 {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return s.tickets[idx].Clone(), nil
}

// Tickets returns every ticket, most recent first.
func (s *Store) Tickets() []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t.Clone())
	}
	return out
}

// TicketsByRequester returns the tickets raised by identity, most recent first.
func (s *Store) TicketsByRequester(identity string) []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.RequestedBy == identity {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (s *Store) ticketIndexLocked(id string) int {
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			return i
		}
	}
	return -1
}
