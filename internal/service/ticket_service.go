package service

import (
	"context"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// TicketService answers the read side of both portals.
type TicketService struct {
	store *repository.Store
}

// TicketFilter narrows ticket listings. Empty slices match everything.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.Priority
	Category   string
	Limit      int
	Offset     int
}

// IncidentFilter narrows incident listings.
type IncidentFilter struct {
	Statuses []domain.IncidentStatus
	Assignee string
	Limit    int
	Offset   int
}

// NewTicketService builds the service.
func NewTicketService(store *repository.Store) *TicketService {
	return &TicketService{store: store}
}

// ListUserTickets returns the requester's tickets, most recent first.
func (s *TicketService) ListUserTickets(ctx context.Context, requester string, filter TicketFilter) []domain.Ticket {
	return filterTickets(s.store.TicketsByRequester(requester), filter)
}

// GetTicketForUser fetches a ticket ensuring ownership. Tickets owned by
// someone else are reported as not found.
func (s *TicketService) GetTicketForUser(ctx context.Context, requester, ticketID string) (domain.Ticket, error) {
	ticket, err := s.store.GetTicketByID(ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if ticket.RequestedBy != requester {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return ticket, nil
}

// GetIncidentForUser fetches an incident raised by requester.
func (s *TicketService) GetIncidentForUser(ctx context.Context, requester, incidentID string) (domain.Incident, error) {
	incident, err := s.store.GetIncidentByID(incidentID)
	if err != nil {
		return domain.Incident{}, err
	}
	if incident.CreatedBy != requester {
		return domain.Incident{}, apperrors.NewNotFound("incident", map[string]any{"id": incidentID})
	}
	return incident, nil
}

// ListStaffTickets returns every ticket matching filter.
func (s *TicketService) ListStaffTickets(ctx context.Context, filter TicketFilter) []domain.Ticket {
	return filterTickets(s.store.Tickets(), filter)
}

// GetTicketForStaff fetches any ticket.
func (s *TicketService) GetTicketForStaff(ctx context.Context, ticketID string) (domain.Ticket, error) {
	return s.store.GetTicketByID(ticketID)
}

// ListIncidents returns every incident matching filter.
func (s *TicketService) ListIncidents(ctx context.Context, filter IncidentFilter) []domain.Incident {
	statuses := make(map[domain.IncidentStatus]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}
	out := []domain.Incident{}
	for _, inc := range s.store.Incidents() {
		if len(statuses) > 0 {
			if _, ok := statuses[inc.Status]; !ok {
				continue
			}
		}
		if filter.Assignee != "" && inc.Assignee != filter.Assignee {
			continue
		}
		out = append(out, inc)
	}
	return paginate(out, filter.Limit, filter.Offset)
}

func filterTickets(tickets []domain.Ticket, filter TicketFilter) []domain.Ticket {
	statuses := make(map[domain.TicketStatus]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}
	priorities := make(map[domain.Priority]struct{}, len(filter.Priorities))
	for _, p := range filter.Priorities {
		priorities[p] = struct{}{}
	}

	out := []domain.Ticket{}
	for _, t := range tickets {
		if len(statuses) > 0 {
			if _, ok := statuses[t.Status]; !ok {
				continue
			}
		}
		if len(priorities) > 0 {
			if _, ok := priorities[t.Priority]; !ok {
				continue
			}
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		out = append(out, t)
	}
	return paginate(out, filter.Limit, filter.Offset)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
