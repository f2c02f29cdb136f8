package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/worker"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// SupportService is the single authority for support engineer actions
// on tickets and incidents.
type SupportService struct {
	store      *repository.Store
	dispatcher events.Dispatcher
	clock      clock.Clock
	scheduler  *worker.Scheduler
	logger     *zap.Logger
	cfg        config.SupportConfig

	mu        sync.Mutex
	approvals map[string]func() bool
}

// SupportDependencies bundles collaborators for the support service.
type SupportDependencies struct {
	Store      *repository.Store
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
	Config     config.SupportConfig
}

// NewSupportService builds the service.
func NewSupportService(deps SupportDependencies) *SupportService {
	s := &SupportService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
		cfg:        deps.Config,
		approvals:  make(map[string]func() bool),
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.scheduler = worker.NewScheduler(s.clock, s.logger.Named("approvals"))
	return s
}

// AddWorklog appends a worklog comment to a ticket and tells the
// requester. The Ticket Resolved action also resolves the ticket.
func (s *SupportService) AddWorklog(ctx context.Context, ticketID, author string, action events.SupportAction, content string) (domain.Ticket, error) {
	if !action.Valid() {
		return domain.Ticket{}, apperrors.NewValidationError("unknown worklog action", map[string]any{"action": action})
	}
	if strings.TrimSpace(author) == "" {
		author = domain.SupportIdentity
	}
	content = strings.TrimSpace(content)
	if content == "" {
		content = string(action)
	}

	patch := repository.TicketPatch{
		AppendComments: []domain.Comment{{
			Author:    author,
			Content:   fmt.Sprintf("[%s] %s", action, content),
			Timestamp: s.clock.Now(),
		}},
	}
	if action == events.ActionTicketResolved {
		patch.Status = repository.Ptr(domain.TicketStatusResolved)
	}
	ticket, err := s.store.UpdateTicket(ticketID, patch)
	if err != nil {
		return domain.Ticket{}, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventSupportActionTaken,
		TicketID: ticket.ID,
		Actor:    events.Actor{Identity: author, Role: domain.RoleSupport},
		Payload:  events.SupportActionPayload{Action: action, Content: content},
	})
	return ticket, nil
}

// RequestApproval marks the incident's approval pending and schedules
// the simulated grant. The grant re-reads the incident when it fires
// and does nothing if a decision was already recorded.
func (s *SupportService) RequestApproval(ctx context.Context, incidentID string) (domain.Incident, error) {
	current, err := s.store.GetIncidentByID(incidentID)
	if err != nil {
		return domain.Incident{}, err
	}
	if current.ApprovalStatus == domain.ApprovalApproved {
		return current, nil
	}
	incident, err := s.store.UpdateIncident(incidentID, repository.IncidentPatch{
		ApprovalStatus: repository.Ptr(domain.ApprovalPending),
	})
	if err != nil {
		return domain.Incident{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, scheduled := s.approvals[incidentID]; scheduled {
		return incident, nil
	}
	s.approvals[incidentID] = s.scheduler.After(s.cfg.ApprovalDelay, func() {
		s.mu.Lock()
		delete(s.approvals, incidentID)
		s.mu.Unlock()

		latest, err := s.store.GetIncidentByID(incidentID)
		if err != nil || latest.ApprovalStatus != domain.ApprovalPending || latest.Status.Terminal() {
			return
		}
		if _, err := s.grant(incidentID, "Approval granted by "+domain.ApproverIdentity); err != nil {
			s.logger.Warn("scheduled approval failed", zap.String("incident_id", incidentID), zap.Error(err))
			return
		}
		s.logger.Info("incident approved", zap.String("incident_id", incidentID))
	})
	return incident, nil
}

// Approve grants approval immediately.
func (s *SupportService) Approve(ctx context.Context, incidentID string) (domain.Incident, error) {
	s.cancelApproval(incidentID)
	return s.grant(incidentID, "Approved by support")
}

func (s *SupportService) grant(incidentID, note string) (domain.Incident, error) {
	current, err := s.store.GetIncidentByID(incidentID)
	if err != nil {
		return domain.Incident{}, err
	}
	patch := repository.IncidentPatch{
		ApprovalStatus: repository.Ptr(domain.ApprovalApproved),
		Note:           note,
	}
	// An incident already past approval keeps its status.
	if current.Status != domain.IncidentStatusApproved && current.Status.CanTransition(domain.IncidentStatusApproved) {
		patch.Status = repository.Ptr(domain.IncidentStatusApproved)
	}
	return s.store.UpdateIncident(incidentID, patch)
}

// Reject records a rejection and closes the incident.
func (s *SupportService) Reject(ctx context.Context, incidentID, reason string) (domain.Incident, error) {
	s.cancelApproval(incidentID)
	note := "Rejected by approver"
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	return s.store.UpdateIncident(incidentID, repository.IncidentPatch{
		Status:         repository.Ptr(domain.IncidentStatusClosed),
		ApprovalStatus: repository.Ptr(domain.ApprovalRejected),
		Note:           note,
	})
}

// Escalate moves the incident to escalated.
func (s *SupportService) Escalate(ctx context.Context, incidentID, note string) (domain.Incident, error) {
	if strings.TrimSpace(note) == "" {
		note = "Escalated by support"
	}
	return s.store.UpdateIncident(incidentID, repository.IncidentPatch{
		Status: repository.Ptr(domain.IncidentStatusEscalated),
		Note:   note,
	})
}

// AttachDownloadLink stores the document link once approval is granted.
func (s *SupportService) AttachDownloadLink(ctx context.Context, incidentID, link string) (domain.Incident, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return domain.Incident{}, apperrors.NewValidationError("download link is required", nil)
	}
	current, err := s.store.GetIncidentByID(incidentID)
	if err != nil {
		return domain.Incident{}, err
	}
	if current.ApprovalStatus != domain.ApprovalApproved {
		return domain.Incident{}, apperrors.NewValidationError("incident is not approved", map[string]any{"approval_status": current.ApprovalStatus})
	}
	return s.store.UpdateIncident(incidentID, repository.IncidentPatch{DownloadLink: &link})
}

// SendEmail marks the download link as emailed to the requester.
func (s *SupportService) SendEmail(ctx context.Context, incidentID string) (domain.Incident, error) {
	current, err := s.store.GetIncidentByID(incidentID)
	if err != nil {
		return domain.Incident{}, err
	}
	if current.DownloadLink == "" {
		return domain.Incident{}, apperrors.NewValidationError("attach a download link before sending email", nil)
	}
	return s.store.UpdateIncident(incidentID, repository.IncidentPatch{EmailSent: repository.Ptr(true)})
}

// CloseIncident closes the incident and its linked ticket, then
// publishes TicketResolved. A closed incident cannot be closed again,
// so the event goes out once.
func (s *SupportService) CloseIncident(ctx context.Context, incidentID string) (domain.Incident, error) {
	s.cancelApproval(incidentID)
	incident, err := s.store.UpdateIncident(incidentID, repository.IncidentPatch{
		Status: repository.Ptr(domain.IncidentStatusClosed),
		Note:   "Closed by support",
	})
	if err != nil {
		return domain.Incident{}, err
	}

	ticketID := incident.ID
	requester := incident.CreatedBy
	if incident.RelatedSR != "" {
		ticketID = incident.RelatedSR
		ticket, err := s.store.GetTicketByID(incident.RelatedSR)
		switch {
		case err != nil:
			s.logger.Warn("linked ticket missing", zap.String("incident_id", incident.ID), zap.Error(err))
		case ticket.Status.Terminal():
		default:
			if _, err := s.store.UpdateTicket(ticket.ID, repository.TicketPatch{
				Status: repository.Ptr(domain.TicketStatusClosed),
			}); err != nil {
				return incident, err
			}
		}
		if err == nil && ticket.RequestedBy != "" {
			requester = ticket.RequestedBy
		}
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticketID,
		Actor:    events.Actor{Identity: domain.SupportIdentity, Role: domain.RoleSupport},
		Payload: events.TicketResolvedPayload{
			IncidentID:  incident.ID,
			RequestedBy: requester,
			Title:       incident.Title,
		},
	})
	return incident, nil
}

// PendingApprovals returns how many scheduled grants are outstanding.
func (s *SupportService) PendingApprovals() int {
	return s.scheduler.Pending()
}

// Shutdown revokes every scheduled approval.
func (s *SupportService) Shutdown() {
	s.scheduler.Close()
	s.mu.Lock()
	s.approvals = make(map[string]func() bool)
	s.mu.Unlock()
}

func (s *SupportService) cancelApproval(incidentID string) {
	s.mu.Lock()
	cancel, ok := s.approvals[incidentID]
	delete(s.approvals, incidentID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *SupportService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
