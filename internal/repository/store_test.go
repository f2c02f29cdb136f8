package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

var epoch = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func newStore() (*repository.Store, *clock.FakeClock) {
	fake := clock.Fake(epoch)
	return repository.NewStore(repository.WithClock(fake)), fake
}

func openTicket(id string) domain.Ticket {
	return domain.Ticket{ID: id, Title: id, Status: domain.TicketStatusOpen, Priority: domain.PriorityMedium}
}

func TestAddTicketInsertsAtHead(t *testing.T) {
	s, _ := newStore()
	require.NoError(t, s.AddTicket(openTicket("SR1")))
	require.NoError(t, s.AddTicket(openTicket("SR2")))

	tickets := s.Tickets()
	require.Len(t, tickets, 2)
	assert.Equal(t, "SR2", tickets[0].ID)
	assert.Equal(t, "SR1", tickets[1].ID)
}

func TestAddTicketRejectsDuplicateID(t *testing.T) {
	s, _ := newStore()
	require.NoError(t, s.AddTicket(openTicket("SR1")))
	err := s.AddTicket(openTicket("SR1"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateID)
	assert.Len(t, s.Tickets(), 1)
}

func TestCreateTicketAssignsMonotonicIDs(t *testing.T) {
	s, fake := newStore()
	first, err := s.CreateTicket(domain.Ticket{Status: domain.TicketStatusOpen, Priority: domain.PriorityLow})
	require.NoError(t, err)
	second, err := s.CreateTicket(domain.Ticket{Status: domain.TicketStatusOpen, Priority: domain.PriorityLow})
	require.NoError(t, err)

	assert.Equal(t, "SR-20240115-001", first.ID)
	assert.Equal(t, "SR-20240115-002", second.ID)
	assert.Equal(t, epoch, first.CreatedAt)

	fake.Advance(24 * time.Hour)
	third, err := s.CreateTicket(domain.Ticket{Status: domain.TicketStatusOpen, Priority: domain.PriorityLow})
	require.NoError(t, err)
	assert.Equal(t, "SR-20240116-001", third.ID)
}

func TestCreateTicketSkipsIDsAlreadyTaken(t *testing.T) {
	s, _ := newStore()
	require.NoError(t, s.AddTicket(openTicket("SR-20240115-001")))
	created, err := s.CreateTicket(domain.Ticket{Status: domain.TicketStatusOpen, Priority: domain.PriorityLow})
	require.NoError(t, err)
	assert.Equal(t, "SR-20240115-002", created.ID)
}

func TestUpdateTicketMergesAndAppendsComments(t *testing.T) {
	s, fake := newStore()
	require.NoError(t, s.AddTicket(openTicket("SR1")))
	fake.Advance(time.Minute)

	updated, err := s.UpdateTicket("SR1", repository.TicketPatch{
		Status:         repository.Ptr(domain.TicketStatusResolved),
		AppendComments: []domain.Comment{{Author: "AI Assistant", Content: "done"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	assert.Equal(t, domain.PriorityMedium, updated.Priority)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, epoch.Add(time.Minute), updated.Comments[0].Timestamp)
	assert.Equal(t, epoch.Add(time.Minute), updated.UpdatedAt)
}

func TestUpdateTicketMissingIDIsNotFound(t *testing.T) {
	s, _ := newStore()
	_, err := s.UpdateTicket("nope", repository.TicketPatch{Assignee: repository.Ptr("x")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, s.Tickets())
}

func TestClosedTicketIsTerminal(t *testing.T) {
	s, _ := newStore()
	require.NoError(t, s.AddTicket(openTicket("SR1")))
	_, err := s.UpdateTicket("SR1", repository.TicketPatch{Status: repository.Ptr(domain.TicketStatusClosed)})
	require.NoError(t, err)

	_, err = s.UpdateTicket("SR1", repository.TicketPatch{AppendComments: []domain.Comment{{Content: "late"}}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = s.UpdateTicket("SR1", repository.TicketPatch{Status: repository.Ptr(domain.TicketStatusOpen)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	got, err := s.GetTicketByID("SR1")
	require.NoError(t, err)
	assert.Empty(t, got.Comments)
}

func TestIllegalTicketTransitionIsRejected(t *testing.T) {
	s, _ := newStore()
	ticket := openTicket("SR1")
	ticket.Status = domain.TicketStatusCompleted
	require.NoError(t, s.AddTicket(ticket))

	_, err := s.UpdateTicket("SR1", repository.TicketPatch{Status: repository.Ptr(domain.TicketStatusInProgress)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestReadsReturnCopies(t *testing.T) {
	s, _ := newStore()
	ticket := openTicket("SR1")
	ticket.Comments = []domain.Comment{{Content: "a"}}
	require.NoError(t, s.AddTicket(ticket))

	got, err := s.GetTicketByID("SR1")
	require.NoError(t, err)
	got.Comments[0].Content = "mutated"

	again, err := s.GetTicketByID("SR1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Comments[0].Content)
}

func TestAddIncidentRequiresExistingRelatedSR(t *testing.T) {
	s, _ := newStore()
	_, err := s.CreateIncident(domain.Incident{
		Status:    domain.IncidentStatusPendingApproval,
		Priority:  domain.PriorityCritical,
		RelatedSR: "SR-missing",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, s.Incidents())
}

func TestUpdateIncidentAppendsOneTimelineEntryPerTransition(t *testing.T) {
	s, _ := newStore()
	require.NoError(t, s.AddTicket(openTicket("SR1")))
	inc, err := s.CreateIncident(domain.Incident{
		Status:    domain.IncidentStatusPendingApproval,
		Priority:  domain.PriorityCritical,
		RelatedSR: "SR1",
		Timeline:  []domain.TimelineEntry{{Status: "Created"}, {Status: "Routed"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INC00000001", inc.ID)

	inc, err = s.UpdateIncident(inc.ID, repository.IncidentPatch{
		Status:         repository.Ptr(domain.IncidentStatusApproved),
		ApprovalStatus: repository.Ptr(domain.ApprovalApproved),
		Note:           "Approved by security",
	})
	require.NoError(t, err)
	require.Len(t, inc.Timeline, 3)
	assert.Equal(t, "Approved", inc.Timeline[2].Status)
	assert.Equal(t, "Approved by security", inc.Timeline[2].Description)

	inc, err = s.UpdateIncident(inc.ID, repository.IncidentPatch{DownloadLink: repository.Ptr("https://example.test/file")})
	require.NoError(t, err)
	assert.Len(t, inc.Timeline, 3)

	found, err := s.IncidentForTicket("SR1")
	require.NoError(t, err)
	assert.Equal(t, inc.ID, found.ID)
}

func TestClosedIncidentIsTerminal(t *testing.T) {
	s, _ := newStore()
	inc, err := s.CreateIncident(domain.Incident{Status: domain.IncidentStatusApproved, Priority: domain.PriorityCritical})
	require.NoError(t, err)
	_, err = s.UpdateIncident(inc.ID, repository.IncidentPatch{Status: repository.Ptr(domain.IncidentStatusClosed)})
	require.NoError(t, err)

	_, err = s.UpdateIncident(inc.ID, repository.IncidentPatch{EmailSent: repository.Ptr(true)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestSeedHistory(t *testing.T) {
	s, _ := newStore()
	require.NoError(t, repository.SeedHistory(s, domain.BusinessIdentity))

	tickets := s.TicketsByRequester(domain.BusinessIdentity)
	require.Len(t, tickets, 3)
	assert.Equal(t, "SR1003", tickets[0].ID)
	for _, ticket := range tickets {
		assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	}
}
