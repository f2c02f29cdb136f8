package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

func newSupport(t *testing.T, f *fixture) *service.SupportService {
	t.Helper()
	s := service.NewSupportService(service.SupportDependencies{
		Store:      f.store,
		Dispatcher: f.bus,
		Clock:      f.clock,
		Logger:     zap.NewNop(),
		Config:     config.SupportConfig{ApprovalDelay: 5 * time.Second},
	})
	t.Cleanup(s.Shutdown)
	return s
}

func (f *fixture) createIncident(t *testing.T, ticketID string) domain.Incident {
	t.Helper()
	inc, err := f.store.CreateIncident(domain.Incident{
		Title:          "Payroll information request",
		Status:         domain.IncidentStatusPendingApproval,
		Priority:       domain.PriorityCritical,
		Assignee:       domain.ApproverIdentity,
		CreatedBy:      domain.BusinessIdentity,
		RelatedSR:      ticketID,
		ApprovalStatus: domain.ApprovalPending,
	})
	require.NoError(t, err)
	return inc
}

func TestAddWorklogNotifiesRequester(t *testing.T) {
	f := newFixture(t, nil)
	support := newSupport(t, f)
	ctx := context.Background()
	ticket := f.createTicket(t)

	updated, err := support.AddWorklog(ctx, ticket.ID, domain.SupportIdentity, events.ActionResolutionSent, "Sent the steps")
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)

	_, err = support.AddWorklog(ctx, ticket.ID, domain.SupportIdentity, events.ActionResolutionSent, "Sent again")
	require.NoError(t, err)

	list, err := f.notifications.List(ctx, domain.BusinessIdentity)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ticket.ID, list[0].TicketID)

	resolved, err := support.AddWorklog(ctx, ticket.ID, "", events.ActionTicketResolved, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	assert.Len(t, resolved.Comments, 3)

	_, err = support.AddWorklog(ctx, ticket.ID, "", "Bogus", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = support.AddWorklog(ctx, "SR-missing", "", events.ActionResolutionSent, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRequestApprovalGrantsAfterDelay(t *testing.T) {
	f := newFixture(t, nil)
	support := newSupport(t, f)
	ctx := context.Background()
	inc := f.createIncident(t, f.createTicket(t).ID)

	_, err := support.RequestApproval(ctx, inc.ID)
	require.NoError(t, err)
	_, err = support.RequestApproval(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, support.PendingApprovals())

	f.clock.Advance(4 * time.Second)
	current, err := f.store.GetIncidentByID(inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusPendingApproval, current.Status)

	f.clock.Advance(time.Second)
	current, err = f.store.GetIncidentByID(inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusApproved, current.Status)
	assert.Equal(t, domain.ApprovalApproved, current.ApprovalStatus)
	require.Len(t, current.Timeline, 1)
	assert.Equal(t, "Approved", current.Timeline[0].Status)
}

func TestScheduledApprovalSkipsRejectedIncident(t *testing.T) {
	f := newFixture(t, nil)
	support := newSupport(t, f)
	ctx := context.Background()
	inc := f.createIncident(t, f.createTicket(t).ID)

	_, err := support.RequestApproval(ctx, inc.ID)
	require.NoError(t, err)
	rejected, err := support.Reject(ctx, inc.ID, "not justified")
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusClosed, rejected.Status)
	assert.Equal(t, domain.ApprovalRejected, rejected.ApprovalStatus)
	assert.Zero(t, support.PendingApprovals())

	f.clock.Advance(time.Minute)
	current, err := f.store.GetIncidentByID(inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusClosed, current.Status)
	assert.Len(t, current.Timeline, 1)
}

func TestApprovalKeepsStatusPastApproval(t *testing.T) {
	f := newFixture(t, nil)
	support := newSupport(t, f)
	ctx := context.Background()

	working := f.createIncident(t, f.createTicket(t).ID)
	_, err := f.store.UpdateIncident(working.ID, repository.IncidentPatch{Status: repository.Ptr(domain.IncidentStatusInProgress)})
	require.NoError(t, err)
	_, err = support.RequestApproval(ctx, working.ID)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Second)

	current, err := f.store.GetIncidentByID(working.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusInProgress, current.Status)
	assert.Equal(t, domain.ApprovalApproved, current.ApprovalStatus)
	assert.Zero(t, support.PendingApprovals())

	done := f.createIncident(t, f.createTicket(t).ID)
	_, err = f.store.UpdateIncident(done.ID, repository.IncidentPatch{Status: repository.Ptr(domain.IncidentStatusInProgress)})
	require.NoError(t, err)
	_, err = f.store.UpdateIncident(done.ID, repository.IncidentPatch{Status: repository.Ptr(domain.IncidentStatusResolved)})
	require.NoError(t, err)

	approved, err := support.Approve(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, approved.Status)
	assert.Equal(t, domain.ApprovalApproved, approved.ApprovalStatus)

	linked, err := support.AttachDownloadLink(ctx, done.ID, "https://files.example.com/payroll.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/payroll.pdf", linked.DownloadLink)
}

func TestShutdownRevokesApprovals(t *testing.T) {
	f := newFixture(t, nil)
	support := newSupport(t, f)
	inc := f.createIncident(t, f.createTicket(t).ID)

	_, err := support.RequestApproval(context.Background(), inc.ID)
	require.NoError(t, err)
	support.Shutdown()
	f.clock.Advance(time.Minute)

	current, err := f.store.GetIncidentByID(inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusPendingApproval, current.Status)
}

func TestLinkEmailAndCloseFlow(t *testing.T) {
	f := newFixture(t, nil)
	support := newSupport(t, f)
	ctx := context.Background()
	ticket := f.createTicket(t)
	inc := f.createIncident(t, ticket.ID)

	_, err := support.AttachDownloadLink(ctx, inc.ID, "https://contoso.sharepoint.com/doc")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = support.SendEmail(ctx, inc.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = support.Approve(ctx, inc.ID)
	require.NoError(t, err)
	_, err = support.AttachDownloadLink(ctx, inc.ID, "https://contoso.sharepoint.com/doc")
	require.NoError(t, err)
	emailed, err := support.SendEmail(ctx, inc.ID)
	require.NoError(t, err)
	assert.True(t, emailed.EmailSent)

	closed, err := support.CloseIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusClosed, closed.Status)
	assert.Len(t, closed.Timeline, 2)

	linked, err := f.store.GetTicketByID(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, linked.Status)

	_, err = support.CloseIncident(ctx, inc.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, 1, f.count(events.EventTicketResolved))

	list, err := f.notifications.List(ctx, domain.BusinessIdentity)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationResolved, list[0].Type)
	assert.Equal(t, ticket.ID, list[0].TicketID)
	assert.True(t, list[0].Toast)
}

func TestEscalate(t *testing.T) {
	f := newFixture(t, nil)
	support := newSupport(t, f)
	inc := f.createIncident(t, "")

	escalated, err := support.Escalate(context.Background(), inc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusEscalated, escalated.Status)
	require.Len(t, escalated.Timeline, 1)
	assert.Equal(t, "Escalated by support", escalated.Timeline[0].Description)
}
