package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/chat"
	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

var epoch = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type harness struct {
	clock      *clock.FakeClock
	store      *repository.Store
	dispatcher *chat.Dispatcher
	bus        events.Dispatcher

	mu        sync.Mutex
	published []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: clock.Fake(epoch)}
	h.store = repository.NewStore(repository.WithClock(h.clock))
	h.bus = events.NewInMemoryDispatcher(zap.NewNop())
	h.bus.SubscribeAll(func(_ context.Context, e events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.published = append(h.published, e)
		return nil
	})
	h.dispatcher = chat.NewDispatcher(chat.Dependencies{
		Store:      h.store,
		Events:     h.bus,
		Clock:      h.clock,
		Logger:     zap.NewNop(),
		Script:     chat.DefaultScript(),
		DelayScale: 1,
		Rand:       func(int) int { return 1 },
	})
	t.Cleanup(h.dispatcher.Close)
	return h
}

func (h *harness) eventsOf(eventType events.EventType) []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Event
	for _, e := range h.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) send(t *testing.T, text string) *chat.Session {
	t.Helper()
	session := h.dispatcher.Session(domain.BusinessIdentity)
	_, err := h.dispatcher.Send(context.Background(), session, text)
	require.NoError(t, err)
	return session
}

func messagesOfType(msgs []domain.ChatMessage, typ domain.ChatMessageType) []domain.ChatMessage {
	var out []domain.ChatMessage
	for _, m := range msgs {
		if m.Role == domain.ChatRoleAssistant && m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestSensitivePayrollCreatesIncident(t *testing.T) {
	h := newHarness(t)
	session := h.send(t, "I need my payroll information")

	assert.True(t, session.Thinking())
	assert.Empty(t, h.store.Tickets())

	h.clock.Advance(5 * time.Second)
	tickets := h.store.Tickets()
	require.Len(t, tickets, 1)
	ticket := tickets[0]
	assert.Equal(t, "Payroll", ticket.Category)
	assert.Equal(t, domain.PriorityHigh, ticket.Priority)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.BusinessIdentity, ticket.RequestedBy)
	require.NotEmpty(t, ticket.ChatHistory)
	assert.Equal(t, "I need my payroll information", ticket.ChatHistory[0].Content)
	assert.Empty(t, h.store.Incidents())

	h.clock.Advance(2 * time.Second)
	assert.Empty(t, h.store.Incidents())

	h.clock.Advance(3 * time.Second)
	incidents := h.store.Incidents()
	require.Len(t, incidents, 1)
	inc := incidents[0]
	assert.Equal(t, domain.PriorityCritical, inc.Priority)
	assert.Equal(t, ticket.ID, inc.RelatedSR)
	assert.Equal(t, domain.IncidentStatusPendingApproval, inc.Status)
	assert.Equal(t, domain.ApproverIdentity, inc.Assignee)
	assert.Equal(t, domain.ApprovalPending, inc.ApprovalStatus)
	assert.Equal(t, domain.BusinessIdentity, inc.CreatedBy)
	require.Len(t, inc.Timeline, 2)
	assert.Equal(t, "Created", inc.Timeline[0].Status)
	assert.Equal(t, "Routed", inc.Timeline[1].Status)

	current, err := h.store.GetTicketByID(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, current.Status)
	assert.Empty(t, current.Comments)

	msgs := session.Messages()
	require.Len(t, messagesOfType(msgs, domain.ChatMessageTicket), 1)
	assert.Equal(t, ticket.ID, messagesOfType(msgs, domain.ChatMessageTicket)[0].TicketID)
	require.Len(t, messagesOfType(msgs, domain.ChatMessageIncident), 1)
	assert.Equal(t, inc.ID, messagesOfType(msgs, domain.ChatMessageIncident)[0].IncidentID)
	assert.False(t, session.Thinking())

	assert.Len(t, h.eventsOf(events.EventTicketCreated), 1)
	created := h.eventsOf(events.EventIncidentCreated)
	require.Len(t, created, 1)
	assert.Equal(t, ticket.ID, created[0].TicketID)
}

func TestInstallIsAutoResolved(t *testing.T) {
	h := newHarness(t)
	session := h.send(t, "install slack")

	h.clock.Advance(5 * time.Second)
	tickets := h.store.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, "Technical", tickets[0].Category)
	assert.Equal(t, domain.PriorityMedium, tickets[0].Priority)
	assert.Equal(t, domain.TicketStatusOpen, tickets[0].Status)

	h.clock.Advance(3 * time.Second)
	ticket, err := h.store.GetTicketByID(tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	require.Len(t, ticket.Comments, 1)
	assert.Contains(t, ticket.Comments[0].Content, "install")
	assert.Empty(t, h.store.Incidents())
	assert.Empty(t, h.eventsOf(events.EventIncidentCreated))

	last := session.Messages()[len(session.Messages())-1]
	assert.Equal(t, ticket.Comments[0].Content, last.Content)
}

func TestNonSensitivePayslipGetsEmailResolution(t *testing.T) {
	h := newHarness(t)
	h.send(t, "can I get my latest paycheck stub")
	h.clock.Advance(8 * time.Second)

	tickets := h.store.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, "Payroll", tickets[0].Category)
	assert.Equal(t, domain.TicketStatusResolved, tickets[0].Status)
	require.Len(t, tickets[0].Comments, 1)
	assert.Contains(t, tickets[0].Comments[0].Content, "check your email")
}

func TestStatusQueryDoesNotMutate(t *testing.T) {
	h := newHarness(t)
	session := h.send(t, "what's the status of my incident")
	h.clock.Advance(10 * time.Second)

	assert.Empty(t, h.store.Tickets())
	assert.Empty(t, h.store.Incidents())
	replies := messagesOfType(session.Messages(), domain.ChatMessageIncident)
	require.Len(t, replies, 1)
	assert.Equal(t, "INC00012345", replies[0].IncidentID)
	assert.NotEmpty(t, replies[0].Timeline)
	h.mu.Lock()
	assert.Empty(t, h.published)
	h.mu.Unlock()
}

func TestExpenseCreatesCompletedTicketAndReport(t *testing.T) {
	h := newHarness(t)
	session := h.send(t, "send me my expense report")
	h.clock.Advance(5 * time.Second)
	require.Len(t, h.store.Tickets(), 1)
	assert.Empty(t, messagesOfType(session.Messages(), domain.ChatMessageReport))

	h.clock.Advance(2 * time.Second)
	ticket := h.store.Tickets()[0]
	assert.Equal(t, domain.TicketStatusCompleted, ticket.Status)
	assert.Equal(t, "Finance", ticket.Category)
	reports := messagesOfType(session.Messages(), domain.ChatMessageReport)
	require.Len(t, reports, 1)
	assert.Contains(t, reports[0].ReportLink, ticket.ID)
	assert.Contains(t, reports[0].Content, "$")
}

func TestAccessCreatesPendingTicket(t *testing.T) {
	h := newHarness(t)
	session := h.send(t, "I need database access")
	h.clock.Advance(7 * time.Second)

	tickets := h.store.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, domain.TicketStatusPending, tickets[0].Status)
	assert.Equal(t, "Technical", tickets[0].Category)
	msgs := session.Messages()
	assert.Contains(t, msgs[len(msgs)-1].Content, "approval")
}

func TestClarifyUsesInjectedRandom(t *testing.T) {
	h := newHarness(t)
	session := h.send(t, "hello")
	h.clock.Advance(5 * time.Second)

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.DefaultScript().Templates.Clarifications[1], msgs[1].Content)
	assert.Empty(t, h.store.Tickets())
}

func TestNewTicketAppearsAtHead(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, repository.SeedHistory(h.store, domain.BusinessIdentity))
	h.send(t, "install zoom")
	h.clock.Advance(5 * time.Second)

	tickets := h.store.Tickets()
	assert.Regexp(t, `^SR-20240304-\d{3}$`, tickets[0].ID)
}

func TestEndSessionRevokesPendingSteps(t *testing.T) {
	h := newHarness(t)
	h.send(t, "I need my payroll information")
	h.clock.Advance(5 * time.Second)
	require.Len(t, h.store.Tickets(), 1)

	revoked := h.dispatcher.EndSession(domain.BusinessIdentity)
	assert.Equal(t, 1, revoked)

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.store.Incidents())

	fresh := h.dispatcher.Session(domain.BusinessIdentity)
	assert.Empty(t, fresh.Messages())
}

func TestSendRejectsBlankAndClosed(t *testing.T) {
	h := newHarness(t)
	session := h.dispatcher.Session(domain.BusinessIdentity)

	_, err := h.dispatcher.Send(context.Background(), session, "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	session.Close()
	_, err = h.dispatcher.Send(context.Background(), session, "install slack")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestChatPromptRequestedFeedsSession(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.RegisterHandlers()

	require.NoError(t, h.bus.Publish(context.Background(), events.Event{
		Type:    events.EventChatPromptRequested,
		Payload: events.ChatPromptRequestedPayload{Identity: domain.BusinessIdentity, Prompt: "install teams"},
	}))
	h.clock.Advance(5 * time.Second)

	require.Len(t, h.store.Tickets(), 1)
	msgs := h.dispatcher.Session(domain.BusinessIdentity).Messages()
	assert.Equal(t, "install teams", msgs[0].Content)
}

func TestInterleavedSessionsStaySequential(t *testing.T) {
	h := newHarness(t)
	h.send(t, "install slack")
	h.clock.Advance(time.Second)
	h.send(t, "install zoom")

	h.clock.Advance(4 * time.Second)
	require.Len(t, h.store.Tickets(), 1)
	h.clock.Advance(time.Second)
	require.Len(t, h.store.Tickets(), 2)

	h.clock.Advance(10 * time.Second)
	for _, ticket := range h.store.Tickets() {
		assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
		assert.Len(t, ticket.Comments, 1)
	}
}
