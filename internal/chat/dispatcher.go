package chat

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/worker"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// Dependencies bundles what the dispatcher needs.
type Dependencies struct {
	Store   *repository.Store
	Events  events.Dispatcher
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Script  Script
	// DelayScale multiplies every script delay. Zero plays the script
	// without pauses.
	DelayScale float64
	// Rand picks a clarification reply in [0, n). Defaults to math/rand.
	Rand func(n int) int
}

// Dispatcher classifies chat messages and plays the matching script
// against a user's session.
type Dispatcher struct {
	store   *repository.Store
	events  events.Dispatcher
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
	script  Script
	scale   float64
	rand    func(n int) int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewDispatcher builds a dispatcher. A zero Script uses the built-in one.
func NewDispatcher(deps Dependencies) *Dispatcher {
	d := &Dispatcher{
		store:    deps.Store,
		events:   deps.Events,
		clock:    deps.Clock,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		script:   deps.Script,
		scale:    deps.DelayScale,
		rand:     deps.Rand,
		sessions: make(map[string]*Session),
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.script.Validate() != nil {
		d.script = DefaultScript()
	}
	if d.scale < 0 {
		d.scale = 1
	}
	if d.rand == nil {
		d.rand = rand.Intn
	}
	return d
}

// RegisterHandlers feeds ChatPromptRequested events into the requesting
// user's session.
func (d *Dispatcher) RegisterHandlers() {
	if d.events == nil {
		return
	}
	d.events.Subscribe(events.EventChatPromptRequested, d.handlePromptRequested)
}

func (d *Dispatcher) handlePromptRequested(ctx context.Context, event events.Event) error {
	var payload events.ChatPromptRequestedPayload
	switch p := event.Payload.(type) {
	case events.ChatPromptRequestedPayload:
		payload = p
	case *events.ChatPromptRequestedPayload:
		if p != nil {
			payload = *p
		}
	}
	identity := payload.Identity
	if identity == "" {
		identity = event.Actor.Identity
	}
	if identity == "" {
		return apperrors.NewValidationError("chat prompt without identity", nil)
	}
	_, err := d.Send(ctx, d.Session(identity), payload.Prompt)
	return err
}

// Session returns the live session for identity, opening one if needed.
func (d *Dispatcher) Session(identity string) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[identity]; ok && !s.Closed() {
		return s
	}
	s := newSession(identity, worker.NewScheduler(d.clock, d.logger.With(zap.String("chat_identity", identity))))
	d.sessions[identity] = s
	return s
}

// EndSession closes identity's session and returns how many scheduled
// steps were revoked.
func (d *Dispatcher) EndSession(identity string) int {
	d.mu.Lock()
	s, ok := d.sessions[identity]
	delete(d.sessions, identity)
	d.mu.Unlock()
	if !ok {
		return 0
	}
	revoked := s.Close()
	d.metrics.RecordRevoked(revoked)
	return revoked
}

// Close ends every session.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	identities := make([]string, 0, len(d.sessions))
	for id := range d.sessions {
		identities = append(identities, id)
	}
	d.mu.Unlock()
	for _, id := range identities {
		d.EndSession(id)
	}
}

// Send appends text to the session and schedules the scripted reply.
// Classification always succeeds; only blank input and closed sessions
// are rejected.
func (d *Dispatcher) Send(ctx context.Context, session *Session, text string) (Classification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Classification{}, apperrors.NewValidationError("message is required", nil)
	}
	if session == nil || session.Closed() {
		return Classification{}, apperrors.NewValidationError("chat session is closed", nil)
	}

	class := d.script.Keywords.Classify(text)
	d.metrics.RecordIntent(string(class.Intent), class.Sensitive)
	session.append(domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      domain.ChatRoleUser,
		Type:      domain.ChatMessageText,
		Content:   text,
		Timestamp: d.clock.Now(),
	})

	run := &scriptRun{
		d:       d,
		ctx:     context.WithoutCancel(ctx),
		session: session,
		text:    text,
		class:   class,
	}
	intent := class.Intent
	session.scheduler.RunSequence(run.steps(), func(err error) {
		if err != nil {
			d.logger.Error("chat script aborted",
				zap.String("identity", session.Identity()),
				zap.String("intent", string(intent)),
				zap.Error(err))
		}
	})
	return class, nil
}

// scriptRun carries the state of one Send across its delayed steps.
type scriptRun struct {
	d       *Dispatcher
	ctx     context.Context
	session *Session
	text    string
	class   Classification

	ticketID string
}

func (r *scriptRun) delay(ms int) time.Duration {
	return scaled(ms, r.d.scale)
}

// step wraps run so the thinking indicator is raised when the step is
// scheduled and cleared once it fires.
func (r *scriptRun) step(name string, ms int, run func() error) worker.Step {
	return worker.Step{
		Name:   name,
		Delay:  r.delay(ms),
		Before: r.session.startThinking,
		Run: func() error {
			r.session.stopThinking()
			return run()
		},
	}
}

func (r *scriptRun) steps() []worker.Step {
	delays := r.d.script.Delays
	switch r.class.Intent {
	case IntentPayroll, IntentInstall:
		steps := []worker.Step{r.step("create-ticket", delays.ThinkingMS, r.createRequestTicket)}
		if r.class.Sensitive {
			return append(steps,
				r.step("route-sensitive", delays.FollowUpMS, r.postSensitiveRouting),
				r.step("create-incident", delays.ResolutionMS, r.createIncident),
			)
		}
		return append(steps, r.step("resolve-ticket", delays.ResolutionMS, r.resolveTicket))
	case IntentExpense:
		return []worker.Step{
			r.step("create-expense-ticket", delays.ThinkingMS, r.createExpenseTicket),
			r.step("post-report", delays.FollowUpMS, r.postReport),
		}
	case IntentStatus:
		return []worker.Step{r.step("post-status", delays.ThinkingMS, r.postStatus)}
	case IntentAccess:
		return []worker.Step{
			r.step("create-access-ticket", delays.ThinkingMS, r.createAccessTicket),
			r.step("route-access", delays.FollowUpMS, r.postAccessRouting),
		}
	default:
		return []worker.Step{r.step("clarify", delays.ThinkingMS, r.postClarification)}
	}
}

func (r *scriptRun) reply(msg domain.ChatMessage) {
	msg.ID = uuid.NewString()
	msg.Role = domain.ChatRoleAssistant
	if msg.Type == "" {
		msg.Type = domain.ChatMessageText
	}
	msg.Timestamp = r.d.clock.Now()
	r.session.append(msg)
}

func (r *scriptRun) vars() map[string]string {
	return map[string]string{"ticket": r.ticketID}
}

func (r *scriptRun) openTicket(title, category, assignee string, status domain.TicketStatus, priority domain.Priority) (domain.Ticket, error) {
	ticket, err := r.d.store.CreateTicket(domain.Ticket{
		Title:       title,
		Description: r.text,
		Status:      status,
		Priority:    priority,
		Assignee:    assignee,
		Category:    category,
		RequestedBy: r.session.Identity(),
		ChatHistory: r.session.Messages(),
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	r.ticketID = ticket.ID
	r.d.metrics.RecordCreated("ticket", category)
	r.publish(events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		RequestedBy: ticket.RequestedBy,
		Title:       ticket.Title,
		Category:    ticket.Category,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
	})
	return ticket, nil
}

func (r *scriptRun) postTicket(tmpl string, ticket domain.Ticket) {
	r.reply(domain.ChatMessage{
		Type:     domain.ChatMessageTicket,
		Content:  render(tmpl, r.vars()),
		TicketID: ticket.ID,
	})
}

func (r *scriptRun) createRequestTicket() error {
	tmpl := r.d.script.Templates
	priority := domain.PriorityMedium
	if r.class.Sensitive {
		priority = domain.PriorityHigh
	}
	title, category, assignee := tmpl.InstallTitle, "Technical", tmpl.TechnicalAssignee
	if r.class.Intent == IntentPayroll {
		title, category, assignee = tmpl.PayrollTitle, "Payroll", tmpl.PayrollAssignee
	}
	ticket, err := r.openTicket(title, category, assignee, domain.TicketStatusOpen, priority)
	if err != nil {
		return err
	}
	r.postTicket(tmpl.TicketCreated, ticket)
	return nil
}

func (r *scriptRun) postSensitiveRouting() error {
	r.reply(domain.ChatMessage{Content: render(r.d.script.Templates.SensitiveRouting, r.vars())})
	return nil
}

func (r *scriptRun) createIncident() error {
	// Re-read so the incident reflects the ticket as it is now.
	ticket, err := r.d.store.GetTicketByID(r.ticketID)
	if err != nil {
		return err
	}
	now := r.d.clock.Now()
	tmpl := r.d.script.Templates
	incident, err := r.d.store.CreateIncident(domain.Incident{
		Title:          ticket.Title,
		Description:    ticket.Description,
		Status:         domain.IncidentStatusPendingApproval,
		Priority:       domain.PriorityCritical,
		Assignee:       domain.ApproverIdentity,
		Category:       ticket.Category,
		CreatedBy:      r.session.Identity(),
		RelatedSR:      ticket.ID,
		ApprovalStatus: domain.ApprovalPending,
		Timeline: []domain.TimelineEntry{
			{Status: "Created", Timestamp: now, Description: "Incident created from " + ticket.ID},
			{Status: "Routed", Timestamp: now, Description: tmpl.RoutedTimelineNote},
		},
	})
	if err != nil {
		return err
	}
	r.d.metrics.RecordCreated("incident", incident.Category)
	r.reply(domain.ChatMessage{
		Type:       domain.ChatMessageIncident,
		Content:    render(tmpl.IncidentCreated, map[string]string{"ticket": ticket.ID, "incident": incident.ID}),
		TicketID:   ticket.ID,
		IncidentID: incident.ID,
		Timeline:   incident.Timeline,
	})
	r.publish(events.EventIncidentCreated, ticket.ID, events.IncidentCreatedPayload{
		IncidentID: incident.ID,
		CreatedBy:  incident.CreatedBy,
		Title:      incident.Title,
		Priority:   incident.Priority,
		RelatedSR:  incident.RelatedSR,
	})
	return nil
}

func (r *scriptRun) resolveTicket() error {
	tmpl := r.d.script.Templates
	resolution := tmpl.InstallResolution
	if r.class.Intent == IntentPayroll {
		resolution = tmpl.PayrollResolution
	}
	_, err := r.d.store.UpdateTicket(r.ticketID, repository.TicketPatch{
		Status: repository.Ptr(domain.TicketStatusResolved),
		AppendComments: []domain.Comment{{
			Author:    "Assistant",
			Content:   resolution,
			Timestamp: r.d.clock.Now(),
		}},
	})
	if err != nil {
		return err
	}
	r.reply(domain.ChatMessage{Content: resolution, TicketID: r.ticketID})
	return nil
}

func (r *scriptRun) createExpenseTicket() error {
	tmpl := r.d.script.Templates
	ticket, err := r.openTicket(tmpl.ExpenseTitle, "Finance", tmpl.FinanceAssignee, domain.TicketStatusCompleted, domain.PriorityLow)
	if err != nil {
		return err
	}
	r.postTicket(tmpl.ExpenseCreated, ticket)
	return nil
}

func (r *scriptRun) postReport() error {
	tmpl := r.d.script.Templates
	link := render(tmpl.ReportLink, r.vars())
	r.reply(domain.ChatMessage{
		Type:       domain.ChatMessageReport,
		Content:    render(tmpl.ExpenseReport, map[string]string{"ticket": r.ticketID, "link": link}),
		TicketID:   r.ticketID,
		ReportLink: link,
	})
	return nil
}

func (r *scriptRun) postStatus() error {
	tmpl := r.d.script.Templates
	r.reply(domain.ChatMessage{
		Type:       domain.ChatMessageIncident,
		Content:    render(tmpl.StatusReply, map[string]string{"incident": tmpl.DemoIncidentID}),
		IncidentID: tmpl.DemoIncidentID,
		Timeline:   demoTimeline(r.d.clock.Now()),
	})
	return nil
}

// demoTimeline is the canned history shown for the demo incident.
func demoTimeline(now time.Time) []domain.TimelineEntry {
	return []domain.TimelineEntry{
		{Status: "Created", Timestamp: now.Add(-72 * time.Hour), Description: "Incident logged by service desk"},
		{Status: "In Progress", Timestamp: now.Add(-48 * time.Hour), Description: "Assigned to messaging team"},
		{Status: "Escalated", Timestamp: now.Add(-24 * time.Hour), Description: "Escalated to vendor support"},
		{Status: "Pending Approval", Timestamp: now.Add(-2 * time.Hour), Description: "Fix awaiting change approval"},
	}
}

func (r *scriptRun) createAccessTicket() error {
	tmpl := r.d.script.Templates
	priority := domain.PriorityMedium
	if r.class.Sensitive {
		priority = domain.PriorityHigh
	}
	ticket, err := r.openTicket(tmpl.AccessTitle, "Technical", tmpl.TechnicalAssignee, domain.TicketStatusPending, priority)
	if err != nil {
		return err
	}
	r.postTicket(tmpl.AccessCreated, ticket)
	return nil
}

func (r *scriptRun) postAccessRouting() error {
	r.reply(domain.ChatMessage{Content: render(r.d.script.Templates.AccessRouting, r.vars()), TicketID: r.ticketID})
	return nil
}

func (r *scriptRun) postClarification() error {
	replies := r.d.script.Templates.Clarifications
	idx := r.d.rand(len(replies))
	if idx < 0 || idx >= len(replies) {
		idx = 0
	}
	r.reply(domain.ChatMessage{Content: replies[idx]})
	return nil
}

func (r *scriptRun) publish(eventType events.EventType, ticketID string, payload any) {
	if r.d.events == nil {
		return
	}
	err := r.d.events.Publish(r.ctx, events.Event{
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{Identity: r.session.Identity(), Role: domain.RoleBusiness},
		Timestamp: r.d.clock.Now(),
		Payload:   payload,
	})
	if err != nil {
		r.d.logger.Warn("publish failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
