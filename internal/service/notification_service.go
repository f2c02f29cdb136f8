package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/persistence"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

const (
	notificationsSlot     = "notifications:"
	notifiedIncidentsSlot = "notified-incidents:"
)

// NotificationService turns domain events into per-user notification
// lists and keeps them in the configured key/value slots.
type NotificationService struct {
	dispatcher events.Dispatcher
	store      *repository.Store
	kv         persistence.KV
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig

	// mu serializes slot read-modify-write cycles.
	mu          sync.Mutex
	lastActions map[string]time.Time
}

// NotificationDependencies bundles collaborators for the service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Store      *repository.Store
	KV         persistence.KV
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Config     config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	n := &NotificationService{
		dispatcher:  deps.Dispatcher,
		store:       deps.Store,
		kv:          deps.KV,
		clock:       deps.Clock,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		cfg:         deps.Config,
		lastActions: make(map[string]time.Time),
	}
	if n.kv == nil {
		n.kv = persistence.NewMemoryKV()
	}
	if n.clock == nil {
		n.clock = clock.Real()
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventIncidentCreated, n.handleIncidentCreated)
	n.dispatcher.Subscribe(events.EventSupportActionTaken, n.handleSupportAction)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, _ := payloadAs[events.TicketCreatedPayload](event.Payload)
	recipient := firstNonEmpty(payload.RequestedBy, event.Actor.Identity)
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.String("recipient", recipient))
	if recipient == "" {
		return nil
	}
	_, err := n.appendUnless(ctx, recipient, domain.Notification{
		Title:    "Ticket Created",
		Message:  fmt.Sprintf("Service request %s has been created: %s", event.TicketID, payload.Title),
		Type:     domain.NotificationInfo,
		TicketID: event.TicketID,
	}, createdFor(event.TicketID))
	return err
}

func (n *NotificationService) handleIncidentCreated(ctx context.Context, event events.Event) error {
	payload, ok := payloadAs[events.IncidentCreatedPayload](event.Payload)
	if !ok || payload.IncidentID == "" {
		return apperrors.NewValidationError("incident created without incident id", nil)
	}
	n.logger.Info("IncidentCreated", zap.String("incident_id", payload.IncidentID), zap.String("related_sr", payload.RelatedSR))

	if recipient := firstNonEmpty(payload.CreatedBy, event.Actor.Identity); recipient != "" {
		if _, err := n.appendUnless(ctx, recipient, domain.Notification{
			Title:    "Incident Created",
			Message:  fmt.Sprintf("Incident %s has been raised and is pending approval.", payload.IncidentID),
			Type:     domain.NotificationWarning,
			TicketID: payload.IncidentID,
		}, createdFor(payload.IncidentID)); err != nil {
			return err
		}
	}

	for _, acc := range domain.AccountsWithRole(domain.RoleSupport) {
		if _, err := n.assignIfUnseen(ctx, acc.Identity, payload.IncidentID, payload.Title, payload.Priority); err != nil {
			return err
		}
	}
	return nil
}

func (n *NotificationService) handleSupportAction(ctx context.Context, event events.Event) error {
	payload, ok := payloadAs[events.SupportActionPayload](event.Payload)
	if !ok || !payload.Action.Valid() {
		return apperrors.NewValidationError("unknown support action", map[string]any{"payload": event.Payload})
	}
	if event.TicketID == "" {
		return apperrors.NewValidationError("support action without ticket id", nil)
	}

	recipient := n.requesterOf(event.TicketID)
	notificationType := domain.NotificationInfo
	if payload.Action == events.ActionTicketResolved {
		notificationType = domain.NotificationSuccess
	}
	key := event.TicketID + "|" + string(payload.Action)
	now := n.clock.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.recentActionLocked(key, now) {
		n.logger.Debug("support action deduplicated",
			zap.String("ticket_id", event.TicketID),
			zap.String("action", string(payload.Action)))
		return nil
	}
	if _, err := n.appendLocked(ctx, recipient, domain.Notification{
		Title:    string(payload.Action),
		Message:  fmt.Sprintf("Support updated %s: %s", event.TicketID, strings.ToLower(string(payload.Action))),
		Type:     notificationType,
		TicketID: event.TicketID,
	}, nil); err != nil {
		return err
	}
	if n.cfg.DedupWindow > 0 {
		n.lastActions[key] = now
	}
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	payload, _ := payloadAs[events.TicketResolvedPayload](event.Payload)
	if event.TicketID == "" {
		return apperrors.NewValidationError("ticket resolved without ticket id", nil)
	}
	recipient := firstNonEmpty(payload.RequestedBy, n.requesterOf(event.TicketID))
	_, err := n.appendUnless(ctx, recipient, domain.Notification{
		Title:    "Ticket Resolved",
		Message:  fmt.Sprintf("Your request %s has been resolved and closed.", event.TicketID),
		Type:     domain.NotificationResolved,
		TicketID: event.TicketID,
		Toast:    true,
	}, func(existing domain.Notification) bool {
		return existing.TicketID == event.TicketID && existing.Type == domain.NotificationResolved
	})
	return err
}

// recentActionLocked reports whether key was delivered inside the
// dedup window, pruning expired keys. The caller holds n.mu.
func (n *NotificationService) recentActionLocked(key string, now time.Time) bool {
	if last, ok := n.lastActions[key]; ok && now.Sub(last) < n.cfg.DedupWindow {
		return true
	}
	for k, at := range n.lastActions {
		if now.Sub(at) >= n.cfg.DedupWindow {
			delete(n.lastActions, k)
		}
	}
	return false
}

func (n *NotificationService) requesterOf(ticketID string) string {
	if n.store != nil {
		if ticket, err := n.store.GetTicketByID(ticketID); err == nil && ticket.RequestedBy != "" {
			return ticket.RequestedBy
		}
		if incident, err := n.store.GetIncidentByID(ticketID); err == nil && incident.CreatedBy != "" {
			return incident.CreatedBy
		}
	}
	return domain.BusinessIdentity
}

// List returns user's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, user string) ([]domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loadNotifications(ctx, user)
}

// UnreadCount returns how many of user's notifications are unread.
func (n *NotificationService) UnreadCount(ctx context.Context, user string) (int, error) {
	list, err := n.List(ctx, user)
	if err != nil {
		return 0, err
	}
	unread := 0
	for _, item := range list {
		if !item.Read {
			unread++
		}
	}
	return unread, nil
}

// Acknowledge marks a notification read and re-publishes the
// navigate-to-ticket signal. Acknowledging a read notification leaves
// the list untouched but still signals.
func (n *NotificationService) Acknowledge(ctx context.Context, user, id string) (domain.Notification, error) {
	n.mu.Lock()
	list, err := n.loadNotifications(ctx, user)
	if err != nil {
		n.mu.Unlock()
		return domain.Notification{}, err
	}
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mu.Unlock()
		return domain.Notification{}, apperrors.NewNotFound("notification", map[string]any{"id": id})
	}
	if !list[idx].Read {
		list[idx].Read = true
		if err := n.saveNotifications(ctx, user, list); err != nil {
			n.mu.Unlock()
			return domain.Notification{}, err
		}
	}
	acked := list[idx]
	n.mu.Unlock()

	n.publish(ctx, events.Event{
		Type:     events.EventNotificationAcknowledged,
		TicketID: acked.TicketID,
		Actor:    events.Actor{Identity: user},
		Payload:  events.NotificationAcknowledgedPayload{NotificationID: acked.ID, Recipient: user},
	})
	return acked, nil
}

// SyncAssignedIncidents notifies user about every incident in the store
// they have not been told about yet. It returns how many were new.
func (n *NotificationService) SyncAssignedIncidents(ctx context.Context, user string) (int, error) {
	if n.store == nil {
		return 0, nil
	}
	added := 0
	incidents := n.store.Incidents()
	// oldest first so the newest ends up on top
	for i := len(incidents) - 1; i >= 0; i-- {
		inc := incidents[i]
		if inc.Status.Terminal() {
			continue
		}
		fresh, err := n.assignIfUnseen(ctx, user, inc.ID, inc.Title, inc.Priority)
		if err != nil {
			return added, err
		}
		if fresh {
			added++
		}
	}
	return added, nil
}

// assignIfUnseen records incidentID in user's notified set, appends an
// assigned notification and publishes IncidentAssigned, unless user
// has already been notified.
func (n *NotificationService) assignIfUnseen(ctx context.Context, user, incidentID, title string, priority domain.Priority) (bool, error) {
	n.mu.Lock()
	seen, err := n.loadNotified(ctx, user)
	if err != nil {
		n.mu.Unlock()
		return false, err
	}
	for _, id := range seen {
		if id == incidentID {
			n.mu.Unlock()
			return false, nil
		}
	}
	seen = append(seen, incidentID)
	if err := n.saveNotified(ctx, user, seen); err != nil {
		n.mu.Unlock()
		return false, err
	}
	_, err = n.appendLocked(ctx, user, domain.Notification{
		Title:    "New Incident Assigned",
		Message:  fmt.Sprintf("Incident %s (%s priority) needs attention: %s", incidentID, priority, title),
		Type:     domain.NotificationAssigned,
		TicketID: incidentID,
	}, nil)
	n.mu.Unlock()
	if err != nil {
		return false, err
	}

	n.publish(ctx, events.Event{
		Type:     events.EventIncidentAssigned,
		TicketID: incidentID,
		Actor:    events.Actor{Identity: user, Role: domain.RoleSupport},
		Payload:  events.IncidentAssignedPayload{IncidentID: incidentID, Recipient: user},
	})
	return true, nil
}

// appendUnless prepends notification to user's list unless skip
// matches an existing entry.
func (n *NotificationService) appendUnless(ctx context.Context, user string, notification domain.Notification, skip func(domain.Notification) bool) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.appendLocked(ctx, user, notification, skip)
}

func (n *NotificationService) appendLocked(ctx context.Context, user string, notification domain.Notification, skip func(domain.Notification) bool) (bool, error) {
	list, err := n.loadNotifications(ctx, user)
	if err != nil {
		return false, err
	}
	if skip != nil {
		for _, existing := range list {
			if skip(existing) {
				return false, nil
			}
		}
	}
	notification.ID = uuid.NewString()
	notification.Timestamp = n.clock.Now()
	notification.Read = false
	list = append([]domain.Notification{notification}, list...)
	if err := n.saveNotifications(ctx, user, list); err != nil {
		return false, err
	}
	n.metrics.RecordNotification(string(notification.Type))
	return true, nil
}

func (n *NotificationService) loadNotifications(ctx context.Context, user string) ([]domain.Notification, error) {
	list := []domain.Notification{}
	if err := n.load(ctx, notificationsSlot+user, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (n *NotificationService) saveNotifications(ctx context.Context, user string, list []domain.Notification) error {
	return n.save(ctx, notificationsSlot+user, list)
}

func (n *NotificationService) loadNotified(ctx context.Context, user string) ([]string, error) {
	ids := []string{}
	if err := n.load(ctx, notifiedIncidentsSlot+user, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (n *NotificationService) saveNotified(ctx context.Context, user string, ids []string) error {
	return n.save(ctx, notifiedIncidentsSlot+user, ids)
}

// load decodes a slot into out. A missing slot leaves out untouched.
func (n *NotificationService) load(ctx context.Context, key string, out any) error {
	raw, ok, err := n.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (n *NotificationService) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := n.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (n *NotificationService) publish(ctx context.Context, event events.Event) {
	if n.dispatcher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = n.clock.Now()
	}
	if err := n.dispatcher.Publish(ctx, event); err != nil {
		n.logger.Warn("publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func createdFor(id string) func(domain.Notification) bool {
	return func(existing domain.Notification) bool {
		return existing.TicketID == id && strings.HasSuffix(existing.Title, "Created")
	}
}

// payloadAs accepts both value and pointer payloads.
func payloadAs[T any](payload any) (T, bool) {
	switch p := payload.(type) {
	case T:
		return p, true
	case *T:
		if p != nil {
			return *p, true
		}
	}
	var zero T
	return zero, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
