package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/app"
	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/persistence"
)

var epoch = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(topic string, _ []byte) error {
	p.topics = append(p.topics, topic)
	return nil
}

type testDesk struct {
	*app.App
	clock *clock.FakeClock
	mqtt  *recordingPublisher
}

func testConfig() config.Config {
	return config.Config{
		App:          config.AppConfig{Name: "servicedesk", Version: "test"},
		Storage:      config.StorageConfig{Backend: config.StorageMemory},
		Auth:         config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4},
		Chat:         config.ChatConfig{DelayScale: 1},
		Notification: config.NotificationConfig{DedupWindow: 2 * time.Second},
		Support:      config.SupportConfig{ApprovalDelay: 5 * time.Second},
		MQTT:         config.MQTTConfig{TopicPrefix: "desk"},
	}
}

func newDesk(t *testing.T) *testDesk {
	t.Helper()
	d := &testDesk{clock: clock.Fake(epoch), mqtt: &recordingPublisher{}}
	desk, err := app.New(context.Background(), testConfig(), zap.NewNop(), app.Options{
		Clock:     d.clock,
		KV:        persistence.NewMemoryKV(),
		Publisher: d.mqtt,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = desk.Close() })
	d.App = desk
	return d
}

func (d *testDesk) call(t *testing.T, method, path, token, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := d.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (d *testDesk) login(t *testing.T, identity string) string {
	t.Helper()
	status, raw := d.call(t, http.MethodPost, "/auth/login", "", `{"identity":"`+identity+`"}`)
	require.Equal(t, http.StatusOK, status, string(raw))
	var out dto.AuthResponse
	decode(t, raw, &out)
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func decode(t *testing.T, raw []byte, out any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	require.NoError(t, json.Unmarshal(raw, &envelope), string(raw))
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope), string(raw))
	return envelope.Error.Code
}

func TestHealthAndMetrics(t *testing.T) {
	d := newDesk(t)

	status, _ := d.call(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = d.call(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, status)

	status, raw := d.call(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "servicedesk_http_requests_total")
}

func TestRoleGates(t *testing.T) {
	d := newDesk(t)
	business := d.login(t, domain.BusinessIdentity)
	support := d.login(t, domain.SupportIdentity)

	status, raw := d.call(t, http.MethodGet, "/tickets", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, raw))

	status, _ = d.call(t, http.MethodGet, "/support/incidents", business, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = d.call(t, http.MethodGet, "/tickets", support, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, raw = d.call(t, http.MethodGet, "/support/incidents", support, "")
	assert.Equal(t, http.StatusOK, status, string(raw))

	status, _ = d.call(t, http.MethodGet, "/notifications", support, "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = d.call(t, http.MethodGet, "/notifications", business, "")
	assert.Equal(t, http.StatusOK, status)

	status, raw = d.call(t, http.MethodPost, "/auth/login", "", `{"identity":"nobody@contoso.com"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, raw))

	status, _ = d.call(t, http.MethodGet, "/no-such-route", "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChatValidation(t *testing.T) {
	d := newDesk(t)
	business := d.login(t, domain.BusinessIdentity)

	status, raw := d.call(t, http.MethodPost, "/chat/messages", business, `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, raw))

	status, _ = d.call(t, http.MethodGet, "/tickets/SR-20240304-999", business, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSensitiveRequestEndToEnd(t *testing.T) {
	d := newDesk(t)
	business := d.login(t, domain.BusinessIdentity)
	support := d.login(t, domain.SupportIdentity)

	status, raw := d.call(t, http.MethodPost, "/chat/messages", business, `{"text":"Please send my payroll details"}`)
	require.Equal(t, http.StatusAccepted, status, string(raw))
	var sent dto.ChatSendResponse
	decode(t, raw, &sent)
	assert.Equal(t, "payroll", sent.Intent)
	assert.True(t, sent.Sensitive)

	var conv dto.ChatConversationResponse
	_, raw = d.call(t, http.MethodGet, "/chat/messages", business, "")
	decode(t, raw, &conv)
	assert.True(t, conv.Thinking)

	d.clock.Advance(time.Minute)

	_, raw = d.call(t, http.MethodGet, "/chat/messages", business, "")
	conv = dto.ChatConversationResponse{}
	decode(t, raw, &conv)
	assert.False(t, conv.Thinking)
	var incidentID string
	for _, m := range conv.Messages {
		if m.Type == domain.ChatMessageIncident {
			incidentID = m.IncidentID
		}
	}
	require.NotEmpty(t, incidentID)

	var tickets []dto.TicketSummary
	_, raw = d.call(t, http.MethodGet, "/tickets", business, "")
	decode(t, raw, &tickets)
	require.Len(t, tickets, 1)
	ticketID := tickets[0].ID

	var detail dto.TicketDetailResponse
	_, raw = d.call(t, http.MethodGet, "/tickets/"+ticketID, business, "")
	decode(t, raw, &detail)
	assert.Equal(t, incidentID, detail.IncidentID)
	assert.NotEmpty(t, detail.ChatHistory)

	var incidents []dto.IncidentResponse
	_, raw = d.call(t, http.MethodGet, "/support/incidents", support, "")
	decode(t, raw, &incidents)
	require.Len(t, incidents, 1)
	assert.Equal(t, domain.IncidentStatusPendingApproval, incidents[0].Status)
	assert.Equal(t, ticketID, incidents[0].RelatedSR)

	var supportInbox dto.NotificationListResponse
	_, raw = d.call(t, http.MethodGet, "/notifications", support, "")
	decode(t, raw, &supportInbox)
	assert.NotZero(t, supportInbox.UnreadCount)

	status, raw = d.call(t, http.MethodPost, "/support/incidents/"+incidentID+"/approve", support, "")
	require.Equal(t, http.StatusOK, status, string(raw))
	status, raw = d.call(t, http.MethodPost, "/support/incidents/"+incidentID+"/link", support, `{"link":"https://files.example.com/payroll.pdf"}`)
	require.Equal(t, http.StatusOK, status, string(raw))
	status, raw = d.call(t, http.MethodPost, "/support/incidents/"+incidentID+"/email", support, "")
	require.Equal(t, http.StatusOK, status, string(raw))
	status, raw = d.call(t, http.MethodPost, "/support/incidents/"+incidentID+"/close", support, "")
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = d.call(t, http.MethodPost, "/support/incidents/"+incidentID+"/approve", support, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, raw))

	detail = dto.TicketDetailResponse{}
	_, raw = d.call(t, http.MethodGet, "/tickets/"+ticketID, business, "")
	decode(t, raw, &detail)
	assert.Equal(t, domain.TicketStatusClosed, detail.Status)

	var inbox dto.NotificationListResponse
	_, raw = d.call(t, http.MethodGet, "/notifications", business, "")
	decode(t, raw, &inbox)
	require.NotEmpty(t, inbox.Items)
	unread := inbox.UnreadCount
	require.NotZero(t, unread)

	ackID := inbox.Items[0].ID
	require.False(t, inbox.Items[0].Read)
	status, _ = d.call(t, http.MethodPost, "/notifications/"+ackID+"/ack", business, "")
	require.Equal(t, http.StatusOK, status)
	acked := dto.NotificationListResponse{}
	_, raw = d.call(t, http.MethodGet, "/notifications", business, "")
	decode(t, raw, &acked)
	require.Len(t, acked.Items, len(inbox.Items))
	assert.Equal(t, ackID, acked.Items[0].ID)
	assert.True(t, acked.Items[0].Read)
	assert.Equal(t, unread-1, acked.UnreadCount)

	status, _ = d.call(t, http.MethodPost, "/notifications/"+ackID+"/ack", business, "")
	require.Equal(t, http.StatusOK, status)
	again := dto.NotificationListResponse{}
	_, raw = d.call(t, http.MethodGet, "/notifications", business, "")
	decode(t, raw, &again)
	assert.Equal(t, acked, again)

	assert.Contains(t, d.mqtt.topics, "desk/"+string(events.EventTicketCreated))
	assert.Contains(t, d.mqtt.topics, "desk/"+string(events.EventIncidentCreated))
}

func TestEndSessionRevokesPendingReplies(t *testing.T) {
	d := newDesk(t)
	business := d.login(t, domain.BusinessIdentity)

	status, _ := d.call(t, http.MethodPost, "/chat/messages", business, `{"text":"install the reporting application"}`)
	require.Equal(t, http.StatusAccepted, status)

	status, raw := d.call(t, http.MethodDelete, "/chat/session", business, "")
	require.Equal(t, http.StatusOK, status)
	var ended struct {
		RevokedSteps int `json:"revoked_steps"`
	}
	decode(t, raw, &ended)
	assert.Positive(t, ended.RevokedSteps)

	d.clock.Advance(time.Minute)
	var tickets []dto.TicketSummary
	_, raw = d.call(t, http.MethodGet, "/tickets", business, "")
	decode(t, raw, &tickets)
	assert.Empty(t, tickets)
}
