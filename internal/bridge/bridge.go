package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/events"
)

// Publisher delivers a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// EventBridge mirrors every bus event to <prefix>/<event type>.
// Delivery is best effort: failures are logged and never reach the
// publisher of the event.
type EventBridge struct {
	publisher Publisher
	prefix    string
	logger    *zap.Logger
}

// NewEventBridge builds a bridge.
func NewEventBridge(publisher Publisher, prefix string, logger *zap.Logger) *EventBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBridge{
		publisher: publisher,
		prefix:    strings.TrimRight(prefix, "/"),
		logger:    logger,
	}
}

// Attach subscribes the bridge to every event on dispatcher.
func (b *EventBridge) Attach(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(b.forward)
}

// Topic returns the topic an event type is mirrored to.
func (b *EventBridge) Topic(eventType events.EventType) string {
	if b.prefix == "" {
		return string(eventType)
	}
	return b.prefix + "/" + string(eventType)
}

func (b *EventBridge) forward(_ context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("marshal event", zap.String("event_type", string(event.Type)), zap.Error(err))
		return nil
	}
	topic := b.Topic(event.Type)
	if err := b.publisher.Publish(topic, payload); err != nil {
		b.logger.Warn("bridge publish failed", zap.String("topic", topic), zap.Error(err))
	}
	return nil
}
