package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	rlog "rillscope/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "rillscope:events"

// Event is the envelope published on the bus.
type Event struct {
	Type       domain.AlertEventType `json:"type"`
	InstanceID string                `json:"instance_id"`
	Timestamp  time.Time             `json:"timestamp"`
	RoomID     string                `json:"room_id"`
	Alert      domain.Alert          `json:"alert"`
}

// AlertEvent converts the envelope back to the domain event.
func (e *Event) AlertEvent() domain.AlertEvent {
	return domain.AlertEvent{Type: e.Type, RoomID: e.RoomID, Alert: e.Alert}
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// EventBus fans alert events out to other instances over Redis pub/sub. It
// implements ports.AlertPublisher.
type EventBus struct {
	client     publisher
	subscriber redis.UniversalClient
	instanceID string
	channel    string
	now        func() time.Time
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
}

// NewEventBus creates a new event bus
func NewEventBus(client redis.UniversalClient, instanceID string, logger *zap.SugaredLogger) *EventBus {
	eb := newEventBus(client, instanceID, logger)
	eb.subscriber = client
	return eb
}

func newEventBus(client publisher, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    DefaultChannel,
		now:        time.Now,
		logger:     rlog.OrNop(logger),
	}
}

// PublishAlertEvent publishes an alert raised or retired event.
func (eb *EventBus) PublishAlertEvent(ctx context.Context, event domain.AlertEvent) error {
	data, err := json.Marshal(&Event{
		Type:       event.Type,
		InstanceID: eb.instanceID,
		Timestamp:  eb.now(),
		RoomID:     event.RoomID,
		Alert:      event.Alert,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"room_id", event.RoomID,
		"alert_id", event.Alert.ID,
	)
	return nil
}

// Subscribe calls handler for every event published by other instances
// until ctx is cancelled.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	if eb.subscriber == nil {
		return fmt.Errorf("event bus has no subscriber client")
	}
	if eb.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	eb.pubsub = eb.subscriber.Subscribe(ctx, eb.channel)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			eb.dispatch(msg.Payload, handler)
		}
	}
}

func (eb *EventBus) dispatch(payload string, handler func(*Event) error) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		eb.logger.Warnw("failed to unmarshal event",
			"error", err,
			"payload", payload,
		)
		return
	}

	// Skip events from this instance
	if event.InstanceID == eb.instanceID {
		return
	}

	if err := handler(&event); err != nil {
		eb.logger.Warnw("error handling event",
			"type", event.Type,
			"error", err,
		)
	}
}

// Close closes the event bus
func (eb *EventBus) Close() error {
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}

var _ ports.AlertPublisher = (*EventBus)(nil)
