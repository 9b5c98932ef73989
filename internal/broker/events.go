package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"tailor-service/internal/models"
	"tailor-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishInventoryUpdated publishes InventoryUpdated event
func (ep *EventPublisher) PublishInventoryUpdated(ctx context.Context, event *models.InventoryUpdatedEvent) error {
	return ep.producer.PublishEvent(ctx, inventoryKey(event.InventoryItemID), event)
}

// LocalPublisher hands events straight to an EventHandler in the calling
// goroutine. It stands in for Kafka when the broker is disabled.
type LocalPublisher struct {
	handler *EventHandler
}

// NewLocalPublisher creates a publisher that dispatches to handler
func NewLocalPublisher(handler *EventHandler) *LocalPublisher {
	return &LocalPublisher{handler: handler}
}

// PublishOrderCreated dispatches an OrderCreated event
func (lp *LocalPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return lp.dispatch(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCompleted dispatches an OrderCompleted event
func (lp *LocalPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return lp.dispatch(ctx, orderKey(event.OrderID), event)
}

// PublishInventoryUpdated dispatches an InventoryUpdated event
func (lp *LocalPublisher) PublishInventoryUpdated(ctx context.Context, event *models.InventoryUpdatedEvent) error {
	return lp.dispatch(ctx, inventoryKey(event.InventoryItemID), event)
}

func (lp *LocalPublisher) dispatch(ctx context.Context, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return lp.handler.HandleMessage(ctx, kafka.Message{Key: []byte(key), Value: value})
}

func orderKey(id int64) string {
	return fmt.Sprintf("order-%d", id)
}

func inventoryKey(id int64) string {
	return fmt.Sprintf("inventory-%d", id)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderCompleted   func(context.Context, *models.OrderCompletedEvent) error
	onInventoryUpdated func(context.Context, *models.InventoryUpdatedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// OnInventoryUpdated registers a handler for InventoryUpdated events
func (eh *EventHandler) OnInventoryUpdated(handler func(context.Context, *models.InventoryUpdatedEvent) error) {
	eh.onInventoryUpdated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return Permanent(fmt.Errorf("failed to unmarshal base event: %w", err))
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return Permanent(fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err))
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	case models.EventTypeInventoryUpdated:
		if eh.onInventoryUpdated != nil {
			var event models.InventoryUpdatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return Permanent(fmt.Errorf("failed to unmarshal InventoryUpdated event: %w", err))
			}
			return eh.onInventoryUpdated(ctx, &event)
		}

	case models.EventTypeOrderCreated:
		// not consumed by this service

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
