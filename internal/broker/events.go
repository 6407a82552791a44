package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"procurement-service/internal/models"
	"procurement-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing order lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID.String()), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID.String()), event)
}

// PublishOrderPaid publishes OrderPaid event
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID.String()), event)
}

func orderKey(id string) string {
	return fmt.Sprintf("order-%s", id)
}

// EventHandler routes catalog and registry change events
type EventHandler struct {
	onCatalogChanged func(context.Context, *models.CatalogChangedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCatalogChanged registers a handler for CatalogUpdated and SupplierUpdated events
func (eh *EventHandler) OnCatalogChanged(handler func(context.Context, *models.CatalogChangedEvent) error) {
	eh.onCatalogChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	util.GetLogger().Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeCatalogUpdated, models.EventTypeSupplierUpdated:
		if eh.onCatalogChanged != nil {
			var event models.CatalogChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onCatalogChanged(ctx, &event)
		}

	default:
		util.GetLogger().Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
