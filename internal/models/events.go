package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types published by this service
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderPaid          = "ORDER_PAID"
)

// Event types published by catalog and registry management
const (
	EventTypeCatalogUpdated  = "CATALOG_UPDATED"
	EventTypeSupplierUpdated = "SUPPLIER_UPDATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id and time
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// OrderCreatedEvent published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     uuid.UUID       `json:"order_id"`
	Supplier    string          `json:"supplier"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published after a status transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   uuid.UUID `json:"order_id"`
	Supplier  string    `json:"supplier"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Restocked bool      `json:"restocked"`
}

// OrderPaidEvent published when a delivered order is paid
type OrderPaidEvent struct {
	BaseEvent
	OrderID       uuid.UUID       `json:"order_id"`
	Supplier      string          `json:"supplier"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PaidAt        time.Time       `json:"paid_at"`
}

// CatalogChangedEvent is emitted by catalog or registry management
// whenever a product or supplier record changes
type CatalogChangedEvent struct {
	BaseEvent
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
