package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// MoneyScale is the number of fractional digits stored for prices and totals.
const MoneyScale = 4

var validate = validator.New()

// Product represents a catalog item with its embedded supplier offers
type Product struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	Name          string            `db:"name" json:"name" validate:"required"`
	Image         string            `db:"image" json:"image"`
	CurrentStock  int               `db:"current_stock" json:"current_stock" validate:"gte=0"`
	OrderQuantity int               `db:"order_quantity" json:"order_quantity" validate:"gte=0"`
	Suppliers     []ProductSupplier `db:"-" json:"suppliers" validate:"dive"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// ProductSupplier is a supplier offer embedded in a product
type ProductSupplier struct {
	ProductID    uuid.UUID       `db:"product_id" json:"-"`
	Position     int             `db:"position" json:"-"`
	Name         string          `db:"supplier_name" json:"name" validate:"required"`
	PricePerUnit decimal.Decimal `db:"price_per_unit" json:"price_per_unit"`
	Phone        string          `db:"phone" json:"phone"`
}

// SupplierByName returns the embedded supplier whose name matches exactly
func (p *Product) SupplierByName(name string) (ProductSupplier, bool) {
	for _, s := range p.Suppliers {
		if s.Name == name {
			return s, true
		}
	}
	return ProductSupplier{}, false
}

// Normalize trims the product name as the catalog schema does
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	for i := range p.Suppliers {
		p.Suppliers[i].Position = i
	}
}

// Validate checks the product against the catalog schema
func (p *Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}
	for _, s := range p.Suppliers {
		if err := checkAmount("price_per_unit", s.PricePerUnit); err != nil {
			return fmt.Errorf("invalid product: supplier %q: %w", s.Name, err)
		}
	}
	return nil
}

// Supplier represents an entry of the standalone supplier registry.
// TotalDebt and TotalPaid are advisory counters kept by external bulk jobs.
type Supplier struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Name      string          `db:"name" json:"name" validate:"required"`
	Phone     string          `db:"phone" json:"phone"`
	Email     string          `db:"email" json:"email"`
	TotalDebt decimal.Decimal `db:"total_debt" json:"total_debt"`
	TotalPaid decimal.Decimal `db:"total_paid" json:"total_paid"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Validate checks the supplier against the registry schema
func (s *Supplier) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid supplier: %w", err)
	}
	if err := checkAmount("total_debt", s.TotalDebt); err != nil {
		return fmt.Errorf("invalid supplier: %w", err)
	}
	if err := checkAmount("total_paid", s.TotalPaid); err != nil {
		return fmt.Errorf("invalid supplier: %w", err)
	}
	return nil
}

// Order represents a purchase order placed against one supplier.
// Supplier is a plain name, not a reference to the registry.
type Order struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Supplier      string          `db:"supplier" json:"supplier"`
	Products      []OrderLine     `db:"-" json:"products"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status        string          `db:"status" json:"status"`
	IsPaid        bool            `db:"is_paid" json:"is_paid"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	PaymentMethod string          `db:"payment_method" json:"payment_method,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderLine is a product line of an order with name and price snapshots
type OrderLine struct {
	OrderID     uuid.UUID       `db:"order_id" json:"-"`
	Position    int             `db:"position" json:"-"`
	ProductID   uuid.UUID       `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity" validate:"gte=1"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

// LinesTotal sums quantity × price over the order lines
func (o *Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Products {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// Validate checks the order against the order schema, including the total invariant
func (o *Order) Validate() error {
	if o.Supplier == "" {
		return fmt.Errorf("invalid order: supplier is required")
	}
	if !ValidOrderStatus(o.Status) {
		return fmt.Errorf("invalid order: unknown status %q", o.Status)
	}
	if o.PaymentMethod != "" && !ValidPaymentMethod(o.PaymentMethod) {
		return fmt.Errorf("invalid order: unknown payment method %q", o.PaymentMethod)
	}
	for i := range o.Products {
		if err := validate.Struct(&o.Products[i]); err != nil {
			return fmt.Errorf("invalid order line %d: %w", i, err)
		}
		if err := checkAmount("price", o.Products[i].Price); err != nil {
			return fmt.Errorf("invalid order line %d: %w", i, err)
		}
	}
	if err := checkAmount("total_amount", o.TotalAmount); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}
	if !o.TotalAmount.Equal(o.LinesTotal()) {
		return fmt.Errorf("invalid order: total_amount %s does not match lines total %s",
			o.TotalAmount, o.LinesTotal())
	}
	return nil
}

// OrderFilter narrows order listings. Empty fields match everything.
type OrderFilter struct {
	Status   string
	Supplier string
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusSent      = "sent"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is one of the four order statuses
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusSent, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Payment methods
const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

// ValidPaymentMethod reports whether m is an accepted payment method
func ValidPaymentMethod(m string) bool {
	return m == PaymentMethodCash || m == PaymentMethodCard
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

func checkAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%s must be >= 0, got %s", field, d)
	}
	if d.Exponent() < -MoneyScale && !d.Equal(d.Round(MoneyScale)) {
		return fmt.Errorf("%s has more than %d fractional digits: %s", field, MoneyScale, d)
	}
	return nil
}
