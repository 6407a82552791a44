package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplierLedger is the derived money summary for one supplier
type SupplierLedger struct {
	Name              string          `json:"name"`
	Phone             string          `json:"phone"`
	Email             string          `json:"email"`
	TotalDebt         decimal.Decimal `json:"total_debt"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	TotalReceived     decimal.Decimal `json:"total_received"`
	UnpaidOrdersCount int             `json:"unpaid_orders_count"`
	PaidOrdersCount   int             `json:"paid_orders_count"`
	AllOrdersCount    int             `json:"all_orders_count"`
}

// SupplierProduct is a catalog product offered by a supplier at its price
type SupplierProduct struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	CurrentStock int             `json:"current_stock"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Phone        string          `json:"phone"`
}

// Supplier order filters
const (
	SupplierOrdersAll    = "all"
	SupplierOrdersPaid   = "paid"
	SupplierOrdersUnpaid = "unpaid"
)

// SupplierSources breaks the merged supplier view down by origin
type SupplierSources struct {
	Registry     []Supplier           `json:"from_registry"`
	FromProducts []EmbeddedSupplier   `json:"from_products"`
	Debts        []SupplierDebtDetail `json:"debt_info"`
}

// EmbeddedSupplier is a supplier known only through product records
type EmbeddedSupplier struct {
	Name     string            `json:"name"`
	Phone    string            `json:"phone"`
	Products []SupplierProduct `json:"products"`
}

// SupplierDebtDetail lists the delivered orders behind a supplier's totals,
// including orders whose supplier name matches no known source
type SupplierDebtDetail struct {
	Supplier string          `json:"supplier"`
	Known    bool            `json:"known"`
	Total    decimal.Decimal `json:"total"`
	OrderIDs []uuid.UUID     `json:"order_ids"`
}
