package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebugSnapshot is a read-only projection of everything the store holds
type DebugSnapshot struct {
	Products  DebugProducts  `json:"products"`
	Orders    DebugOrders    `json:"orders"`
	Suppliers DebugSuppliers `json:"suppliers"`
}

type DebugProducts struct {
	Count int            `json:"count"`
	All   []DebugProduct `json:"all"`
}

type DebugProduct struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	CurrentStock   int               `json:"current_stock"`
	OrderQuantity  int               `json:"order_quantity"`
	SuppliersCount int               `json:"suppliers_count"`
	Suppliers      []ProductSupplier `json:"suppliers"`
}

// DebugOrders counts orders per status. Every status has a key, even at zero.
type DebugOrders struct {
	Count    int            `json:"count"`
	ByStatus map[string]int `json:"by_status"`
	Details  []DebugOrder   `json:"details"`
}

type DebugOrder struct {
	ID            uuid.UUID       `json:"id"`
	Supplier      string          `json:"supplier"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	IsPaid        bool            `json:"is_paid"`
	ProductsCount int             `json:"products_count"`
	Products      []OrderLine     `json:"products"`
	CreatedAt     time.Time       `json:"created_at"`
}

type DebugSuppliers struct {
	Registry     DebugRegistry  `json:"from_registry"`
	FromProducts DebugNameIndex `json:"from_products"`
}

type DebugRegistry struct {
	Count int        `json:"count"`
	All   []Supplier `json:"all"`
}

// DebugNameIndex lists distinct supplier names in first-seen order
type DebugNameIndex struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}
