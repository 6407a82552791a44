package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductValidate(t *testing.T) {
	valid := func() *Product {
		return &Product{
			Name:         "  Cola  ",
			CurrentStock: 3,
			Suppliers: []ProductSupplier{
				{Name: "Alpha", PricePerUnit: decimal.RequireFromString("12.5")},
			},
		}
	}

	p := valid()
	p.Normalize()
	require.NoError(t, p.Validate())
	assert.Equal(t, "Cola", p.Name)

	tests := []struct {
		name   string
		mutate func(p *Product)
	}{
		{"blank name", func(p *Product) { p.Name = "   " }},
		{"negative stock", func(p *Product) { p.CurrentStock = -1 }},
		{"negative staged quantity", func(p *Product) { p.OrderQuantity = -2 }},
		{"unnamed supplier", func(p *Product) { p.Suppliers[0].Name = "" }},
		{"negative price", func(p *Product) { p.Suppliers[0].PricePerUnit = decimal.NewFromInt(-1) }},
		{"too precise price", func(p *Product) { p.Suppliers[0].PricePerUnit = decimal.RequireFromString("0.00001") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			p.Normalize()
			assert.Error(t, p.Validate())
		})
	}
}

func TestSupplierByNameIsExact(t *testing.T) {
	p := &Product{Suppliers: []ProductSupplier{
		{Name: "PepsiCo", PricePerUnit: decimal.NewFromInt(8500)},
	}}

	s, ok := p.SupplierByName("PepsiCo")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(8500).Equal(s.PricePerUnit))

	_, ok = p.SupplierByName("pepsico")
	assert.False(t, ok)
	_, ok = p.SupplierByName("PepsiCo ")
	assert.False(t, ok)
}

func TestOrderValidate(t *testing.T) {
	order := Order{
		ID:       uuid.New(),
		Supplier: "Alpha",
		Status:   OrderStatusPending,
		Products: []OrderLine{
			{ProductID: uuid.New(), ProductName: "Cola", Quantity: 3, Price: decimal.NewFromInt(8500)},
			{ProductID: uuid.New(), ProductName: "Chips", Quantity: 2, Price: decimal.RequireFromString("0.25")},
		},
		TotalAmount: decimal.RequireFromString("25500.5"),
	}
	require.NoError(t, order.Validate())

	wrongTotal := order
	wrongTotal.TotalAmount = decimal.NewFromInt(25500)
	assert.Error(t, wrongTotal.Validate())

	badStatus := order
	badStatus.Status = "lost"
	assert.Error(t, badStatus.Validate())

	badMethod := order
	badMethod.PaymentMethod = "cheque"
	assert.Error(t, badMethod.Validate())

	noSupplier := order
	noSupplier.Supplier = ""
	assert.Error(t, noSupplier.Validate())

	zeroQty := order
	zeroQty.Products = []OrderLine{{ProductID: uuid.New(), Quantity: 0, Price: decimal.Zero}}
	zeroQty.TotalAmount = decimal.Zero
	assert.Error(t, zeroQty.Validate())
}

func TestSupplierValidateTrimsName(t *testing.T) {
	s := &Supplier{Name: " Alpha "}
	require.NoError(t, s.Validate())
	assert.Equal(t, "Alpha", s.Name)

	blank := &Supplier{Name: "  "}
	assert.Error(t, blank.Validate())

	negative := &Supplier{Name: "Beta", TotalDebt: decimal.NewFromInt(-5)}
	assert.Error(t, negative.Validate())
}

func TestAmountsEncodeAsNumbers(t *testing.T) {
	ledger := SupplierLedger{
		Name:          "PepsiCo",
		TotalDebt:     decimal.Zero,
		TotalPaid:     decimal.NewFromInt(25500),
		TotalReceived: decimal.NewFromInt(25500),
	}

	data, err := json.Marshal(ledger)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_paid":25500`)
	assert.Contains(t, string(data), `"total_debt":0`)
}

func TestValidStatusesAndMethods(t *testing.T) {
	for _, s := range []string{OrderStatusPending, OrderStatusSent, OrderStatusDelivered, OrderStatusCancelled} {
		assert.True(t, ValidOrderStatus(s), s)
	}
	assert.False(t, ValidOrderStatus("Delivered"))
	assert.False(t, ValidOrderStatus(""))

	assert.True(t, ValidPaymentMethod(PaymentMethodCash))
	assert.True(t, ValidPaymentMethod(PaymentMethodCard))
	assert.False(t, ValidPaymentMethod(""))
}
