package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/service"
	"procurement-service/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	orders := service.NewOrderService(st, nil, nil, service.NewStockService(), time.Hour)
	payments := service.NewPaymentService(st, nil, nil)
	ledger := service.NewLedgerService(st, nil, time.Minute)

	router := gin.New()
	NewHandler(orders, payments, ledger, st, 5*time.Second).SetupRoutes(router)
	return router, st
}

func addPepsi(t *testing.T, st *memstore.Store) *models.Product {
	t.Helper()
	p := &models.Product{
		Name: "Pepsi 0.5L",
		Suppliers: []models.ProductSupplier{
			{Name: "International Beverages", PricePerUnit: decimal.NewFromInt(8000)},
			{Name: "PepsiCo", PricePerUnit: decimal.NewFromInt(8500)},
		},
	}
	require.NoError(t, st.SaveProduct(context.Background(), p))
	return p
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func cart(productID uuid.UUID, qty int, supplier string) gin.H {
	return gin.H{"items": []gin.H{
		{"product_id": productID, "quantity": qty, "supplier_name": supplier},
	}}
}

func createPepsiOrder(t *testing.T, router *gin.Engine, productID uuid.UUID) models.Order {
	t.Helper()
	w := doRequest(router, http.MethodPost, "/api/v1/orders", cart(productID, 3, "PepsiCo"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	return resp.Orders[0]
}

func TestHealthAndReady(t *testing.T) {
	router, _ := setupRouter(t)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/ready", nil).Code)
}

func TestCreateOrders(t *testing.T) {
	router, st := setupRouter(t)
	pepsi := addPepsi(t, st)

	order := createPepsiOrder(t, router, pepsi.ID)
	assert.Equal(t, "PepsiCo", order.Supplier)
	assert.True(t, decimal.NewFromInt(25500).Equal(order.TotalAmount))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.False(t, order.IsPaid)

	w := doRequest(router, http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_amount":25500`)
}

func TestCreateOrdersErrors(t *testing.T) {
	router, st := setupRouter(t)
	pepsi := addPepsi(t, st)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"empty cart", gin.H{"items": []gin.H{}}, http.StatusBadRequest},
		{"malformed product id", gin.H{"items": []gin.H{{"product_id": "x", "quantity": 1, "supplier_name": "PepsiCo"}}}, http.StatusBadRequest},
		{"zero quantity", cart(pepsi.ID, 0, "PepsiCo"), http.StatusBadRequest},
		{"supplier not offering product", cart(pepsi.ID, 1, "Coca-Cola"), http.StatusBadRequest},
		{"unknown product", cart(uuid.New(), 1, "PepsiCo"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/v1/orders", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
			assert.NotEmpty(t, resp["details"])
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	router, st := setupRouter(t)
	pepsi := addPepsi(t, st)
	order := createPepsiOrder(t, router, pepsi.ID)
	base := "/api/v1/orders/" + order.ID.String()

	w := doRequest(router, http.MethodPut, base+"/pay", gin.H{"payment_method": "card"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, http.MethodPut, base+"/status", gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPut, base+"/status", gin.H{"status": "delivered"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := st.GetProductByID(context.Background(), pepsi.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentStock)

	w = doRequest(router, http.MethodPut, base+"/pay", gin.H{"payment_method": "card"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paid models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paid))
	assert.True(t, paid.IsPaid)
	assert.Equal(t, models.PaymentMethodCard, paid.PaymentMethod)

	w = doRequest(router, http.MethodPut, base+"/pay", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/suppliers/PepsiCo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledger models.SupplierLedger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ledger))
	assert.True(t, decimal.NewFromInt(25500).Equal(ledger.TotalPaid))
	assert.True(t, decimal.NewFromInt(25500).Equal(ledger.TotalReceived))
	assert.True(t, decimal.Zero.Equal(ledger.TotalDebt))
}

func TestPayWithoutBodyDefaultsToCash(t *testing.T) {
	router, st := setupRouter(t)
	pepsi := addPepsi(t, st)
	order := createPepsiOrder(t, router, pepsi.ID)
	base := "/api/v1/orders/" + order.ID.String()

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPut, base+"/status", gin.H{"status": "delivered"}).Code)

	w := doRequest(router, http.MethodPut, base+"/pay", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"payment_method":"cash"`)
}

func TestOrderPathErrors(t *testing.T) {
	router, _ := setupRouter(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/api/v1/orders/42", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodDelete, "/api/v1/orders/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(router, http.MethodPut, "/api/v1/orders/"+uuid.NewString()+"/status", gin.H{"status": "sent"}).Code)
}

func TestListAndDeleteOrders(t *testing.T) {
	router, st := setupRouter(t)
	pepsi := addPepsi(t, st)
	order := createPepsiOrder(t, router, pepsi.ID)

	w := doRequest(router, http.MethodGet, "/api/v1/orders?status=pending&supplier=PepsiCo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/api/v1/orders?status=lost", nil).Code)

	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodDelete, "/api/v1/orders/"+order.ID.String(), nil).Code)

	w = doRequest(router, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSupplierRoutes(t *testing.T) {
	router, st := setupRouter(t)
	pepsi := addPepsi(t, st)
	require.NoError(t, st.SaveSupplier(context.Background(), &models.Supplier{Name: "PepsiCo", Email: "sales@pepsico.example"}))

	w := doRequest(router, http.MethodGet, "/api/v1/suppliers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledgers []models.SupplierLedger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ledgers))
	require.Len(t, ledgers, 2)
	assert.Equal(t, "International Beverages", ledgers[0].Name)
	assert.Equal(t, "PepsiCo", ledgers[1].Name)
	assert.Equal(t, "sales@pepsico.example", ledgers[1].Email)

	w = doRequest(router, http.MethodGet, "/api/v1/suppliers/PepsiCo/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var products []models.SupplierProduct
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, pepsi.ID, products[0].ProductID)

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/api/v1/suppliers/Nobody", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/api/v1/suppliers/Nobody/products", nil).Code)

	w = doRequest(router, http.MethodGet, "/api/v1/suppliers/PepsiCo/orders?filter=unpaid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, http.StatusBadRequest,
		doRequest(router, http.MethodGet, "/api/v1/suppliers/PepsiCo/orders?filter=overdue", nil).Code)

	w = doRequest(router, http.MethodGet, "/api/v1/debug/suppliers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sources models.SupplierSources
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sources))
	assert.Len(t, sources.Registry, 1)
	assert.Len(t, sources.FromProducts, 2)
}

func TestDebugSnapshot(t *testing.T) {
	router, st := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/debug", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var empty models.DebugSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Equal(t, 0, empty.Orders.Count)
	assert.Len(t, empty.Orders.ByStatus, 4)
	assert.NotNil(t, empty.Products.All)

	pepsi := addPepsi(t, st)
	createPepsiOrder(t, router, pepsi.ID)

	w = doRequest(router, http.MethodGet, "/api/v1/debug", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap models.DebugSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Products.Count)
	assert.Equal(t, 1, snap.Orders.Count)
	assert.Equal(t, 1, snap.Orders.ByStatus[models.OrderStatusPending])
	assert.Equal(t, []string{"International Beverages", "PepsiCo"}, snap.Suppliers.FromProducts.Names)
}
