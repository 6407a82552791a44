package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu          sync.Mutex
	generation  int64
	ledgers     map[int64][]byte
	idempotent  map[string][]uuid.UUID
	locks       map[string]bool
	invalidated int

	// onAcquire runs after a lock is taken, outside the cache mutex
	onAcquire func(key string)
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		ledgers:    map[int64][]byte{},
		idempotent: map[string][]uuid.UUID{},
		locks:      map[string]bool{},
	}
}

// currentLedger returns the snapshot readers would be served, nil if none
func (c *fakeCache) currentLedger() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledgers[c.generation]
}

func (c *fakeCache) LedgerGeneration(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *fakeCache) GetLedger(_ context.Context, gen int64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.ledgers[gen]
	if !ok {
		return nil, ErrCacheMiss
	}
	return data, nil
}

func (c *fakeCache) SetLedger(_ context.Context, gen int64, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledgers[gen] = data
	return nil
}

func (c *fakeCache) InvalidateLedger(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.invalidated++
	return nil
}

func (c *fakeCache) GetIdempotentOrders(_ context.Context, key string) ([]uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.idempotent[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return ids, nil
}

func (c *fakeCache) SetIdempotentOrders(_ context.Context, key string, ids []uuid.UUID, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idempotent[key] = ids
	return nil
}

func (c *fakeCache) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	if c.locks[key] {
		c.mu.Unlock()
		return false, nil
	}
	c.locks[key] = true
	hook := c.onAcquire
	c.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	return true, nil
}

func (c *fakeCache) ReleaseLock(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, key)
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	created []*models.OrderCreatedEvent
	changed []*models.OrderStatusChangedEvent
	paid    []*models.OrderPaidEvent
}

func (p *fakePublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *fakePublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return nil
}

func (p *fakePublisher) PublishOrderPaid(_ context.Context, e *models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, e)
	return nil
}

func (p *fakePublisher) statusChanges() []*models.OrderStatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.OrderStatusChangedEvent(nil), p.changed...)
}

type fixture struct {
	store     *memstore.Store
	cache     *fakeCache
	publisher *fakePublisher
	orders    *OrderService
	payments  *PaymentService
	ledger    *LedgerService
}

func newFixture() *fixture {
	st := memstore.New()
	cache := newFakeCache()
	pub := &fakePublisher{}
	return &fixture{
		store:     st,
		cache:     cache,
		publisher: pub,
		orders:    NewOrderService(st, cache, pub, NewStockService(), time.Hour),
		payments:  NewPaymentService(st, cache, pub),
		ledger:    NewLedgerService(st, cache, time.Minute),
	}
}

func (f *fixture) addProduct(t *testing.T, name string, stock, staged int, offers ...models.ProductSupplier) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		CurrentStock:  stock,
		OrderQuantity: staged,
		Suppliers:     offers,
	}
	require.NoError(t, f.store.SaveProduct(context.Background(), p))
	return p
}

func (f *fixture) addSupplier(t *testing.T, s models.Supplier) {
	t.Helper()
	require.NoError(t, f.store.SaveSupplier(context.Background(), &s))
}

func offer(name string, price int64) models.ProductSupplier {
	return models.ProductSupplier{Name: name, PricePerUnit: decimal.NewFromInt(price)}
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) (int, int) {
	t.Helper()
	p, err := f.store.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p.CurrentStock, p.OrderQuantity
}
