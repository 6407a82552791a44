// Package memstore is an in-memory store.Repository used by tests.
// It enforces the same constraints as the Postgres schema and gives
// WithinTx copy-on-write rollback semantics.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store"

	"github.com/google/uuid"
)

type dataset struct {
	products     map[uuid.UUID]models.Product
	productOrder []uuid.UUID
	suppliers    map[string]models.Supplier
	orders       map[uuid.UUID]models.Order
	orderSeq     []uuid.UUID
	processed    map[string]string
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		products:     make(map[uuid.UUID]models.Product, len(d.products)),
		productOrder: append([]uuid.UUID(nil), d.productOrder...),
		suppliers:    make(map[string]models.Supplier, len(d.suppliers)),
		orders:       make(map[uuid.UUID]models.Order, len(d.orders)),
		orderSeq:     append([]uuid.UUID(nil), d.orderSeq...),
		processed:    make(map[string]string, len(d.processed)),
	}
	for k, v := range d.products {
		c.products[k] = copyProduct(v)
	}
	for k, v := range d.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range d.processed {
		c.processed[k] = v
	}
	return c
}

// Store is an in-memory Repository
type Store struct {
	mu   *sync.Mutex
	data *dataset
	inTx bool
	now  func() time.Time
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &dataset{
			products:  map[uuid.UUID]models.Product{},
			suppliers: map[string]models.Supplier{},
			orders:    map[uuid.UUID]models.Order{},
			processed: map[string]string{},
		},
		now: time.Now,
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx runs fn against a private copy and publishes it only on success
func (s *Store) WithinTx(ctx context.Context, fn func(repo store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	*s.data = *tx.data
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// SaveSupplier inserts or replaces a registry supplier keyed by name
func (s *Store) SaveSupplier(ctx context.Context, supplier *models.Supplier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := supplier.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrConstraintViolation, err)
	}
	defer s.lock()()

	if existing, ok := s.data.suppliers[supplier.Name]; ok {
		supplier.ID = existing.ID
		supplier.CreatedAt = existing.CreatedAt
	} else {
		if supplier.ID == uuid.Nil {
			supplier.ID = uuid.New()
		}
		supplier.CreatedAt = s.now()
	}
	supplier.UpdatedAt = s.now()
	s.data.suppliers[supplier.Name] = *supplier
	return nil
}

// GetProductByID retrieves a product and its embedded suppliers
func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	p, ok := s.data.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	p = copyProduct(p)
	return &p, nil
}

// GetProducts retrieves all products in insertion order
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	products := make([]models.Product, 0, len(s.data.productOrder))
	for _, id := range s.data.productOrder {
		products = append(products, copyProduct(s.data.products[id]))
	}
	return products, nil
}

// SaveProduct inserts or replaces a product
func (s *Store) SaveProduct(ctx context.Context, product *models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	product.Normalize()
	if err := product.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrConstraintViolation, err)
	}
	defer s.lock()()

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if existing, ok := s.data.products[product.ID]; ok {
		product.CreatedAt = existing.CreatedAt
	} else {
		product.CreatedAt = s.now()
		s.data.productOrder = append(s.data.productOrder, product.ID)
	}
	product.UpdatedAt = s.now()
	for i := range product.Suppliers {
		product.Suppliers[i].ProductID = product.ID
	}
	s.data.products[product.ID] = copyProduct(*product)
	return nil
}

// DeleteProduct removes a product. Orders referencing it are left untouched.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	if _, ok := s.data.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	delete(s.data.products, id)
	for i, pid := range s.data.productOrder {
		if pid == id {
			s.data.productOrder = append(s.data.productOrder[:i:i], s.data.productOrder[i+1:]...)
			break
		}
	}
	return nil
}

// CommitStagedStock subtracts the staged order quantity from current stock
func (s *Store) CommitStagedStock(ctx context.Context, productID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer s.lock()()

	p, ok := s.data.products[productID]
	if !ok {
		return 0, fmt.Errorf("commit stock for product %s: %w", productID, store.ErrNotFound)
	}
	committed := p.OrderQuantity
	if p.CurrentStock-committed < 0 {
		return 0, fmt.Errorf("commit stock for product %s: %w: current_stock must be >= 0",
			productID, store.ErrConstraintViolation)
	}
	p.CurrentStock -= committed
	p.OrderQuantity = 0
	p.UpdatedAt = s.now()
	s.data.products[productID] = p
	return committed, nil
}

// AddStock increases current stock of a product
func (s *Store) AddStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	p, ok := s.data.products[productID]
	if !ok {
		return fmt.Errorf("add stock to product %s: %w", productID, store.ErrNotFound)
	}
	if p.CurrentStock+quantity < 0 {
		return fmt.Errorf("add stock to product %s: %w: current_stock must be >= 0",
			productID, store.ErrConstraintViolation)
	}
	p.CurrentStock += quantity
	p.UpdatedAt = s.now()
	s.data.products[productID] = p
	return nil
}

// GetSuppliers retrieves the registry ordered by name
func (s *Store) GetSuppliers(ctx context.Context) ([]models.Supplier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	suppliers := make([]models.Supplier, 0, len(s.data.suppliers))
	for _, sup := range s.data.suppliers {
		suppliers = append(suppliers, sup)
	}
	sort.Slice(suppliers, func(i, j int) bool { return suppliers[i].Name < suppliers[j].Name })
	return suppliers, nil
}

// GetSupplierByName retrieves a registry supplier by exact name
func (s *Store) GetSupplierByName(ctx context.Context, name string) (*models.Supplier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	sup, ok := s.data.suppliers[name]
	if !ok {
		return nil, fmt.Errorf("supplier %q: %w", name, store.ErrNotFound)
	}
	return &sup, nil
}

// CreateOrder stores a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := order.Validate(); err != nil {
		return fmt.Errorf("failed to create order: %w: %v", store.ErrConstraintViolation, err)
	}
	defer s.lock()()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if _, ok := s.data.orders[order.ID]; ok {
		return fmt.Errorf("failed to create order: %w: duplicate id %s", store.ErrConstraintViolation, order.ID)
	}
	order.CreatedAt = s.now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Products {
		order.Products[i].OrderID = order.ID
		order.Products[i].Position = i
	}
	s.data.orders[order.ID] = copyOrder(*order)
	s.data.orderSeq = append(s.data.orderSeq, order.ID)
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	o, ok := s.data.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	o = copyOrder(o)
	return &o, nil
}

// GetOrdersByIDs retrieves orders by ID, newest first
func (s *Store) GetOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return s.collectOrders(func(o models.Order) bool { return wanted[o.ID] }), nil
}

// ListOrders retrieves orders matching the filter, newest first
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.collectOrders(func(o models.Order) bool {
		return (filter.Status == "" || o.Status == filter.Status) &&
			(filter.Supplier == "" || o.Supplier == filter.Supplier)
	}), nil
}

func (s *Store) collectOrders(match func(models.Order) bool) []models.Order {
	defer s.lock()()

	orders := []models.Order{}
	for i := len(s.data.orderSeq) - 1; i >= 0; i-- {
		o, ok := s.data.orders[s.data.orderSeq[i]]
		if ok && match(o) {
			orders = append(orders, copyOrder(o))
		}
	}
	return orders
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("update status of order %s: %w: status %q", id, store.ErrConstraintViolation, status)
	}
	defer s.lock()()

	o, ok := s.data.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = s.now()
	s.data.orders[id] = o
	return nil
}

// MarkOrderPaid records payment on an order that is not yet paid
func (s *Store) MarkOrderPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	o, ok := s.data.orders[id]
	if !ok || o.IsPaid {
		return fmt.Errorf("unpaid order %s: %w", id, store.ErrNotFound)
	}
	if !models.ValidPaymentMethod(method) {
		return fmt.Errorf("mark order %s paid: %w: method %q", id, store.ErrConstraintViolation, method)
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentMethod = method
	o.UpdatedAt = s.now()
	s.data.orders[id] = o
	return nil
}

// DeleteOrder removes an order
func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	if _, ok := s.data.orders[id]; !ok {
		return fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	delete(s.data.orders, id)
	return nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer s.lock()()

	_, ok := s.data.processed[eventID]
	return ok, nil
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	s.data.processed[eventID] = eventType
	return nil
}

func copyProduct(p models.Product) models.Product {
	p.Suppliers = append([]models.ProductSupplier(nil), p.Suppliers...)
	return p
}

func copyOrder(o models.Order) models.Order {
	o.Products = append([]models.OrderLine{}, o.Products...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	return o
}
