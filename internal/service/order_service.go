package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles order grouping and the order lifecycle
type OrderService struct {
	store          store.Repository
	cache          Cache
	eventPublisher EventPublisher
	stock          *StockService
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service. cache and eventPublisher may be nil.
func NewOrderService(
	store store.Repository,
	cache Cache,
	eventPublisher EventPublisher,
	stock *StockService,
	idempotencyTTL time.Duration,
) *OrderService {
	if cache == nil {
		cache = noopCache{}
	}
	if eventPublisher == nil {
		eventPublisher = noopPublisher{}
	}
	return &OrderService{
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		stock:          stock,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// CreateOrdersRequest represents a cart submitted for ordering
type CreateOrdersRequest struct {
	Items          []CartItem `json:"items" binding:"dive"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

// CartItem represents one cart line
type CartItem struct {
	ProductID    uuid.UUID `json:"product_id"`
	Quantity     int       `json:"quantity" binding:"min=1"`
	SupplierName string    `json:"supplier_name" binding:"required"`
}

// CreateOrders groups the cart by supplier and creates one pending order per
// supplier. Either every order and stock commit persists, or none does.
func (s *OrderService) CreateOrders(ctx context.Context, req *CreateOrdersRequest) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrders")
	defer span.End()

	if err := validateCart(req.Items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		orders, err := s.replay(ctx, req.IdempotencyKey)
		if err != nil || orders != nil {
			return orders, err
		}

		lockKey := "orders:" + req.IdempotencyKey
		acquired, err := s.cache.AcquireLock(ctx, lockKey, 30*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire idempotency lock: %w", err)
		}
		if !acquired {
			return nil, ErrRequestInProgress
		}
		defer func() {
			if err := s.cache.ReleaseLock(context.Background(), lockKey); err != nil {
				s.logger.Warn("Failed to release idempotency lock", zap.Error(err))
			}
		}()

		// A request holding the lock may have finished between the first
		// replay and the acquire.
		orders, err = s.replay(ctx, req.IdempotencyKey)
		if err != nil || orders != nil {
			return orders, err
		}
	}

	var created []models.Order
	err := s.store.WithinTx(ctx, func(tx store.Repository) error {
		products, err := lockProducts(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		drafts, err := groupBySupplier(req.Items, products)
		if err != nil {
			return err
		}

		for _, order := range drafts {
			if err := tx.CreateOrder(ctx, order); err != nil {
				return fmt.Errorf("failed to create order for %q: %w", order.Supplier, err)
			}
		}

		if err := s.stock.CommitOnCreate(ctx, tx, contributingProducts(req.Items)); err != nil {
			return err
		}

		created = make([]models.Order, len(drafts))
		for i, order := range drafts {
			created[i] = *order
		}
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(KindOf(err).String()).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Add(float64(len(created)))
	s.invalidateLedger(ctx)

	ids := make([]uuid.UUID, len(created))
	for i := range created {
		ids[i] = created[i].ID
		s.logger.Info("Order created",
			zap.String("order_id", created[i].ID.String()),
			zap.String("supplier", created[i].Supplier),
			zap.String("total_amount", created[i].TotalAmount.String()))
		s.publishCreated(ctx, &created[i])
	}

	if req.IdempotencyKey != "" {
		if err := s.cache.SetIdempotentOrders(ctx, req.IdempotencyKey, ids, s.idempotencyTTL); err != nil {
			s.logger.Error("Failed to store idempotency key", zap.Error(err))
		}
	}

	return created, nil
}

// replay returns the orders of an earlier request with the same key, or nil
func (s *OrderService) replay(ctx context.Context, key string) ([]models.Order, error) {
	ids, err := s.cache.GetIdempotentOrders(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}

	found, err := s.store.GetOrdersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			orders = append(orders, o)
		}
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int("orders", len(orders)))
	return orders, nil
}

// validateCart checks the shape of every cart line before any lookup
func validateCart(items []CartItem) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("%w: item %d: product_id is required", ErrValidation, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d: quantity must be >= 1", ErrValidation, i)
		}
		if item.SupplierName == "" {
			return fmt.Errorf("%w: item %d: supplier_name is required", ErrValidation, i)
		}
	}
	return nil
}

// lockProducts loads every distinct product of the cart. Products are read in
// id order, so concurrent carts touching the same products lock them in the
// same order. Missing products are left out of the map.
func lockProducts(ctx context.Context, repo store.Repository, items []CartItem) (map[uuid.UUID]*models.Product, error) {
	ids := contributingProducts(items)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	products := make(map[uuid.UUID]*models.Product, len(ids))
	for _, id := range ids {
		product, err := repo.GetProductByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		products[id] = product
	}
	return products, nil
}

// groupBySupplier validates each line against its product's supplier list and
// builds one pending order per supplier, in order of first appearance.
func groupBySupplier(items []CartItem, products map[uuid.UUID]*models.Product) ([]*models.Order, error) {
	var drafts []*models.Order
	bySupplier := make(map[string]*models.Order)

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}

		offer, ok := product.SupplierByName(item.SupplierName)
		if !ok {
			return nil, fmt.Errorf("%w: supplier %q not found for product %q",
				ErrInvalidSupplierForProduct, item.SupplierName, product.Name)
		}

		order, ok := bySupplier[item.SupplierName]
		if !ok {
			order = &models.Order{
				ID:          uuid.New(),
				Supplier:    item.SupplierName,
				Products:    []models.OrderLine{},
				TotalAmount: decimal.Zero,
				Status:      models.OrderStatusPending,
			}
			bySupplier[item.SupplierName] = order
			drafts = append(drafts, order)
		}

		order.Products = append(order.Products, models.OrderLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Price:       offer.PricePerUnit,
		})
	}

	for _, order := range drafts {
		order.TotalAmount = order.LinesTotal()
	}
	return drafts, nil
}

// contributingProducts returns the distinct product ids of a cart in first-seen order
func contributingProducts(items []CartItem) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// SetOrderStatus moves an order to any valid status and restocks whenever
// it becomes delivered. The order row stays locked for the whole change.
func (s *OrderService) SetOrderStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetOrderStatus",
		attribute.String("order_id", orderID.String()),
		attribute.String("status", status))
	defer span.End()

	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var (
		updated   *models.Order
		previous  string
		restocked bool
	)
	err := s.store.WithinTx(ctx, func(tx store.Repository) error {
		order, err := getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status

		if err := tx.UpdateOrderStatus(ctx, orderID, status); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		if isDeliveryEdge(previous, status) {
			if err := s.stock.RestockOnDeliver(ctx, tx, order); err != nil {
				return err
			}
			restocked = true
		}

		updated, err = tx.GetOrderByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(previous, status).Inc()
	if status == models.OrderStatusCancelled && previous != status {
		util.OrdersCancelledTotal.Inc()
	}
	s.logger.Info("Order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("from", previous),
		zap.String("to", status),
		zap.Bool("restocked", restocked))

	s.invalidateLedger(ctx)

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   updated.ID,
		Supplier:  updated.Supplier,
		From:      previous,
		To:        status,
		Restocked: restocked,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	return updated, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return getOrder(ctx, s.store, orderID)
}

// ListOrders lists orders newest first. Status "all" or "" matches every order.
func (s *OrderService) ListOrders(ctx context.Context, status, supplier string) ([]models.Order, error) {
	if status == models.SupplierOrdersAll {
		status = ""
	}
	if status != "" && !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.ListOrders(ctx, models.OrderFilter{Status: status, Supplier: supplier})
}

// DeleteOrder removes an order
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	err := s.store.DeleteOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return err
	}

	s.logger.Info("Order deleted", zap.String("order_id", orderID.String()))
	s.invalidateLedger(ctx)
	return nil
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order) {
	items := make([]models.OrderItemData, 0, len(order.Products))
	for _, line := range order.Products {
		items = append(items, models.OrderItemData{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		Supplier:    order.Supplier,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *OrderService) invalidateLedger(ctx context.Context) {
	if err := s.cache.InvalidateLedger(ctx); err != nil {
		s.logger.Warn("Failed to invalidate ledger cache", zap.Error(err))
	}
}

// getOrder loads an order and maps a missing row to ErrOrderNotFound
func getOrder(ctx context.Context, repo store.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, err
}
