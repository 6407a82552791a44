package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"procurement-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = "id, supplier, total_amount, status, is_paid, paid_at, payment_method, created_at, updated_at"

// CreateOrder creates a new order with its lines
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("failed to create order: %w: %v", ErrConstraintViolation, err)
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	return s.WithinTx(ctx, func(repo Repository) error {
		tx := repo.(*Store)
		query := `
			INSERT INTO orders (id, supplier, total_amount, status, is_paid, payment_method)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at`

		row := tx.q.QueryRowxContext(ctx, query,
			order.ID, order.Supplier, order.TotalAmount, order.Status, order.IsPaid, order.PaymentMethod)
		if err := row.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create order: %w", mapError(err))
		}

		for i := range order.Products {
			line := &order.Products[i]
			line.OrderID = order.ID
			line.Position = i
			_, err := tx.q.ExecContext(ctx,
				"INSERT INTO order_lines (order_id, position, product_id, product_name, quantity, price) VALUES ($1, $2, $3, $4, $5, $6)",
				line.OrderID, line.Position, line.ProductID, line.ProductName, line.Quantity, line.Price)
			if err != nil {
				return fmt.Errorf("failed to create order line %d: %w", i, mapError(err))
			}
		}
		return nil
	})
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, s.q, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1"+s.lockClause(), id)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, mapError(err))
	}

	orders := []models.Order{order}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// GetOrdersByIDs retrieves orders by ID, newest first. Missing IDs are skipped.
func (s *Store) GetOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return []models.Order{}, nil
	}

	query, args, err := sqlx.In("SELECT "+orderColumns+" FROM orders WHERE id IN (?) ORDER BY created_at DESC, id", ids)
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := sqlx.SelectContext(ctx, s.q, &orders, s.q.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrders retrieves orders matching the filter, newest first
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Supplier != "" {
		args = append(args, filter.Supplier)
		where = append(where, fmt.Sprintf("supplier = $%d", len(args)))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	orders := []models.Order{}
	if err := sqlx.SelectContext(ctx, s.q, &orders, query, args...); err != nil {
		return nil, mapError(err)
	}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLines loads order lines for a batch of orders
func (s *Store) attachLines(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	query, args, err := sqlx.In(
		"SELECT order_id, position, product_id, product_name, quantity, price FROM order_lines WHERE order_id IN (?) ORDER BY order_id, position", ids)
	if err != nil {
		return err
	}

	var lines []models.OrderLine
	if err := sqlx.SelectContext(ctx, s.q, &lines, s.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load order lines: %w", mapError(err))
	}

	byOrder := make(map[uuid.UUID][]models.OrderLine, len(orders))
	for _, line := range lines {
		byOrder[line.OrderID] = append(byOrder[line.OrderID], line)
	}
	for i := range orders {
		orders[i].Products = byOrder[orders[i].ID]
		if orders[i].Products == nil {
			orders[i].Products = []models.OrderLine{}
		}
	}
	return nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	if err != nil {
		return fmt.Errorf("update status of order %s: %w", id, mapError(err))
	}
	return expectRow(res, "order", id)
}

// MarkOrderPaid records payment on an order that is not yet paid
func (s *Store) MarkOrderPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE orders SET is_paid = TRUE, paid_at = $1, payment_method = $2, updated_at = NOW() WHERE id = $3 AND NOT is_paid",
		paidAt, method, id)
	if err != nil {
		return fmt.Errorf("mark order %s paid: %w", id, mapError(err))
	}
	return expectRow(res, "unpaid order", id)
}

// DeleteOrder removes an order and its lines
func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, mapError(err))
	}
	return expectRow(res, "order", id)
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.q, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, mapError(err)
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return mapError(err)
}
