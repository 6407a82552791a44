package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"procurement-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation is returned when a write breaks a schema constraint
	ErrConstraintViolation = errors.New("constraint violation")
)

// Repository is the persistence boundary shared by the services.
// Implementations must make WithinTx all-or-nothing.
type Repository interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error
	CommitStagedStock(ctx context.Context, productID uuid.UUID) (int, error)
	AddStock(ctx context.Context, productID uuid.UUID, quantity int) error

	GetSuppliers(ctx context.Context) ([]models.Supplier, error)
	GetSupplierByName(ctx context.Context, name string) (*models.Supplier, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkOrderPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error

	Ping(ctx context.Context) error
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// Store is the Postgres implementation of Repository
type Store struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
}

var _ Repository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx runs fn inside a transaction. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(repo Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// lockClause makes reads inside a transaction hold row locks until commit
func (s *Store) lockClause() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}

// GetProductByID retrieves a product and its embedded suppliers
func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product,
		"SELECT id, name, image, current_stock, order_quantity, created_at, updated_at FROM products WHERE id = $1"+s.lockClause(), id)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, mapError(err))
	}

	err = sqlx.SelectContext(ctx, s.q, &product.Suppliers,
		"SELECT product_id, position, supplier_name, price_per_unit, phone FROM product_suppliers WHERE product_id = $1 ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("suppliers of product %s: %w", id, mapError(err))
	}
	return &product, nil
}

// GetProducts retrieves all products with their embedded suppliers
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := sqlx.SelectContext(ctx, s.q, &products,
		"SELECT id, name, image, current_stock, order_quantity, created_at, updated_at FROM products ORDER BY created_at, id")
	if err != nil {
		return nil, mapError(err)
	}
	if len(products) == 0 {
		return []models.Product{}, nil
	}

	var offers []models.ProductSupplier
	err = sqlx.SelectContext(ctx, s.q, &offers,
		"SELECT product_id, position, supplier_name, price_per_unit, phone FROM product_suppliers ORDER BY product_id, position")
	if err != nil {
		return nil, mapError(err)
	}

	byProduct := make(map[uuid.UUID][]models.ProductSupplier, len(products))
	for _, offer := range offers {
		byProduct[offer.ProductID] = append(byProduct[offer.ProductID], offer)
	}
	for i := range products {
		products[i].Suppliers = byProduct[products[i].ID]
	}
	return products, nil
}

// SaveProduct inserts or replaces a product and its supplier list
func (s *Store) SaveProduct(ctx context.Context, product *models.Product) error {
	product.Normalize()
	if err := product.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	return s.WithinTx(ctx, func(repo Repository) error {
		tx := repo.(*Store)
		query := `
			INSERT INTO products (id, name, image, current_stock, order_quantity)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				image = EXCLUDED.image,
				current_stock = EXCLUDED.current_stock,
				order_quantity = EXCLUDED.order_quantity,
				updated_at = NOW()
			RETURNING created_at, updated_at`

		row := tx.q.QueryRowxContext(ctx, query,
			product.ID, product.Name, product.Image, product.CurrentStock, product.OrderQuantity)
		if err := row.Scan(&product.CreatedAt, &product.UpdatedAt); err != nil {
			return fmt.Errorf("failed to save product: %w", mapError(err))
		}

		if _, err := tx.q.ExecContext(ctx, "DELETE FROM product_suppliers WHERE product_id = $1", product.ID); err != nil {
			return fmt.Errorf("failed to replace product suppliers: %w", mapError(err))
		}
		for i := range product.Suppliers {
			offer := &product.Suppliers[i]
			offer.ProductID = product.ID
			_, err := tx.q.ExecContext(ctx,
				"INSERT INTO product_suppliers (product_id, position, supplier_name, price_per_unit, phone) VALUES ($1, $2, $3, $4, $5)",
				offer.ProductID, offer.Position, offer.Name, offer.PricePerUnit, offer.Phone)
			if err != nil {
				return fmt.Errorf("failed to save product supplier %q: %w", offer.Name, mapError(err))
			}
		}
		return nil
	})
}

// CommitStagedStock subtracts the staged order quantity from current stock and
// clears it. Returns the quantity that was committed.
func (s *Store) CommitStagedStock(ctx context.Context, productID uuid.UUID) (int, error) {
	query := `
		WITH staged AS (
			SELECT id, order_quantity FROM products WHERE id = $1 FOR UPDATE
		)
		UPDATE products p SET
			current_stock = p.current_stock - staged.order_quantity,
			order_quantity = 0,
			updated_at = NOW()
		FROM staged
		WHERE p.id = staged.id
		RETURNING staged.order_quantity`

	var committed int
	if err := sqlx.GetContext(ctx, s.q, &committed, query, productID); err != nil {
		return 0, fmt.Errorf("commit stock for product %s: %w", productID, mapError(err))
	}
	return committed, nil
}

// AddStock increases current stock of a product
func (s *Store) AddStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE products SET current_stock = current_stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("add stock to product %s: %w", productID, mapError(err))
	}
	return expectRow(res, "product", productID)
}

func expectRow(res sql.Result, entity string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}

// mapError translates driver errors into store sentinels
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pqErr.Message)
	}
	return err
}
