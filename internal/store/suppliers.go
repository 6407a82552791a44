package store

import (
	"context"
	"fmt"

	"procurement-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const supplierColumns = "id, name, phone, email, total_debt, total_paid, created_at, updated_at"

// GetSuppliers retrieves the supplier registry ordered by name
func (s *Store) GetSuppliers(ctx context.Context) ([]models.Supplier, error) {
	suppliers := []models.Supplier{}
	err := sqlx.SelectContext(ctx, s.q, &suppliers, "SELECT "+supplierColumns+" FROM suppliers ORDER BY name")
	return suppliers, mapError(err)
}

// GetSupplierByName retrieves a registry supplier by exact name
func (s *Store) GetSupplierByName(ctx context.Context, name string) (*models.Supplier, error) {
	var supplier models.Supplier
	err := sqlx.GetContext(ctx, s.q, &supplier, "SELECT "+supplierColumns+" FROM suppliers WHERE name = $1", name)
	if err != nil {
		return nil, fmt.Errorf("supplier %q: %w", name, mapError(err))
	}
	return &supplier, nil
}
