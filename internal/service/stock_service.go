package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"procurement-service/internal/models"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockService applies the stock side effects of order lifecycle events.
// Callers invoke each method once per event and pass the transaction the
// event is persisted in.
type StockService struct {
	logger *zap.Logger
}

// NewStockService creates a new stock service
func NewStockService() *StockService {
	return &StockService{
		logger: util.GetLogger(),
	}
}

// CommitOnCreate moves each product's staged order quantity out of current
// stock. The committed amount is the product's order_quantity at commit time,
// not the quantity on any order line.
func (ss *StockService) CommitOnCreate(ctx context.Context, repo store.Repository, productIDs []uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "StockService.CommitOnCreate")
	defer span.End()

	for _, id := range productIDs {
		committed, err := repo.CommitStagedStock(ctx, id)
		if err != nil {
			util.StockAdjustmentsFailed.WithLabelValues("commit").Inc()
			return fmt.Errorf("failed to commit staged stock: %w", err)
		}

		util.StockAdjustmentsTotal.WithLabelValues("commit").Inc()
		ss.logger.Debug("Staged stock committed",
			zap.String("product_id", id.String()),
			zap.Int("quantity", committed))
	}
	return nil
}

// RestockOnDeliver adds every line quantity of a delivered order back to
// stock. Lines whose product no longer exists are skipped. Products are
// touched in id order, the same order cart creation locks them in.
func (ss *StockService) RestockOnDeliver(ctx context.Context, repo store.Repository, order *models.Order) error {
	ctx, span := util.StartSpan(ctx, "StockService.RestockOnDeliver")
	defer span.End()

	lines := make([]models.OrderLine, len(order.Products))
	copy(lines, order.Products)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})

	for _, line := range lines {
		err := repo.AddStock(ctx, line.ProductID, line.Quantity)
		if errors.Is(err, store.ErrNotFound) {
			ss.logger.Warn("Skipping restock of missing product",
				zap.String("order_id", order.ID.String()),
				zap.String("product_id", line.ProductID.String()))
			continue
		}
		if err != nil {
			util.StockAdjustmentsFailed.WithLabelValues("restock").Inc()
			return fmt.Errorf("failed to restock product %s: %w", line.ProductID, err)
		}
		util.StockAdjustmentsTotal.WithLabelValues("restock").Inc()
	}
	return nil
}
