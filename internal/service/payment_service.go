package service

import (
	"context"
	"fmt"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentService records supplier payments against delivered orders
type PaymentService struct {
	store          store.Repository
	cache          Cache
	eventPublisher EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewPaymentService creates a new payment service. cache and eventPublisher may be nil.
func NewPaymentService(store store.Repository, cache Cache, eventPublisher EventPublisher) *PaymentService {
	if cache == nil {
		cache = noopCache{}
	}
	if eventPublisher == nil {
		eventPublisher = noopPublisher{}
	}
	return &PaymentService{
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// PayOrder marks a delivered order as paid. An empty method means cash.
func (ps *PaymentService) PayOrder(ctx context.Context, orderID uuid.UUID, method string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.PayOrder",
		attribute.String("order_id", orderID.String()))
	defer span.End()

	if method == "" {
		method = models.PaymentMethodCash
	}
	if !models.ValidPaymentMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}

	util.PaymentAttemptsTotal.Inc()

	var paid *models.Order
	err := ps.store.WithinTx(ctx, func(tx store.Repository) error {
		order, err := getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := checkPayable(order); err != nil {
			return err
		}

		if err := tx.MarkOrderPaid(ctx, orderID, method, ps.now().UTC()); err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}

		paid, err = tx.GetOrderByID(ctx, orderID)
		return err
	})
	if err != nil {
		util.PaymentFailedTotal.WithLabelValues(KindOf(err).String()).Inc()
		return nil, err
	}

	util.OrdersPaidTotal.WithLabelValues(method).Inc()
	ps.logger.Info("Order paid",
		zap.String("order_id", orderID.String()),
		zap.String("supplier", paid.Supplier),
		zap.String("amount", paid.TotalAmount.String()),
		zap.String("method", method))

	if err := ps.cache.InvalidateLedger(ctx); err != nil {
		ps.logger.Warn("Failed to invalidate ledger cache", zap.Error(err))
	}

	event := &models.OrderPaidEvent{
		BaseEvent:     models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:       paid.ID,
		Supplier:      paid.Supplier,
		Amount:        paid.TotalAmount,
		PaymentMethod: method,
	}
	if paid.PaidAt != nil {
		event.PaidAt = *paid.PaidAt
	}
	if err := ps.eventPublisher.PublishOrderPaid(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	return paid, nil
}
