package worker

import (
	"context"
	"fmt"

	"procurement-service/internal/broker"
	"procurement-service/internal/models"
	"procurement-service/internal/service"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"go.uber.org/zap"
)

// CatalogWorker drops the cached ledger whenever catalog or registry
// management reports a product or supplier change
type CatalogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        store.Repository
	cache        service.Cache
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(
	consumer *broker.Consumer,
	store store.Repository,
	cache service.Cache,
) *CatalogWorker {
	w := &CatalogWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		cache:        cache,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnCatalogChanged(w.HandleCatalogChanged)
	return w
}

// Start starts the worker
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}

// HandleCatalogChanged invalidates the ledger cache once per event
func (w *CatalogWorker) HandleCatalogChanged(ctx context.Context, event *models.CatalogChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "CatalogWorker.HandleCatalogChanged")
	defer span.End()

	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.cache.InvalidateLedger(ctx); err != nil {
		return fmt.Errorf("failed to invalidate ledger cache: %w", err)
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	util.CatalogEventsProcessed.WithLabelValues(event.EventType).Inc()
	w.logger.Info("Ledger cache invalidated",
		zap.String("event_type", event.EventType),
		zap.String("entity_id", event.EntityID))
	return nil
}
