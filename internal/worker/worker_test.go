package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/service"
	"procurement-service/internal/store/memstore"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct {
	invalidated int
}

func (c *countingCache) LedgerGeneration(context.Context) (int64, error) {
	return int64(c.invalidated), nil
}

func (c *countingCache) GetLedger(context.Context, int64) ([]byte, error) {
	return nil, service.ErrCacheMiss
}

func (c *countingCache) SetLedger(context.Context, int64, []byte, time.Duration) error {
	return nil
}

func (c *countingCache) InvalidateLedger(context.Context) error {
	c.invalidated++
	return nil
}

func (c *countingCache) GetIdempotentOrders(context.Context, string) ([]uuid.UUID, error) {
	return nil, service.ErrCacheMiss
}

func (c *countingCache) SetIdempotentOrders(context.Context, string, []uuid.UUID, time.Duration) error {
	return nil
}

func (c *countingCache) AcquireLock(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (c *countingCache) ReleaseLock(context.Context, string) error {
	return nil
}

func TestHandleCatalogChangedOncePerEvent(t *testing.T) {
	st := memstore.New()
	cache := &countingCache{}
	w := NewCatalogWorker(nil, st, cache)
	ctx := context.Background()

	event := &models.CatalogChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeSupplierUpdated),
		Name:      "PepsiCo",
	}

	require.NoError(t, w.HandleCatalogChanged(ctx, event))
	require.NoError(t, w.HandleCatalogChanged(ctx, event))
	assert.Equal(t, 1, cache.invalidated)

	processed, err := st.IsEventProcessed(ctx, event.EventID)
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestWorkerRoutesMessages(t *testing.T) {
	st := memstore.New()
	cache := &countingCache{}
	w := NewCatalogWorker(nil, st, cache)

	data, err := json.Marshal(models.CatalogChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeCatalogUpdated),
		EntityID:  uuid.New().String(),
	})
	require.NoError(t, err)

	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), kafka.Message{Value: data}))
	assert.Equal(t, 1, cache.invalidated)
}
