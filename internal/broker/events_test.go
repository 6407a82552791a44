package broker

import (
	"context"
	"encoding/json"
	"testing"

	"procurement-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: data}
}

func TestHandleMessageRoutesCatalogEvents(t *testing.T) {
	var got []*models.CatalogChangedEvent
	eh := NewEventHandler()
	eh.OnCatalogChanged(func(_ context.Context, e *models.CatalogChangedEvent) error {
		got = append(got, e)
		return nil
	})

	for _, eventType := range []string{models.EventTypeCatalogUpdated, models.EventTypeSupplierUpdated} {
		event := models.CatalogChangedEvent{
			BaseEvent: models.NewBaseEvent(eventType),
			EntityID:  "42",
			Name:      "PepsiCo",
		}
		require.NoError(t, eh.HandleMessage(context.Background(), message(t, event)))
	}

	require.Len(t, got, 2)
	assert.Equal(t, models.EventTypeCatalogUpdated, got[0].EventType)
	assert.Equal(t, models.EventTypeSupplierUpdated, got[1].EventType)
	assert.Equal(t, "PepsiCo", got[1].Name)
}

func TestHandleMessageIgnoresOtherEvents(t *testing.T) {
	called := false
	eh := NewEventHandler()
	eh.OnCatalogChanged(func(context.Context, *models.CatalogChangedEvent) error {
		called = true
		return nil
	})

	event := models.OrderPaidEvent{BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid)}
	require.NoError(t, eh.HandleMessage(context.Background(), message(t, event)))
	assert.False(t, called)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()
	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "order-abc", orderKey("abc"))
}
