package service

import (
	"fmt"

	"procurement-service/internal/models"
)

// isDeliveryEdge reports whether the change from -> to is the one that
// receives goods into stock. Any prior status may lead to delivered,
// including one reached after an earlier delivery.
func isDeliveryEdge(from, to string) bool {
	return from != models.OrderStatusDelivered && to == models.OrderStatusDelivered
}

// checkPayable validates that an order can be paid, in precedence order
func checkPayable(order *models.Order) error {
	if order.IsPaid {
		return ErrAlreadyPaid
	}
	if order.Status != models.OrderStatusDelivered {
		return fmt.Errorf("%w: status is %s", ErrNotDelivered, order.Status)
	}
	return nil
}
