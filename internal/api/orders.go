package api

import (
	"errors"
	"io"
	"net/http"

	"procurement-service/internal/service"

	"github.com/gin-gonic/gin"
)

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type payRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// createOrders groups a cart into one order per supplier
func (h *Handler) createOrders(c *gin.Context) {
	var req service.CreateOrdersRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	orders, err := h.orderService.CreateOrders(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to create orders", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"orders": orders,
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), c.Query("status"), c.Query("supplier"))
	if err != nil {
		h.respondError(c, "Failed to list orders", err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, "Failed to get order", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) setOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.SetOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		h.respondError(c, "Failed to update order status", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// payOrder marks a delivered order paid. The body is optional.
func (h *Handler) payOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.paymentService.PayOrder(c.Request.Context(), orderID, req.PaymentMethod)
	if err != nil {
		h.respondError(c, "Failed to pay order", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.orderService.DeleteOrder(c.Request.Context(), orderID); err != nil {
		h.respondError(c, "Failed to delete order", err)
		return
	}

	c.Status(http.StatusNoContent)
}
