package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listSuppliers returns every supplier with its reconciled ledger
func (h *Handler) listSuppliers(c *gin.Context) {
	ledgers, err := h.ledgerService.ListSuppliersWithLedger(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list suppliers", err)
		return
	}

	c.JSON(http.StatusOK, ledgers)
}

func (h *Handler) getSupplier(c *gin.Context) {
	ledger, err := h.ledgerService.GetSupplierLedger(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, "Failed to get supplier", err)
		return
	}

	c.JSON(http.StatusOK, ledger)
}

func (h *Handler) getSupplierProducts(c *gin.Context) {
	products, err := h.ledgerService.GetSupplierProducts(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, "Failed to get supplier products", err)
		return
	}

	c.JSON(http.StatusOK, products)
}

// getSupplierOrders lists delivered orders, ?filter=unpaid|paid|all
func (h *Handler) getSupplierOrders(c *gin.Context) {
	orders, err := h.ledgerService.GetSupplierOrders(c.Request.Context(), c.Param("name"), c.Query("filter"))
	if err != nil {
		h.respondError(c, "Failed to get supplier orders", err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// debugSuppliers shows where each supplier name comes from
func (h *Handler) debugSuppliers(c *gin.Context) {
	sources, err := h.ledgerService.SupplierSources(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to inspect suppliers", err)
		return
	}

	c.JSON(http.StatusOK, sources)
}

// debugSnapshot dumps products, orders and suppliers
func (h *Handler) debugSnapshot(c *gin.Context) {
	snap, err := h.ledgerService.DebugSnapshot(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to build debug snapshot", err)
		return
	}

	c.JSON(http.StatusOK, snap)
}
