package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"procurement-service/internal/service"
	"procurement-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	ledgerService  *service.LedgerService
	db             Pinger
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	ledgerService *service.LedgerService,
	db Pinger,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		orderService:   orderService,
		paymentService: paymentService,
		ledgerService:  ledgerService,
		db:             db,
		requestTimeout: requestTimeout,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(timeoutMiddleware(h.requestTimeout))
	{
		v1.POST("/orders", h.createOrders)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id/status", h.setOrderStatus)
		v1.PUT("/orders/:id/pay", h.payOrder)
		v1.DELETE("/orders/:id", h.deleteOrder)

		v1.GET("/suppliers", h.listSuppliers)
		v1.GET("/suppliers/:name", h.getSupplier)
		v1.GET("/suppliers/:name/products", h.getSupplierProducts)
		v1.GET("/suppliers/:name/orders", h.getSupplierOrders)

		v1.GET("/debug", h.debugSnapshot)
		v1.GET("/debug/suppliers", h.debugSuppliers)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps a service error to its HTTP status
func (h *Handler) respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindValidation, service.KindInvalidSupplier:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindConflict:
		status = http.StatusConflict
	default:
		h.logger.Error(message,
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// pathID parses the :id path parameter, answering 400 when it is not a UUID
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid order ID",
			"details": err.Error(),
		})
		return uuid.Nil, false
	}
	return id, true
}

// timeoutMiddleware bounds every request context
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
