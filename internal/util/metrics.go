package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of supplier orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order creation requests",
	}, []string{"reason"})

	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of applied order status transitions",
	}, []string{"from", "to"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	OrdersPaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders successfully paid",
	}, []string{"method"})

	PaymentFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of rejected payments",
	}, []string{"reason"})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of product stock adjustments",
	}, []string{"kind"})

	StockAdjustmentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_failed_total",
		Help: "Total number of failed product stock adjustments",
	}, []string{"kind"})

	LedgerReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_reconcile_latency_seconds",
		Help:    "Latency of supplier ledger reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	LedgerCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_cache_requests_total",
		Help: "Ledger cache lookups by result",
	}, []string{"result"})

	CatalogEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_events_processed_total",
		Help: "Total number of catalog and registry change events processed",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
