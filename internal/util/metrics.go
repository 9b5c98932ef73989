package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CustomersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customers_created_total",
		Help: "Total number of customers created",
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of tailoring orders created",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders completed with inventory deducted",
	})

	OrderCompletionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_completions_failed_total",
		Help: "Total number of rejected order completions",
	}, []string{"reason"})

	OrderCompletionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_completion_latency_seconds",
		Help:    "Latency of order completion including inventory deduction",
		Buckets: prometheus.DefBuckets,
	})

	InventoryDeductedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_deducted_quantity_total",
		Help: "Quantity deducted from inventory by completed orders",
	})

	InventoryLowStockItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inventory_low_stock_items",
		Help: "Number of inventory items at or below reorder level at last stats read",
	})

	StockAlertsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_alerts_raised_total",
		Help: "Total number of stock alerts raised",
	}, []string{"type"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of domain events that could not be published",
	}, []string{"event_type"})

	EventHandleRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_handle_retries_total",
		Help: "Total number of consumed events retried after a handler failure",
	})

	EventsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "events_skipped_total",
		Help: "Total number of consumed events committed without being handled",
	})

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
