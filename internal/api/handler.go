package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tailor-service/internal/apperr"
	"tailor-service/internal/service"
	"tailor-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Version is reported by the service index
const Version = "1.0.0"

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	customers *service.CustomerService
	inventory *service.InventoryService
	orders    *service.OrderService
	stats     *service.StatsService
	alerts    *service.AlertService
	deps      map[string]Pinger
	logger    *zap.Logger
}

// Services groups what the handler serves
type Services struct {
	Customers *service.CustomerService
	Inventory *service.InventoryService
	Orders    *service.OrderService
	Stats     *service.StatsService
	Alerts    *service.AlertService
}

// NewHandler creates a new HTTP handler. deps are pinged by /ready.
func NewHandler(svc Services, deps map[string]Pinger) *Handler {
	return &Handler{
		customers: svc.Customers,
		inventory: svc.Inventory,
		orders:    svc.Orders,
		stats:     svc.Stats,
		alerts:    svc.Alerts,
		deps:      deps,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/", h.index)
	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/customers", h.listCustomers)
		api.POST("/customers", h.createCustomer)
		api.GET("/customers/:id", h.getCustomer)
		api.PUT("/customers/:id", h.updateCustomer)
		api.DELETE("/customers/:id", h.deleteCustomer)

		api.GET("/inventory", h.listInventory)
		api.POST("/inventory", h.createInventoryItem)
		api.GET("/inventory/low-stock", h.listLowStock)
		api.GET("/inventory/:id", h.getInventoryItem)
		api.GET("/inventory/:id/history", h.getStockHistory)
		api.PUT("/inventory/:id", h.updateInventoryItem)
		api.DELETE("/inventory/:id", h.deleteInventoryItem)

		api.GET("/orders", h.listOrders)
		api.POST("/orders", h.createOrder)
		api.GET("/orders/:id", h.getOrder)
		api.PUT("/orders/:id", h.updateOrder)
		api.DELETE("/orders/:id", h.deleteOrder)
		api.POST("/orders/:id/complete", h.completeOrder)

		api.GET("/stats", h.getStats)

		api.GET("/alerts", h.listAlerts)
		api.POST("/alerts/generate", h.generateAlerts)
		api.POST("/alerts/mark-all-read", h.markAllAlertsRead)
		api.POST("/alerts/:id/read", h.markAlertRead)
		api.POST("/alerts/:id/dismiss", h.dismissAlert)
	}
}

// index describes the service
func (h *Handler) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Tailoring shop record keeping service",
		"version": Version,
		"endpoints": gin.H{
			"customers": "/api/customers",
			"inventory": "/api/inventory",
			"orders":    "/api/orders",
			"low_stock": "/api/inventory/low-stock",
			"stats":     "/api/stats",
			"alerts":    "/api/alerts",
		},
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// respondError renders err as {"error": message, ...details}
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  apperr.CodeInternal,
		})
		return
	}

	status := apperr.HTTPStatus(appErr.Code())
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}

	body := gin.H{}
	for k, v := range appErr.Details() {
		body[k] = v
	}
	body["error"] = appErr.Message()
	body["code"] = appErr.Code()
	c.JSON(status, body)
}

// bindJSON decodes the request body, answering 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    apperr.CodeValidation,
			"details": err.Error(),
		})
		return false
	}
	return true
}

// pathID parses the :id route parameter, answering 400 on failure
func pathID(c *gin.Context, resource string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + resource + " ID",
			"code":  apperr.CodeValidation,
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
