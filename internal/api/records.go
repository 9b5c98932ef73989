package api

import (
	"net/http"
	"strconv"

	"tailor-service/internal/apperr"
	"tailor-service/internal/models"
	"tailor-service/internal/service"

	"github.com/gin-gonic/gin"
)

// Customers

func (h *Handler) listCustomers(c *gin.Context) {
	customers, err := h.customers.ListCustomers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *Handler) createCustomer(c *gin.Context) {
	var req service.CreateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.customers.CreateCustomer(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) getCustomer(c *gin.Context) {
	id, ok := pathID(c, "customer")
	if !ok {
		return
	}

	customer, err := h.customers.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) updateCustomer(c *gin.Context) {
	id, ok := pathID(c, "customer")
	if !ok {
		return
	}
	var req service.UpdateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.customers.UpdateCustomer(c.Request.Context(), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) deleteCustomer(c *gin.Context) {
	id, ok := pathID(c, "customer")
	if !ok {
		return
	}

	if err := h.customers.DeleteCustomer(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Inventory

func (h *Handler) listInventory(c *gin.Context) {
	filter := models.InventoryFilter{Category: c.Query("category")}

	items, err := h.inventory.ListInventory(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) listLowStock(c *gin.Context) {
	items, err := h.inventory.ListLowStock(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) createInventoryItem(c *gin.Context) {
	var req service.CreateInventoryItemRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.inventory.CreateInventoryItem(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) getInventoryItem(c *gin.Context) {
	id, ok := pathID(c, "inventory item")
	if !ok {
		return
	}

	item, err := h.inventory.GetInventoryItem(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) getStockHistory(c *gin.Context) {
	id, ok := pathID(c, "inventory item")
	if !ok {
		return
	}

	history, err := h.inventory.GetStockHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) updateInventoryItem(c *gin.Context) {
	id, ok := pathID(c, "inventory item")
	if !ok {
		return
	}
	var req service.UpdateInventoryItemRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.inventory.UpdateInventoryItem(c.Request.Context(), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteInventoryItem(c *gin.Context) {
	id, ok := pathID(c, "inventory item")
	if !ok {
		return
	}

	if err := h.inventory.DeleteInventoryItem(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Orders

func (h *Handler) listOrders(c *gin.Context) {
	filter := models.OrderFilter{Status: c.Query("status")}
	if raw := c.Query("customer_id"); raw != "" {
		customerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.respondError(c, apperr.Newf(apperr.CodeValidation, "invalid customer_id: %s", raw))
			return
		}
		filter.CustomerID = &customerID
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, replayed, err := h.orders.CreateOrder(c.Request.Context(), &req, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusCreated, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}
	var req service.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// completeOrder deducts inventory and marks the order completed
func (h *Handler) completeOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.orders.CompleteOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Stats

func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.stats.GetStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Alerts

func (h *Handler) listAlerts(c *gin.Context) {
	var filter models.AlertFilter
	if raw := c.Query("unread_only"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(c, apperr.Newf(apperr.CodeValidation, "invalid unread_only: %s", raw))
			return
		}
		filter.UnreadOnly = unread
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(c, apperr.Newf(apperr.CodeValidation, "invalid limit: %s", raw))
			return
		}
		filter.Limit = limit
	}

	alerts, err := h.alerts.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// generateAlerts re-evaluates every inventory item
func (h *Handler) generateAlerts(c *gin.Context) {
	result, err := h.alerts.Sweep(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) markAllAlertsRead(c *gin.Context) {
	n, err := h.alerts.MarkAllRead(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "marked_read": n})
}

func (h *Handler) markAlertRead(c *gin.Context) {
	id, ok := pathID(c, "alert")
	if !ok {
		return
	}

	alert, err := h.alerts.MarkRead(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) dismissAlert(c *gin.Context) {
	id, ok := pathID(c, "alert")
	if !ok {
		return
	}

	alert, err := h.alerts.Dismiss(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}
