package models

import "time"

// Event types
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderCompleted   = "ORDER_COMPLETED"
	EventTypeInventoryUpdated = "INVENTORY_UPDATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	CustomerID  int64           `json:"customer_id"`
	GarmentType string          `json:"garment_type"`
	TotalPrice  float64         `json:"total_price"`
	Items       []OrderItemData `json:"items"`
}

// OrderCompletedEvent published after inventory was deducted for an order
type OrderCompletedEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	Deductions []DeductionData `json:"deductions"`
}

// InventoryUpdatedEvent published when an item's stock or threshold is edited directly
type InventoryUpdatedEvent struct {
	BaseEvent
	InventoryItemID int64   `json:"inventory_item_id"`
	Quantity        float64 `json:"quantity"`
	ReorderLevel    float64 `json:"reorder_level"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	InventoryItemID int64   `json:"inventory_item_id"`
	QuantityUsed    float64 `json:"quantity_used"`
}

// DeductionData describes one inventory row change caused by a completion
type DeductionData struct {
	InventoryItemID int64   `json:"inventory_item_id"`
	Before          float64 `json:"before"`
	After           float64 `json:"after"`
	ReorderLevel    float64 `json:"reorder_level"`
}
