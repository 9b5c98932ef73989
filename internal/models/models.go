package models

import (
	"encoding/json"
	"time"
)

// Customer represents a shop customer
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" validate:"required"`
	Phone     string    `db:"phone" json:"phone" validate:"required"`
	Email     *string   `db:"email" json:"email"`
	Address   *string   `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DefaultReorderLevel is applied when an inventory item is created without one
const DefaultReorderLevel = 10.0

// InventoryItem represents fabric, thread, buttons and other stock
type InventoryItem struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name" validate:"required"`
	Category        string    `db:"category" json:"category" validate:"required"`
	Description     *string   `db:"description" json:"description"`
	Quantity        float64   `db:"quantity" json:"quantity" validate:"gte=0"`
	Unit            string    `db:"unit" json:"unit" validate:"required"`
	PricePerUnit    float64   `db:"price_per_unit" json:"price_per_unit" validate:"gte=0"`
	ReorderLevel    float64   `db:"reorder_level" json:"reorder_level" validate:"gte=0"`
	SupplierName    *string   `db:"supplier_name" json:"supplier_name"`
	SupplierContact *string   `db:"supplier_contact" json:"supplier_contact"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports whether the item is at or below its reorder level
func (i InventoryItem) IsLowStock() bool {
	return i.Quantity <= i.ReorderLevel
}

// MarshalJSON adds the derived is_low_stock flag
func (i InventoryItem) MarshalJSON() ([]byte, error) {
	type item InventoryItem
	return json.Marshal(struct {
		item
		IsLowStock bool `json:"is_low_stock"`
	}{item(i), i.IsLowStock()})
}

// Measurements holds body measurements taken for an order
type Measurements struct {
	Chest        *float64 `db:"chest" json:"chest"`
	Waist        *float64 `db:"waist" json:"waist"`
	Shoulder     *float64 `db:"shoulder" json:"shoulder"`
	SleeveLength *float64 `db:"sleeve_length" json:"sleeve_length"`
	ShirtLength  *float64 `db:"shirt_length" json:"shirt_length"`
	Neck         *float64 `db:"neck" json:"neck"`
	Hip          *float64 `db:"hip" json:"hip"`
	Inseam       *float64 `db:"inseam" json:"inseam"`
}

// TailoringOrder represents a garment order for a customer
type TailoringOrder struct {
	ID           int64      `db:"id" json:"id"`
	CustomerID   int64      `db:"customer_id" json:"customer_id"`
	CustomerName *string    `db:"customer_name" json:"customer_name"`
	OrderDate    time.Time  `db:"order_date" json:"order_date"`
	DeliveryDate *time.Time `db:"delivery_date" json:"delivery_date"`
	Status       string     `db:"status" json:"status"`
	GarmentType  string     `db:"garment_type" json:"garment_type" validate:"required"`

	Measurements `json:"measurements"`

	SpecialInstructions *string     `db:"special_instructions" json:"special_instructions"`
	TotalPrice          float64     `db:"total_price" json:"total_price" validate:"gte=0"`
	AdvancePayment      float64     `db:"advance_payment" json:"advance_payment" validate:"gte=0"`
	ItemsUsed           []OrderItem `db:"-" json:"items_used"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// BalanceDue is the unpaid part of the order price. Overpayment yields a negative balance.
func (o TailoringOrder) BalanceDue() float64 {
	return o.TotalPrice - o.AdvancePayment
}

// IsCompleted reports whether inventory has already been deducted for the order
func (o TailoringOrder) IsCompleted() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusDelivered
}

// MarshalJSON adds the derived balance_due field
func (o TailoringOrder) MarshalJSON() ([]byte, error) {
	type order TailoringOrder
	items := o.ItemsUsed
	if items == nil {
		items = []OrderItem{}
	}
	o.ItemsUsed = items
	return json.Marshal(struct {
		order
		BalanceDue float64 `json:"balance_due"`
	}{order(o), o.BalanceDue()})
}

// OrderItem records how much of one inventory item an order consumes
type OrderItem struct {
	ID                int64   `db:"id" json:"id"`
	OrderID           int64   `db:"order_id" json:"order_id"`
	InventoryItemID   int64   `db:"inventory_item_id" json:"inventory_item_id"`
	InventoryItemName *string `db:"inventory_item_name" json:"inventory_item_name"`
	QuantityUsed      float64 `db:"quantity_used" json:"quantity_used"`
	Unit              *string `db:"unit" json:"unit"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusDelivered  = "delivered"
)

// ValidOrderStatus reports whether s is a known order status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusDelivered:
		return true
	}
	return false
}

// Stats is the dashboard summary
type Stats struct {
	Customers      int64       `json:"customers"`
	InventoryItems int64       `json:"inventory_items"`
	TotalOrders    int64       `json:"total_orders"`
	Orders         OrderCounts `json:"orders"`
	LowStockItems  int64       `json:"low_stock_items"`
}

// OrderCounts breaks orders down by status
type OrderCounts struct {
	Pending    int64 `db:"pending" json:"pending"`
	InProgress int64 `db:"in_progress" json:"in_progress"`
	Completed  int64 `db:"completed" json:"completed"`
}
