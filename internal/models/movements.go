package models

import "time"

// Stock movement types
const (
	MovementTypeOrderUsed  = "ORDER_USED"
	MovementTypeAdjustment = "ADJUSTMENT"
)

// StockMovement is one change to an inventory item's quantity. Quantity is
// signed: negative for stock taken out, positive for stock added.
type StockMovement struct {
	ID              int64     `db:"id" json:"id"`
	InventoryItemID int64     `db:"inventory_item_id" json:"inventory_item_id"`
	OrderID         *int64    `db:"order_id" json:"order_id"`
	Type            string    `db:"type" json:"type"`
	Quantity        float64   `db:"quantity" json:"quantity"`
	BalanceAfter    float64   `db:"balance_after" json:"balance_after"`
	Notes           *string   `db:"notes" json:"notes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// StockHistory is an inventory item with its movements, newest first
type StockHistory struct {
	Item           *InventoryItem  `json:"item"`
	Movements      []StockMovement `json:"movements"`
	TotalMovements int             `json:"total_movements"`
}
