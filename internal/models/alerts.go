package models

import "time"

// Alert types
const (
	AlertTypeLowStock      = "LOW_STOCK"
	AlertTypeCriticalStock = "CRITICAL_STOCK"
)

// Alert severities
const (
	AlertSeverityMedium   = "MEDIUM"
	AlertSeverityCritical = "CRITICAL"
)

// Alert is a stock warning raised for one inventory item
type Alert struct {
	ID              int64     `db:"id" json:"id"`
	InventoryItemID int64     `db:"inventory_item_id" json:"inventory_item_id"`
	Type            string    `db:"type" json:"type"`
	Severity        string    `db:"severity" json:"severity"`
	Title           string    `db:"title" json:"title"`
	Message         string    `db:"message" json:"message"`
	IsRead          bool      `db:"is_read" json:"is_read"`
	IsDismissed     bool      `db:"is_dismissed" json:"is_dismissed"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// AlertFilter narrows alert listings
type AlertFilter struct {
	UnreadOnly bool
	Limit      int
}
