// Package ledger holds the inventory rules: how completing an order deducts
// stock, and when an item counts as low on stock.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"tailor-service/internal/apperr"
	"tailor-service/internal/models"
)

// ErrAlreadyCompleted is returned when inventory was already deducted for an order
var ErrAlreadyCompleted = errors.New("order already completed")

// Line is one order-item: an inventory item and the quantity the order consumes
type Line struct {
	InventoryItemID int64
	QuantityUsed    float64
}

// Stock is the current state of an inventory row
type Stock struct {
	ID           int64
	Name         string
	Quantity     float64
	ReorderLevel float64
}

// Shortage describes an inventory item that cannot cover an order
type Shortage struct {
	InventoryItemID int64   `json:"inventory_item_id"`
	Name            string  `json:"name"`
	Available       float64 `json:"available"`
	Required        float64 `json:"required"`
}

// InsufficientStockError lists every item that is short, in order-item order
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	if len(e.Shortages) == 0 {
		return "insufficient quantity"
	}
	if len(e.Shortages) == 1 {
		return fmt.Sprintf("insufficient quantity for %s", e.Shortages[0].Name)
	}
	names := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		names[i] = s.Name
	}
	return fmt.Sprintf("insufficient quantity for %s", strings.Join(names, ", "))
}

// First returns the first short item
func (e *InsufficientStockError) First() Shortage {
	return e.Shortages[0]
}

// Deduction is the planned change to one inventory row
type Deduction struct {
	InventoryItemID int64
	Before          float64
	After           float64
	ReorderLevel    float64
}

// CheckCompletable rejects orders whose inventory was already deducted
func CheckCompletable(status string) error {
	if status == models.OrderStatusCompleted || status == models.OrderStatusDelivered {
		return ErrAlreadyCompleted
	}
	return nil
}

// Plan computes the deductions needed to complete an order. Lines referencing
// the same inventory item are summed before the sufficiency check. Nothing is
// returned unless every item can cover its total; callers apply the result
// as a whole or not at all.
func Plan(lines []Line, stock map[int64]Stock) ([]Deduction, error) {
	required := make(map[int64]float64, len(lines))
	order := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, seen := required[line.InventoryItemID]; !seen {
			order = append(order, line.InventoryItemID)
		}
		required[line.InventoryItemID] += line.QuantityUsed
	}

	var shortages []Shortage
	deductions := make([]Deduction, 0, len(order))
	for _, id := range order {
		item, ok := stock[id]
		if !ok {
			return nil, fmt.Errorf("inventory item not found: %d", id)
		}

		need := required[id]
		if item.Quantity < need {
			shortages = append(shortages, Shortage{
				InventoryItemID: id,
				Name:            item.Name,
				Available:       item.Quantity,
				Required:        need,
			})
			continue
		}

		deductions = append(deductions, Deduction{
			InventoryItemID: id,
			Before:          item.Quantity,
			After:           item.Quantity - need,
			ReorderLevel:    item.ReorderLevel,
		})
	}

	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages}
	}
	return deductions, nil
}

// CheckTransition validates a status change made through a general update.
// Moving into completed is allowed once; the deduction itself is the store's
// job. Completing again returns ErrAlreadyCompleted.
func CheckTransition(from, to string) error {
	if !models.ValidOrderStatus(to) {
		return apperr.Newf(apperr.CodeValidation, "invalid status: %s", to).
			WithDetails(map[string]any{"allowed": []string{
				models.OrderStatusPending, models.OrderStatusInProgress,
				models.OrderStatusCompleted, models.OrderStatusDelivered,
			}})
	}
	if to == models.OrderStatusCompleted {
		if err := CheckCompletable(from); err != nil {
			return err
		}
	}
	if from == to {
		return nil
	}
	switch {
	case to == models.OrderStatusDelivered && from != models.OrderStatusCompleted:
		return apperr.New(apperr.CodeBusinessRule, "Order must be completed before it is delivered")
	case CheckCompletable(from) != nil && to != models.OrderStatusDelivered:
		return apperr.Newf(apperr.CodeBusinessRule, "Order already completed, cannot move back to %s", to)
	}
	return nil
}

// CheckDeletable rejects deleting an inventory item that order-items still reference
func CheckDeletable(references int64) error {
	if references > 0 {
		return apperr.Newf(apperr.CodeBusinessRule,
			"Inventory item is used by %d order item(s) and cannot be deleted", references).
			WithDetails(map[string]any{"order_items": references})
	}
	return nil
}

// LinesFor converts order-items to ledger lines
func LinesFor(items []models.OrderItem) []Line {
	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = Line{InventoryItemID: item.InventoryItemID, QuantityUsed: item.QuantityUsed}
	}
	return lines
}

// IsLowStock is the restocking predicate
func IsLowStock(quantity, reorderLevel float64) bool {
	return quantity <= reorderLevel
}

// Level classifies an item's stock for alerting
type Level int

const (
	LevelHealthy Level = iota
	LevelLow
	LevelCritical
)

// Classify returns LevelCritical when nothing is left, LevelLow at or below the
// reorder level and LevelHealthy otherwise
func Classify(quantity, reorderLevel float64) Level {
	switch {
	case quantity <= 0:
		return LevelCritical
	case IsLowStock(quantity, reorderLevel):
		return LevelLow
	default:
		return LevelHealthy
	}
}

// MovementsFor records each deduction of a completed order as a stock movement
func MovementsFor(orderID int64, deductions []Deduction) []models.StockMovement {
	movements := make([]models.StockMovement, len(deductions))
	for i, d := range deductions {
		id := orderID
		notes := fmt.Sprintf("Order %d completed", orderID)
		movements[i] = models.StockMovement{
			InventoryItemID: d.InventoryItemID,
			OrderID:         &id,
			Type:            models.MovementTypeOrderUsed,
			Quantity:        d.After - d.Before,
			BalanceAfter:    d.After,
			Notes:           &notes,
		}
	}
	return movements
}

// Adjustment records a direct quantity edit, nil when the quantity did not change
func Adjustment(inventoryItemID int64, before, after float64) *models.StockMovement {
	if before == after {
		return nil
	}
	notes := fmt.Sprintf("Stock adjustment %+g", after-before)
	return &models.StockMovement{
		InventoryItemID: inventoryItemID,
		Type:            models.MovementTypeAdjustment,
		Quantity:        after - before,
		BalanceAfter:    after,
		Notes:           &notes,
	}
}
