package store

import (
	"context"
	"fmt"

	"tailor-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const movementColumns = `id, inventory_item_id, order_id, type, quantity, balance_after, notes, created_at`

// ListStockMovements retrieves an item's stock movements, newest first
func (s *Store) ListStockMovements(ctx context.Context, inventoryItemID int64) ([]models.StockMovement, error) {
	movements := []models.StockMovement{}
	err := s.db.SelectContext(ctx, &movements,
		"SELECT "+movementColumns+" FROM stock_movements WHERE inventory_item_id = $1 ORDER BY created_at DESC, id DESC",
		inventoryItemID)
	return movements, err
}

// insertMovements writes movements inside the transaction that changed the stock
func insertMovements(ctx context.Context, tx *sqlx.Tx, movements []models.StockMovement) error {
	query := `
		INSERT INTO stock_movements (inventory_item_id, order_id, type, quantity, balance_after, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	for i := range movements {
		m := &movements[i]
		if err := tx.GetContext(ctx, m, query,
			m.InventoryItemID, m.OrderID, m.Type, m.Quantity, m.BalanceAfter, m.Notes); err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
	}
	return nil
}
