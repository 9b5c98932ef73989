package store

import (
	"context"

	"tailor-service/internal/models"
)

type statsRow struct {
	Customers      int64 `db:"customers"`
	InventoryItems int64 `db:"inventory_items"`
	TotalOrders    int64 `db:"total_orders"`
	Pending        int64 `db:"pending"`
	InProgress     int64 `db:"in_progress"`
	Completed      int64 `db:"completed"`
	LowStockItems  int64 `db:"low_stock_items"`
}

// GetStats counts records for the dashboard
func (s *Store) GetStats(ctx context.Context) (*models.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM customers) AS customers,
			(SELECT COUNT(*) FROM inventory_items) AS inventory_items,
			(SELECT COUNT(*) FROM tailoring_orders) AS total_orders,
			(SELECT COUNT(*) FROM tailoring_orders WHERE status = $1) AS pending,
			(SELECT COUNT(*) FROM tailoring_orders WHERE status = $2) AS in_progress,
			(SELECT COUNT(*) FROM tailoring_orders WHERE status = $3) AS completed,
			(SELECT COUNT(*) FROM inventory_items WHERE quantity <= reorder_level) AS low_stock_items`

	var row statsRow
	if err := s.db.GetContext(ctx, &row, query,
		models.OrderStatusPending, models.OrderStatusInProgress, models.OrderStatusCompleted); err != nil {
		return nil, err
	}

	return &models.Stats{
		Customers:      row.Customers,
		InventoryItems: row.InventoryItems,
		TotalOrders:    row.TotalOrders,
		Orders: models.OrderCounts{
			Pending:    row.Pending,
			InProgress: row.InProgress,
			Completed:  row.Completed,
		},
		LowStockItems: row.LowStockItems,
	}, nil
}
