package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tailor-service/internal/apperr"
	"tailor-service/internal/ledger"
	"tailor-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const inventoryColumns = `id, name, category, description, quantity, unit, price_per_unit,
	reorder_level, supplier_name, supplier_contact, created_at, updated_at`

// ListInventory retrieves inventory items, optionally of one category
func (s *Store) ListInventory(ctx context.Context, filter models.InventoryFilter) ([]models.InventoryItem, error) {
	items := []models.InventoryItem{}
	query := "SELECT " + inventoryColumns + " FROM inventory_items"
	args := []interface{}{}

	if filter.Category != "" {
		query += " WHERE category = $1"
		args = append(args, filter.Category)
	}
	query += " ORDER BY id"

	err := s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// ListLowStock retrieves items at or below their reorder level
func (s *Store) ListLowStock(ctx context.Context) ([]models.InventoryItem, error) {
	items := []models.InventoryItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+inventoryColumns+" FROM inventory_items WHERE quantity <= reorder_level ORDER BY id")
	return items, err
}

// GetInventoryItem retrieves an inventory item by ID
func (s *Store) GetInventoryItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.GetContext(ctx, &item,
		"SELECT "+inventoryColumns+" FROM inventory_items WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("inventory item", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateInventoryItem creates a new inventory item
func (s *Store) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (name, category, description, quantity, unit, price_per_unit,
			reorder_level, supplier_name, supplier_contact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, item, query,
		item.Name, item.Category, item.Description, item.Quantity, item.Unit, item.PricePerUnit,
		item.ReorderLevel, item.SupplierName, item.SupplierContact)
}

// UpdateInventoryItem locks the item row, lets apply modify it and writes it
// back. A quantity change is recorded as an adjustment movement.
func (s *Store) UpdateInventoryItem(ctx context.Context, id int64, apply func(*models.InventoryItem) error) (*models.InventoryItem, error) {
	var item models.InventoryItem

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &item,
			"SELECT "+inventoryColumns+" FROM inventory_items WHERE id = $1 FOR UPDATE", id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("inventory item", id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock inventory item: %w", err)
		}

		before := item.Quantity
		if err := apply(&item); err != nil {
			return err
		}

		if m := ledger.Adjustment(id, before, item.Quantity); m != nil {
			if err := insertMovements(ctx, tx, []models.StockMovement{*m}); err != nil {
				return err
			}
		}

		query := `
			UPDATE inventory_items
			SET name = $1, category = $2, description = $3, quantity = $4, unit = $5,
				price_per_unit = $6, reorder_level = $7, supplier_name = $8, supplier_contact = $9,
				updated_at = NOW()
			WHERE id = $10
			RETURNING updated_at`

		return tx.GetContext(ctx, &item.UpdatedAt, query,
			item.Name, item.Category, item.Description, item.Quantity, item.Unit,
			item.PricePerUnit, item.ReorderLevel, item.SupplierName, item.SupplierContact, id)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteInventoryItem deletes an item that no order-item references
func (s *Store) DeleteInventoryItem(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var refs int64
		if err := tx.GetContext(ctx, &refs,
			"SELECT COUNT(*) FROM order_items WHERE inventory_item_id = $1", id); err != nil {
			return err
		}
		if err := ledger.CheckDeletable(refs); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM inventory_items WHERE id = $1", id)
		if err != nil {
			return translateFK(err, "Inventory item is still referenced by orders")
		}
		return expectAffected(result, "inventory item", id)
	})
}

// lockStock locks the given inventory rows in id order and returns them keyed by id
func lockStock(ctx context.Context, tx *sqlx.Tx, ids []int64) (map[int64]models.InventoryItem, error) {
	stock := make(map[int64]models.InventoryItem, len(ids))
	if len(ids) == 0 {
		return stock, nil
	}

	query, args, err := sqlx.In(
		"SELECT "+inventoryColumns+" FROM inventory_items WHERE id IN (?) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var items []models.InventoryItem
	if err := tx.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}

	for _, item := range items {
		stock[item.ID] = item
	}
	return stock, nil
}
