package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tailor-service/internal/apperr"
	"tailor-service/internal/ledger"
	"tailor-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderSelect = `
	SELECT o.id, o.customer_id, c.name AS customer_name, o.order_date, o.delivery_date, o.status,
		o.garment_type, o.chest, o.waist, o.shoulder, o.sleeve_length, o.shirt_length, o.neck,
		o.hip, o.inseam, o.special_instructions, o.total_price, o.advance_payment,
		o.created_at, o.updated_at
	FROM tailoring_orders o
	LEFT JOIN customers c ON c.id = o.customer_id`

const orderItemSelect = `
	SELECT oi.id, oi.order_id, oi.inventory_item_id, i.name AS inventory_item_name,
		oi.quantity_used, i.unit AS unit
	FROM order_items oi
	LEFT JOIN inventory_items i ON i.id = oi.inventory_item_id`

// ListOrders retrieves orders matching the filter, with their items
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.TailoringOrder, error) {
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conds = append(conds, fmt.Sprintf("o.customer_id = $%d", len(args)))
	}

	query := orderSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY o.id"

	orders := []models.TailoringOrder{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads order-items for all orders in one query
func (s *Store) attachItems(ctx context.Context, orders []models.TailoringOrder) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	query, args, err := sqlx.In(orderItemSelect+" WHERE oi.order_id IN (?) ORDER BY oi.id", ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return err
	}

	byOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].ItemsUsed = byOrder[orders[i].ID]
	}
	return nil
}

// GetOrder retrieves an order by ID with its items
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.TailoringOrder, error) {
	var order models.TailoringOrder
	err := s.db.GetContext(ctx, &order, orderSelect+" WHERE o.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.GetOrderItemsByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.ItemsUsed = items
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		orderItemSelect+" WHERE oi.order_id = $1 ORDER BY oi.id", orderID)
	return items, err
}

// CreateOrder inserts an order and its items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.TailoringOrder, items []models.OrderItem) (*models.TailoringOrder, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)", order.CustomerID); err != nil {
			return err
		}
		if !exists {
			return apperr.Newf(apperr.CodeValidation, "customer not found: %d", order.CustomerID)
		}

		if err := checkInventoryExists(ctx, tx, items); err != nil {
			return err
		}

		query := `
			INSERT INTO tailoring_orders (customer_id, delivery_date, status, garment_type,
				chest, waist, shoulder, sleeve_length, shirt_length, neck, hip, inseam,
				special_instructions, total_price, advance_payment)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id, order_date, created_at, updated_at`

		m := order.Measurements
		if err := tx.GetContext(ctx, order, query,
			order.CustomerID, order.DeliveryDate, order.Status, order.GarmentType,
			m.Chest, m.Waist, m.Shoulder, m.SleeveLength, m.ShirtLength, m.Neck, m.Hip, m.Inseam,
			order.SpecialInstructions, order.TotalPrice, order.AdvancePayment); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.GetContext(ctx, &items[i].ID,
				"INSERT INTO order_items (order_id, inventory_item_id, quantity_used) VALUES ($1, $2, $3) RETURNING id",
				order.ID, items[i].InventoryItemID, items[i].QuantityUsed); err != nil {
				return translateFK(err, fmt.Sprintf("inventory item not found: %d", items[i].InventoryItemID))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetOrder(ctx, order.ID)
}

// checkInventoryExists key-share locks the referenced inventory rows in id
// order, the same order completion locks them in, so the order_items foreign
// key checks that follow cannot deadlock against a concurrent completion
func checkInventoryExists(ctx context.Context, tx *sqlx.Tx, items []models.OrderItem) error {
	ids := distinctInventoryIDs(items)
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("SELECT id FROM inventory_items WHERE id IN (?) ORDER BY id FOR KEY SHARE", ids)
	if err != nil {
		return err
	}

	var found []int64
	if err := tx.SelectContext(ctx, &found, tx.Rebind(query), args...); err != nil {
		return err
	}

	known := make(map[int64]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return apperr.Newf(apperr.CodeValidation, "inventory item not found: %d", id)
		}
	}
	return nil
}

// distinctInventoryIDs returns the referenced inventory ids in ascending order,
// which is also the row locking order
func distinctInventoryIDs(items []models.OrderItem) []int64 {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if !seen[item.InventoryItemID] {
			seen[item.InventoryItemID] = true
			ids = append(ids, item.InventoryItemID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UpdateOrder locks the order row and lets apply modify it. When the update
// moves the order into completed, inventory for every order-item is locked,
// checked and deducted in the same transaction; any shortage rolls back the
// whole update.
func (s *Store) UpdateOrder(ctx context.Context, id int64, apply func(*models.TailoringOrder) error) (*models.TailoringOrder, []ledger.Deduction, error) {
	var deductions []ledger.Deduction

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var order models.TailoringOrder
		err := tx.GetContext(ctx, &order, orderSelect+" WHERE o.id = $1 FOR UPDATE OF o", id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("order", id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		items := []models.OrderItem{}
		if err := tx.SelectContext(ctx, &items,
			orderItemSelect+" WHERE oi.order_id = $1 ORDER BY oi.id", id); err != nil {
			return fmt.Errorf("failed to get order items: %w", err)
		}
		order.ItemsUsed = items

		before := order.Status
		if err := apply(&order); err != nil {
			return err
		}

		if ledger.CheckCompletable(before) == nil && order.Status == models.OrderStatusCompleted {
			deductions, err = deductStock(ctx, tx, id, items)
			if err != nil {
				return err
			}
		}

		m := order.Measurements
		query := `
			UPDATE tailoring_orders
			SET delivery_date = $1, status = $2, garment_type = $3, chest = $4, waist = $5,
				shoulder = $6, sleeve_length = $7, shirt_length = $8, neck = $9, hip = $10,
				inseam = $11, special_instructions = $12, total_price = $13, advance_payment = $14,
				updated_at = NOW()
			WHERE id = $15`

		_, err = tx.ExecContext(ctx, query,
			order.DeliveryDate, order.Status, order.GarmentType, m.Chest, m.Waist,
			m.Shoulder, m.SleeveLength, m.ShirtLength, m.Neck, m.Hip,
			m.Inseam, order.SpecialInstructions, order.TotalPrice, order.AdvancePayment, id)
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return order, deductions, nil
}

// deductStock plans and applies the inventory deduction for a completing
// order, recording one movement per inventory item
func deductStock(ctx context.Context, tx *sqlx.Tx, orderID int64, items []models.OrderItem) ([]ledger.Deduction, error) {
	rows, err := lockStock(ctx, tx, distinctInventoryIDs(items))
	if err != nil {
		return nil, err
	}

	stock := make(map[int64]ledger.Stock, len(rows))
	for id, row := range rows {
		stock[id] = ledger.Stock{ID: id, Name: row.Name, Quantity: row.Quantity, ReorderLevel: row.ReorderLevel}
	}

	deductions, err := ledger.Plan(ledger.LinesFor(items), stock)
	if err != nil {
		return nil, err
	}

	for _, d := range deductions {
		if _, err := tx.ExecContext(ctx,
			"UPDATE inventory_items SET quantity = $1, updated_at = NOW() WHERE id = $2",
			d.After, d.InventoryItemID); err != nil {
			return nil, fmt.Errorf("failed to deduct stock: %w", err)
		}
	}
	if err := insertMovements(ctx, tx, ledger.MovementsFor(orderID, deductions)); err != nil {
		return nil, err
	}
	return deductions, nil
}

// DeleteOrder deletes an order and its items
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tailoring_orders WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(result, "order", id)
}
