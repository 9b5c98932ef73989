// Package memstore is an in-process store with the same semantics as the
// Postgres store. Every operation holds a single mutex, so updates are
// serialized the way row locks serialize them in Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"tailor-service/internal/apperr"
	"tailor-service/internal/ledger"
	"tailor-service/internal/models"
)

// Store keeps every record in maps keyed by id. Ids come from one counter
// shared by all tables.
type Store struct {
	mu sync.Mutex

	customers  map[int64]models.Customer
	inventory  map[int64]models.InventoryItem
	orders     map[int64]models.TailoringOrder
	orderItems map[int64]models.OrderItem
	alerts     map[int64]models.Alert
	movements  map[int64]models.StockMovement

	lastID int64
	now    func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		customers:  make(map[int64]models.Customer),
		inventory:  make(map[int64]models.InventoryItem),
		orders:     make(map[int64]models.TailoringOrder),
		orderItems: make(map[int64]models.OrderItem),
		alerts:     make(map[int64]models.Alert),
		movements:  make(map[int64]models.StockMovement),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op kept for parity with the Postgres store
func (s *Store) Close() error {
	return nil
}

func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Customers

// ListCustomers returns all customers in id order
func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers := make([]models.Customer, 0, len(s.customers))
	for _, id := range sortedKeys(s.customers) {
		customers = append(customers, s.customers[id])
	}
	return customers, nil
}

// GetCustomer returns a customer by id
func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, apperr.NotFound("customer", id)
	}
	return &customer, nil
}

// CreateCustomer assigns the customer an id and stores it
func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.ID = s.nextID()
	customer.CreatedAt = s.now()
	s.customers[customer.ID] = *customer
	return nil
}

// UpdateCustomer lets apply modify a copy of the customer and stores the result
func (s *Store) UpdateCustomer(ctx context.Context, id int64, apply func(*models.Customer) error) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, apperr.NotFound("customer", id)
	}
	if err := apply(&customer); err != nil {
		return nil, err
	}
	customer.ID = id
	s.customers[id] = customer
	return &customer, nil
}

// DeleteCustomer removes a customer and its orders
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return apperr.NotFound("customer", id)
	}
	for orderID, order := range s.orders {
		if order.CustomerID == id {
			s.deleteOrderLocked(orderID)
		}
	}
	delete(s.customers, id)
	return nil
}

// Inventory

// ListInventory returns inventory items in id order, optionally of one category
func (s *Store) ListInventory(ctx context.Context, filter models.InventoryFilter) ([]models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.InventoryItem{}
	for _, id := range sortedKeys(s.inventory) {
		item := s.inventory[id]
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// ListLowStock returns items at or below their reorder level
func (s *Store) ListLowStock(ctx context.Context) ([]models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.InventoryItem{}
	for _, id := range sortedKeys(s.inventory) {
		if item := s.inventory[id]; ledger.IsLowStock(item.Quantity, item.ReorderLevel) {
			items = append(items, item)
		}
	}
	return items, nil
}

// GetInventoryItem returns an inventory item by id
func (s *Store) GetInventoryItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.inventory[id]
	if !ok {
		return nil, apperr.NotFound("inventory item", id)
	}
	return &item, nil
}

// CreateInventoryItem assigns the item an id and stores it
func (s *Store) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = s.nextID()
	item.CreatedAt = s.now()
	item.UpdatedAt = item.CreatedAt
	s.inventory[item.ID] = *item
	return nil
}

// UpdateInventoryItem lets apply modify a copy of the item and stores the
// result. A quantity change is recorded as an adjustment movement.
func (s *Store) UpdateInventoryItem(ctx context.Context, id int64, apply func(*models.InventoryItem) error) (*models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.inventory[id]
	if !ok {
		return nil, apperr.NotFound("inventory item", id)
	}
	before := item.Quantity
	if err := apply(&item); err != nil {
		return nil, err
	}
	item.ID = id
	item.UpdatedAt = s.now()
	s.inventory[id] = item

	if m := ledger.Adjustment(id, before, item.Quantity); m != nil {
		s.recordMovementsLocked([]models.StockMovement{*m})
	}
	return &item, nil
}

// DeleteInventoryItem removes an item no order-item references, along with
// its alerts and movements
func (s *Store) DeleteInventoryItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refs int64
	for _, oi := range s.orderItems {
		if oi.InventoryItemID == id {
			refs++
		}
	}
	if err := ledger.CheckDeletable(refs); err != nil {
		return err
	}

	if _, ok := s.inventory[id]; !ok {
		return apperr.NotFound("inventory item", id)
	}
	delete(s.inventory, id)
	for alertID, alert := range s.alerts {
		if alert.InventoryItemID == id {
			delete(s.alerts, alertID)
		}
	}
	for movementID, m := range s.movements {
		if m.InventoryItemID == id {
			delete(s.movements, movementID)
		}
	}
	return nil
}

// Stock movements

// ListStockMovements returns an item's movements, newest first
func (s *Store) ListStockMovements(ctx context.Context, inventoryItemID int64) ([]models.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := sortedKeys(s.movements)
	movements := []models.StockMovement{}
	for i := len(ids) - 1; i >= 0; i-- {
		if m := s.movements[ids[i]]; m.InventoryItemID == inventoryItemID {
			movements = append(movements, m)
		}
	}
	return movements, nil
}

func (s *Store) recordMovementsLocked(movements []models.StockMovement) {
	now := s.now()
	for _, m := range movements {
		m.ID = s.nextID()
		m.CreatedAt = now
		s.movements[m.ID] = m
	}
}

// Orders

// hydrateLocked fills in the customer name and the order's items
func (s *Store) hydrateLocked(order models.TailoringOrder) models.TailoringOrder {
	if customer, ok := s.customers[order.CustomerID]; ok {
		name := customer.Name
		order.CustomerName = &name
	}

	order.ItemsUsed = []models.OrderItem{}
	for _, id := range sortedKeys(s.orderItems) {
		oi := s.orderItems[id]
		if oi.OrderID != order.ID {
			continue
		}
		if inv, ok := s.inventory[oi.InventoryItemID]; ok {
			name, unit := inv.Name, inv.Unit
			oi.InventoryItemName = &name
			oi.Unit = &unit
		}
		order.ItemsUsed = append(order.ItemsUsed, oi)
	}
	return order
}

// ListOrders returns orders in id order matching the filter
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.TailoringOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := []models.TailoringOrder{}
	for _, id := range sortedKeys(s.orders) {
		order := s.orders[id]
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.CustomerID != nil && order.CustomerID != *filter.CustomerID {
			continue
		}
		orders = append(orders, s.hydrateLocked(order))
	}
	return orders, nil
}

// GetOrder returns an order by id with its items
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.TailoringOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	order = s.hydrateLocked(order)
	return &order, nil
}

// CreateOrder stores an order and its items after checking every reference
func (s *Store) CreateOrder(ctx context.Context, order *models.TailoringOrder, items []models.OrderItem) (*models.TailoringOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[order.CustomerID]; !ok {
		return nil, apperr.Newf(apperr.CodeValidation, "customer not found: %d", order.CustomerID)
	}
	for _, item := range items {
		if _, ok := s.inventory[item.InventoryItemID]; !ok {
			return nil, apperr.Newf(apperr.CodeValidation, "inventory item not found: %d", item.InventoryItemID)
		}
	}

	now := s.now()
	order.ID = s.nextID()
	order.OrderDate = now
	order.CreatedAt = now
	order.UpdatedAt = now
	order.ItemsUsed = nil
	s.orders[order.ID] = *order

	for _, item := range items {
		item.ID = s.nextID()
		item.OrderID = order.ID
		s.orderItems[item.ID] = item
	}

	created := s.hydrateLocked(*order)
	return &created, nil
}

// UpdateOrder lets apply modify the order. Moving it into completed deducts
// inventory for every order-item, or changes nothing when any item is short.
func (s *Store) UpdateOrder(ctx context.Context, id int64, apply func(*models.TailoringOrder) error) (*models.TailoringOrder, []ledger.Deduction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[id]
	if !ok {
		return nil, nil, apperr.NotFound("order", id)
	}
	order := s.hydrateLocked(stored)
	items := order.ItemsUsed

	before := order.Status
	if err := apply(&order); err != nil {
		return nil, nil, err
	}

	var deductions []ledger.Deduction
	if ledger.CheckCompletable(before) == nil && order.Status == models.OrderStatusCompleted {
		stock := make(map[int64]ledger.Stock)
		for _, item := range items {
			if inv, ok := s.inventory[item.InventoryItemID]; ok {
				stock[inv.ID] = ledger.Stock{ID: inv.ID, Name: inv.Name, Quantity: inv.Quantity, ReorderLevel: inv.ReorderLevel}
			}
		}

		var err error
		deductions, err = ledger.Plan(ledger.LinesFor(items), stock)
		if err != nil {
			return nil, nil, err
		}

		now := s.now()
		for _, d := range deductions {
			inv := s.inventory[d.InventoryItemID]
			inv.Quantity = d.After
			inv.UpdatedAt = now
			s.inventory[d.InventoryItemID] = inv
		}
		s.recordMovementsLocked(ledger.MovementsFor(id, deductions))
	}

	order.ID = id
	order.CustomerID = stored.CustomerID
	order.UpdatedAt = s.now()
	order.ItemsUsed = nil
	order.CustomerName = nil
	s.orders[id] = order

	updated := s.hydrateLocked(order)
	return &updated, deductions, nil
}

// DeleteOrder removes an order and its items. Movements keep their history
// without the order reference.
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return apperr.NotFound("order", id)
	}
	s.deleteOrderLocked(id)
	return nil
}

func (s *Store) deleteOrderLocked(id int64) {
	for itemID, oi := range s.orderItems {
		if oi.OrderID == id {
			delete(s.orderItems, itemID)
		}
	}
	for movementID, m := range s.movements {
		if m.OrderID != nil && *m.OrderID == id {
			m.OrderID = nil
			s.movements[movementID] = m
		}
	}
	delete(s.orders, id)
}

// Stats

// GetStats counts records the same way the SQL aggregate does
func (s *Store) GetStats(ctx context.Context) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.Stats{
		Customers:      int64(len(s.customers)),
		InventoryItems: int64(len(s.inventory)),
		TotalOrders:    int64(len(s.orders)),
	}
	for _, order := range s.orders {
		switch order.Status {
		case models.OrderStatusPending:
			stats.Orders.Pending++
		case models.OrderStatusInProgress:
			stats.Orders.InProgress++
		case models.OrderStatusCompleted:
			stats.Orders.Completed++
		}
	}
	for _, item := range s.inventory {
		if ledger.IsLowStock(item.Quantity, item.ReorderLevel) {
			stats.LowStockItems++
		}
	}
	return stats, nil
}

// Alerts

// ListAlerts returns alerts newest first
func (s *Store) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := sortedKeys(s.alerts)
	alerts := []models.Alert{}
	for i := len(ids) - 1; i >= 0; i-- {
		alert := s.alerts[ids[i]]
		if filter.UnreadOnly && (alert.IsRead || alert.IsDismissed) {
			continue
		}
		if filter.Limit > 0 && len(alerts) >= filter.Limit {
			break
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// GetAlert returns an alert by id
func (s *Store) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, apperr.NotFound("alert", id)
	}
	return &alert, nil
}

// GetActiveAlert returns the undismissed alert for an item, nil if none
func (s *Store) GetActiveAlert(ctx context.Context, inventoryItemID int64) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alert := range s.alerts {
		if alert.InventoryItemID == inventoryItemID && !alert.IsDismissed {
			return &alert, nil
		}
	}
	return nil, nil
}

// CreateAlert stores an alert unless the item already has an active one
func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.alerts {
		if existing.InventoryItemID == alert.InventoryItemID && !existing.IsDismissed {
			return false, nil
		}
	}

	alert.ID = s.nextID()
	alert.IsRead = false
	alert.IsDismissed = false
	alert.CreatedAt = s.now()
	s.alerts[alert.ID] = *alert
	return true, nil
}

// MarkAlertRead flags an alert as read
func (s *Store) MarkAlertRead(ctx context.Context, id int64) error {
	return s.updateAlert(id, func(a *models.Alert) { a.IsRead = true })
}

// MarkAllAlertsRead flags every unread active alert as read and returns how many changed
func (s *Store) MarkAllAlertsRead(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, alert := range s.alerts {
		if alert.IsRead || alert.IsDismissed {
			continue
		}
		alert.IsRead = true
		s.alerts[id] = alert
		n++
	}
	return n, nil
}

// DismissAlert retires an alert
func (s *Store) DismissAlert(ctx context.Context, id int64) error {
	return s.updateAlert(id, func(a *models.Alert) { a.IsDismissed = true })
}

func (s *Store) updateAlert(id int64, fn func(*models.Alert)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return apperr.NotFound("alert", id)
	}
	fn(&alert)
	s.alerts[id] = alert
	return nil
}
