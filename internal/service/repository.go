package service

import (
	"context"

	"tailor-service/internal/ledger"
	"tailor-service/internal/models"
)

// CustomerStore persists customers
type CustomerStore interface {
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	UpdateCustomer(ctx context.Context, id int64, apply func(*models.Customer) error) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

// InventoryStore persists inventory items and the movements of their stock
type InventoryStore interface {
	ListInventory(ctx context.Context, filter models.InventoryFilter) ([]models.InventoryItem, error)
	ListLowStock(ctx context.Context) ([]models.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id int64) (*models.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error
	UpdateInventoryItem(ctx context.Context, id int64, apply func(*models.InventoryItem) error) (*models.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, id int64) error
	ListStockMovements(ctx context.Context, inventoryItemID int64) ([]models.StockMovement, error)
}

// OrderStore persists tailoring orders. UpdateOrder must deduct inventory,
// atomically with the order write, when apply moves an order into completed.
type OrderStore interface {
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.TailoringOrder, error)
	GetOrder(ctx context.Context, id int64) (*models.TailoringOrder, error)
	CreateOrder(ctx context.Context, order *models.TailoringOrder, items []models.OrderItem) (*models.TailoringOrder, error)
	UpdateOrder(ctx context.Context, id int64, apply func(*models.TailoringOrder) error) (*models.TailoringOrder, []ledger.Deduction, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// StatsStore computes dashboard counts
type StatsStore interface {
	GetStats(ctx context.Context) (*models.Stats, error)
}

// AlertStore persists stock alerts
type AlertStore interface {
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	GetActiveAlert(ctx context.Context, inventoryItemID int64) (*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) (bool, error)
	MarkAlertRead(ctx context.Context, id int64) error
	MarkAllAlertsRead(ctx context.Context) (int64, error)
	DismissAlert(ctx context.Context, id int64) error
}

// Repository is everything the services need from persistence
type Repository interface {
	CustomerStore
	InventoryStore
	OrderStore
	StatsStore
	AlertStore
	Ping(ctx context.Context) error
}
