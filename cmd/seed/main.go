package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tailor-service/config"
	"tailor-service/internal/broker"
	"tailor-service/internal/models"
	"tailor-service/internal/redisclient"
	"tailor-service/internal/service"
	"tailor-service/internal/store"
	"tailor-service/internal/util"
	"tailor-service/internal/worker"

	"go.uber.org/zap"
)

type sampleItem struct {
	name, category, description, unit string
	quantity, price, reorder          float64
	supplier, contact                 string
}

var sampleCustomers = []service.CreateCustomerRequest{
	{Name: "Ahmed Khan", Phone: "+92-300-1234567", Email: ptr("ahmed.khan@example.com"), Address: ptr("123 Main Street, Karachi")},
	{Name: "Fatima Ali", Phone: "+92-301-9876543", Email: ptr("fatima.ali@example.com"), Address: ptr("456 Garden Road, Lahore")},
	{Name: "Hassan Malik", Phone: "+92-333-5555555", Email: ptr("hassan.malik@example.com"), Address: ptr("789 Park Avenue, Islamabad")},
	{Name: "Ayesha Siddiqui", Phone: "+92-321-4444444", Email: ptr("ayesha.s@example.com"), Address: ptr("321 Sunset Blvd, Multan")},
}

var sampleInventory = []sampleItem{
	{"Premium Cotton Fabric - White", "fabric", "High quality 100% cotton fabric ideal for shirts", "meters", 100, 25.50, 15, "ABC Textiles Ltd", "+92-21-11111111"},
	{"Premium Cotton Fabric - Blue", "fabric", "Premium cotton fabric in navy blue", "meters", 75, 28, 15, "ABC Textiles Ltd", "+92-21-11111111"},
	{"Wool Blend Suiting - Charcoal", "fabric", "Wool blend fabric for formal suits", "meters", 50, 85, 10, "Premium Fabrics Inc", "+92-21-22222222"},
	{"Silk Fabric - Beige", "fabric", "Pure silk fabric for premium garments", "meters", 30, 120, 8, "Silk House", "+92-21-33333333"},
	{"Denim Fabric - Dark Blue", "fabric", "Heavy weight denim for jeans", "meters", 8, 35, 10, "Denim World", "+92-21-44444444"},
	{"Polyester Thread - White", "thread", "Strong polyester thread for general stitching", "spools", 200, 2.50, 20, "Sewing Supplies Co", "+92-21-55555555"},
	{"Polyester Thread - Black", "thread", "Strong polyester thread for dark fabrics", "spools", 180, 2.50, 20, "Sewing Supplies Co", "+92-21-55555555"},
	{"Shirt Buttons - White (Pack of 100)", "button", "Standard white buttons for shirts", "packs", 15, 8, 5, "Button Bazaar", "+92-21-66666666"},
	{"Suit Buttons - Black (Pack of 50)", "button", "Premium black buttons for suits", "packs", 3, 15, 5, "Button Bazaar", "+92-21-66666666"},
	{"Metal Zippers - 7 inch", "accessory", "Metal zippers for trousers", "pieces", 100, 5, 20, "Zipper World", "+92-21-77777777"},
	{"Shoulder Pads - Medium", "accessory", "Shoulder pads for suits and jackets", "pairs", 50, 12, 10, "Tailoring Essentials", "+92-21-88888888"},
	{"Interfacing Fabric - Fusible", "accessory", "Iron-on interfacing for collars and cuffs", "meters", 40, 8.50, 10, "Tailoring Essentials", "+92-21-88888888"},
}

// sampleLine is an inventory position and the quantity used from it
type sampleLine struct {
	item     int
	quantity float64
}

// sampleOrder refers to customers and inventory by their position in the lists above
type sampleOrder struct {
	customer     int
	deliveryDays int
	status       string
	req          service.CreateOrderRequest
	lines        []sampleLine
}

var sampleOrders = []sampleOrder{
	{
		customer: 0, deliveryDays: 2, status: models.OrderStatusCompleted,
		req: service.CreateOrderRequest{
			GarmentType: "shirt", Chest: ptr(40.0), Waist: ptr(34.0), Shoulder: ptr(18.0),
			SleeveLength: ptr(24.0), ShirtLength: ptr(30.0), Neck: ptr(15.5),
			SpecialInstructions: ptr("Blue color with white collar"),
			TotalPrice:          ptr(1500.0), AdvancePayment: ptr(500.0),
		},
		lines: []sampleLine{{1, 2.5}, {5, 1}, {7, 0.1}},
	},
	{
		customer: 1, deliveryDays: 10, status: models.OrderStatusInProgress,
		req: service.CreateOrderRequest{
			GarmentType: "suit", Chest: ptr(38.0), Waist: ptr(32.0), Shoulder: ptr(17.5),
			SleeveLength: ptr(23.5), ShirtLength: ptr(29.0), Neck: ptr(15.0), Hip: ptr(38.0), Inseam: ptr(32.0),
			SpecialInstructions: ptr("Two piece suit with vest"),
			TotalPrice:          ptr(8500.0), AdvancePayment: ptr(3000.0),
		},
		lines: []sampleLine{{2, 3.5}, {6, 2}, {8, 0.1}, {10, 1}},
	},
	{
		customer: 2, deliveryDays: 7, status: models.OrderStatusPending,
		req: service.CreateOrderRequest{
			GarmentType: "trouser", Waist: ptr(36.0), Hip: ptr(40.0), Inseam: ptr(34.0),
			SpecialInstructions: ptr("Pleated front with side pockets"),
			TotalPrice:          ptr(2000.0), AdvancePayment: ptr(800.0),
		},
		lines: []sampleLine{{2, 1.8}, {9, 1}},
	},
	{
		customer: 3, deliveryDays: 5, status: models.OrderStatusPending,
		req: service.CreateOrderRequest{
			GarmentType: "shirt", Chest: ptr(42.0), Waist: ptr(36.0), Shoulder: ptr(19.0),
			SleeveLength: ptr(25.0), ShirtLength: ptr(31.0), Neck: ptr(16.0),
			SpecialInstructions: ptr("French cuffs, monogram on pocket"),
			TotalPrice:          ptr(1800.0), AdvancePayment: ptr(600.0),
		},
		lines: []sampleLine{{0, 2.8}, {5, 1}, {7, 0.1}},
	},
}

func ptr[T any](v T) *T { return &v }

func main() {
	migrate := flag.Bool("migrate", true, "apply migrations before seeding")
	flag.Parse()

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	if cfg.Database.InMemory() {
		logger.Fatal("Seeding needs a PostgreSQL DATABASE_URL")
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *migrate {
		if err := db.Migrate(ctx, "up"); err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}
	}

	// Seeding goes through the services so the same rules apply, and
	// alerts for low sample stock are raised in-process.
	coord := redisclient.NewLocal()
	alerts := service.NewAlertService(db, db)
	publisher := broker.NewLocalPublisher(worker.NewAlertWorker(nil, alerts).Handler())
	customers := service.NewCustomerService(db)
	inventory := service.NewInventoryService(db, publisher)
	orders := service.NewOrderService(db, coord, coord, publisher, service.DefaultOrderOptions)

	if err := seed(ctx, customers, inventory, orders); err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}

	stats, err := service.NewStatsService(db).GetStats(ctx)
	if err != nil {
		logger.Fatal("Failed to read stats", zap.Error(err))
	}
	logger.Info("Sample data added",
		zap.Int64("customers", stats.Customers),
		zap.Int64("inventory_items", stats.InventoryItems),
		zap.Int64("orders", stats.TotalOrders),
		zap.Int64("low_stock_items", stats.LowStockItems))
}

func seed(ctx context.Context, customers *service.CustomerService, inventory *service.InventoryService, orders *service.OrderService) error {
	customerIDs := make([]int64, 0, len(sampleCustomers))
	for i := range sampleCustomers {
		c, err := customers.CreateCustomer(ctx, &sampleCustomers[i])
		if err != nil {
			return fmt.Errorf("customer %s: %w", sampleCustomers[i].Name, err)
		}
		customerIDs = append(customerIDs, c.ID)
	}

	itemIDs := make([]int64, 0, len(sampleInventory))
	for _, s := range sampleInventory {
		item, err := inventory.CreateInventoryItem(ctx, &service.CreateInventoryItemRequest{
			Name:            s.name,
			Category:        s.category,
			Description:     ptr(s.description),
			Quantity:        ptr(s.quantity),
			Unit:            s.unit,
			PricePerUnit:    ptr(s.price),
			ReorderLevel:    ptr(s.reorder),
			SupplierName:    ptr(s.supplier),
			SupplierContact: ptr(s.contact),
		})
		if err != nil {
			return fmt.Errorf("inventory item %s: %w", s.name, err)
		}
		itemIDs = append(itemIDs, item.ID)
	}

	for i, s := range sampleOrders {
		req := s.req
		req.CustomerID = customerIDs[s.customer]
		req.DeliveryDate = ptr(time.Now().AddDate(0, 0, s.deliveryDays).Format(time.RFC3339))
		for _, l := range s.lines {
			req.ItemsUsed = append(req.ItemsUsed, service.OrderItemRequest{InventoryItemID: itemIDs[l.item], QuantityUsed: l.quantity})
		}

		order, _, err := orders.CreateOrder(ctx, &req, "")
		if err != nil {
			return fmt.Errorf("order %d: %w", i+1, err)
		}

		switch s.status {
		case models.OrderStatusCompleted:
			_, err = orders.CompleteOrder(ctx, order.ID)
		case models.OrderStatusInProgress:
			_, err = orders.UpdateOrder(ctx, order.ID, &service.UpdateOrderRequest{Status: models.Some(s.status)})
		}
		if err != nil {
			return fmt.Errorf("order %d status: %w", i+1, err)
		}
	}
	return nil
}
