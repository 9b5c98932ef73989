package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"tailor-service/internal/apperr"
	"tailor-service/internal/broker"
	"tailor-service/internal/ledger"
	"tailor-service/internal/models"
	"tailor-service/internal/redisclient"
	"tailor-service/internal/service"
	"tailor-service/internal/store/memstore"
	"tailor-service/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     *memstore.Store
	coord     *redisclient.Local
	customers *service.CustomerService
	inventory *service.InventoryService
	orders    *service.OrderService
	alerts    *service.AlertService
	stats     *service.StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memstore.New()
	coord := redisclient.NewLocal()
	alerts := service.NewAlertService(st, st)
	alertWorker := worker.NewAlertWorker(nil, alerts)
	publisher := broker.NewLocalPublisher(alertWorker.Handler())

	return &testEnv{
		store:     st,
		coord:     coord,
		customers: service.NewCustomerService(st),
		inventory: service.NewInventoryService(st, publisher),
		orders:    service.NewOrderService(st, coord, coord, publisher, service.DefaultOrderOptions),
		alerts:    alerts,
		stats:     service.NewStatsService(st),
	}
}

func ptr[T any](v T) *T { return &v }

func (e *testEnv) customer(t *testing.T, name string) *models.Customer {
	t.Helper()
	c, err := e.customers.CreateCustomer(context.Background(), &service.CreateCustomerRequest{
		Name:  name,
		Phone: "+92-300-1234567",
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) item(t *testing.T, name string, quantity, reorder float64) *models.InventoryItem {
	t.Helper()
	item, err := e.inventory.CreateInventoryItem(context.Background(), &service.CreateInventoryItemRequest{
		Name:         name,
		Category:     "fabric",
		Quantity:     ptr(quantity),
		Unit:         "meters",
		PricePerUnit: ptr(450.0),
		ReorderLevel: ptr(reorder),
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) order(t *testing.T, customerID int64, lines ...service.OrderItemRequest) *models.TailoringOrder {
	t.Helper()
	order, _, err := e.orders.CreateOrder(context.Background(), &service.CreateOrderRequest{
		CustomerID:  customerID,
		GarmentType: "shirt",
		TotalPrice:  ptr(1500.0),
		ItemsUsed:   lines,
	}, "")
	require.NoError(t, err)
	return order
}

func (e *testEnv) quantity(t *testing.T, id int64) float64 {
	t.Helper()
	item, err := e.store.GetInventoryItem(context.Background(), id)
	require.NoError(t, err)
	return item.Quantity
}

func line(itemID int64, qty float64) service.OrderItemRequest {
	return service.OrderItemRequest{InventoryItemID: itemID, QuantityUsed: qty}
}

func TestCreateCustomer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.customers.CreateCustomer(ctx, &service.CreateCustomerRequest{
		Name:    "Ahmed Khan",
		Phone:   "+92-300-1234567",
		Email:   ptr("ahmed@example.com"),
		Address: ptr("House 12, Street 5, Lahore"),
	})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := env.customers.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed Khan", got.Name)

	_, err = env.customers.CreateCustomer(ctx, &service.CreateCustomerRequest{Phone: "123"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = env.customers.GetCustomer(ctx, 9999)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestUpdateCustomerMergePatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.customers.CreateCustomer(ctx, &service.CreateCustomerRequest{
		Name:  "Fatima Ali",
		Phone: "0321-5555555",
		Email: ptr("fatima@example.com"),
	})
	require.NoError(t, err)

	updated, err := env.customers.UpdateCustomer(ctx, c.ID, &service.UpdateCustomerRequest{
		Address: models.Some("Block C, Karachi"),
		Email:   models.Null[string](),
	})
	require.NoError(t, err)
	assert.Equal(t, "Fatima Ali", updated.Name, "absent field keeps stored value")
	assert.Equal(t, "0321-5555555", updated.Phone)
	assert.Nil(t, updated.Email, "explicit null clears a nullable field")
	require.NotNil(t, updated.Address)
	assert.Equal(t, "Block C, Karachi", *updated.Address)

	_, err = env.customers.UpdateCustomer(ctx, c.ID, &service.UpdateCustomerRequest{Name: models.Null[string]()})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = env.customers.UpdateCustomer(ctx, c.ID, &service.UpdateCustomerRequest{Phone: models.Some("")})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	got, _ := env.customers.GetCustomer(ctx, c.ID)
	assert.Equal(t, "0321-5555555", got.Phone, "rejected patch leaves the record alone")
}

func TestInventoryLowStockFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	low := env.item(t, "Silk", 5, 10)
	ok := env.item(t, "Cotton", 50, 10)
	assert.True(t, low.IsLowStock())
	assert.False(t, ok.IsLowStock())

	items, err := env.inventory.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ID)

	// default reorder level
	item, err := env.inventory.CreateInventoryItem(ctx, &service.CreateInventoryItemRequest{
		Name:         "Thread",
		Category:     "thread",
		Quantity:     ptr(10.0),
		Unit:         "spools",
		PricePerUnit: ptr(50.0),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultReorderLevel, item.ReorderLevel)
	assert.True(t, item.IsLowStock(), "quantity equal to reorder level is low")

	updated, err := env.inventory.UpdateInventoryItem(ctx, item.ID, &service.UpdateInventoryItemRequest{Quantity: models.Some(11.0)})
	require.NoError(t, err)
	assert.False(t, updated.IsLowStock())
	assert.Equal(t, "Thread", updated.Name)

	fabrics, err := env.inventory.ListInventory(ctx, models.InventoryFilter{Category: "fabric"})
	require.NoError(t, err)
	assert.Len(t, fabrics, 2)
}

func TestUpdateInventoryRejectsNegativeQuantity(t *testing.T) {
	env := newTestEnv(t)
	item := env.item(t, "Linen", 20, 5)

	_, err := env.inventory.UpdateInventoryItem(context.Background(), item.ID, &service.UpdateInventoryItemRequest{Quantity: models.Some(-1.0)})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, 20.0, env.quantity(t, item.ID))
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	cotton := env.item(t, "Cotton", 100, 15)

	order, replayed, err := env.orders.CreateOrder(ctx, &service.CreateOrderRequest{
		CustomerID:     c.ID,
		DeliveryDate:   ptr("2024-12-31T10:00:00Z"),
		GarmentType:    "kurta",
		Chest:          ptr(40.0),
		Waist:          ptr(34.0),
		TotalPrice:     ptr(1500.0),
		AdvancePayment: ptr(500.0),
		ItemsUsed:      []service.OrderItemRequest{line(cotton.ID, 2.5)},
	}, "")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotZero(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 1000.0, order.BalanceDue())
	require.NotNil(t, order.CustomerName)
	assert.Equal(t, "Ahmed Khan", *order.CustomerName)
	require.NotNil(t, order.DeliveryDate)
	assert.Equal(t, 2024, order.DeliveryDate.Year())
	require.NotNil(t, order.Chest)
	assert.Equal(t, 40.0, *order.Chest)
	assert.Nil(t, order.Hip)

	require.Len(t, order.ItemsUsed, 1)
	assert.Equal(t, cotton.ID, order.ItemsUsed[0].InventoryItemID)
	require.NotNil(t, order.ItemsUsed[0].InventoryItemName)
	assert.Equal(t, "Cotton", *order.ItemsUsed[0].InventoryItemName)

	assert.Equal(t, 100.0, env.quantity(t, cotton.ID), "creating an order does not touch stock")
}

func TestCreateOrderUnparseableDeliveryDate(t *testing.T) {
	env := newTestEnv(t)
	c := env.customer(t, "Bilal")

	order, _, err := env.orders.CreateOrder(context.Background(), &service.CreateOrderRequest{
		CustomerID:   c.ID,
		DeliveryDate: ptr("next tuesday"),
		GarmentType:  "suit",
		TotalPrice:   ptr(5000.0),
	}, "")
	require.NoError(t, err)
	assert.Nil(t, order.DeliveryDate)
}

func TestCreateOrderUnknownReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.orders.CreateOrder(ctx, &service.CreateOrderRequest{
		CustomerID:  404,
		GarmentType: "shirt",
		TotalPrice:  ptr(100.0),
	}, "")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	c := env.customer(t, "Sara")
	_, _, err = env.orders.CreateOrder(ctx, &service.CreateOrderRequest{
		CustomerID:  c.ID,
		GarmentType: "shirt",
		TotalPrice:  ptr(100.0),
		ItemsUsed:   []service.OrderItemRequest{line(777, 1)},
	}, "")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	orders, err := env.orders.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCompleteOrderDeductsInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	cotton := env.item(t, "Cotton", 100, 15)
	buttons := env.item(t, "Buttons", 40, 10)

	order := env.order(t, c.ID, line(cotton.ID, 2.5), line(buttons.ID, 8))

	completed, err := env.orders.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)
	assert.Equal(t, 1500.0, completed.TotalPrice, "completion leaves other fields alone")

	assert.Equal(t, 97.5, env.quantity(t, cotton.ID))
	assert.Equal(t, 32.0, env.quantity(t, buttons.ID))
}

func TestCompleteOrderInsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	cotton := env.item(t, "Cotton", 100, 15)
	silk := env.item(t, "Silk", 3, 5)
	lace := env.item(t, "Lace", 1, 5)

	order := env.order(t, c.ID, line(cotton.ID, 2.5), line(silk.ID, 4), line(lace.ID, 2))

	_, err := env.orders.CompleteOrder(ctx, order.ID)
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeBusinessRule, appErr.Code())
	assert.Equal(t, "Insufficient quantity for Silk", appErr.Message())
	assert.Equal(t, 3.0, appErr.Details()["available"])
	assert.Equal(t, 4.0, appErr.Details()["required"])
	shortages, ok := appErr.Details()["shortages"].([]ledger.Shortage)
	require.True(t, ok)
	assert.Len(t, shortages, 2)

	assert.Equal(t, 100.0, env.quantity(t, cotton.ID), "no partial deduction")
	assert.Equal(t, 3.0, env.quantity(t, silk.ID))
	assert.Equal(t, 1.0, env.quantity(t, lace.ID))

	got, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestCompleteOrderSumsRepeatedLines(t *testing.T) {
	env := newTestEnv(t)
	c := env.customer(t, "Usman")
	cotton := env.item(t, "Cotton", 10, 2)

	order := env.order(t, c.ID, line(cotton.ID, 6), line(cotton.ID, 6))

	_, err := env.orders.CompleteOrder(context.Background(), order.ID)
	assert.True(t, apperr.Is(err, apperr.CodeBusinessRule))
	assert.Equal(t, 10.0, env.quantity(t, cotton.ID))
}

func TestCompleteOrderTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	cotton := env.item(t, "Cotton", 100, 15)
	order := env.order(t, c.ID, line(cotton.ID, 2.5))

	_, err := env.orders.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = env.orders.CompleteOrder(ctx, order.ID)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeBusinessRule, appErr.Code())
	assert.Equal(t, "Order already completed", appErr.Message())
	assert.Equal(t, 97.5, env.quantity(t, cotton.ID), "second completion deducts nothing")
}

func TestCompleteOrderNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.orders.CompleteOrder(context.Background(), 42)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCompleteOrderWhileLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	cotton := env.item(t, "Cotton", 100, 15)
	order := env.order(t, c.ID, line(cotton.ID, 2.5))

	token, ok, err := env.coord.AcquireLock(ctx, service.CompletionLockKey(order.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.orders.CompleteOrder(ctx, order.ID)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Equal(t, 100.0, env.quantity(t, cotton.ID))

	require.NoError(t, env.coord.ReleaseLock(ctx, service.CompletionLockKey(order.ID), token))
	_, err = env.orders.CompleteOrder(ctx, order.ID)
	assert.NoError(t, err)
}

func TestConcurrentCompletionsShareScarceStock(t *testing.T) {
	env := newTestEnv(t)
	c := env.customer(t, "Ahmed Khan")
	silk := env.item(t, "Silk", 10, 2)

	const n = 5
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = env.order(t, c.ID, line(silk.ID, 6)).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = env.orders.CompleteOrder(context.Background(), id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperr.Is(err, apperr.CodeBusinessRule))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4.0, env.quantity(t, silk.ID))
}

func TestUpdateOrderStatusCompletedUsesStrictPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	silk := env.item(t, "Silk", 3, 5)
	cotton := env.item(t, "Cotton", 100, 15)

	short := env.order(t, c.ID, line(cotton.ID, 1), line(silk.ID, 4))
	_, err := env.orders.UpdateOrder(ctx, short.ID, &service.UpdateOrderRequest{
		Status:     models.Some(models.OrderStatusCompleted),
		TotalPrice: models.Some(2000.0),
	})
	assert.True(t, apperr.Is(err, apperr.CodeBusinessRule))
	assert.Equal(t, 100.0, env.quantity(t, cotton.ID))

	got, _ := env.orders.GetOrder(ctx, short.ID)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Equal(t, 1500.0, got.TotalPrice, "failed completion discards the whole patch")

	ok := env.order(t, c.ID, line(cotton.ID, 4))
	updated, err := env.orders.UpdateOrder(ctx, ok.ID, &service.UpdateOrderRequest{
		Status: models.Some(models.OrderStatusCompleted),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, updated.Status)
	assert.Equal(t, 96.0, env.quantity(t, cotton.ID))

	// re-sending completed is rejected like a second /complete
	_, err = env.orders.UpdateOrder(ctx, ok.ID, &service.UpdateOrderRequest{
		Status: models.Some(models.OrderStatusCompleted),
	})
	appErr, isApp := apperr.As(err)
	require.True(t, isApp)
	assert.Equal(t, apperr.CodeBusinessRule, appErr.Code())
	assert.Equal(t, "Order already completed", appErr.Message())
	assert.Equal(t, 96.0, env.quantity(t, cotton.ID))
}

func TestUpdateOrderTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	order := env.order(t, c.ID)

	_, err := env.orders.UpdateOrder(ctx, order.ID, &service.UpdateOrderRequest{Status: models.Some(models.OrderStatusDelivered)})
	assert.True(t, apperr.Is(err, apperr.CodeBusinessRule))

	_, err = env.orders.UpdateOrder(ctx, order.ID, &service.UpdateOrderRequest{Status: models.Some("shipped")})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	updated, err := env.orders.UpdateOrder(ctx, order.ID, &service.UpdateOrderRequest{Status: models.Some(models.OrderStatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusInProgress, updated.Status)

	_, err = env.orders.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = env.orders.UpdateOrder(ctx, order.ID, &service.UpdateOrderRequest{Status: models.Some(models.OrderStatusPending)})
	assert.True(t, apperr.Is(err, apperr.CodeBusinessRule))

	delivered, err := env.orders.UpdateOrder(ctx, order.ID, &service.UpdateOrderRequest{Status: models.Some(models.OrderStatusDelivered)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)

	_, err = env.orders.CompleteOrder(ctx, order.ID)
	assert.True(t, apperr.Is(err, apperr.CodeBusinessRule), "delivered orders are already completed")
}

func TestUpdateOrderMergePatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")

	order, _, err := env.orders.CreateOrder(ctx, &service.CreateOrderRequest{
		CustomerID:          c.ID,
		DeliveryDate:        ptr("2024-12-31"),
		GarmentType:         "sherwani",
		Chest:               ptr(42.0),
		Neck:                ptr(15.5),
		SpecialInstructions: ptr("gold embroidery"),
		TotalPrice:          ptr(1500.0),
		AdvancePayment:      ptr(500.0),
	}, "")
	require.NoError(t, err)

	updated, err := env.orders.UpdateOrder(ctx, order.ID, &service.UpdateOrderRequest{
		AdvancePayment:      models.Some(2000.0),
		Neck:                models.Null[float64](),
		SpecialInstructions: models.Null[string](),
		DeliveryDate:        models.Some("garbage"),
	})
	require.NoError(t, err)
	assert.Equal(t, "sherwani", updated.GarmentType)
	require.NotNil(t, updated.Chest)
	assert.Equal(t, 42.0, *updated.Chest)
	assert.Nil(t, updated.Neck)
	assert.Nil(t, updated.SpecialInstructions)
	assert.Nil(t, updated.DeliveryDate, "unparseable date clears the stored one")
	assert.Equal(t, -500.0, updated.BalanceDue(), "overpayment is allowed")

	_, err = env.orders.UpdateOrder(ctx, order.ID, &service.UpdateOrderRequest{GarmentType: models.Null[string]()})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestListOrdersFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.customer(t, "A")
	b := env.customer(t, "B")

	first := env.order(t, a.ID)
	env.order(t, a.ID)
	env.order(t, b.ID)
	_, err := env.orders.CompleteOrder(ctx, first.ID)
	require.NoError(t, err)

	byCustomer, err := env.orders.ListOrders(ctx, models.OrderFilter{CustomerID: &a.ID})
	require.NoError(t, err)
	assert.Len(t, byCustomer, 2)

	completed, err := env.orders.ListOrders(ctx, models.OrderFilter{Status: models.OrderStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	_, err = env.orders.ListOrders(ctx, models.OrderFilter{Status: "nope"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestDeleteCustomerCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	keep := env.customer(t, "Keep")
	gone := env.customer(t, "Gone")
	cotton := env.item(t, "Cotton", 100, 15)

	kept := env.order(t, keep.ID, line(cotton.ID, 1))
	dropped := env.order(t, gone.ID, line(cotton.ID, 2))

	require.NoError(t, env.customers.DeleteCustomer(ctx, gone.ID))

	_, err := env.orders.GetOrder(ctx, dropped.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = env.orders.GetOrder(ctx, kept.ID)
	assert.NoError(t, err)

	item, err := env.inventory.GetInventoryItem(ctx, cotton.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, item.Quantity)
	assert.Equal(t, "Cotton", item.Name)

	assert.True(t, apperr.Is(env.customers.DeleteCustomer(ctx, gone.ID), apperr.CodeNotFound))
}

func TestDeleteInventoryInUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	cotton := env.item(t, "Cotton", 100, 15)
	order := env.order(t, c.ID, line(cotton.ID, 1))

	err := env.inventory.DeleteInventoryItem(ctx, cotton.ID)
	assert.True(t, apperr.Is(err, apperr.CodeBusinessRule))

	require.NoError(t, env.orders.DeleteOrder(ctx, order.ID))
	require.NoError(t, env.inventory.DeleteInventoryItem(ctx, cotton.ID))

	_, err = env.inventory.GetInventoryItem(ctx, cotton.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestIdempotentCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")

	req := &service.CreateOrderRequest{CustomerID: c.ID, GarmentType: "shirt", TotalPrice: ptr(900.0)}

	first, replayed, err := env.orders.CreateOrder(ctx, req, "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := env.orders.CreateOrder(ctx, req, "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	third, _, err := env.orders.CreateOrder(ctx, req, "key-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	orders, _ := env.orders.ListOrders(ctx, models.OrderFilter{})
	assert.Len(t, orders, 2)
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.orders.CreateOrder(ctx, &service.CreateOrderRequest{CustomerID: 99, GarmentType: "shirt", TotalPrice: ptr(1.0)}, "retry-me")
	require.Error(t, err)

	c := env.customer(t, "Late")
	order, replayed, err := env.orders.CreateOrder(ctx, &service.CreateOrderRequest{CustomerID: c.ID, GarmentType: "shirt", TotalPrice: ptr(1.0)}, "retry-me")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotZero(t, order.ID)
}

func TestIdempotencyKeyInFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")

	claimed, err := env.coord.ClaimIdempotencyKey(ctx, "busy", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	_, _, err = env.orders.CreateOrder(ctx, &service.CreateOrderRequest{CustomerID: c.ID, GarmentType: "shirt", TotalPrice: ptr(1.0)}, "busy")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.customer(t, "A")
	env.customer(t, "B")
	env.item(t, "Silk", 5, 10)
	cotton := env.item(t, "Cotton", 50, 10)

	done := env.order(t, a.ID, line(cotton.ID, 1))
	progress := env.order(t, a.ID)
	env.order(t, a.ID)

	_, err := env.orders.CompleteOrder(ctx, done.ID)
	require.NoError(t, err)
	_, err = env.orders.UpdateOrder(ctx, progress.ID, &service.UpdateOrderRequest{Status: models.Some(models.OrderStatusInProgress)})
	require.NoError(t, err)

	stats, err := env.stats.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Customers)
	assert.Equal(t, int64(2), stats.InventoryItems)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, models.OrderCounts{Pending: 1, InProgress: 1, Completed: 1}, stats.Orders)
	assert.Equal(t, int64(1), stats.LowStockItems)
}

func TestStockAlertLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	silk := env.item(t, "Silk", 14, 10)

	active := func() []models.Alert {
		alerts, err := env.alerts.ListAlerts(ctx, models.AlertFilter{UnreadOnly: true})
		require.NoError(t, err)
		return alerts
	}
	assert.Empty(t, active(), "healthy item raises nothing")

	order := env.order(t, c.ID, line(silk.ID, 6))
	_, err := env.orders.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)

	alerts := active()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeLowStock, alerts[0].Type)
	assert.Equal(t, models.AlertSeverityMedium, alerts[0].Severity)
	assert.Equal(t, silk.ID, alerts[0].InventoryItemID)

	order = env.order(t, c.ID, line(silk.ID, 8))
	_, err = env.orders.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)

	alerts = active()
	require.Len(t, alerts, 1, "low alert is replaced, not duplicated")
	assert.Equal(t, models.AlertTypeCriticalStock, alerts[0].Type)
	assert.Equal(t, models.AlertSeverityCritical, alerts[0].Severity)

	_, err = env.inventory.UpdateInventoryItem(ctx, silk.ID, &service.UpdateInventoryItemRequest{Quantity: models.Some(100.0)})
	require.NoError(t, err)
	assert.Empty(t, active(), "restocking resolves the alert")

	all, err := env.alerts.ListAlerts(ctx, models.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, a := range all {
		assert.True(t, a.IsDismissed)
	}
}

func TestAlertReadAndDismiss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.item(t, "Lace", 2, 10)

	alerts, err := env.alerts.ListAlerts(ctx, models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	id := alerts[0].ID

	read, err := env.alerts.MarkRead(ctx, id)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	unread, _ := env.alerts.ListAlerts(ctx, models.AlertFilter{UnreadOnly: true})
	assert.Empty(t, unread)

	dismissed, err := env.alerts.Dismiss(ctx, id)
	require.NoError(t, err)
	assert.True(t, dismissed.IsDismissed)

	// still low, so a sweep raises a fresh alert
	res, err := env.alerts.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Resolved)

	_, err = env.alerts.MarkRead(ctx, 12345)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = env.alerts.ListAlerts(ctx, models.AlertFilter{Limit: -1})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestMarkAllAlertsRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.item(t, "Lace", 2, 10)
	env.item(t, "Velvet", 0, 5)
	env.item(t, "Cotton", 100, 10)

	unread, err := env.alerts.ListAlerts(ctx, models.AlertFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 2)

	n, err := env.alerts.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, _ = env.alerts.ListAlerts(ctx, models.AlertFilter{UnreadOnly: true})
	assert.Empty(t, unread)

	n, err = env.alerts.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIdempotencyKeyForDeletedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")

	req := &service.CreateOrderRequest{CustomerID: c.ID, GarmentType: "shirt", TotalPrice: ptr(900.0)}
	first, _, err := env.orders.CreateOrder(ctx, req, "key-gone")
	require.NoError(t, err)
	require.NoError(t, env.orders.DeleteOrder(ctx, first.ID))

	second, replayed, err := env.orders.CreateOrder(ctx, req, "key-gone")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEqual(t, first.ID, second.ID)

	third, replayed, err := env.orders.CreateOrder(ctx, req, "key-gone")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, second.ID, third.ID)
}

func TestStockHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.customer(t, "Ahmed Khan")
	cotton := env.item(t, "Cotton", 100, 15)
	silk := env.item(t, "Silk", 3, 5)

	done := env.order(t, c.ID, line(cotton.ID, 1.5), line(cotton.ID, 1))
	_, err := env.orders.CompleteOrder(ctx, done.ID)
	require.NoError(t, err)

	short := env.order(t, c.ID, line(cotton.ID, 1), line(silk.ID, 4))
	_, err = env.orders.CompleteOrder(ctx, short.ID)
	require.Error(t, err)

	_, err = env.inventory.UpdateInventoryItem(ctx, cotton.ID, &service.UpdateInventoryItemRequest{
		Quantity: models.Some(120.0),
	})
	require.NoError(t, err)

	// a patch that leaves quantity alone records nothing
	_, err = env.inventory.UpdateInventoryItem(ctx, cotton.ID, &service.UpdateInventoryItemRequest{
		PricePerUnit: models.Some(500.0),
	})
	require.NoError(t, err)

	history, err := env.inventory.GetStockHistory(ctx, cotton.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cotton", history.Item.Name)
	require.Len(t, history.Movements, 2)
	assert.Equal(t, 2, history.TotalMovements)

	adjust := history.Movements[0]
	assert.Equal(t, models.MovementTypeAdjustment, adjust.Type)
	assert.Equal(t, 22.5, adjust.Quantity)
	assert.Equal(t, 120.0, adjust.BalanceAfter)
	assert.Nil(t, adjust.OrderID)

	used := history.Movements[1]
	assert.Equal(t, models.MovementTypeOrderUsed, used.Type)
	assert.Equal(t, -2.5, used.Quantity)
	assert.Equal(t, 97.5, used.BalanceAfter)
	require.NotNil(t, used.OrderID)
	assert.Equal(t, done.ID, *used.OrderID)

	silkHistory, err := env.inventory.GetStockHistory(ctx, silk.ID)
	require.NoError(t, err)
	assert.Empty(t, silkHistory.Movements)

	_, err = env.inventory.GetStockHistory(ctx, 9999)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
