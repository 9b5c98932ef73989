package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tailor-service/internal/apperr"
	"tailor-service/internal/ledger"
	"tailor-service/internal/models"
	"tailor-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderOptions tunes idempotency and completion locking
type OrderOptions struct {
	IdempotencyTTL    time.Duration
	CompletionLockTTL time.Duration
}

// DefaultOrderOptions are used when the config leaves them unset
var DefaultOrderOptions = OrderOptions{
	IdempotencyTTL:    24 * time.Hour,
	CompletionLockTTL: 30 * time.Second,
}

// OrderService handles order business logic
type OrderService struct {
	store       OrderStore
	locker      Locker
	idempotency IdempotencyStore
	publisher   EventPublisher
	opts        OrderOptions
	logger      *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	locker Locker,
	idempotency IdempotencyStore,
	publisher EventPublisher,
	opts OrderOptions,
) *OrderService {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = DefaultOrderOptions.IdempotencyTTL
	}
	if opts.CompletionLockTTL <= 0 {
		opts.CompletionLockTTL = DefaultOrderOptions.CompletionLockTTL
	}
	return &OrderService{
		store:       store,
		locker:      locker,
		idempotency: idempotency,
		publisher:   publisher,
		opts:        opts,
		logger:      util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order. Measurements
// are sent flat, next to the other fields.
type CreateOrderRequest struct {
	CustomerID          int64              `json:"customer_id" binding:"required"`
	DeliveryDate        *string            `json:"delivery_date"`
	GarmentType         string             `json:"garment_type" binding:"required"`
	Chest               *float64           `json:"chest"`
	Waist               *float64           `json:"waist"`
	Shoulder            *float64           `json:"shoulder"`
	SleeveLength        *float64           `json:"sleeve_length"`
	ShirtLength         *float64           `json:"shirt_length"`
	Neck                *float64           `json:"neck"`
	Hip                 *float64           `json:"hip"`
	Inseam              *float64           `json:"inseam"`
	SpecialInstructions *string            `json:"special_instructions"`
	TotalPrice          *float64           `json:"total_price" binding:"required,gte=0"`
	AdvancePayment      *float64           `json:"advance_payment" binding:"omitempty,gte=0"`
	ItemsUsed           []OrderItemRequest `json:"items_used" binding:"dive"`
}

// OrderItemRequest represents an inventory item consumed by an order
type OrderItemRequest struct {
	InventoryItemID int64   `json:"inventory_item_id" binding:"required"`
	QuantityUsed    float64 `json:"quantity_used" binding:"required,gt=0"`
}

// UpdateOrderRequest is a merge-patch of an order. Items used are fixed at creation.
type UpdateOrderRequest struct {
	DeliveryDate        models.Optional[string]  `json:"delivery_date"`
	Status              models.Optional[string]  `json:"status"`
	GarmentType         models.Optional[string]  `json:"garment_type"`
	Chest               models.Optional[float64] `json:"chest"`
	Waist               models.Optional[float64] `json:"waist"`
	Shoulder            models.Optional[float64] `json:"shoulder"`
	SleeveLength        models.Optional[float64] `json:"sleeve_length"`
	ShirtLength         models.Optional[float64] `json:"shirt_length"`
	Neck                models.Optional[float64] `json:"neck"`
	Hip                 models.Optional[float64] `json:"hip"`
	Inseam              models.Optional[float64] `json:"inseam"`
	SpecialInstructions models.Optional[string]  `json:"special_instructions"`
	TotalPrice          models.Optional[float64] `json:"total_price"`
	AdvancePayment      models.Optional[float64] `json:"advance_payment"`
}

func (r *UpdateOrderRequest) apply(o *models.TailoringOrder) error {
	if r.Status.Set {
		if r.Status.Value == nil {
			return nullField("status")
		}
		if err := ledger.CheckTransition(o.Status, *r.Status.Value); err != nil {
			return err
		}
		o.Status = *r.Status.Value
	}
	if !r.GarmentType.ApplyValue(&o.GarmentType) {
		return nullField("garment_type")
	}
	if !r.TotalPrice.ApplyValue(&o.TotalPrice) {
		return nullField("total_price")
	}
	if !r.AdvancePayment.ApplyValue(&o.AdvancePayment) {
		return nullField("advance_payment")
	}

	if r.DeliveryDate.Set {
		o.DeliveryDate = nil
		if r.DeliveryDate.Value != nil {
			o.DeliveryDate = models.ParseDeliveryDate(*r.DeliveryDate.Value)
		}
	}

	m := &o.Measurements
	r.Chest.Apply(&m.Chest)
	r.Waist.Apply(&m.Waist)
	r.Shoulder.Apply(&m.Shoulder)
	r.SleeveLength.Apply(&m.SleeveLength)
	r.ShirtLength.Apply(&m.ShirtLength)
	r.Neck.Apply(&m.Neck)
	r.Hip.Apply(&m.Hip)
	r.Inseam.Apply(&m.Inseam)
	r.SpecialInstructions.Apply(&o.SpecialInstructions)

	return validateRecord(o)
}

// ListOrders returns orders with their items, filtered by status and customer
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.TailoringOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders", attribute.String("filter.status", filter.Status))
	defer span.End()

	if filter.Status != "" && !models.ValidOrderStatus(filter.Status) {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid status: %s", filter.Status)
	}
	return s.store.ListOrders(ctx, filter)
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.TailoringOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.Int64("order.id", id))
	defer span.End()

	return s.store.GetOrder(ctx, id)
}

// CreateOrder stores a new pending order. With a non-empty idempotencyKey a
// repeated request returns the order created the first time; replayed
// reports whether that happened.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest, idempotencyKey string) (order *models.TailoringOrder, replayed bool, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer func() { util.EndSpan(span, err) }()

	if idempotencyKey == "" {
		order, err = s.createOrder(ctx, req)
		return order, false, err
	}

	if order, err = s.replay(ctx, idempotencyKey); err != nil || order != nil {
		return order, order != nil, err
	}

	claimed, err := s.idempotency.ClaimIdempotencyKey(ctx, idempotencyKey, s.opts.IdempotencyTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if !claimed {
		if order, err = s.replay(ctx, idempotencyKey); err != nil || order != nil {
			return order, order != nil, err
		}
		return nil, false, idempotencyInFlight()
	}

	order, err = s.createOrder(ctx, req)
	if err != nil {
		if derr := s.idempotency.DeleteIdempotencyKey(ctx, idempotencyKey); derr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", idempotencyKey), zap.Error(derr))
		}
		return nil, false, err
	}

	if serr := s.idempotency.SetIdempotencyKey(ctx, idempotencyKey, strconv.FormatInt(order.ID, 10), s.opts.IdempotencyTTL); serr != nil {
		s.logger.Warn("Failed to store idempotency key", zap.String("idempotency_key", idempotencyKey), zap.Error(serr))
	}
	return order, false, nil
}

func idempotencyInFlight() error {
	return apperr.New(apperr.CodeConflict, "A request with this Idempotency-Key is still in progress")
}

// replay returns the order a finished request created for key, if any. A
// key whose order no longer exists is dropped and reported as absent.
func (s *OrderService) replay(ctx context.Context, key string) (*models.TailoringOrder, error) {
	val, pending, err := s.idempotency.GetIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if pending {
		return nil, idempotencyInFlight()
	}
	if val == "" {
		return nil, nil
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt idempotency record %q: %w", key, err)
	}

	order, err := s.store.GetOrder(ctx, id)
	if apperr.Is(err, apperr.CodeNotFound) {
		// the order was deleted since; forget the key so the request creates a new one
		s.logger.Info("Idempotency key refers to a deleted order",
			zap.String("idempotency_key", key),
			zap.Int64("order_id", id))
		if err := s.idempotency.DeleteIdempotencyKey(ctx, key); err != nil {
			return nil, fmt.Errorf("failed to release idempotency key: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", id))
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, req *CreateOrderRequest) (*models.TailoringOrder, error) {
	order := &models.TailoringOrder{
		CustomerID:  req.CustomerID,
		Status:      models.OrderStatusPending,
		GarmentType: req.GarmentType,
		Measurements: models.Measurements{
			Chest:        req.Chest,
			Waist:        req.Waist,
			Shoulder:     req.Shoulder,
			SleeveLength: req.SleeveLength,
			ShirtLength:  req.ShirtLength,
			Neck:         req.Neck,
			Hip:          req.Hip,
			Inseam:       req.Inseam,
		},
		SpecialInstructions: req.SpecialInstructions,
	}
	if req.DeliveryDate != nil {
		order.DeliveryDate = models.ParseDeliveryDate(*req.DeliveryDate)
	}
	if req.TotalPrice != nil {
		order.TotalPrice = *req.TotalPrice
	}
	if req.AdvancePayment != nil {
		order.AdvancePayment = *req.AdvancePayment
	}
	if err := validateRecord(order); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(req.ItemsUsed))
	eventItems := make([]models.OrderItemData, 0, len(req.ItemsUsed))
	for _, item := range req.ItemsUsed {
		items = append(items, models.OrderItem{
			InventoryItemID: item.InventoryItemID,
			QuantityUsed:    item.QuantityUsed,
		})
		eventItems = append(eventItems, models.OrderItemData{
			InventoryItemID: item.InventoryItemID,
			QuantityUsed:    item.QuantityUsed,
		})
	}

	created, err := s.store.CreateOrder(ctx, order, items)
	if err != nil {
		if apperr.Is(err, apperr.CodeValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", created.ID),
		zap.Int64("customer_id", created.CustomerID),
		zap.Int("items", len(items)))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     created.ID,
		CustomerID:  created.CustomerID,
		GarmentType: created.GarmentType,
		TotalPrice:  created.TotalPrice,
		Items:       eventItems,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return created, nil
}

// UpdateOrder applies a merge-patch to an order. Moving the status into
// completed deducts inventory with the same all-or-nothing check as
// CompleteOrder.
func (s *OrderService) UpdateOrder(ctx context.Context, id int64, req *UpdateOrderRequest) (order *models.TailoringOrder, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder", attribute.Int64("order.id", id))
	defer func() { util.EndSpan(span, err) }()

	completing := req.Status.Value != nil && *req.Status.Value == models.OrderStatusCompleted
	if completing {
		return s.complete(ctx, id, req.apply)
	}

	order, _, err = s.store.UpdateOrder(ctx, id, req.apply)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CompleteOrder marks an order completed and deducts its inventory. Nothing
// changes unless every item has enough stock.
func (s *OrderService) CompleteOrder(ctx context.Context, id int64) (order *models.TailoringOrder, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CompleteOrder", attribute.Int64("order.id", id))
	defer func() { util.EndSpan(span, err) }()

	return s.complete(ctx, id, func(o *models.TailoringOrder) error {
		if err := ledger.CheckCompletable(o.Status); err != nil {
			return err
		}
		o.Status = models.OrderStatusCompleted
		return nil
	})
}

// complete runs apply under the per-order completion lock and reports the
// deductions when the order moved into completed
func (s *OrderService) complete(ctx context.Context, id int64, apply func(*models.TailoringOrder) error) (*models.TailoringOrder, error) {
	start := time.Now()
	lockKey := CompletionLockKey(id)

	token, ok, err := s.locker.AcquireLock(ctx, lockKey, s.opts.CompletionLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire completion lock: %w", err)
	}
	if !ok {
		util.OrderCompletionsFailedTotal.WithLabelValues("in_progress").Inc()
		return nil, apperr.Newf(apperr.CodeConflict, "Order %d is already being completed", id)
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("Failed to release completion lock", zap.Int64("order_id", id), zap.Error(err))
		}
	}()

	var before string
	order, deductions, err := s.store.UpdateOrder(ctx, id, func(o *models.TailoringOrder) error {
		before = o.Status
		return apply(o)
	})
	if err != nil {
		return nil, s.completionError(id, err)
	}

	if ledger.CheckCompletable(before) == nil && order.Status == models.OrderStatusCompleted {
		util.OrderCompletionLatency.Observe(time.Since(start).Seconds())
		s.completed(ctx, order, deductions)
	}
	return order, nil
}

// CompletionLockKey names the lock held while an order is being completed
func CompletionLockKey(id int64) string {
	return fmt.Sprintf("order-complete:%d", id)
}

func (s *OrderService) completed(ctx context.Context, order *models.TailoringOrder, deductions []ledger.Deduction) {
	util.OrdersCompletedTotal.Inc()

	data := make([]models.DeductionData, 0, len(deductions))
	for _, d := range deductions {
		util.InventoryDeductedTotal.Add(d.Before - d.After)
		data = append(data, models.DeductionData{
			InventoryItemID: d.InventoryItemID,
			Before:          d.Before,
			After:           d.After,
			ReorderLevel:    d.ReorderLevel,
		})
	}

	s.logger.Info("Order completed",
		zap.Int64("order_id", order.ID),
		zap.Int("deductions", len(deductions)))

	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Deductions: data,
	}
	if err := s.publisher.PublishOrderCompleted(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish OrderCompleted event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// completionError turns ledger failures into business-rule errors
func (s *OrderService) completionError(id int64, err error) error {
	var short *ledger.InsufficientStockError
	switch {
	case errors.As(err, &short):
		util.OrderCompletionsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		first := short.First()
		s.logger.Info("Order completion rejected",
			zap.Int64("order_id", id),
			zap.String("item", first.Name),
			zap.Float64("available", first.Available),
			zap.Float64("required", first.Required))
		return apperr.Wrap(apperr.CodeBusinessRule, err, fmt.Sprintf("Insufficient quantity for %s", first.Name)).
			WithDetails(map[string]any{
				"inventory_item_id": first.InventoryItemID,
				"available":         first.Available,
				"required":          first.Required,
				"shortages":         short.Shortages,
			})

	case errors.Is(err, ledger.ErrAlreadyCompleted):
		util.OrderCompletionsFailedTotal.WithLabelValues("already_completed").Inc()
		return apperr.Wrap(apperr.CodeBusinessRule, err, "Order already completed")
	}
	return err
}

// DeleteOrder removes an order and its items. Inventory already deducted is not restored.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) (err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder", attribute.Int64("order.id", id))
	defer func() { util.EndSpan(span, err) }()

	if err = s.store.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Order deleted", zap.Int64("order_id", id))
	return nil
}
