package service

import (
	"context"
	"fmt"
	"time"

	"tailor-service/internal/models"
	"tailor-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InventoryService handles inventory records
type InventoryService struct {
	store     InventoryStore
	publisher EventPublisher
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store InventoryStore, publisher EventPublisher) *InventoryService {
	return &InventoryService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateInventoryItemRequest represents a request to add an inventory item
type CreateInventoryItemRequest struct {
	Name            string   `json:"name" binding:"required"`
	Category        string   `json:"category" binding:"required"`
	Description     *string  `json:"description"`
	Quantity        *float64 `json:"quantity" binding:"required,gte=0"`
	Unit            string   `json:"unit" binding:"required"`
	PricePerUnit    *float64 `json:"price_per_unit" binding:"required,gte=0"`
	ReorderLevel    *float64 `json:"reorder_level" binding:"omitempty,gte=0"`
	SupplierName    *string  `json:"supplier_name"`
	SupplierContact *string  `json:"supplier_contact"`
}

// UpdateInventoryItemRequest is a merge-patch of an inventory item
type UpdateInventoryItemRequest struct {
	Name            models.Optional[string]  `json:"name"`
	Category        models.Optional[string]  `json:"category"`
	Description     models.Optional[string]  `json:"description"`
	Quantity        models.Optional[float64] `json:"quantity"`
	Unit            models.Optional[string]  `json:"unit"`
	PricePerUnit    models.Optional[float64] `json:"price_per_unit"`
	ReorderLevel    models.Optional[float64] `json:"reorder_level"`
	SupplierName    models.Optional[string]  `json:"supplier_name"`
	SupplierContact models.Optional[string]  `json:"supplier_contact"`
}

func (r *UpdateInventoryItemRequest) apply(item *models.InventoryItem) error {
	required := []struct {
		name string
		ok   bool
	}{
		{"name", r.Name.ApplyValue(&item.Name)},
		{"category", r.Category.ApplyValue(&item.Category)},
		{"quantity", r.Quantity.ApplyValue(&item.Quantity)},
		{"unit", r.Unit.ApplyValue(&item.Unit)},
		{"price_per_unit", r.PricePerUnit.ApplyValue(&item.PricePerUnit)},
		{"reorder_level", r.ReorderLevel.ApplyValue(&item.ReorderLevel)},
	}
	for _, f := range required {
		if !f.ok {
			return nullField(f.name)
		}
	}
	r.Description.Apply(&item.Description)
	r.SupplierName.Apply(&item.SupplierName)
	r.SupplierContact.Apply(&item.SupplierContact)
	return validateRecord(item)
}

func (r *UpdateInventoryItemRequest) touchesStock() bool {
	return r.Quantity.Set || r.ReorderLevel.Set
}

// ListInventory returns inventory items, optionally of one category
func (s *InventoryService) ListInventory(ctx context.Context, filter models.InventoryFilter) ([]models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ListInventory", attribute.String("filter.category", filter.Category))
	defer span.End()

	return s.store.ListInventory(ctx, filter)
}

// ListLowStock returns items at or below their reorder level
func (s *InventoryService) ListLowStock(ctx context.Context) ([]models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ListLowStock")
	defer span.End()

	return s.store.ListLowStock(ctx)
}

// GetInventoryItem retrieves an inventory item by ID
func (s *InventoryService) GetInventoryItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.GetInventoryItem", attribute.Int64("inventory.id", id))
	defer span.End()

	return s.store.GetInventoryItem(ctx, id)
}

// GetStockHistory returns an item together with its stock movements, newest first
func (s *InventoryService) GetStockHistory(ctx context.Context, id int64) (*models.StockHistory, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.GetStockHistory", attribute.Int64("inventory.id", id))
	var err error
	defer func() { util.EndSpan(span, err) }()

	item, err := s.store.GetInventoryItem(ctx, id)
	if err != nil {
		return nil, err
	}

	movements, err := s.store.ListStockMovements(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}

	return &models.StockHistory{
		Item:           item,
		Movements:      movements,
		TotalMovements: len(movements),
	}, nil
}

// CreateInventoryItem stores a new item. reorder_level defaults to 10.
func (s *InventoryService) CreateInventoryItem(ctx context.Context, req *CreateInventoryItemRequest) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.CreateInventoryItem")
	var err error
	defer func() { util.EndSpan(span, err) }()

	item := &models.InventoryItem{
		Name:            req.Name,
		Category:        req.Category,
		Description:     req.Description,
		Unit:            req.Unit,
		ReorderLevel:    models.DefaultReorderLevel,
		SupplierName:    req.SupplierName,
		SupplierContact: req.SupplierContact,
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	if req.PricePerUnit != nil {
		item.PricePerUnit = *req.PricePerUnit
	}
	if req.ReorderLevel != nil {
		item.ReorderLevel = *req.ReorderLevel
	}
	if err = validateRecord(item); err != nil {
		return nil, err
	}

	if err = s.store.CreateInventoryItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create inventory item: %w", err)
	}

	s.logger.Info("Inventory item created",
		zap.Int64("inventory_item_id", item.ID),
		zap.String("category", item.Category),
		zap.Float64("quantity", item.Quantity))

	s.publishUpdated(ctx, item)
	return item, nil
}

// UpdateInventoryItem applies a merge-patch to an inventory item. A changed
// quantity is kept in the item's history as an adjustment.
func (s *InventoryService) UpdateInventoryItem(ctx context.Context, id int64, req *UpdateInventoryItemRequest) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.UpdateInventoryItem", attribute.Int64("inventory.id", id))
	var err error
	defer func() { util.EndSpan(span, err) }()

	item, err := s.store.UpdateInventoryItem(ctx, id, req.apply)
	if err != nil {
		return nil, err
	}

	if req.touchesStock() {
		s.publishUpdated(ctx, item)
	}
	return item, nil
}

// DeleteInventoryItem removes an item no order-item references
func (s *InventoryService) DeleteInventoryItem(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.DeleteInventoryItem", attribute.Int64("inventory.id", id))
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = s.store.DeleteInventoryItem(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Inventory item deleted", zap.Int64("inventory_item_id", id))
	return nil
}

func (s *InventoryService) publishUpdated(ctx context.Context, item *models.InventoryItem) {
	event := &models.InventoryUpdatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeInventoryUpdated,
			Timestamp: time.Now(),
		},
		InventoryItemID: item.ID,
		Quantity:        item.Quantity,
		ReorderLevel:    item.ReorderLevel,
	}

	if err := s.publisher.PublishInventoryUpdated(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish InventoryUpdated event",
			zap.Int64("inventory_item_id", item.ID),
			zap.Error(err))
	}
}
