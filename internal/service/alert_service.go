package service

import (
	"context"
	"fmt"

	"tailor-service/internal/apperr"
	"tailor-service/internal/ledger"
	"tailor-service/internal/models"
	"tailor-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultAlertLimit caps alert listings when the caller sends no limit
const DefaultAlertLimit = 50

// MaxAlertLimit is the largest page the alert listing returns
const MaxAlertLimit = 500

// AlertService keeps one active stock alert per inventory item in line with
// the item's current quantity
type AlertService struct {
	alerts    AlertStore
	inventory InventoryStore
	logger    *zap.Logger
}

// NewAlertService creates an alert service that reads stock from inventory
func NewAlertService(alerts AlertStore, inventory InventoryStore) *AlertService {
	return &AlertService{
		alerts:    alerts,
		inventory: inventory,
		logger:    util.GetLogger(),
	}
}

// SweepResult counts the alerts changed by a sweep
type SweepResult struct {
	Created  int `json:"alerts_created"`
	Resolved int `json:"alerts_resolved"`
}

// ListAlerts returns alerts newest first. A zero limit means DefaultAlertLimit
// and larger limits are capped at MaxAlertLimit.
func (s *AlertService) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.ListAlerts")
	defer span.End()

	switch {
	case filter.Limit < 0:
		return nil, apperr.New(apperr.CodeValidation, "limit must be positive")
	case filter.Limit == 0:
		filter.Limit = DefaultAlertLimit
	case filter.Limit > MaxAlertLimit:
		filter.Limit = MaxAlertLimit
	}
	return s.alerts.ListAlerts(ctx, filter)
}

// MarkRead flags an alert as read
func (s *AlertService) MarkRead(ctx context.Context, id int64) (*models.Alert, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.MarkRead", attribute.Int64("alert.id", id))
	defer span.End()

	if err := s.alerts.MarkAlertRead(ctx, id); err != nil {
		return nil, err
	}
	return s.alerts.GetAlert(ctx, id)
}

// MarkAllRead flags every unread active alert as read
func (s *AlertService) MarkAllRead(ctx context.Context) (int64, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.MarkAllRead")
	var err error
	defer func() { util.EndSpan(span, err) }()

	n, err := s.alerts.MarkAllAlertsRead(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to mark alerts read: %w", err)
	}
	s.logger.Info("Alerts marked read", zap.Int64("count", n))
	return n, nil
}

// Dismiss retires an alert. A new one is raised if the item is still low
// the next time it is evaluated.
func (s *AlertService) Dismiss(ctx context.Context, id int64) (*models.Alert, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.Dismiss", attribute.Int64("alert.id", id))
	defer span.End()

	if err := s.alerts.DismissAlert(ctx, id); err != nil {
		return nil, err
	}
	return s.alerts.GetAlert(ctx, id)
}

// Evaluate re-checks one item's stock against its active alert
func (s *AlertService) Evaluate(ctx context.Context, inventoryItemID int64) error {
	ctx, span := util.StartSpan(ctx, "AlertService.Evaluate", attribute.Int64("inventory.id", inventoryItemID))
	var err error
	defer func() { util.EndSpan(span, err) }()

	item, err := s.inventory.GetInventoryItem(ctx, inventoryItemID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			// deleted since the event was published
			return nil
		}
		return err
	}

	_, _, err = s.evaluate(ctx, item)
	return err
}

// Sweep evaluates every inventory item
func (s *AlertService) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.Sweep")
	var err error
	defer func() { util.EndSpan(span, err) }()

	items, err := s.inventory.ListInventory(ctx, models.InventoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	result := &SweepResult{}
	for i := range items {
		created, resolved, evalErr := s.evaluate(ctx, &items[i])
		if evalErr != nil {
			err = evalErr
			return nil, err
		}
		result.Created += created
		result.Resolved += resolved
	}

	s.logger.Info("Stock alert sweep finished",
		zap.Int("items", len(items)),
		zap.Int("created", result.Created),
		zap.Int("resolved", result.Resolved))
	return result, nil
}

func (s *AlertService) evaluate(ctx context.Context, item *models.InventoryItem) (created, resolved int, err error) {
	active, err := s.alerts.GetActiveAlert(ctx, item.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get active alert: %w", err)
	}

	want := alertFor(item)
	if active != nil && want != nil && active.Type == want.Type {
		return 0, 0, nil
	}

	if active != nil {
		if err := s.alerts.DismissAlert(ctx, active.ID); err != nil {
			return 0, 0, fmt.Errorf("failed to dismiss alert: %w", err)
		}
		resolved++
	}

	if want == nil {
		return created, resolved, nil
	}

	ok, err := s.alerts.CreateAlert(ctx, want)
	if err != nil {
		return created, resolved, fmt.Errorf("failed to create alert: %w", err)
	}
	if ok {
		created++
		util.StockAlertsRaisedTotal.WithLabelValues(want.Type).Inc()
		s.logger.Info("Stock alert raised",
			zap.Int64("inventory_item_id", item.ID),
			zap.String("type", want.Type),
			zap.Float64("quantity", item.Quantity))
	}
	return created, resolved, nil
}

// alertFor builds the alert an item's stock level calls for, nil when healthy
func alertFor(item *models.InventoryItem) *models.Alert {
	switch ledger.Classify(item.Quantity, item.ReorderLevel) {
	case ledger.LevelCritical:
		return &models.Alert{
			InventoryItemID: item.ID,
			Type:            models.AlertTypeCriticalStock,
			Severity:        models.AlertSeverityCritical,
			Title:           "Critical Stock Alert",
			Message: fmt.Sprintf("%s is out of stock. Available: %.2f %s, Reorder level: %.2f %s",
				item.Name, item.Quantity, item.Unit, item.ReorderLevel, item.Unit),
		}
	case ledger.LevelLow:
		return &models.Alert{
			InventoryItemID: item.ID,
			Type:            models.AlertTypeLowStock,
			Severity:        models.AlertSeverityMedium,
			Title:           "Low Stock Warning",
			Message: fmt.Sprintf("%s is running low. Available: %.2f %s, Reorder level: %.2f %s",
				item.Name, item.Quantity, item.Unit, item.ReorderLevel, item.Unit),
		}
	}
	return nil
}
