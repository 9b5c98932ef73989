package worker

import (
	"context"
	"errors"

	"tailor-service/internal/broker"
	"tailor-service/internal/models"
	"tailor-service/internal/service"
	"tailor-service/internal/util"

	"go.uber.org/zap"
)

// AlertEvaluator is the part of the alert service the worker drives
type AlertEvaluator interface {
	Evaluate(ctx context.Context, inventoryItemID int64) error
	Sweep(ctx context.Context) (*service.SweepResult, error)
}

// AlertWorker keeps stock alerts current by reacting to inventory changes
type AlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	alerts       AlertEvaluator
	logger       *zap.Logger
}

// NewAlertWorker creates a worker. consumer may be nil when events are
// delivered in-process through a broker.LocalPublisher bound to Handler().
func NewAlertWorker(consumer *broker.Consumer, alerts AlertEvaluator) *AlertWorker {
	w := &AlertWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		alerts:       alerts,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderCompleted(w.handleOrderCompleted)
	w.eventHandler.OnInventoryUpdated(w.handleInventoryUpdated)
	return w
}

// Handler returns the event router the worker registered its callbacks on
func (w *AlertWorker) Handler() *broker.EventHandler {
	return w.eventHandler
}

func (w *AlertWorker) handleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "AlertWorker.handleOrderCompleted")
	defer span.End()

	var errs []error
	for _, d := range event.Deductions {
		if err := w.alerts.Evaluate(ctx, d.InventoryItemID); err != nil {
			w.logger.Error("Failed to evaluate stock alert",
				zap.Int64("order_id", event.OrderID),
				zap.Int64("inventory_item_id", d.InventoryItemID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *AlertWorker) handleInventoryUpdated(ctx context.Context, event *models.InventoryUpdatedEvent) error {
	ctx, span := util.StartSpan(ctx, "AlertWorker.handleInventoryUpdated")
	defer span.End()

	return w.alerts.Evaluate(ctx, event.InventoryItemID)
}

// Start sweeps all inventory once, then consumes events until ctx is done.
// Without a consumer it returns after the sweep.
func (w *AlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting alert worker")

	if _, err := w.alerts.Sweep(ctx); err != nil {
		w.logger.Error("Initial stock alert sweep failed", zap.Error(err))
	}

	if w.consumer == nil {
		return nil
	}
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AlertWorker) Stop() error {
	w.logger.Info("Stopping alert worker")
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}
