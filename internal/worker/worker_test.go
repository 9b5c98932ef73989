package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tailor-service/internal/broker"
	"tailor-service/internal/models"
	"tailor-service/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	evaluated []int64
	failOn    int64
	flakyOn   int64
	sweeps    int
}

// Evaluate always fails for failOn and fails only the first time for flakyOn
func (f *fakeEvaluator) Evaluate(ctx context.Context, id int64) error {
	f.evaluated = append(f.evaluated, id)
	switch {
	case id == f.failOn:
		return errors.New("boom")
	case id == f.flakyOn:
		f.flakyOn = 0
		return errors.New("connection reset")
	}
	return nil
}

func (f *fakeEvaluator) Sweep(ctx context.Context) (*service.SweepResult, error) {
	f.sweeps++
	return &service.SweepResult{}, nil
}

func TestOrderCompletedEvaluatesEveryDeduction(t *testing.T) {
	eval := &fakeEvaluator{}
	w := NewAlertWorker(nil, eval)
	pub := broker.NewLocalPublisher(w.Handler())

	err := pub.PublishOrderCompleted(context.Background(), &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderCompleted},
		OrderID:   1,
		Deductions: []models.DeductionData{
			{InventoryItemID: 4},
			{InventoryItemID: 9},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, eval.evaluated)
}

func TestOrderCompletedKeepsGoingAfterFailure(t *testing.T) {
	eval := &fakeEvaluator{failOn: 4}
	w := NewAlertWorker(nil, eval)

	err := w.handleOrderCompleted(context.Background(), &models.OrderCompletedEvent{
		Deductions: []models.DeductionData{{InventoryItemID: 4}, {InventoryItemID: 9}},
	})
	assert.Error(t, err)
	assert.Equal(t, []int64{4, 9}, eval.evaluated)
}

func TestInventoryUpdatedEvaluatesItem(t *testing.T) {
	eval := &fakeEvaluator{}
	w := NewAlertWorker(nil, eval)
	pub := broker.NewLocalPublisher(w.Handler())

	err := pub.PublishInventoryUpdated(context.Background(), &models.InventoryUpdatedEvent{
		BaseEvent:       models.BaseEvent{EventType: models.EventTypeInventoryUpdated},
		InventoryItemID: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, eval.evaluated)
}

func TestStartWithoutConsumerSweepsOnce(t *testing.T) {
	eval := &fakeEvaluator{}
	w := NewAlertWorker(nil, eval)

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, 1, eval.sweeps)
	assert.NoError(t, w.Stop())
}

func TestConsumedEventRetriedAfterTransientFailure(t *testing.T) {
	eval := &fakeEvaluator{flakyOn: 4}
	w := NewAlertWorker(nil, eval)

	value, err := json.Marshal(&models.OrderCompletedEvent{
		BaseEvent:  models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderCompleted},
		OrderID:    1,
		Deductions: []models.DeductionData{{InventoryItemID: 4}},
	})
	require.NoError(t, err)

	backoff := broker.Backoff{Initial: time.Millisecond, Max: time.Millisecond}
	err = broker.HandleWithRetry(context.Background(), w.Handler().HandleMessage, kafka.Message{Value: value}, backoff)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 4}, eval.evaluated)
}
