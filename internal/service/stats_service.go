package service

import (
	"context"
	"fmt"

	"tailor-service/internal/models"
	"tailor-service/internal/util"
)

// StatsService computes the dashboard summary
type StatsService struct {
	store StatsStore
}

// NewStatsService creates a new stats service
func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

// GetStats recomputes every count on each call
func (s *StatsService) GetStats(ctx context.Context) (*models.Stats, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.GetStats")
	defer span.End()

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	util.InventoryLowStockItems.Set(float64(stats.LowStockItems))
	return stats, nil
}
