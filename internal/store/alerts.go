package store

import (
	"context"
	"database/sql"
	"errors"

	"tailor-service/internal/apperr"
	"tailor-service/internal/models"
)

const alertColumns = `id, inventory_item_id, type, severity, title, message, is_read, is_dismissed, created_at`

// ListAlerts retrieves alerts, newest first
func (s *Store) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	query := "SELECT " + alertColumns + " FROM alerts"
	if filter.UnreadOnly {
		query += " WHERE NOT is_read AND NOT is_dismissed"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT $1"

	alerts := []models.Alert{}
	err := s.db.SelectContext(ctx, &alerts, query, filter.Limit)
	return alerts, err
}

// GetActiveAlert retrieves the undismissed alert for an item, nil if none
func (s *Store) GetActiveAlert(ctx context.Context, inventoryItemID int64) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.GetContext(ctx, &alert,
		"SELECT "+alertColumns+" FROM alerts WHERE inventory_item_id = $1 AND NOT is_dismissed", inventoryItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// CreateAlert inserts an alert unless the item already has an active one.
// It reports whether a row was written.
func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	query := `
		INSERT INTO alerts (inventory_item_id, type, severity, title, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (inventory_item_id) WHERE NOT is_dismissed DO NOTHING
		RETURNING id, is_read, is_dismissed, created_at`

	err := s.db.GetContext(ctx, alert, query,
		alert.InventoryItemID, alert.Type, alert.Severity, alert.Title, alert.Message)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkAlertRead flags an alert as read
func (s *Store) MarkAlertRead(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "UPDATE alerts SET is_read = TRUE WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(result, "alert", id)
}

// MarkAllAlertsRead flags every unread active alert as read and returns how many changed
func (s *Store) MarkAllAlertsRead(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET is_read = TRUE WHERE NOT is_read AND NOT is_dismissed")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DismissAlert retires an alert so a new one may be raised for the item
func (s *Store) DismissAlert(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "UPDATE alerts SET is_dismissed = TRUE WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(result, "alert", id)
}

// GetAlert retrieves an alert by ID
func (s *Store) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.GetContext(ctx, &alert, "SELECT "+alertColumns+" FROM alerts WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("alert", id)
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}
