package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tailor-service/internal/apperr"
	"tailor-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const customerColumns = `id, name, phone, email, address, created_at`

// ListCustomers retrieves all customers
func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	customers := []models.Customer{}
	err := s.db.SelectContext(ctx, &customers,
		"SELECT "+customerColumns+" FROM customers ORDER BY id")
	return customers, err
}

// GetCustomer retrieves a customer by ID
func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("customer", id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCustomer creates a new customer
func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (name, phone, email, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, customer, query,
		customer.Name, customer.Phone, customer.Email, customer.Address)
}

// UpdateCustomer locks the customer row, lets apply modify it and writes it back
func (s *Store) UpdateCustomer(ctx context.Context, id int64, apply func(*models.Customer) error) (*models.Customer, error) {
	var customer models.Customer

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &customer,
			"SELECT "+customerColumns+" FROM customers WHERE id = $1 FOR UPDATE", id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("customer", id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock customer: %w", err)
		}

		if err := apply(&customer); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE customers SET name = $1, phone = $2, email = $3, address = $4 WHERE id = $5",
			customer.Name, customer.Phone, customer.Email, customer.Address, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// DeleteCustomer deletes a customer; orders and their items go with it
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(result, "customer", id)
}
