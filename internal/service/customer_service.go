package service

import (
	"context"
	"fmt"

	"tailor-service/internal/models"
	"tailor-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CustomerService handles customer records
type CustomerService struct {
	store  CustomerStore
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(store CustomerStore) *CustomerService {
	return &CustomerService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateCustomerRequest represents a request to create a customer
type CreateCustomerRequest struct {
	Name    string  `json:"name" binding:"required"`
	Phone   string  `json:"phone" binding:"required"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

// UpdateCustomerRequest is a merge-patch of a customer
type UpdateCustomerRequest struct {
	Name    models.Optional[string] `json:"name"`
	Phone   models.Optional[string] `json:"phone"`
	Email   models.Optional[string] `json:"email"`
	Address models.Optional[string] `json:"address"`
}

func (r *UpdateCustomerRequest) apply(c *models.Customer) error {
	if !r.Name.ApplyValue(&c.Name) {
		return nullField("name")
	}
	if !r.Phone.ApplyValue(&c.Phone) {
		return nullField("phone")
	}
	r.Email.Apply(&c.Email)
	r.Address.Apply(&c.Address)
	return validateRecord(c)
}

// ListCustomers returns every customer in id order
func (s *CustomerService) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.ListCustomers")
	defer span.End()

	return s.store.ListCustomers(ctx)
}

// GetCustomer retrieves a customer by ID
func (s *CustomerService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.GetCustomer", attribute.Int64("customer.id", id))
	defer span.End()

	return s.store.GetCustomer(ctx, id)
}

// CreateCustomer stores a new customer
func (s *CustomerService) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.CreateCustomer")
	var err error
	defer func() { util.EndSpan(span, err) }()

	customer := &models.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	}
	if err = validateRecord(customer); err != nil {
		return nil, err
	}

	if err = s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	util.CustomersCreatedTotal.Inc()
	s.logger.Info("Customer created", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

// UpdateCustomer applies a merge-patch to a customer
func (s *CustomerService) UpdateCustomer(ctx context.Context, id int64, req *UpdateCustomerRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.UpdateCustomer", attribute.Int64("customer.id", id))
	var err error
	defer func() { util.EndSpan(span, err) }()

	customer, err := s.store.UpdateCustomer(ctx, id, req.apply)
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// DeleteCustomer removes a customer together with its orders
func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CustomerService.DeleteCustomer", attribute.Int64("customer.id", id))
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = s.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Customer deleted", zap.Int64("customer_id", id))
	return nil
}
