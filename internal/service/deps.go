package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"tailor-service/internal/apperr"
	"tailor-service/internal/models"

	"github.com/go-playground/validator/v10"
)

// EventPublisher emits domain events. Publishing failures never fail the
// operation that produced the event.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishInventoryUpdated(ctx context.Context, event *models.InventoryUpdatedEvent) error
}

// Locker is a mutual exclusion lock with owner tokens
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// IdempotencyStore remembers the result of requests sent with an Idempotency-Key
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteIdempotencyKey(ctx context.Context, key string) error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRecord checks a record after a merge-patch was applied to it
func validateRecord(record interface{}) error {
	err := validate.Struct(record)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	first := verrs[0]
	return apperr.Newf(apperr.CodeValidation, "invalid value for %s", first.Field()).
		WithDetails(map[string]any{"fields": fields})
}

func nullField(field string) error {
	return apperr.Newf(apperr.CodeValidation, "%s cannot be null", field)
}
