package models

import (
	"encoding/json"
	"time"
)

// Optional is a field of a merge-patch body. Set is false when the key was
// absent; Value is nil when the key was present with null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some builds a present, non-null Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null builds a present Optional holding JSON null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Apply copies the value into dst when the field was sent, clearing dst on null
func (o Optional[T]) Apply(dst **T) {
	if o.Set {
		*dst = o.Value
	}
}

// ApplyValue copies a non-null value into dst. It reports false when the field
// was sent as null, which non-nullable columns cannot hold.
func (o Optional[T]) ApplyValue(dst *T) bool {
	if !o.Set {
		return true
	}
	if o.Value == nil {
		return false
	}
	*dst = *o.Value
	return true
}

// InventoryFilter narrows inventory listings by category
type InventoryFilter struct {
	Category string
}

// OrderFilter narrows order listings by equality on status and customer
type OrderFilter struct {
	Status     string
	CustomerID *int64
}

var deliveryDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDeliveryDate parses an ISO-8601 date or date-time. A trailing Z is read
// as +00:00. Empty or unparseable input yields nil.
func ParseDeliveryDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if n := len(s); s[n-1] == 'Z' || s[n-1] == 'z' {
		s = s[:n-1] + "+00:00"
	}
	for _, layout := range deliveryDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
