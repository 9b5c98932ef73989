package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBalanceDue(t *testing.T) {
	order := TailoringOrder{TotalPrice: 1500, AdvancePayment: 500}
	assert.Equal(t, 1000.0, order.BalanceDue())

	overpaid := TailoringOrder{TotalPrice: 200, AdvancePayment: 250}
	assert.Equal(t, -50.0, overpaid.BalanceDue())
}

func TestOrderJSON(t *testing.T) {
	chest := 40.0
	order := TailoringOrder{
		ID:             3,
		CustomerID:     1,
		Status:         OrderStatusPending,
		GarmentType:    "shirt",
		Measurements:   Measurements{Chest: &chest},
		TotalPrice:     1500,
		AdvancePayment: 500,
	}

	data, err := json.Marshal(order)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, 1000.0, out["balance_due"])
	assert.Equal(t, "shirt", out["garment_type"])
	assert.Equal(t, []interface{}{}, out["items_used"])

	measurements, ok := out["measurements"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 40.0, measurements["chest"])
	assert.Nil(t, measurements["waist"])
	assert.NotContains(t, out, "chest")
}

func TestInventoryItemJSON(t *testing.T) {
	data, err := json.Marshal(InventoryItem{Name: "Silk", Quantity: 5, ReorderLevel: 10})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, true, out["is_low_stock"])
	assert.Equal(t, "Silk", out["name"])

	data, err = json.Marshal(InventoryItem{Quantity: 50, ReorderLevel: 10})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, false, out["is_low_stock"])
}

func TestOptionalUnmarshal(t *testing.T) {
	var body struct {
		Name  Optional[string]  `json:"name"`
		Email Optional[string]  `json:"email"`
		Price Optional[float64] `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Ali","email":null}`), &body))

	assert.True(t, body.Name.Set)
	assert.Equal(t, "Ali", *body.Name.Value)
	assert.True(t, body.Email.Set)
	assert.Nil(t, body.Email.Value)
	assert.False(t, body.Price.Set)
}

func TestOptionalApply(t *testing.T) {
	email := "old@example.com"
	dst := &email

	Optional[string]{}.Apply(&dst)
	assert.Equal(t, "old@example.com", *dst)

	Null[string]().Apply(&dst)
	assert.Nil(t, dst)

	name := "old"
	assert.True(t, Optional[string]{}.ApplyValue(&name))
	assert.Equal(t, "old", name)
	assert.True(t, Some("new").ApplyValue(&name))
	assert.Equal(t, "new", name)
	assert.False(t, Null[string]().ApplyValue(&name))
	assert.Equal(t, "new", name)
}

func TestParseDeliveryDate(t *testing.T) {
	got := ParseDeliveryDate("2024-03-15T10:30:00Z")
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)))
	_, offset := got.Zone()
	assert.Equal(t, 0, offset)

	got = ParseDeliveryDate("2024-03-15T10:30:00+05:00")
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2024, 3, 15, 5, 30, 0, 0, time.UTC)))

	got = ParseDeliveryDate("2024-03-15")
	require.NotNil(t, got)
	assert.Equal(t, 15, got.Day())

	assert.NotNil(t, ParseDeliveryDate("2024-03-15T10:30:00.123456"))
	assert.Nil(t, ParseDeliveryDate(""))
	assert.Nil(t, ParseDeliveryDate("next tuesday"))
	assert.Nil(t, ParseDeliveryDate("2024-13-45"))
}

func TestValidOrderStatus(t *testing.T) {
	for _, s := range []string{"pending", "in_progress", "completed", "delivered"} {
		assert.True(t, ValidOrderStatus(s), s)
	}
	assert.False(t, ValidOrderStatus("cancelled"))
	assert.False(t, ValidOrderStatus(""))
}
