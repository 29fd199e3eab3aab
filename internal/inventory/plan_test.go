package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomflow/fulfillment/internal/orders"
)

func day(offset int) time.Time {
	return time.Now().AddDate(0, 0, offset).Truncate(24 * time.Hour)
}

// Lots arrive pre-sorted oldest-expiring first, the order the allocator's
// query produces.
func TestPlan_TakesEarliestExpiringFirst(t *testing.T) {
	// B expires in 2 days with 5 units, A in 4 days with 20 units.
	lots := []Lot{
		{ID: 2, Quantity: 5, ExpiryDate: day(2)},  // B
		{ID: 1, Quantity: 20, ExpiryDate: day(4)}, // A
	}

	takes, remaining := plan(lots, 7)

	require.Equal(t, 0, remaining)
	require.Len(t, takes, 2)
	assert.Equal(t, Take{LotID: 2, QuantityTaken: 5}, takes[0])
	assert.Equal(t, Take{LotID: 1, QuantityTaken: 2}, takes[1])
}

func TestPlan_SingleLotCoversNeed(t *testing.T) {
	lots := []Lot{
		{ID: 1, Quantity: 10, ExpiryDate: day(1)},
		{ID: 2, Quantity: 10, ExpiryDate: day(3)},
	}

	takes, remaining := plan(lots, 4)

	require.Equal(t, 0, remaining)
	require.Len(t, takes, 1)
	assert.Equal(t, Take{LotID: 1, QuantityTaken: 4}, takes[0])
}

func TestPlan_ReportsShortfall(t *testing.T) {
	lots := []Lot{
		{ID: 1, Quantity: 3, ExpiryDate: day(1)},
		{ID: 2, Quantity: 4, ExpiryDate: day(2)},
	}

	takes, remaining := plan(lots, 10)

	assert.Equal(t, 3, remaining)
	require.Len(t, takes, 2)
	assert.Equal(t, 3, takes[0].QuantityTaken)
	assert.Equal(t, 4, takes[1].QuantityTaken)
}

func TestPlan_NoLots(t *testing.T) {
	takes, remaining := plan(nil, 5)
	assert.Empty(t, takes)
	assert.Equal(t, 5, remaining)
}

func TestPlan_Deterministic(t *testing.T) {
	lots := []Lot{
		{ID: 3, Quantity: 2, ExpiryDate: day(1)},
		{ID: 5, Quantity: 2, ExpiryDate: day(1)},
		{ID: 8, Quantity: 9, ExpiryDate: day(2)},
	}

	first, _ := plan(lots, 6)
	second, _ := plan(lots, 6)
	assert.Equal(t, first, second)
}

func TestMergeItems(t *testing.T) {
	merged := mergeItems([]orders.ItemRequest{
		{FlowerTypeID: 1, Quantity: 2},
		{FlowerTypeID: 2, Quantity: 1},
		{FlowerTypeID: 1, Quantity: 3},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, orders.ItemRequest{FlowerTypeID: 1, Quantity: 5}, merged[0])
	assert.Equal(t, orders.ItemRequest{FlowerTypeID: 2, Quantity: 1}, merged[1])
}

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{Shortfalls: []Shortfall{
		{FlowerTypeID: 4, Required: 100, Available: 10},
	}}
	assert.Contains(t, err.Error(), "flower_type 4")
	assert.Contains(t, err.Error(), "need 100")
	assert.Contains(t, err.Error(), "have 10")
}
