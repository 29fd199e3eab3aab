package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type FlowerType struct {
	ID           int64
	Name         string
	Color        string
	Seasonality  string // spring, summer, autumn, winter, all
	PricePerUnit decimal.Decimal
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type LotStatus string

const (
	LotAvailable LotStatus = "available"
	LotSold      LotStatus = "sold"
	LotExpired   LotStatus = "expired"
)

// Lot is a dated batch of perishable stock. Lots are never deleted while
// referenced; they retire through status. A lot is eligible for allocation
// iff status=available, expiry_date >= today and quantity > 0.
type Lot struct {
	ID           int64
	FlowerTypeID int64
	Quantity     int
	ExpiryDate   time.Time
	ReceivedDate time.Time
	Status       LotStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
