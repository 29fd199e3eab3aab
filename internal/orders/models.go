package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            int64
	UserID        int64
	Status        Status
	PaymentStatus PaymentStatus
	TotalPrice    decimal.Decimal
	PaymentRef    string // payment intent id, empty until an intent exists
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []OrderItem
}

// OrderItem rows are immutable after creation; invariant:
// Order.TotalPrice == sum of Subtotal over Items.
type OrderItem struct {
	ID           int64
	OrderID      int64
	FlowerTypeID int64
	Quantity     int
	UnitPrice    decimal.Decimal
	Subtotal     decimal.Decimal
}

// ItemRequest is the (flower type, quantity) pair used for order intake,
// availability checks and inventory commits.
type ItemRequest struct {
	FlowerTypeID int64 `json:"flower_type_id"`
	Quantity     int   `json:"quantity"`
}

// ItemRequests projects the persisted items back to request pairs.
func (o Order) ItemRequests() []ItemRequest {
	out := make([]ItemRequest, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, ItemRequest{FlowerTypeID: it.FlowerTypeID, Quantity: it.Quantity})
	}
	return out
}
