package httpx

import (
	"time"

	"github.com/bloomflow/fulfillment/internal/inventory"
	"github.com/bloomflow/fulfillment/internal/orders"
)

// Wire views for the domain types. Money fields render as strings so
// clients never see float-rounded prices.

type orderItemView struct {
	ID           int64  `json:"id"`
	FlowerTypeID int64  `json:"flower_type_id"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	Subtotal     string `json:"subtotal"`
}

type orderView struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	TotalPrice    string          `json:"total_price"`
	PaymentRef    string          `json:"payment_reference,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []orderItemView `json:"items"`
}

func viewOrder(o orders.Order) orderView {
	v := orderView{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		TotalPrice:    o.TotalPrice.String(),
		PaymentRef:    o.PaymentRef,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		Items:         make([]orderItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ID:           it.ID,
			FlowerTypeID: it.FlowerTypeID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice.String(),
			Subtotal:     it.Subtotal.String(),
		})
	}
	return v
}

func viewOrders(list []orders.Order) []orderView {
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, viewOrder(o))
	}
	return out
}

type flowerView struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Color        string    `json:"color,omitempty"`
	Seasonality  string    `json:"seasonality"`
	PricePerUnit string    `json:"price_per_unit"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func viewFlower(f inventory.FlowerType) flowerView {
	return flowerView{
		ID:           f.ID,
		Name:         f.Name,
		Color:        f.Color,
		Seasonality:  f.Seasonality,
		PricePerUnit: f.PricePerUnit.String(),
		Description:  f.Description,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func viewFlowers(list []inventory.FlowerType) []flowerView {
	out := make([]flowerView, 0, len(list))
	for _, f := range list {
		out = append(out, viewFlower(f))
	}
	return out
}

type lotView struct {
	ID           int64     `json:"id"`
	FlowerTypeID int64     `json:"flower_type_id"`
	Quantity     int       `json:"quantity"`
	ExpiryDate   string    `json:"expiry_date"`
	ReceivedDate string    `json:"received_date"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const dateLayout = "2006-01-02"

func viewLot(l inventory.Lot) lotView {
	return lotView{
		ID:           l.ID,
		FlowerTypeID: l.FlowerTypeID,
		Quantity:     l.Quantity,
		ExpiryDate:   l.ExpiryDate.Format(dateLayout),
		ReceivedDate: l.ReceivedDate.Format(dateLayout),
		Status:       string(l.Status),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func viewLots(list []inventory.Lot) []lotView {
	out := make([]lotView, 0, len(list))
	for _, l := range list {
		out = append(out, viewLot(l))
	}
	return out
}
