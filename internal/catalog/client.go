package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bloomflow/fulfillment/internal/inventory"
	"github.com/bloomflow/fulfillment/internal/orders"
)

// Client talks to the inventory service's service-to-service endpoints:
// catalog pricing, the pre-payment availability hint, and the
// lock-protected reduce commit. Calls block with a bounded timeout and
// fail closed: a timeout is a failure, never an assumed success.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// InsufficientError mirrors the allocator's rejection across the wire.
type InsufficientError struct {
	Shortfalls []inventory.Shortfall
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for %d flower type(s)", len(e.Shortfalls))
}

// Price returns the catalog unit price for a flower type.
func (c *Client) Price(ctx context.Context, flowerTypeID int64) (decimal.Decimal, error) {
	var out struct {
		Flower struct {
			PricePerUnit decimal.Decimal `json:"price_per_unit"`
		} `json:"flower"`
	}
	err := c.get(ctx, fmt.Sprintf("/internal/flowers/%d", flowerTypeID), &out)
	if err != nil {
		return decimal.Zero, err
	}
	return out.Flower.PricePerUnit, nil
}

// Available is a hint only; the authoritative check happens under row
// locks inside Reduce.
func (c *Client) Available(ctx context.Context, items []orders.ItemRequest) (bool, error) {
	q := url.Values{}
	for _, it := range items {
		q.Add("flower_type_id", strconv.FormatInt(it.FlowerTypeID, 10))
		q.Add("quantity", strconv.Itoa(it.Quantity))
	}
	var out struct {
		AllAvailable bool `json:"all_available"`
	}
	if err := c.get(ctx, "/internal/inventory/available?"+q.Encode(), &out); err != nil {
		return false, err
	}
	return out.AllAvailable, nil
}

// Reduce commits stock for the batch. A 409 means the allocator rejected
// the whole batch with no mutation; that comes back as *InsufficientError.
func (c *Client) Reduce(ctx context.Context, items []orders.ItemRequest) error {
	body, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/internal/inventory/reduce", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("inventory reduce: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		var out struct {
			Shortfalls []inventory.Shortfall `json:"shortfalls"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("inventory reduce: decode conflict: %w", err)
		}
		return &InsufficientError{Shortfalls: out.Shortfalls}
	default:
		return fmt.Errorf("inventory reduce: unexpected status %d", resp.StatusCode)
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("inventory service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inventory service: unexpected status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
