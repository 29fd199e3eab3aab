package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Webhook event types delivered by the gateway, keyed by intent id.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

var ErrUnknownEvent = errors.New("unhandled webhook event type")

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// Gateway is the payment capability injected into the saga.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, orderID, userID int64) (Intent, error)
}

// Client creates payment intents against the gateway over HTTP. Fails
// closed on timeout; a lost response never counts as a created intent,
// and the idempotency key makes the retry safe.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, orderID, userID int64) (Intent, error) {
	body, err := json.Marshal(map[string]any{
		"amount":   amount.String(),
		"currency": "usd",
		"metadata": map[string]string{
			"order_id": strconv.FormatInt(orderID, 10),
			"user_id":  strconv.FormatInt(userID, 10),
		},
	})
	if err != nil {
		return Intent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("payment gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Intent{}, fmt.Errorf("payment gateway: unexpected status %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return Intent{}, fmt.Errorf("payment gateway: decode intent: %w", err)
	}
	if intent.ID == "" {
		return Intent{}, errors.New("payment gateway: intent without id")
	}
	return intent, nil
}

// Event is a parsed webhook delivery.
type Event struct {
	Type     string
	IntentID string
}

// ParseEvent extracts the event type and intent id from a webhook body.
// Unknown event types come back as ErrUnknownEvent so the handler can
// acknowledge and ignore them.
func ParseEvent(b []byte) (Event, error) {
	var payload struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return Event{}, fmt.Errorf("parse webhook: %w", err)
	}
	ev := Event{Type: payload.Type, IntentID: payload.Data.Object.ID}
	if ev.Type != EventPaymentSucceeded && ev.Type != EventPaymentFailed {
		return ev, ErrUnknownEvent
	}
	if ev.IntentID == "" {
		return ev, errors.New("parse webhook: missing intent id")
	}
	return ev, nil
}
