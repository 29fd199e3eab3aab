package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/authx"
	"github.com/bloomflow/fulfillment/internal/orders"
	"github.com/bloomflow/fulfillment/internal/payment"
	"github.com/bloomflow/fulfillment/internal/saga"
)

// Token-keyed verifier: the token string selects the claims.
type stubVerifier struct{ users map[string]authx.Claims }

func (s *stubVerifier) Verify(_ context.Context, token string) (authx.Claims, error) {
	c, ok := s.users[token]
	if !ok {
		return authx.Claims{}, authx.ErrUnauthorized
	}
	return c, nil
}

type memLedger struct {
	nextID int64
	byID   map[int64]*orders.Order
}

func newMemLedger() *memLedger { return &memLedger{nextID: 1, byID: map[int64]*orders.Order{}} }

func (m *memLedger) Create(_ context.Context, userID int64, notes string, items []orders.OrderItem, total decimal.Decimal) (orders.Order, error) {
	o := orders.Order{
		ID: m.nextID, UserID: userID,
		Status: orders.StatusPendingPayment, PaymentStatus: orders.PaymentPending,
		TotalPrice: total, Notes: notes, Items: items,
	}
	m.nextID++
	m.byID[o.ID] = &o
	return o, nil
}

func (m *memLedger) Get(_ context.Context, id int64) (orders.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return *o, nil
}

func (m *memLedger) ByPaymentRef(_ context.Context, ref string) (orders.Order, error) {
	for _, o := range m.byID {
		if o.PaymentRef == ref {
			return *o, nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

func (m *memLedger) SetPaymentRef(_ context.Context, id int64, ref string) error {
	m.byID[id].PaymentRef = ref
	m.byID[id].PaymentStatus = orders.PaymentProcessing
	return nil
}

func (m *memLedger) SetPayment(_ context.Context, id int64, st orders.Status, ps orders.PaymentStatus) error {
	m.byID[id].Status, m.byID[id].PaymentStatus = st, ps
	return nil
}

func (m *memLedger) MarkPaid(_ context.Context, id int64) (bool, error) {
	o, ok := m.byID[id]
	if !ok {
		return false, orders.ErrNotFound
	}
	if o.Status != orders.StatusPendingPayment || o.PaymentStatus == orders.PaymentSucceeded {
		return false, nil
	}
	o.Status, o.PaymentStatus = orders.StatusPending, orders.PaymentSucceeded
	return true, nil
}

func (m *memLedger) Transition(_ context.Context, id int64, from, to orders.Status) error {
	if !orders.CanTransition(from, to) {
		return orders.ErrIllegalTransition
	}
	o, ok := m.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != from {
		return orders.ErrConflict
	}
	o.Status = to
	return nil
}

func (m *memLedger) ListByUser(_ context.Context, userID int64) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memLedger) List(_ context.Context) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

type okInventory struct{}

func (okInventory) Available(context.Context, []orders.ItemRequest) (bool, error) { return true, nil }
func (okInventory) Reduce(context.Context, []orders.ItemRequest) error            { return nil }

type flatCatalog struct{}

func (flatCatalog) Price(context.Context, int64) (decimal.Decimal, error) {
	return decimal.RequireFromString("3.00"), nil
}

type stubGateway struct{}

func (stubGateway) CreateIntent(context.Context, decimal.Decimal, int64, int64) (payment.Intent, error) {
	return payment.Intent{ID: "pi_42", ClientSecret: "cs_42"}, nil
}

type nullQueue struct{}

func (nullQueue) EnqueueAssembly(context.Context, orders.AssemblyTask) error { return nil }

type nullNotes struct{}

func (nullNotes) Notify(context.Context, string, int64, int64) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *memLedger) {
	t.Helper()
	ledger := newMemLedger()
	coord := &saga.Coordinator{
		Ledger:    ledger,
		Inventory: okInventory{},
		Catalog:   flatCatalog{},
		Payments:  stubGateway{},
		Tasks:     nullQueue{},
		Notes:     nullNotes{},
		Log:       zap.NewNop(),
	}
	h := &OrdersHandler{Saga: coord, Reader: ledger, Log: zap.NewNop()}

	verifier := &stubVerifier{users: map[string]authx.Claims{
		"alice-token":   {UserID: 1, Sub: "alice", Roles: []string{"customer"}},
		"bob-token":     {UserID: 2, Sub: "bob", Roles: []string{"customer"}},
		"florist-token": {UserID: 3, Sub: "fleur", Roles: []string{"florist"}},
	}}

	r := NewRouter(zap.NewNop())
	h.Mount(r, verifier)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, ledger
}

func do(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestCreateOrderEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/orders", "alice-token",
		`{"items":[{"flower_type_id":1,"quantity":2}],"notes":"birthday"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Order struct {
			ID         int64  `json:"id"`
			Status     string `json:"status"`
			TotalPrice string `json:"total_price"`
		} `json:"order"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "pending_payment", out.Order.Status)
	assert.Equal(t, "6", out.Order.TotalPrice)

	resp = do(t, http.MethodPost, srv.URL+"/orders", "alice-token", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/orders", "", `{"items":[{"flower_type_id":1,"quantity":1}]}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrderVisibility(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/orders", "alice-token",
		`{"items":[{"flower_type_id":1,"quantity":1}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// owner sees it
	resp = do(t, http.MethodGet, srv.URL+"/orders/1", "alice-token", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// another customer gets the same 404 as a missing order
	resp = do(t, http.MethodGet, srv.URL+"/orders/1", "bob-token", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// staff see everything
	resp = do(t, http.MethodGet, srv.URL+"/orders/1", "florist-token", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPaymentIntentAndWebhookFlow(t *testing.T) {
	srv, ledger := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/orders", "alice-token",
		`{"items":[{"flower_type_id":1,"quantity":1}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/orders/1/payment-intent", "alice-token", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var intentOut struct {
		PaymentIntent payment.Intent `json:"payment_intent"`
	}
	decode(t, resp, &intentOut)
	assert.Equal(t, "pi_42", intentOut.PaymentIntent.ID)

	// webhook is unauthenticated; keyed by intent id
	resp = do(t, http.MethodPost, srv.URL+"/webhooks/payment", "",
		`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_42"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	o, err := ledger.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, o.Status)
	assert.Equal(t, orders.PaymentSucceeded, o.PaymentStatus)
}

func TestWebhookIgnoresUnknownEventsAndIntents(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/webhooks/payment", "",
		`{"type":"charge.refund.updated","data":{"object":{"id":"ch_1"}}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/webhooks/payment", "",
		`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_unknown"}}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/webhooks/payment", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookAfterCancelIsAcknowledgedWithoutResurrection(t *testing.T) {
	srv, ledger := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/orders", "alice-token",
		`{"items":[{"flower_type_id":1,"quantity":1}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/orders/1/payment-intent", "alice-token", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/orders/1/cancel", "alice-token", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// late gateway confirmation: acked so the gateway stops retrying,
	// but the order stays cancelled
	resp = do(t, http.MethodPost, srv.URL+"/webhooks/payment", "",
		`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_42"}}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	o, err := ledger.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	assert.NotEqual(t, orders.PaymentSucceeded, o.PaymentStatus)
}

func TestCancelEndpoint(t *testing.T) {
	srv, ledger := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/orders", "alice-token",
		`{"items":[{"flower_type_id":1,"quantity":1}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/orders/1/cancel", "alice-token", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	o, err := ledger.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, o.Status)

	// a second cancel is rejected, not silently repeated
	resp = do(t, http.MethodPost, srv.URL+"/orders/1/cancel", "alice-token", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStatusEndpointWithoutCache(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/orders", "alice-token",
		`{"items":[{"flower_type_id":1,"quantity":1}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/orders/1/status", "alice-token", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sv statusView
	decode(t, resp, &sv)
	assert.Equal(t, "pending_payment", sv.Status)
	assert.Equal(t, "pending", sv.PaymentStatus)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
