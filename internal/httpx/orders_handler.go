package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/authx"
	"github.com/bloomflow/fulfillment/internal/orders"
	"github.com/bloomflow/fulfillment/internal/payment"
	"github.com/bloomflow/fulfillment/internal/redisx"
	"github.com/bloomflow/fulfillment/internal/saga"
)

const (
	roleAdmin   = "admin"
	roleFlorist = "florist"
)

const maxWebhookBody = 1 << 20

// OrderReader is the read-side slice of the ledger the handlers need.
type OrderReader interface {
	Get(ctx context.Context, orderID int64) (orders.Order, error)
	ByPaymentRef(ctx context.Context, ref string) (orders.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]orders.Order, error)
	List(ctx context.Context) ([]orders.Order, error)
}

// OrdersHandler exposes the order lifecycle over HTTP: intake, payment
// intent creation, the gateway webhook, reads and cancellation.
type OrdersHandler struct {
	Saga   *saga.Coordinator
	Reader OrderReader
	Cache  *redis.Client // optional status cache
	Log    *zap.Logger
}

// Mount registers the order routes. The payment webhook stays outside the
// auth group: the gateway authenticates by knowing the intent id, not by
// carrying a user token.
func (h *OrdersHandler) Mount(r chi.Router, auth authx.Verifier) {
	r.Post("/webhooks/payment", h.paymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(authx.RequireAuth(auth))
		r.Post("/orders", h.create)
		r.Get("/orders", h.list)
		r.Get("/orders/me", h.listMine)
		r.Get("/orders/{id}", h.get)
		r.Get("/orders/{id}/status", h.status)
		r.Post("/orders/{id}/payment-intent", h.paymentIntent)
		r.Post("/orders/{id}/cancel", h.cancel)
	})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	claims, _ := authx.FromContext(r.Context())
	var req struct {
		Items []orders.ItemRequest `json:"items"`
		Notes string               `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.Saga.CreateOrder(r.Context(), claims.UserID, req.Notes, req.Items)
	if err != nil {
		code := errStatus(err, map[error]int{
			saga.ErrEmptyOrder:      http.StatusBadRequest,
			saga.ErrInvalidQuantity: http.StatusBadRequest,
			saga.ErrUnavailable:     http.StatusConflict,
		})
		if code == http.StatusInternalServerError {
			h.Log.Error("create order failed", zap.Error(err))
			writeErr(w, code, "could not create order")
			return
		}
		writeErr(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": viewOrder(o)})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	claims, _ := authx.FromContext(r.Context())

	var (
		list []orders.Order
		err  error
	)
	if claims.HasRole(roleAdmin, roleFlorist) {
		list, err = h.Reader.List(r.Context())
	} else {
		list, err = h.Reader.ListByUser(r.Context(), claims.UserID)
	}
	if err != nil {
		h.Log.Error("list orders failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not list orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": viewOrders(list)})
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	claims, _ := authx.FromContext(r.Context())
	list, err := h.Reader.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		h.Log.Error("list orders failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not list orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": viewOrders(list)})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(o)})
}

type statusView struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// status serves the polled order-status endpoint through a short-lived
// Redis cache so a payment page refreshing every second does not hammer
// Postgres.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	claims, _ := authx.FromContext(r.Context())

	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	if h.Cache != nil {
		if raw, err := h.Cache.Get(r.Context(), key).Result(); err == nil {
			var sv statusView
			if json.Unmarshal([]byte(raw), &sv) == nil {
				writeJSON(w, http.StatusOK, sv)
				return
			}
		}
	}

	o, err := h.Reader.Get(r.Context(), id)
	if err != nil {
		h.orderError(w, err)
		return
	}
	if !visibleTo(claims, o) {
		writeErr(w, http.StatusNotFound, "order not found")
		return
	}

	sv := statusView{Status: string(o.Status), PaymentStatus: string(o.PaymentStatus)}
	if h.Cache != nil {
		if b, err := json.Marshal(sv); err == nil {
			if err := h.Cache.Set(r.Context(), key, b, redisx.TTLStatusCache).Err(); err != nil {
				h.Log.Warn("status cache set failed", zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, sv)
}

func (h *OrdersHandler) paymentIntent(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	intent, err := h.Saga.CreatePaymentIntent(r.Context(), o.ID)
	if err != nil {
		if errors.Is(err, saga.ErrNotPayable) {
			writeErr(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("create payment intent failed", zap.Int64("order_id", o.ID), zap.Error(err))
		writeErr(w, http.StatusBadGateway, "could not create payment intent")
		return
	}
	h.invalidateStatus(r.Context(), o.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"payment_intent": intent})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	claims, _ := authx.FromContext(r.Context())
	if err := h.Saga.Cancel(r.Context(), o.ID, claims.UserID); err != nil {
		if errors.Is(err, saga.ErrCancelNotAllowed) {
			writeErr(w, http.StatusConflict, err.Error())
			return
		}
		h.orderError(w, err)
		return
	}
	h.invalidateStatus(r.Context(), o.ID)

	updated, err := h.Reader.Get(r.Context(), o.ID)
	if err != nil {
		h.orderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(updated)})
}

// paymentWebhook receives gateway events keyed by intent id. Unknown
// event types and unknown intents are acknowledged with 200 so the
// gateway stops redelivering them; only processing faults return 5xx.
func (h *OrdersHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "could not read body")
		return
	}

	ev, err := payment.ParseEvent(body)
	if errors.Is(err, payment.ErrUnknownEvent) {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	o, err := h.Reader.ByPaymentRef(r.Context(), ev.IntentID)
	if errors.Is(err, orders.ErrNotFound) {
		h.Log.Warn("webhook for unknown payment intent", zap.String("intent_id", ev.IntentID))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err != nil {
		h.Log.Error("webhook order lookup failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	switch ev.Type {
	case payment.EventPaymentSucceeded:
		err = h.Saga.OnPaymentSucceeded(r.Context(), o.ID, ev.IntentID)
	case payment.EventPaymentFailed:
		err = h.Saga.OnPaymentFailed(r.Context(), o.ID)
	}
	h.invalidateStatus(r.Context(), o.ID)

	if errors.Is(err, saga.ErrPaidAfterCancel) {
		// redelivery cannot fix this; acknowledge, the refund path owns it
		h.Log.Error("payment confirmed for cancelled order, refund required",
			zap.Int64("order_id", o.ID), zap.String("intent_id", ev.IntentID))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err != nil {
		h.Log.Error("webhook processing failed",
			zap.Int64("order_id", o.ID), zap.String("type", ev.Type), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// loadVisible parses {id}, loads the order and enforces visibility:
// owners and staff see the order, everyone else gets the same 404 as a
// nonexistent id.
func (h *OrdersHandler) loadVisible(w http.ResponseWriter, r *http.Request) (orders.Order, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return orders.Order{}, false
	}
	claims, _ := authx.FromContext(r.Context())

	o, err := h.Reader.Get(r.Context(), id)
	if err != nil {
		h.orderError(w, err)
		return orders.Order{}, false
	}
	if !visibleTo(claims, o) {
		writeErr(w, http.StatusNotFound, "order not found")
		return orders.Order{}, false
	}
	return o, true
}

func (h *OrdersHandler) orderError(w http.ResponseWriter, err error) {
	if errors.Is(err, orders.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "order not found")
		return
	}
	h.Log.Error("order lookup failed", zap.Error(err))
	writeErr(w, http.StatusInternalServerError, "internal error")
}

func (h *OrdersHandler) invalidateStatus(ctx context.Context, orderID int64) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err(); err != nil {
		h.Log.Warn("status cache invalidation failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func visibleTo(c authx.Claims, o orders.Order) bool {
	return o.UserID == c.UserID || c.HasRole(roleAdmin, roleFlorist)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
