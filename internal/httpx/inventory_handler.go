package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/authx"
	"github.com/bloomflow/fulfillment/internal/inventory"
	"github.com/bloomflow/fulfillment/internal/orders"
)

// InventoryHandler exposes the catalog, lot intake and the allocation
// endpoints of the inventory service.
type InventoryHandler struct {
	Store *inventory.Store
	Alloc *inventory.Allocator
	Log   *zap.Logger
}

// Mount registers the public (token-authenticated) routes and the
// /internal group used for service-to-service calls inside the network
// boundary, which carries no user token.
func (h *InventoryHandler) Mount(r chi.Router, auth authx.Verifier) {
	r.Route("/internal", func(r chi.Router) {
		r.Get("/flowers/{id}", h.getFlower)
		r.Get("/inventory/available", h.available)
		r.Post("/inventory/reduce", h.reduce)
	})

	r.Group(func(r chi.Router) {
		r.Use(authx.RequireAuth(auth))

		r.Get("/flowers", h.listFlowers)
		r.Get("/flowers/{id}", h.getFlower)
		r.Get("/inventory/available", h.available)
		r.Get("/inventory/summary", h.summary)

		r.Group(func(r chi.Router) {
			r.Use(authx.RequireRole(roleAdmin, roleFlorist))
			r.Post("/flowers", h.createFlower)
			r.Post("/lots", h.createLot)
			r.Get("/lots", h.listLots)
			r.Get("/lots/expiring", h.expiringLots)
			r.Get("/lots/{id}", h.getLot)
		})
	})
}

func (h *InventoryHandler) createFlower(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Color        string `json:"color"`
		Seasonality  string `json:"seasonality"`
		PricePerUnit string `json:"price_per_unit"`
		Description  string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}
	price, err := decimal.NewFromString(req.PricePerUnit)
	if err != nil || price.IsNegative() {
		writeErr(w, http.StatusBadRequest, "price_per_unit must be a non-negative decimal")
		return
	}
	if req.Seasonality == "" {
		req.Seasonality = "all"
	}

	f, err := h.Store.CreateFlower(r.Context(), inventory.FlowerType{
		Name:         req.Name,
		Color:        req.Color,
		Seasonality:  req.Seasonality,
		PricePerUnit: price,
		Description:  req.Description,
	})
	if err != nil {
		h.Log.Error("create flower failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not create flower type")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"flower": viewFlower(f)})
}

func (h *InventoryHandler) listFlowers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListFlowers(r.Context())
	if err != nil {
		h.Log.Error("list flowers failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not list flower types")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flowers": viewFlowers(list)})
}

// getFlower serves both the public route and the unauthenticated internal
// one; the order service prices items through the latter.
func (h *InventoryHandler) getFlower(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	f, err := h.Store.GetFlower(r.Context(), id)
	if errors.Is(err, inventory.ErrFlowerNotFound) {
		writeErr(w, http.StatusNotFound, "flower type not found")
		return
	}
	if err != nil {
		h.Log.Error("get flower failed", zap.Int64("id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flower": viewFlower(f)})
}

func (h *InventoryHandler) createLot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FlowerTypeID int64  `json:"flower_type_id"`
		Quantity     int    `json:"quantity"`
		ExpiryDate   string `json:"expiry_date"`
		ReceivedDate string `json:"received_date"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FlowerTypeID <= 0 || req.Quantity <= 0 {
		writeErr(w, http.StatusBadRequest, "flower_type_id and a positive quantity are required")
		return
	}
	expiry, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "expiry_date must be YYYY-MM-DD")
		return
	}
	var received time.Time
	if req.ReceivedDate != "" {
		if received, err = time.Parse(dateLayout, req.ReceivedDate); err != nil {
			writeErr(w, http.StatusBadRequest, "received_date must be YYYY-MM-DD")
			return
		}
	}

	l, err := h.Store.CreateLot(r.Context(), inventory.Lot{
		FlowerTypeID: req.FlowerTypeID,
		Quantity:     req.Quantity,
		ExpiryDate:   expiry,
		ReceivedDate: received,
	})
	if errors.Is(err, inventory.ErrFlowerNotFound) {
		writeErr(w, http.StatusBadRequest, "flower type not found")
		return
	}
	if err != nil {
		h.Log.Error("create lot failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not create lot")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"lot": viewLot(l)})
}

func (h *InventoryHandler) getLot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.Store.GetLot(r.Context(), id)
	if errors.Is(err, inventory.ErrLotNotFound) {
		writeErr(w, http.StatusNotFound, "flower lot not found")
		return
	}
	if err != nil {
		h.Log.Error("get lot failed", zap.Int64("id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lot": viewLot(l)})
}

func (h *InventoryHandler) listLots(w http.ResponseWriter, r *http.Request) {
	status := inventory.LotStatus(r.URL.Query().Get("status"))
	var flowerTypeID int64
	if s := r.URL.Query().Get("flower_type_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid flower_type_id")
			return
		}
		flowerTypeID = id
	}

	list, err := h.Store.ListLots(r.Context(), status, flowerTypeID)
	if err != nil {
		h.Log.Error("list lots failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not list lots")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lots": viewLots(list)})
}

func (h *InventoryHandler) expiringLots(w http.ResponseWriter, r *http.Request) {
	days := 3
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = n
	}

	list, err := h.Store.ExpiringWithin(r.Context(), days)
	if err != nil {
		h.Log.Error("list expiring lots failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not list lots")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "lots": viewLots(list)})
}

func (h *InventoryHandler) summary(w http.ResponseWriter, r *http.Request) {
	sums, err := h.Store.Summary(r.Context())
	if err != nil {
		h.Log.Error("inventory summary failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not build summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": sums})
}

type availabilityResult struct {
	FlowerTypeID int64 `json:"flower_type_id"`
	Quantity     int   `json:"quantity"`
	Available    bool  `json:"available"`
}

// available answers the pre-payment hint for one or more (flower_type_id,
// quantity) query pairs. It takes no locks.
func (h *InventoryHandler) available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := q["flower_type_id"]
	qtys := q["quantity"]
	if len(ids) == 0 || len(ids) != len(qtys) {
		writeErr(w, http.StatusBadRequest, "flower_type_id and quantity params must come in pairs")
		return
	}

	all := true
	results := make([]availabilityResult, 0, len(ids))
	for i := range ids {
		id, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid flower_type_id")
			return
		}
		qty, err := strconv.Atoi(qtys[i])
		if err != nil || qty <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid quantity")
			return
		}
		ok, err := h.Alloc.CheckAvailable(r.Context(), id, qty)
		if err != nil {
			h.Log.Error("availability check failed", zap.Int64("flower_type_id", id), zap.Error(err))
			writeErr(w, http.StatusInternalServerError, "availability check failed")
			return
		}
		all = all && ok
		results = append(results, availabilityResult{FlowerTypeID: id, Quantity: qty, Available: ok})
	}
	writeJSON(w, http.StatusOK, map[string]any{"all_available": all, "results": results})
}

// reduce commits stock for a batch under row locks. A shortfall comes back
// as 409 with the per-type detail and zero mutations.
func (h *InventoryHandler) reduce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []orders.ItemRequest `json:"items"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeErr(w, http.StatusBadRequest, "items are required")
		return
	}
	for _, it := range req.Items {
		if it.FlowerTypeID <= 0 || it.Quantity <= 0 {
			writeErr(w, http.StatusBadRequest, "each item needs a flower_type_id and a positive quantity")
			return
		}
	}

	report, err := h.Alloc.Reduce(r.Context(), req.Items)
	if err != nil {
		var insufficient *inventory.InsufficientStockError
		if errors.As(err, &insufficient) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":      "insufficient stock",
				"shortfalls": insufficient.Shortfalls,
			})
			return
		}
		h.Log.Error("inventory reduce failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not reduce inventory")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reduced": report})
}
