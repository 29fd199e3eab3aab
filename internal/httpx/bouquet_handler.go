package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/authx"
	"github.com/bloomflow/fulfillment/internal/bouquet"
	"github.com/bloomflow/fulfillment/internal/orders"
)

// BouquetHandler exposes the composition helper: budget-driven previews,
// pre-order validation and the rules table clients render pickers from.
type BouquetHandler struct {
	Builder *bouquet.Builder
	Log     *zap.Logger
}

func (h *BouquetHandler) Mount(r chi.Router, auth authx.Verifier) {
	r.Group(func(r chi.Router) {
		r.Use(authx.RequireAuth(auth))
		r.Get("/bouquet/preview", h.preview)
		r.Post("/bouquet/validate", h.validate)
		r.Get("/bouquet/rules", h.rules)
	})
}

func (h *BouquetHandler) preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	budget, err := decimal.NewFromString(q.Get("budget"))
	if err != nil || budget.Sign() <= 0 {
		writeErr(w, http.StatusBadRequest, "budget must be a positive decimal")
		return
	}

	var colors []string
	if raw := q.Get("colors"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				colors = append(colors, c)
			}
		}
	}

	configs, err := h.Builder.Preview(r.Context(), budget, colors, q.Get("season"))
	if errors.Is(err, bouquet.ErrBudgetRequired) {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("bouquet preview failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not build preview")
		return
	}
	if configs == nil {
		configs = []bouquet.Configuration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"budget":         budget,
		"configurations": configs,
	})
}

func (h *BouquetHandler) validate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []orders.ItemRequest `json:"items"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Builder.Validate(r.Context(), req.Items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"valid":   false,
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"message": "bouquet configuration is valid",
	})
}

func (h *BouquetHandler) rules(w http.ResponseWriter, r *http.Request) {
	lim := h.Builder.Limits
	if lim == (bouquet.Limits{}) {
		lim = bouquet.DefaultLimits
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"limits": map[string]int{
			"min_flowers": lim.MinFlowers,
			"max_flowers": lim.MaxFlowers,
			"min_types":   lim.MinTypes,
			"max_types":   lim.MaxTypes,
		},
		"color_compatibility": bouquet.ColorMatrix(),
		"seasons":             bouquet.SeasonTable(),
	})
}
