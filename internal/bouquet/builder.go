package bouquet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/inventory"
	"github.com/bloomflow/fulfillment/internal/orders"
)

var ErrBudgetRequired = errors.New("budget must be positive")

// Item is one line of a suggested configuration.
type Item struct {
	FlowerTypeID int64           `json:"flower_type_id"`
	FlowerName   string          `json:"flower_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Configuration is a priced bouquet suggestion within the limits.
type Configuration struct {
	Items        []Item          `json:"items"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	TotalFlowers int             `json:"total_flowers"`
	TypeCount    int             `json:"flower_types_count"`
}

// maxConfigurations caps how many suggestions a preview returns.
const maxConfigurations = 5

// Catalog and Stock are the slices of the inventory surface the builder
// composes over; *inventory.Store and *inventory.Allocator satisfy them.
type Catalog interface {
	ListFlowers(ctx context.Context) ([]inventory.FlowerType, error)
}

type Stock interface {
	CheckAvailable(ctx context.Context, flowerTypeID int64, quantity int) (bool, error)
}

// Builder suggests and validates bouquet compositions against the live
// catalog. Previews are hints, like the availability check: nothing is
// reserved until an order is paid.
type Builder struct {
	Catalog Catalog
	Stock   Stock
	Limits  Limits
	Log     *zap.Logger
}

func (b *Builder) limits() Limits {
	if b.Limits == (Limits{}) {
		return DefaultLimits
	}
	return b.Limits
}

// Preview filters the catalog by budget, color palette and season, then
// composes up to five configurations, cheapest first.
func (b *Builder) Preview(ctx context.Context, budget decimal.Decimal, colors []string, season string) ([]Configuration, error) {
	if budget.Sign() <= 0 {
		return nil, ErrBudgetRequired
	}

	flowers, err := b.Catalog.ListFlowers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flowers: %w", err)
	}

	lim := b.limits()
	filtered := filterFlowers(flowers, budget, colors, season, lim)
	configs := compose(filtered, budget, lim)
	b.Log.Debug("bouquet preview built",
		zap.Int("catalog", len(flowers)),
		zap.Int("eligible", len(filtered)),
		zap.Int("configurations", len(configs)))
	return configs, nil
}

// Validate checks a proposed composition against the limits and current
// availability. A nil return means the configuration is orderable right
// now; any other return carries the first reason it is not.
func (b *Builder) Validate(ctx context.Context, items []orders.ItemRequest) error {
	lim := b.limits()
	if len(items) == 0 {
		return errors.New("configuration must contain at least one item")
	}
	if len(items) < lim.MinTypes {
		return fmt.Errorf("configuration must contain at least %d flower types", lim.MinTypes)
	}

	total := 0
	for _, it := range items {
		if it.FlowerTypeID <= 0 || it.Quantity <= 0 {
			return errors.New("each item must have a valid flower_type_id and a positive quantity")
		}
		total += it.Quantity
	}
	if total < lim.MinFlowers {
		return fmt.Errorf("bouquet must contain at least %d flowers", lim.MinFlowers)
	}
	if total > lim.MaxFlowers {
		return fmt.Errorf("bouquet cannot contain more than %d flowers", lim.MaxFlowers)
	}

	for _, it := range items {
		ok, err := b.Stock.CheckAvailable(ctx, it.FlowerTypeID, it.Quantity)
		if err != nil {
			return fmt.Errorf("availability check for flower_type %d: %w", it.FlowerTypeID, err)
		}
		if !ok {
			return fmt.Errorf("flower type %d is not available in quantity %d", it.FlowerTypeID, it.Quantity)
		}
	}
	return nil
}

// filterFlowers applies the composition rules: affordable enough that a
// minimum bouquet fits the budget, in season, and compatible with the
// requested palette. Season and colors are skipped when not requested.
func filterFlowers(flowers []inventory.FlowerType, budget decimal.Decimal, colors []string, season string, lim Limits) []inventory.FlowerType {
	maxUnit := budget.Div(decimal.NewFromInt(int64(lim.MinFlowers)))

	var out []inventory.FlowerType
	for _, f := range flowers {
		if f.PricePerUnit.GreaterThan(maxUnit) {
			continue
		}
		if season != "" && !InSeason(f.Seasonality, season) {
			continue
		}
		if len(colors) > 0 && !matchesPalette(f.Color, colors) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func matchesPalette(color string, palette []string) bool {
	if color == "" {
		return true
	}
	for _, want := range palette {
		if ColorsCompatible(color, strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// compose builds candidate configurations from the cheapest n types for
// each n in [MinTypes, MaxTypes], splitting the budget evenly across the
// selected types. Selections where even one of each type busts the
// budget are skipped rather than returned over budget.
func compose(flowers []inventory.FlowerType, budget decimal.Decimal, lim Limits) []Configuration {
	if len(flowers) == 0 {
		return nil
	}

	sorted := append([]inventory.FlowerType(nil), flowers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PricePerUnit.Equal(sorted[j].PricePerUnit) {
			return sorted[i].PricePerUnit.LessThan(sorted[j].PricePerUnit)
		}
		return sorted[i].ID < sorted[j].ID
	})

	maxTypes := lim.MaxTypes
	if maxTypes > len(sorted) {
		maxTypes = len(sorted)
	}

	var configs []Configuration
	for n := lim.MinTypes; n <= maxTypes; n++ {
		selected := sorted[:n]

		unitSum := decimal.Zero
		for _, f := range selected {
			unitSum = unitSum.Add(f.PricePerUnit)
		}
		if unitSum.Sign() <= 0 {
			continue
		}

		// same count of each type: floor(budget / sum of unit prices)
		perType := int(budget.Div(unitSum).IntPart())
		if perType < 1 {
			continue // can't afford one of each
		}
		totalFlowers := perType * n
		if totalFlowers < lim.MinFlowers || totalFlowers > lim.MaxFlowers {
			continue
		}

		cfg := Configuration{TypeCount: n, TotalFlowers: totalFlowers, TotalPrice: decimal.Zero}
		for _, f := range selected {
			subtotal := f.PricePerUnit.Mul(decimal.NewFromInt(int64(perType)))
			cfg.Items = append(cfg.Items, Item{
				FlowerTypeID: f.ID,
				FlowerName:   f.Name,
				Quantity:     perType,
				UnitPrice:    f.PricePerUnit,
				Subtotal:     subtotal,
			})
			cfg.TotalPrice = cfg.TotalPrice.Add(subtotal)
		}
		configs = append(configs, cfg)
	}

	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].TotalPrice.LessThan(configs[j].TotalPrice)
	})
	if len(configs) > maxConfigurations {
		configs = configs[:maxConfigurations]
	}
	return configs
}
