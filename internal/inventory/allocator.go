package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/orders"
)

// Shortfall reports one product type that could not be satisfied.
type Shortfall struct {
	FlowerTypeID int64 `json:"flower_type_id"`
	Required     int   `json:"required"`
	Available    int   `json:"available"`
}

// InsufficientStockError is a reported business outcome, not a fault:
// the batch was rejected whole and no lot was mutated.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	var b strings.Builder
	b.WriteString("insufficient stock:")
	for _, s := range e.Shortfalls {
		fmt.Fprintf(&b, " flower_type %d need %d have %d;", s.FlowerTypeID, s.Required, s.Available)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Report maps flower type id to the lots drawn from for it.
type Report map[int64][]Take

// Allocator commits stock against lots. Correctness under concurrent
// callers rests on the row locks taken by the eligible-lot query, not on
// in-process mutual exclusion: multiple service instances run at once.
type Allocator struct {
	DB *pgxpool.Pool
	// StatementTimeout converts prolonged lock waits into a retryable
	// failure. Zero leaves the session default.
	StatementTimeout time.Duration
	Log              *zap.Logger
}

const eligibleLotsForUpdate = `
	SELECT id, flower_type_id, quantity, expiry_date, received_date, status
	FROM flower_lots
	WHERE flower_type_id = $1
	  AND status = 'available'
	  AND expiry_date >= CURRENT_DATE
	  AND quantity > 0
	ORDER BY expiry_date ASC, received_date ASC, id ASC
	FOR UPDATE`

// CheckAvailable is the pre-payment availability hint. It takes no locks;
// the authoritative check happens inside Reduce.
func (a *Allocator) CheckAvailable(ctx context.Context, flowerTypeID int64, quantity int) (bool, error) {
	var available int
	err := a.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM flower_lots
		WHERE flower_type_id = $1
		  AND status = 'available'
		  AND expiry_date >= CURRENT_DATE
		  AND quantity > 0`, flowerTypeID).Scan(&available)
	if err != nil {
		return false, err
	}
	return available >= quantity, nil
}

// Reduce commits the whole batch atomically: every eligible lot for every
// requested type is locked oldest-expiring first, totals are verified, and
// only then are quantities walked down. Any shortfall aborts the batch
// with zero mutations.
func (a *Allocator) Reduce(ctx context.Context, items []orders.ItemRequest) (Report, error) {
	merged := mergeItems(items)

	tx, err := a.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if a.StatementTimeout > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", a.StatementTimeout.Milliseconds()))
		if err != nil {
			return nil, err
		}
	}

	// Phase 1: lock and verify. Locks are scoped to the rows read, so
	// batches for unrelated flower types do not contend.
	lotsByType := make(map[int64][]Lot, len(merged))
	var shortfalls []Shortfall
	for _, it := range merged {
		lots, err := lockEligibleLots(ctx, tx, it.FlowerTypeID)
		if err != nil {
			return nil, fmt.Errorf("lock lots for flower_type %d: %w", it.FlowerTypeID, err)
		}
		total := 0
		for _, l := range lots {
			total += l.Quantity
		}
		if total < it.Quantity {
			shortfalls = append(shortfalls, Shortfall{
				FlowerTypeID: it.FlowerTypeID, Required: it.Quantity, Available: total,
			})
			continue
		}
		lotsByType[it.FlowerTypeID] = lots
	}
	if len(shortfalls) > 0 {
		// rollback via defer releases the locks
		return nil, &InsufficientStockError{Shortfalls: shortfalls}
	}

	// Phase 2: walk lots down in the locked order.
	report := make(Report, len(merged))
	for _, it := range merged {
		takes, remaining := plan(lotsByType[it.FlowerTypeID], it.Quantity)
		if remaining > 0 {
			// cannot happen after phase 1 verified the sum under lock
			return nil, fmt.Errorf("allocation underflow for flower_type %d", it.FlowerTypeID)
		}
		byID := make(map[int64]Lot, len(lotsByType[it.FlowerTypeID]))
		for _, l := range lotsByType[it.FlowerTypeID] {
			byID[l.ID] = l
		}
		for _, take := range takes {
			newQty := byID[take.LotID].Quantity - take.QuantityTaken
			status := LotAvailable
			if newQty == 0 {
				status = LotSold
			}
			_, err := tx.Exec(ctx, `
				UPDATE flower_lots SET quantity = $2, status = $3, updated_at = NOW()
				WHERE id = $1`, take.LotID, newQty, status)
			if err != nil {
				return nil, fmt.Errorf("update lot %d: %w", take.LotID, err)
			}
		}
		report[it.FlowerTypeID] = takes
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if a.Log != nil {
		a.Log.Info("inventory reduced", zap.Int("types", len(report)))
	}
	return report, nil
}

func lockEligibleLots(ctx context.Context, tx pgx.Tx, flowerTypeID int64) ([]Lot, error) {
	rows, err := tx.Query(ctx, eligibleLotsForUpdate, flowerTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.FlowerTypeID, &l.Quantity, &l.ExpiryDate, &l.ReceivedDate, &l.Status); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// mergeItems collapses duplicate flower types so a batch listing the same
// type twice cannot double-draw from one locked snapshot. First-appearance
// order is kept for deterministic locking.
func mergeItems(items []orders.ItemRequest) []orders.ItemRequest {
	idx := make(map[int64]int, len(items))
	out := make([]orders.ItemRequest, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.FlowerTypeID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.FlowerTypeID] = len(out)
		out = append(out, it)
	}
	return out
}
