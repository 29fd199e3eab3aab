package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrConflict means the row no longer matched the expected state when
	// a conditional update ran: a concurrent writer got there first.
	ErrConflict = errors.New("order was modified concurrently")

	ErrIllegalTransition = errors.New("illegal status transition")
)

// Ledger is the durable saga state: one row per order plus its immutable
// items. Orders are single-writer; each saga step runs in its own
// transaction, triggered by a distinct external event.
type Ledger struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, status, payment_status, total_price::text,
	COALESCE(payment_reference, ''), COALESCE(notes, ''), created_at, updated_at`

// Create persists the order and its items in one transaction.
func (l *Ledger) Create(ctx context.Context, userID int64, notes string, items []OrderItem, total decimal.Decimal) (Order, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o Order
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, status, payment_status, total_price, notes)
		VALUES ($1, $2, $3, $4::numeric, $5)
		RETURNING `+orderColumns,
		userID, StatusPendingPayment, PaymentPending, total.String(), notes,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, scanDecimal(&o.TotalPrice),
		&o.PaymentRef, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	for _, it := range items {
		var row OrderItem
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, flower_type_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric)
			RETURNING id`,
			o.ID, it.FlowerTypeID, it.Quantity, it.UnitPrice.String(), it.Subtotal.String(),
		).Scan(&row.ID)
		if err != nil {
			return Order{}, err
		}
		row.OrderID = o.ID
		row.FlowerTypeID = it.FlowerTypeID
		row.Quantity = it.Quantity
		row.UnitPrice = it.UnitPrice
		row.Subtotal = it.Subtotal
		o.Items = append(o.Items, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (l *Ledger) Get(ctx context.Context, orderID int64) (Order, error) {
	return l.getWhere(ctx, `id = $1`, orderID)
}

// ByPaymentRef resolves a payment-gateway webhook (keyed by intent id)
// back to its order.
func (l *Ledger) ByPaymentRef(ctx context.Context, ref string) (Order, error) {
	return l.getWhere(ctx, `payment_reference = $1`, ref)
}

func (l *Ledger) getWhere(ctx context.Context, where string, arg any) (Order, error) {
	var o Order
	err := l.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg).
		Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, scanDecimal(&o.TotalPrice),
			&o.PaymentRef, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	rows, err := l.DB.Query(ctx, `
		SELECT id, order_id, flower_type_id, quantity, unit_price::text, subtotal::text
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.FlowerTypeID, &it.Quantity,
			scanDecimal(&it.UnitPrice), scanDecimal(&it.Subtotal)); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// SetPaymentRef records the created payment intent and moves the payment
// leg to processing.
func (l *Ledger) SetPaymentRef(ctx context.Context, orderID int64, ref string) error {
	return l.exec(ctx, `
		UPDATE orders SET payment_reference = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1`, orderID, ref, PaymentProcessing)
}

// SetPayment updates status and payment_status together.
func (l *Ledger) SetPayment(ctx context.Context, orderID int64, st Status, ps PaymentStatus) error {
	return l.exec(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1`, orderID, st, ps)
}

// Transition moves status from -> to, enforcing the machine at the write
// site. The WHERE clause makes the step atomic: a row that already left
// `from` is not touched and the caller gets ErrConflict.
func (l *Ledger) Transition(ctx context.Context, orderID int64, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrIllegalTransition)
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, orderID, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// MarkPaid atomically claims the payment success for an order still
// awaiting payment. Returns false with no mutation when the order has
// already been paid or has left pending_payment (e.g. cancelled), which
// is what makes retried webhooks unable to double-commit or resurrect
// terminal orders.
func (l *Ledger) MarkPaid(ctx context.Context, orderID int64) (bool, error) {
	ct, err := l.DB.Exec(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND payment_status <> $3`,
		orderID, StatusPending, PaymentSucceeded, StatusPendingPayment)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (l *Ledger) exec(ctx context.Context, sql string, args ...any) error {
	ct, err := l.DB.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *Ledger) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return l.list(ctx, `WHERE user_id = $1`, userID)
}

func (l *Ledger) List(ctx context.Context) ([]Order, error) {
	return l.list(ctx, ``)
}

func (l *Ledger) list(ctx context.Context, where string, args ...any) ([]Order, error) {
	rows, err := l.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, scanDecimal(&o.TotalPrice),
			&o.PaymentRef, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// scanDecimal adapts a decimal column (selected as ::text) to pgx scanning.
type decimalScanner struct{ d *decimal.Decimal }

func scanDecimal(d *decimal.Decimal) decimalScanner { return decimalScanner{d} }

func (s decimalScanner) Scan(src any) error {
	switch v := src.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("scan decimal %q: %w", v, err)
		}
		*s.d = d
		return nil
	case []byte:
		return s.Scan(string(v))
	case nil:
		*s.d = decimal.Zero
		return nil
	default:
		return fmt.Errorf("scan decimal: unsupported type %T", src)
	}
}
