package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/orders"
	"github.com/bloomflow/fulfillment/internal/payment"
)

var (
	ErrEmptyOrder       = errors.New("order must contain at least one item")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrUnavailable      = errors.New("some items are not available in sufficient quantity")
	ErrNotPayable       = errors.New("order is not awaiting payment")
	ErrCancelNotAllowed = errors.New("order can no longer be cancelled")

	// ErrFulfillmentFailed is the serious one: money has moved but the
	// stock could not be committed. It requires manual reconciliation or
	// a refund, never silent completion.
	ErrFulfillmentFailed = errors.New("payment succeeded but stock could not be committed")

	// ErrPaidAfterCancel: the gateway confirmed payment for an order that
	// was legally cancelled while the intent was outstanding. The order
	// stays cancelled; the money goes back through the refund path.
	ErrPaidAfterCancel = errors.New("payment succeeded for a cancelled order; refund required")
)

// Capability interfaces injected into the Coordinator. The concrete
// implementations live in orders (Ledger, dispatchers), catalog and
// payment; workers construct a Coordinator with only the fields their
// path touches.

type Ledger interface {
	Create(ctx context.Context, userID int64, notes string, items []orders.OrderItem, total decimal.Decimal) (orders.Order, error)
	Get(ctx context.Context, orderID int64) (orders.Order, error)
	ByPaymentRef(ctx context.Context, ref string) (orders.Order, error)
	SetPaymentRef(ctx context.Context, orderID int64, ref string) error
	SetPayment(ctx context.Context, orderID int64, st orders.Status, ps orders.PaymentStatus) error
	MarkPaid(ctx context.Context, orderID int64) (bool, error)
	Transition(ctx context.Context, orderID int64, from, to orders.Status) error
}

type Inventory interface {
	Available(ctx context.Context, items []orders.ItemRequest) (bool, error)
	Reduce(ctx context.Context, items []orders.ItemRequest) error
}

type Catalog interface {
	Price(ctx context.Context, flowerTypeID int64) (decimal.Decimal, error)
}

type Tasks interface {
	EnqueueAssembly(ctx context.Context, task orders.AssemblyTask) error
}

type Notes interface {
	Notify(ctx context.Context, typ string, orderID, userID int64) error
}

// Coordinator drives an order from creation through payment confirmation,
// inventory commit, queue dispatch and completion or cancellation. Orders
// are single-writer: each step is triggered by a distinct sequential
// external event, so steps guard on durable state, not in-process locks.
type Coordinator struct {
	Ledger    Ledger
	Inventory Inventory
	Catalog   Catalog
	Payments  payment.Gateway
	Tasks     Tasks
	Notes     Notes
	Log       *zap.Logger
}

// CreateOrder validates and prices the order and persists it awaiting
// payment. Inventory is not reserved here: reservation happens only at
// payment success, so unpaid carts never hold locks.
func (c *Coordinator) CreateOrder(ctx context.Context, userID int64, notes string, items []orders.ItemRequest) (orders.Order, error) {
	if len(items) == 0 {
		return orders.Order{}, ErrEmptyOrder
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return orders.Order{}, fmt.Errorf("%w: flower_type %d", ErrInvalidQuantity, it.FlowerTypeID)
		}
	}

	ok, err := c.Inventory.Available(ctx, items)
	if err != nil {
		return orders.Order{}, fmt.Errorf("availability check: %w", err)
	}
	if !ok {
		return orders.Order{}, ErrUnavailable
	}

	total := decimal.Zero
	rows := make([]orders.OrderItem, 0, len(items))
	for _, it := range items {
		price, err := c.Catalog.Price(ctx, it.FlowerTypeID)
		if err != nil {
			return orders.Order{}, fmt.Errorf("price flower_type %d: %w", it.FlowerTypeID, err)
		}
		subtotal := price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		rows = append(rows, orders.OrderItem{
			FlowerTypeID: it.FlowerTypeID,
			Quantity:     it.Quantity,
			UnitPrice:    price,
			Subtotal:     subtotal,
		})
		total = total.Add(subtotal)
	}

	o, err := c.Ledger.Create(ctx, userID, notes, rows, total)
	if err != nil {
		return orders.Order{}, err
	}
	c.Log.Info("order created",
		zap.Int64("order_id", o.ID), zap.Int64("user_id", userID),
		zap.String("total", total.String()))
	return o, nil
}

// CreatePaymentIntent registers a payment intent with the gateway and
// records its id as the order's payment reference.
func (c *Coordinator) CreatePaymentIntent(ctx context.Context, orderID int64) (payment.Intent, error) {
	o, err := c.Ledger.Get(ctx, orderID)
	if err != nil {
		return payment.Intent{}, err
	}
	if o.Status != orders.StatusPendingPayment || o.PaymentStatus == orders.PaymentSucceeded {
		return payment.Intent{}, ErrNotPayable
	}

	intent, err := c.Payments.CreateIntent(ctx, o.TotalPrice, o.ID, o.UserID)
	if err != nil {
		return payment.Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	if err := c.Ledger.SetPaymentRef(ctx, o.ID, intent.ID); err != nil {
		return payment.Intent{}, err
	}
	return intent, nil
}

// OnPaymentSucceeded is the payment-gateway callback. It is idempotent:
// MarkPaid atomically claims the success, so exactly one inventory commit
// happens per order no matter how many times the webhook is redelivered,
// and a cancelled order can never be resurrected by a late delivery.
func (c *Coordinator) OnPaymentSucceeded(ctx context.Context, orderID int64, paymentRef string) error {
	o, err := c.Ledger.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentStatus == orders.PaymentSucceeded {
		c.Log.Info("duplicate payment callback ignored", zap.Int64("order_id", o.ID))
		return nil
	}
	if o.Status == orders.StatusCancelled {
		c.Log.Error("payment succeeded for cancelled order", zap.Int64("order_id", o.ID))
		return fmt.Errorf("order %d: %w", o.ID, ErrPaidAfterCancel)
	}

	if paymentRef != "" && paymentRef != o.PaymentRef {
		if err := c.Ledger.SetPaymentRef(ctx, o.ID, paymentRef); err != nil {
			return err
		}
	}

	claimed, err := c.Ledger.MarkPaid(ctx, o.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// lost the claim since the read above: re-read to tell a
		// concurrent duplicate delivery from a concurrent cancellation
		o, err = c.Ledger.Get(ctx, o.ID)
		if err != nil {
			return err
		}
		if o.Status == orders.StatusCancelled {
			c.Log.Error("payment succeeded for cancelled order", zap.Int64("order_id", o.ID))
			return fmt.Errorf("order %d: %w", o.ID, ErrPaidAfterCancel)
		}
		c.Log.Info("duplicate payment callback ignored", zap.Int64("order_id", o.ID))
		return nil
	}
	c.notify(ctx, orders.NotifyOrderConfirmed, o)

	// Availability was only hinted at order time, so the stock may have
	// vanished since. That failure is surfaced, never swallowed: the
	// money has moved and someone has to reconcile or refund.
	if err := c.Inventory.Reduce(ctx, o.ItemRequests()); err != nil {
		if perr := c.Ledger.SetPayment(ctx, o.ID, orders.StatusPendingPayment, orders.PaymentFailed); perr != nil {
			c.Log.Error("compensation update failed", zap.Int64("order_id", o.ID), zap.Error(perr))
		}
		c.Log.Error("stock commit failed after payment", zap.Int64("order_id", o.ID), zap.Error(err))
		return fmt.Errorf("order %d: %w: %s", o.ID, ErrFulfillmentFailed, err)
	}

	c.notify(ctx, orders.NotifyOrderPaid, o)

	task := orders.AssemblyTask{OrderID: o.ID, Items: o.ItemRequests()}
	if err := c.Tasks.EnqueueAssembly(ctx, task); err != nil {
		// Inventory is committed; the order stays `pending` for the
		// reconciliation sweep to re-dispatch. The payment_status guard
		// above keeps a retried webhook from reducing stock again.
		c.Log.Error("assembly dispatch failed, order left pending",
			zap.Int64("order_id", o.ID), zap.Error(err))
		return nil
	}

	if err := c.Ledger.Transition(ctx, o.ID, orders.StatusPending, orders.StatusProcessing); err != nil {
		return err
	}
	c.Log.Info("order dispatched for assembly", zap.Int64("order_id", o.ID))
	return nil
}

// OnPaymentFailed marks the payment leg failed; the order stays payable.
// Terminal orders are left untouched.
func (c *Coordinator) OnPaymentFailed(ctx context.Context, orderID int64) error {
	o, err := c.Ledger.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentStatus == orders.PaymentSucceeded {
		// stale failure event after a success; don't clobber
		c.Log.Warn("payment failure event after success ignored", zap.Int64("order_id", o.ID))
		return nil
	}
	if o.Status == orders.StatusCancelled {
		// no money moved; nothing to do for a dead order
		c.Log.Info("payment failure for cancelled order ignored", zap.Int64("order_id", o.ID))
		return nil
	}
	return c.Ledger.SetPayment(ctx, o.ID, orders.StatusPendingPayment, orders.PaymentFailed)
}

// OnAssemblyCompleted is invoked from the worker path. Re-setting the
// same terminal status is a no-op, which is what makes redelivered
// assembly tasks safe.
func (c *Coordinator) OnAssemblyCompleted(ctx context.Context, orderID int64) error {
	o, err := c.Ledger.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status == orders.StatusCompleted {
		return nil
	}
	if o.Status == orders.StatusCancelled {
		return fmt.Errorf("order %d: cannot complete a cancelled order", o.ID)
	}
	// Usually processing -> completed; `pending` is also accepted because
	// the enqueue-then-mark ordering can crash between the two, and is
	// stepped through the machine rather than jumped over it.
	if o.Status == orders.StatusPending {
		if err := c.Ledger.Transition(ctx, o.ID, orders.StatusPending, orders.StatusProcessing); err != nil {
			return err
		}
	}
	if err := c.Ledger.Transition(ctx, o.ID, orders.StatusProcessing, orders.StatusCompleted); err != nil {
		return err
	}
	c.notify(ctx, orders.NotifyOrderCompleted, o)
	c.Log.Info("order completed", zap.Int64("order_id", o.ID))
	return nil
}

// Cancel is permitted only before money has moved. Anything later goes
// through the refund path, which is not this coordinator's job.
func (c *Coordinator) Cancel(ctx context.Context, orderID, requestorID int64) error {
	o, err := c.Ledger.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !orders.Cancellable(o.Status, o.PaymentStatus) {
		return ErrCancelNotAllowed
	}
	if err := c.Ledger.Transition(ctx, o.ID, o.Status, orders.StatusCancelled); err != nil {
		// losing the race to a payment webhook means money moved first
		if errors.Is(err, orders.ErrConflict) || errors.Is(err, orders.ErrIllegalTransition) {
			return ErrCancelNotAllowed
		}
		return err
	}
	c.Log.Info("order cancelled", zap.Int64("order_id", o.ID), zap.Int64("requestor", requestorID))
	return nil
}

// notify is best-effort: a lost notification is logged and never blocks
// or fails the saga step that emitted it.
func (c *Coordinator) notify(ctx context.Context, typ string, o orders.Order) {
	if c.Notes == nil {
		return
	}
	if err := c.Notes.Notify(ctx, typ, o.ID, o.UserID); err != nil {
		c.Log.Warn("notification publish failed",
			zap.String("type", typ), zap.Int64("order_id", o.ID), zap.Error(err))
	}
}
