package assembly

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/orders"
	"github.com/bloomflow/fulfillment/internal/rabbitmq"
)

// Completer marks an order's assembly done; in production this is the
// saga coordinator.
type Completer interface {
	OnAssemblyCompleted(ctx context.Context, orderID int64) error
}

// Worker assembles bouquets off the task queue. Tasks arrive at least
// once; completion is idempotent on the coordinator side, so a redelivery
// costs one extra no-op update and nothing else.
type Worker struct {
	Orders Completer
	Delay  time.Duration // simulated assembly time per task
	Log    *zap.Logger
}

// Handle is the queue handler for one assembly task.
func (w *Worker) Handle(ctx context.Context, body []byte) rabbitmq.Disposition {
	task, err := orders.DecodeAssemblyTask(body)
	if err != nil {
		// poison: redelivery can't fix a malformed body
		w.Log.Error("dropping malformed assembly task", zap.Error(err))
		return rabbitmq.Drop
	}
	if task.OrderID == 0 {
		w.Log.Error("dropping assembly task without order_id", zap.ByteString("body", body))
		return rabbitmq.Drop
	}

	w.Log.Info("assembling order",
		zap.Int64("order_id", task.OrderID), zap.Int("items", len(task.Items)))

	if w.Delay > 0 {
		select {
		case <-ctx.Done():
			return rabbitmq.Requeue
		case <-time.After(w.Delay):
		}
	}

	if err := w.Orders.OnAssemblyCompleted(ctx, task.OrderID); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			w.Log.Error("dropping task for unknown order", zap.Int64("order_id", task.OrderID))
			return rabbitmq.Drop
		}
		w.Log.Warn("completion failed, requeueing",
			zap.Int64("order_id", task.OrderID), zap.Error(err))
		return rabbitmq.Requeue
	}
	return rabbitmq.Ack
}
