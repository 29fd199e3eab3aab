package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/orders"
	"github.com/bloomflow/fulfillment/internal/rabbitmq"
	"github.com/bloomflow/fulfillment/internal/redisx"
)

// Sender delivers one notification to the user-facing channel (email,
// push, whatever sits behind it).
type Sender interface {
	Send(ctx context.Context, ev orders.NotificationEvent) error
}

// LogSender is the default delivery channel: it writes the notification
// to the structured log. Real channels plug in behind the same interface.
type LogSender struct{ Log *zap.Logger }

func (s *LogSender) Send(_ context.Context, ev orders.NotificationEvent) error {
	s.Log.Info("notification",
		zap.String("type", ev.Type),
		zap.Int64("order_id", ev.OrderID),
		zap.Int64("user_id", ev.UserID))
	return nil
}

// Dispatcher consumes notification events. Events are delivered at least
// once; the Redis-backed dedup key (type, order_id) collapses redeliveries
// so a user never gets the same notification twice.
type Dispatcher struct {
	Sender Sender
	Dedup  redisx.Deduper
	Log    *zap.Logger
}

func (d *Dispatcher) Handle(ctx context.Context, body []byte) rabbitmq.Disposition {
	ev, err := orders.DecodeNotificationEvent(body)
	if err != nil {
		d.Log.Error("dropping malformed notification", zap.Error(err))
		return rabbitmq.Drop
	}
	if !orders.KnownNotification(ev.Type) {
		d.Log.Error("dropping notification of unknown type", zap.String("type", ev.Type))
		return rabbitmq.Drop
	}
	if ev.OrderID == 0 {
		d.Log.Error("dropping notification without order_id", zap.String("type", ev.Type))
		return rabbitmq.Drop
	}

	key := fmt.Sprintf(redisx.KeyDedup, "notifier", ev.Type, ev.OrderID)
	seen, err := d.Dedup.Seen(ctx, key)
	if err != nil {
		// Redis down: deliver anyway. A rare duplicate notification beats
		// holding every notification hostage to the dedup store.
		d.Log.Warn("dedup check failed, delivering anyway", zap.Error(err))
	} else if seen {
		d.Log.Debug("duplicate notification suppressed",
			zap.String("type", ev.Type), zap.Int64("order_id", ev.OrderID))
		return rabbitmq.Ack
	}

	if err := d.Sender.Send(ctx, ev); err != nil {
		d.Log.Warn("send failed, requeueing",
			zap.String("type", ev.Type), zap.Int64("order_id", ev.OrderID), zap.Error(err))
		return rabbitmq.Requeue
	}

	// mark only after a successful send, so a crash in between redelivers
	if err := d.Dedup.Mark(ctx, key); err != nil {
		d.Log.Warn("dedup mark failed", zap.Error(err))
	}
	return rabbitmq.Ack
}
