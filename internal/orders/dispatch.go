package orders

import (
	"context"
	"encoding/json"
)

// QueuePublisher is the slice of the broker the dispatchers need.
// *rabbitmq.Publisher satisfies it.
type QueuePublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// TaskDispatcher hands assembly work to the worker queue.
type TaskDispatcher struct{ Queue QueuePublisher }

func (d *TaskDispatcher) EnqueueAssembly(ctx context.Context, task AssemblyTask) error {
	b, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return d.Queue.Publish(ctx, b)
}

// NotificationDispatcher publishes milestone events for the notifier.
type NotificationDispatcher struct{ Queue QueuePublisher }

func (d *NotificationDispatcher) Notify(ctx context.Context, typ string, orderID, userID int64) error {
	b, err := json.Marshal(NotificationEvent{Type: typ, OrderID: orderID, UserID: userID})
	if err != nil {
		return err
	}
	return d.Queue.Publish(ctx, b)
}
