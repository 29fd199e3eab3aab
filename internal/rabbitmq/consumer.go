package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Disposition is the handler's verdict on a delivery.
type Disposition int

const (
	// Ack commits the message. Also used to discard poison messages the
	// handler has decided to drop after logging.
	Ack Disposition = iota
	// Requeue nacks with requeue=true: transient failure, redeliver.
	Requeue
	// Drop nacks with requeue=false: permanent failure, do not redeliver.
	Drop
)

// Handler processes one delivery body. It must be idempotent: deliveries
// are at-least-once and a worker can die mid-message.
type Handler func(ctx context.Context, body []byte) Disposition

// Consumer drains a single durable queue with prefetch=1, so exactly one
// message is in flight per consumer slot.
type Consumer struct {
	ch    *amqp.Channel
	queue string
	log   *zap.Logger
}

func NewConsumer(ch *amqp.Channel, queue string, log *zap.Logger) (*Consumer, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("could not declare queue %q: %w", queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("could not set prefetch: %w", err)
	}
	return &Consumer{ch: ch, queue: queue, log: log}, nil
}

// Start consumes until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	msgs, err := c.ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("could not start consume on %q: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %q closed", c.queue)
			}
			switch h(ctx, d.Body) {
			case Ack:
				if err := d.Ack(false); err != nil {
					c.log.Error("ack failed", zap.String("queue", c.queue), zap.Error(err))
				}
			case Requeue:
				if err := d.Nack(false, true); err != nil {
					c.log.Error("nack failed", zap.String("queue", c.queue), zap.Error(err))
				}
			case Drop:
				if err := d.Nack(false, false); err != nil {
					c.log.Error("nack failed", zap.String("queue", c.queue), zap.Error(err))
				}
			}
		}
	}
}
