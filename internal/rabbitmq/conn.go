package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bloomflow/fulfillment/internal/retry"
)

// Dial connects to the broker under the retry policy and opens a channel.
func Dial(ctx context.Context, url string, policy retry.Policy) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	err := policy.Do(ctx, func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}
	return conn, ch, nil
}
