package assembly

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/orders"
	"github.com/bloomflow/fulfillment/internal/rabbitmq"
)

type stubCompleter struct {
	err   error
	calls []int64
}

func (s *stubCompleter) OnAssemblyCompleted(_ context.Context, orderID int64) error {
	s.calls = append(s.calls, orderID)
	return s.err
}

func newWorker(c *stubCompleter) *Worker {
	return &Worker{Orders: c, Log: zap.NewNop()}
}

func TestHandleAcksOnSuccess(t *testing.T) {
	c := &stubCompleter{}
	w := newWorker(c)

	got := w.Handle(context.Background(), []byte(`{"order_id":42,"items":[{"flower_type_id":1,"quantity":2}]}`))
	assert.Equal(t, rabbitmq.Ack, got)
	assert.Equal(t, []int64{42}, c.calls)
}

func TestHandleDropsPoisonMessages(t *testing.T) {
	c := &stubCompleter{}
	w := newWorker(c)

	assert.Equal(t, rabbitmq.Drop, w.Handle(context.Background(), []byte(`not json`)))
	assert.Equal(t, rabbitmq.Drop, w.Handle(context.Background(), []byte(`{"items":[]}`)))
	assert.Empty(t, c.calls, "poison messages must never reach the coordinator")
}

func TestHandleDropsUnknownOrder(t *testing.T) {
	c := &stubCompleter{err: orders.ErrNotFound}
	w := newWorker(c)

	got := w.Handle(context.Background(), []byte(`{"order_id":9}`))
	assert.Equal(t, rabbitmq.Drop, got)
}

func TestHandleRequeuesTransientFailure(t *testing.T) {
	c := &stubCompleter{err: errors.New("db unavailable")}
	w := newWorker(c)

	got := w.Handle(context.Background(), []byte(`{"order_id":9}`))
	assert.Equal(t, rabbitmq.Requeue, got)
}
