package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingPayment, StatusPending, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusPendingPayment, StatusProcessing, false},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusPendingPayment, true}, // stock-commit failure rollback
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusCancelled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestCancellable(t *testing.T) {
	assert.True(t, Cancellable(StatusPendingPayment, PaymentPending))
	assert.True(t, Cancellable(StatusPendingPayment, PaymentProcessing))

	// money has moved: refund path, not cancellation
	assert.False(t, Cancellable(StatusPending, PaymentSucceeded))
	assert.False(t, Cancellable(StatusPendingPayment, PaymentSucceeded))

	// inventory committed or terminal
	assert.False(t, Cancellable(StatusProcessing, PaymentSucceeded))
	assert.False(t, Cancellable(StatusCompleted, PaymentSucceeded))
	assert.False(t, Cancellable(StatusCancelled, PaymentPending))
}
