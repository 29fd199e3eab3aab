package orders

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// pending -> pending_payment is the compensation leg: stock vanished
// between the availability check and the post-payment commit.
var validNext = map[Status]map[Status]bool{
	StatusPendingPayment: {StatusPending: true, StatusCancelled: true},
	StatusPending:        {StatusProcessing: true, StatusPendingPayment: true},
	StatusProcessing:     {StatusCompleted: true},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Cancellable reports whether an order may still be cancelled: only before
// money has moved. After payment success the refund path applies instead.
func Cancellable(st Status, ps PaymentStatus) bool {
	if st == StatusCompleted || st == StatusCancelled || st == StatusProcessing {
		return false
	}
	return ps == PaymentPending || ps == PaymentProcessing
}
