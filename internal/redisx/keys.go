package redisx

import "time"

const (
	// Cache order status: order_status:{order_id} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%d"

	// Consumer dedup: dedup:{consumer}:{event_type}:{order_id}
	KeyDedup = "dedup:%s:%s:%d"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
