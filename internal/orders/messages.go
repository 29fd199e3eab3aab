package orders

import (
	"encoding/json"
	"fmt"
)

// Queue message types. Both are delivered at least once; consumers key
// their idempotency on (type, order_id).

const (
	NotifyOrderConfirmed = "order_confirmed"
	NotifyOrderPaid      = "order_paid"
	NotifyOrderCompleted = "order_completed"
)

type AssemblyTask struct {
	OrderID int64         `json:"order_id"`
	Items   []ItemRequest `json:"items"`
}

type NotificationEvent struct {
	Type    string `json:"type"`
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
}

func KnownNotification(typ string) bool {
	switch typ {
	case NotifyOrderConfirmed, NotifyOrderPaid, NotifyOrderCompleted:
		return true
	}
	return false
}

func DecodeAssemblyTask(b []byte) (AssemblyTask, error) {
	var t AssemblyTask
	if err := json.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("decode assembly task: %w", err)
	}
	return t, nil
}

func DecodeNotificationEvent(b []byte) (NotificationEvent, error) {
	var ev NotificationEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, fmt.Errorf("decode notification event: %w", err)
	}
	return ev, nil
}
