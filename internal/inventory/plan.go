package inventory

// Take records how much was (or would be) drawn from one lot.
type Take struct {
	LotID         int64 `json:"lot_id"`
	QuantityTaken int   `json:"quantity_taken"`
}

// plan walks lots in the order given, drawing min(remaining, lot.Quantity)
// from each until the need is met. Lots must already be sorted
// oldest-expiring first (expiry_date, received_date, id) so the walk is
// deterministic and waste-minimizing. Returns the takes and whatever could
// not be satisfied.
func plan(lots []Lot, needed int) (takes []Take, remaining int) {
	remaining = needed
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		takes = append(takes, Take{LotID: lot.ID, QuantityTaken: take})
		remaining -= take
	}
	return takes, remaining
}
