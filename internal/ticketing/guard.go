package ticketing

import "github.com/iliyamo/adas-events/internal/model"

// Request is the input to Check.  Nil Remaining means the tier is
// unlimited; nil PurchaseLimit means there is no per-buyer cap.
type Request struct {
	Quantity      int
	Remaining     *int
	PurchaseLimit *int
	AlreadyBought int
}

// RequestFor builds a guard request for buying qty tickets of tier by a
// buyer who already holds prior tickets of it.
func RequestFor(tier model.TicketTier, qty, prior int) Request {
	return Request{
		Quantity:      qty,
		Remaining:     tier.Remaining,
		PurchaseLimit: tier.PurchaseLimit,
		AlreadyBought: prior,
	}
}

// Check admits or rejects a purchase.  It is pure: the writer runs it again
// under the tier row lock, and only that run is authoritative.
func Check(r Request) error {
	if r.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if r.Remaining != nil && r.Quantity > *r.Remaining {
		return ErrInsufficientInventory
	}
	if r.PurchaseLimit != nil && r.AlreadyBought+r.Quantity > *r.PurchaseLimit {
		return ErrPurchaseLimitExceeded
	}
	return nil
}
