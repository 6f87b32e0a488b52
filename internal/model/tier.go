package model

import (
    "encoding/json"
    "time"
)

// TierState is the lifecycle of a ticket tier: available until a finite
// tier reaches zero remaining, then sold out.  Unlimited tiers never sell
// out.
type TierState string

const (
    TierAvailable TierState = "available"
    TierSoldOut   TierState = "sold_out"
)

// TicketTier is a priced category of admission within an event.
//
// Fields:
//  PriceMinor    – price per ticket in minor currency units; 0 means free.
//  Quantity      – total capacity; nil means unlimited.
//  Remaining     – unsold capacity; nil when Quantity is nil.  Never negative.
//  PurchaseLimit – maximum tickets one buyer may hold; nil means no limit.
type TicketTier struct {
    ID            string    `json:"id"`
    EventID       string    `json:"eventId"`
    Name          string    `json:"name"`
    PriceMinor    int64     `json:"priceMinor"`
    Quantity      *int      `json:"quantity"`
    Remaining     *int      `json:"remaining"`
    PurchaseLimit *int      `json:"purchaseLimit"`
    Position      int       `json:"-"`
    CreatedAt     time.Time `json:"-"`
    UpdatedAt     time.Time `json:"-"`
}

func (t TicketTier) IsFree() bool    { return t.PriceMinor == 0 }
func (t TicketTier) Unlimited() bool { return t.Quantity == nil }

// Sold is the number of tickets already issued from a finite tier.
func (t TicketTier) Sold() int {
    if t.Quantity == nil || t.Remaining == nil {
        return 0
    }
    return *t.Quantity - *t.Remaining
}

func (t TicketTier) State() TierState {
    if t.Remaining != nil && *t.Remaining <= 0 {
        return TierSoldOut
    }
    return TierAvailable
}

// MarshalJSON adds the derived state and free flag for clients.
func (t TicketTier) MarshalJSON() ([]byte, error) {
    type plain TicketTier
    return json.Marshal(struct {
        plain
        State  TierState `json:"state"`
        IsFree bool      `json:"isFree"`
    }{plain(t), t.State(), t.IsFree()})
}
