package model

import "time"

// TicketStatus is the one-way ticket lifecycle: issued, then validated at
// the door.
type TicketStatus string

const (
    TicketIssued    TicketStatus = "issued"
    TicketValidated TicketStatus = "validated"
)

// Attendee is one purchase or free registration.  TicketID is the public
// admission token `<eventID>-<suffix>`; it is unique across the store and
// never reused.  TransactionReference is nil for free registrations and
// unique otherwise, which is what makes payment verification idempotent.
type Attendee struct {
    ID                   string     `json:"id"`
    EventID              string     `json:"eventId"`
    TierID               string     `json:"tierId"`
    UserID               string     `json:"userId"`
    FullName             string     `json:"fullName"`
    Email                string     `json:"email"`
    Phone                string     `json:"phone"`
    Quantity             int        `json:"quantity"`
    TicketID             string     `json:"ticketId"`
    TransactionReference *string    `json:"transactionReference"`
    AmountMinor          int64      `json:"amountMinor"`
    PurchasedAt          time.Time  `json:"purchasedAt"`
    Validated            bool       `json:"validated"`
    ValidatedAt          *time.Time `json:"validatedAt,omitempty"`
}

func (a Attendee) Status() TicketStatus {
    if a.Validated {
        return TicketValidated
    }
    return TicketIssued
}

// Reference returns the transaction reference or "" for free tickets.
func (a Attendee) Reference() string {
    if a.TransactionReference == nil {
        return ""
    }
    return *a.TransactionReference
}
