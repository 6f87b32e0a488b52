package model

import "errors"

// Lookup failures shared by the repository, ticketing and handler layers.
// Repositories return these instead of sql.ErrNoRows so callers never
// depend on database/sql.
var (
    ErrEventNotFound       = errors.New("event not found")
    ErrTierNotFound        = errors.New("ticket tier not found")
    ErrTicketNotFound      = errors.New("ticket not found")
    ErrPaymentNotFound     = errors.New("payment not found")
    ErrPollNotFound        = errors.New("poll not found")
    ErrPaymentSetupMissing = errors.New("payment setup not found")
)

// Unique-key violations surfaced by the attendee store.  The writer relies
// on telling the two apart: a ticket id clash is re-rolled, a reference
// clash means the payment was already settled.
var (
    ErrDuplicateTicketID  = errors.New("duplicate ticket id")
    ErrDuplicateReference = errors.New("duplicate transaction reference")
)

// ErrForbidden is returned when the caller acts on an event or poll they do
// not own or may not write to.  Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// Tier and ticket state conflicts.
var (
    // ErrQuantityBelowSold rejects a capacity edit that would drop below
    // the tickets already issued.
    ErrQuantityBelowSold = errors.New("quantity is below tickets already sold")
    // ErrAlreadyValidated is returned by a second check-in of one ticket.
    ErrAlreadyValidated = errors.New("ticket already validated")
    // ErrPaymentsInFlight blocks deleting an event while a buyer may
    // still be paying for one of its tickets.
    ErrPaymentsInFlight = errors.New("event has payments in progress")
)
