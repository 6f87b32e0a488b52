package ticketing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrInsufficientInventory = errors.New("not enough tickets remaining")
	ErrPurchaseLimitExceeded = errors.New("purchase limit exceeded for this ticket")

	// ErrGatewayUnavailable means the organizer has not completed payment
	// setup.  It is actionable by the organizer, not the buyer.
	ErrGatewayUnavailable = errors.New("organizer has not completed payment setup")
	ErrVerificationFailed = errors.New("payment could not be verified")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	// ErrGatewayDown is a gateway outage.  Unlike ErrVerificationFailed the
	// payment may still have gone through, so the buyer should retry.
	ErrGatewayDown = errors.New("payment gateway is unavailable")

	ErrSoldOut           = errors.New("tickets sold out after payment")
	ErrPaymentRequired   = errors.New("this ticket requires payment")
	ErrFreeTier          = errors.New("this ticket is free; register instead")
	ErrTicketIDExhausted = errors.New("could not allocate a unique ticket id")
)

// SoldOutError is returned when a verified payment cannot be turned into a
// ticket.  CaseID points at the reconciliation case opened for it.
type SoldOutError struct {
	CaseID    string
	Reference string
	Cause     error
}

func (e *SoldOutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: reference %s: %v", ErrSoldOut, e.Reference, e.Cause)
	}
	return fmt.Sprintf("%v: reference %s", ErrSoldOut, e.Reference)
}

func (e *SoldOutError) Unwrap() error { return ErrSoldOut }
