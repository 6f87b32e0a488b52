// Package gateway talks to the hosted payment gateway.  Callers pass the
// organizer's secret key per call because every event is paid out to its
// own creator's account.
package gateway

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout means the gateway did not answer in time.  The outcome of
	// the call is unknown and the caller may retry.
	ErrTimeout = errors.New("gateway: request timed out")
	// ErrRejected means the gateway answered and refused the request, for
	// example an unknown reference or a bad key.
	ErrRejected = errors.New("gateway: request rejected")
	// ErrUnavailable means the gateway could not be reached or answered
	// with a server error or an unreadable body.  Like ErrTimeout the
	// outcome is unknown and the caller may retry.
	ErrUnavailable = errors.New("gateway: service unavailable")
)

// APIError carries the gateway's own status and message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: http %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ErrRejected }

// Metadata is attached to a transaction at creation and returned verbatim
// by verification.  Only what verification returns is trusted.
type Metadata struct {
	EventID  string `json:"eventId"`
	TierID   string `json:"ticketId"`
	BuyerID  string `json:"userId"`
	Quantity int    `json:"quantity"`
}

type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    Metadata
}

// Session is where the buyer is sent to pay.
type Session struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Transaction is the gateway's view of a payment.
type Transaction struct {
	Reference   string
	Status      string
	AmountMinor int64
	Currency    string
	PaidAt      *time.Time
	Metadata    Metadata
}

// Succeeded reports whether the buyer was charged.
func (t Transaction) Succeeded() bool { return t.Status == "success" }
