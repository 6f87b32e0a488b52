package model

import "time"

// PaymentStatus tracks a checkout from creation at the gateway to its
// outcome.  sold_out marks a verified payment whose ticket could not be
// issued; such payments always have a reconciliation case.
type PaymentStatus string

const (
    PaymentPending   PaymentStatus = "pending"
    PaymentSucceeded PaymentStatus = "succeeded"
    PaymentFailed    PaymentStatus = "failed"
    PaymentSoldOut   PaymentStatus = "sold_out"
)

// Payment is the local record of a gateway transaction, keyed by the
// reference we generate.  Verification cross-checks the gateway's amount
// and metadata against it.  CreatorID is copied from the event so the
// organizer's keys can be found after the event is gone.
type Payment struct {
    Reference        string        `json:"reference"`
    EventID          string        `json:"eventId"`
    CreatorID        string        `json:"creatorId"`
    TierID           string        `json:"tierId"`
    BuyerID          string        `json:"buyerId"`
    BuyerEmail       string        `json:"email"`
    FullName         string        `json:"fullName"`
    Phone            string        `json:"phone"`
    Quantity         int           `json:"quantity"`
    AmountMinor      int64         `json:"amountMinor"`
    Currency         string        `json:"currency"`
    Status           PaymentStatus `json:"status"`
    CreatedAt        time.Time     `json:"createdAt"`
    UpdatedAt        time.Time     `json:"updatedAt"`
}

// PaymentSetup is an organizer's gateway credential.  The secret key is
// stored sealed and only opened when talking to the gateway.
type PaymentSetup struct {
    CreatorID       string
    PublicKey       string
    SecretKeySealed []byte
    CreatedAt       time.Time
    UpdatedAt       time.Time
}

// Complete reports whether checkout can be created with this setup.
func (p *PaymentSetup) Complete() bool {
    return p != nil && p.PublicKey != "" && len(p.SecretKeySealed) > 0
}

// ReconciliationCase records a verified payment that did not produce a
// ticket.  Cases are created outside the failed purchase transaction so
// they survive its rollback.
type ReconciliationCase struct {
    ID          string    `json:"id"`
    Reference   string    `json:"reference"`
    EventID     string    `json:"eventId"`
    TierID      string    `json:"tierId"`
    BuyerID     string    `json:"buyerId"`
    Quantity    int       `json:"quantity"`
    AmountMinor int64     `json:"amountMinor"`
    Reason      string    `json:"reason"`
    Status      string    `json:"status"`
    CreatedAt   time.Time `json:"createdAt"`
}
