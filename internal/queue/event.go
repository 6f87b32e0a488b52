// Package queue carries ticket lifecycle events over RabbitMQ.
package queue

const (
	TicketIssuedQueue   = "ticket.issued"
	ReconciliationQueue = "ticket.reconciliation"
)

// TicketIssuedEvent is published after a ticket is committed.  It carries
// enough for downstream consumers to log or notify without reading the
// primary database.
type TicketIssuedEvent struct {
	TicketID    string `json:"ticket_id"`
	EventID     string `json:"event_id"`
	EventTitle  string `json:"event_title"`
	TierID      string `json:"tier_id"`
	TierName    string `json:"tier_name"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Quantity    int    `json:"quantity"`
	AmountMinor int64  `json:"amount_minor"`
	Reference   string `json:"reference,omitempty"`
	IssuedAt    string `json:"issued_at"`
}

// ReconciliationEvent is published when a verified payment could not be
// fulfilled and needs a refund or manual allocation.
type ReconciliationEvent struct {
	CaseID      string `json:"case_id"`
	Reference   string `json:"reference"`
	EventID     string `json:"event_id"`
	TierID      string `json:"tier_id"`
	BuyerID     string `json:"buyer_id"`
	Quantity    int    `json:"quantity"`
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`
	OpenedAt    string `json:"opened_at"`
}
