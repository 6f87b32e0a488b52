package ticketing

import (
	"context"

	"github.com/iliyamo/adas-events/internal/gateway"
	"github.com/iliyamo/adas-events/internal/model"
)

// Tx runs fn in a transaction carried by the context it passes to fn.
// Store calls made with that context join the transaction.
type Tx interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TicketStore is what the writer needs from the event store.
type TicketStore interface {
	Tx
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	// GetTierForUpdate reads the tier and locks its row until the
	// surrounding transaction ends.
	GetTierForUpdate(ctx context.Context, eventID, tierID string) (model.TicketTier, error)
	SumPurchased(ctx context.Context, eventID, tierID, userID string) (int, error)
	// DecrementRemaining lowers remaining by qty only if at least qty is
	// left.  It reports false when the conditional update matched nothing.
	DecrementRemaining(ctx context.Context, tierID string, qty int) (bool, error)
	InsertAttendee(ctx context.Context, a model.Attendee) error
	// GetAttendeeByReference returns nil, nil when no attendee holds ref.
	GetAttendeeByReference(ctx context.Context, ref string) (*model.Attendee, error)
	// GetFreeAttendee returns the user's unpaid ticket for the tier, or
	// nil, nil when they have not registered.
	GetFreeAttendee(ctx context.Context, eventID, tierID, userID string) (*model.Attendee, error)
	CreateReconciliationCase(ctx context.Context, c model.ReconciliationCase) error
}

// CheckoutStore is what checkout needs on top of the writer's store.
type CheckoutStore interface {
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	SumPurchased(ctx context.Context, eventID, tierID, userID string) (int, error)
	GetAttendeeByReference(ctx context.Context, ref string) (*model.Attendee, error)
	GetPaymentSetup(ctx context.Context, creatorID string) (*model.PaymentSetup, error)
	CreatePayment(ctx context.Context, p model.Payment) error
	GetPayment(ctx context.Context, ref string) (model.Payment, error)
	UpdatePaymentStatus(ctx context.Context, ref string, status model.PaymentStatus) error
	GetReconciliationCaseByReference(ctx context.Context, ref string) (*model.ReconciliationCase, error)
}

// Gateway is the hosted payment provider.
type Gateway interface {
	Initialize(ctx context.Context, secretKey string, req gateway.InitializeRequest) (gateway.Session, error)
	Verify(ctx context.Context, secretKey, reference string) (gateway.Transaction, error)
}

// KeyOpener unseals an organizer's stored secret key.
type KeyOpener interface {
	Open(sealed []byte) (string, error)
}

// Notifier receives ticket lifecycle events after commit.  Failures are
// logged and never undo a committed ticket.
type Notifier interface {
	TicketIssued(ctx context.Context, n Issued) error
	ReconciliationOpened(ctx context.Context, c model.ReconciliationCase) error
}

type nopNotifier struct{}

func (nopNotifier) TicketIssued(context.Context, Issued) error { return nil }
func (nopNotifier) ReconciliationOpened(context.Context, model.ReconciliationCase) error {
	return nil
}
