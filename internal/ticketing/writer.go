// Package ticketing turns purchase intents into attendee records.  It owns
// the inventory guard, the attendee ticket writer and the checkout flow
// that sits between buyers and the payment gateway.
package ticketing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/clock"
	"github.com/iliyamo/adas-events/internal/logging"
	"github.com/iliyamo/adas-events/internal/model"
)

const defaultMaxAttempts = 5

// Holder identifies who the ticket is issued to.
type Holder struct {
	UserID   string
	FullName string
	Email    string
	Phone    string
}

// Settlement is proof of a verified payment.  The zero value is the
// no-payment marker used for free registrations.
type Settlement struct {
	Reference   string
	AmountMinor int64
}

// NoPayment marks a free registration.
var NoPayment = Settlement{}

func (s Settlement) paid() bool { return s.Reference != "" }

type IssueInput struct {
	EventID  string
	TierID   string
	Holder   Holder
	Quantity int
	Payment  Settlement
}

// Issued is the outcome of a successful IssueTicket.  Created is false
// when the payment reference had already been settled and the existing
// ticket is returned.
type Issued struct {
	Attendee model.Attendee
	Event    model.Event
	Tier     model.TicketTier
	Created  bool
}

// Writer is the attendee ticket writer.  It is the only code path that
// decrements tier inventory.
type Writer struct {
	store       TicketStore
	ids         IDGenerator
	clock       clock.Clock
	notifier    Notifier
	logger      *zap.Logger
	maxAttempts int
}

type WriterOption func(*Writer)

// WithIDGenerator replaces the crypto/rand ticket id source.
func WithIDGenerator(g IDGenerator) WriterOption {
	return func(w *Writer) { w.ids = g }
}

// WithMaxAttempts bounds ticket id re-rolls on collision.
func WithMaxAttempts(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func WithNotifier(n Notifier) WriterOption {
	return func(w *Writer) {
		if n != nil {
			w.notifier = n
		}
	}
}

func WithClock(c clock.Clock) WriterOption {
	return func(w *Writer) { w.clock = c }
}

func NewWriter(store TicketStore, logger *zap.Logger, opts ...WriterOption) *Writer {
	w := &Writer{
		store:       store,
		ids:         RandomIDs{SuffixLen: DefaultSuffixLen},
		clock:       clock.NewSystem(),
		notifier:    nopNotifier{},
		logger:      logging.OrNop(logger).Named("ticket_writer"),
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// IssueTicket creates the attendee record and decrements inventory in one
// transaction.  The tier row is locked and the guard re-applied before any
// write.  When a verified payment fails the guard, or its event or tier no
// longer exists, the purchase escalates to a reconciliation case and a
// *SoldOutError is returned.
//
// Free registrations are keyed per user: registering again for the same
// tier returns the existing ticket with Created false.
func (w *Writer) IssueTicket(ctx context.Context, in IssueInput) (Issued, error) {
	if in.Quantity < 1 {
		return Issued{}, ErrInvalidQuantity
	}
	paid := in.Payment.paid()
	event, err := w.store.GetEvent(ctx, in.EventID)
	if err != nil {
		if paid && errors.Is(err, model.ErrEventNotFound) {
			return Issued{}, w.escalate(ctx, in, err)
		}
		return Issued{}, err
	}

	var (
		out      Issued
		rejected error
	)
	err = w.store.WithTx(ctx, func(ctx context.Context) error {
		tier, err := w.store.GetTierForUpdate(ctx, in.EventID, in.TierID)
		if err != nil {
			if errors.Is(err, model.ErrTierNotFound) {
				rejected = err
			}
			return err
		}

		if paid {
			existing, err := w.store.GetAttendeeByReference(ctx, in.Payment.Reference)
			if err != nil {
				return err
			}
			if existing != nil {
				out = Issued{Attendee: *existing, Event: event, Tier: tier}
				return nil
			}
		} else if !tier.IsFree() {
			return ErrPaymentRequired
		} else if in.Holder.UserID != "" {
			existing, err := w.store.GetFreeAttendee(ctx, in.EventID, tier.ID, in.Holder.UserID)
			if err != nil {
				return fmt.Errorf("lookup registration: %w", err)
			}
			if existing != nil {
				out = Issued{Attendee: *existing, Event: event, Tier: tier}
				return nil
			}
		}

		prior, err := w.store.SumPurchased(ctx, in.EventID, tier.ID, in.Holder.UserID)
		if err != nil {
			return fmt.Errorf("sum purchased: %w", err)
		}
		if err := Check(RequestFor(tier, in.Quantity, prior)); err != nil {
			rejected = err
			return err
		}

		att := model.Attendee{
			ID:          uuid.NewString(),
			EventID:     in.EventID,
			TierID:      tier.ID,
			UserID:      in.Holder.UserID,
			FullName:    in.Holder.FullName,
			Email:       in.Holder.Email,
			Phone:       in.Holder.Phone,
			Quantity:    in.Quantity,
			AmountMinor: in.Payment.AmountMinor,
			PurchasedAt: w.clock.Now(),
		}
		if paid {
			ref := in.Payment.Reference
			att.TransactionReference = &ref
		}

		if err := w.insert(ctx, &att); err != nil {
			if errors.Is(err, model.ErrDuplicateReference) {
				existing, lookupErr := w.store.GetAttendeeByReference(ctx, in.Payment.Reference)
				if lookupErr != nil || existing == nil {
					return err
				}
				out = Issued{Attendee: *existing, Event: event, Tier: tier}
				return nil
			}
			return err
		}

		if !tier.Unlimited() {
			ok, err := w.store.DecrementRemaining(ctx, tier.ID, in.Quantity)
			if err != nil {
				return fmt.Errorf("decrement remaining: %w", err)
			}
			if !ok {
				rejected = ErrInsufficientInventory
				return rejected
			}
			left := *tier.Remaining - in.Quantity
			tier.Remaining = &left
		}

		out = Issued{Attendee: att, Event: event, Tier: tier, Created: true}
		return nil
	})
	if err != nil {
		if paid && rejected != nil {
			return Issued{}, w.escalate(ctx, in, rejected)
		}
		return Issued{}, err
	}

	if out.Created {
		w.logger.Info("ticket issued",
			zap.String("event_id", out.Attendee.EventID),
			zap.String("tier_id", out.Attendee.TierID),
			zap.String("ticket_id", out.Attendee.TicketID),
			zap.Int("quantity", out.Attendee.Quantity),
		)
		if err := w.notifier.TicketIssued(ctx, out); err != nil {
			w.logger.Warn("ticket issued notification failed", zap.String("ticket_id", out.Attendee.TicketID), zap.Error(err))
		}
	}
	return out, nil
}

// insert writes the attendee, drawing a new ticket id whenever the
// previous one collides.
func (w *Writer) insert(ctx context.Context, att *model.Attendee) error {
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		id, err := w.ids.NewTicketID(att.EventID)
		if err != nil {
			return fmt.Errorf("generate ticket id: %w", err)
		}
		att.TicketID = id
		err = w.store.InsertAttendee(ctx, *att)
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrDuplicateTicketID) {
			return err
		}
		w.logger.Debug("ticket id collision", zap.String("ticket_id", id), zap.Int("attempt", attempt))
	}
	return ErrTicketIDExhausted
}

// escalate records a verified payment that could not be fulfilled.  The
// case is written outside the rolled-back purchase transaction.
func (w *Writer) escalate(ctx context.Context, in IssueInput, cause error) error {
	c := model.ReconciliationCase{
		ID:          uuid.NewString(),
		Reference:   in.Payment.Reference,
		EventID:     in.EventID,
		TierID:      in.TierID,
		BuyerID:     in.Holder.UserID,
		Quantity:    in.Quantity,
		AmountMinor: in.Payment.AmountMinor,
		Reason:      cause.Error(),
		Status:      "open",
		CreatedAt:   w.clock.Now(),
	}
	w.logger.Error("verified payment could not be fulfilled",
		zap.String("reference", c.Reference),
		zap.String("event_id", c.EventID),
		zap.String("tier_id", c.TierID),
		zap.String("buyer_id", c.BuyerID),
		zap.Int("quantity", c.Quantity),
		zap.Int64("amount_minor", c.AmountMinor),
		zap.String("case_id", c.ID),
		zap.Error(cause),
	)

	out := &SoldOutError{CaseID: c.ID, Reference: c.Reference, Cause: cause}
	bg := context.WithoutCancel(ctx)
	if err := w.store.CreateReconciliationCase(bg, c); err != nil {
		// The id was never stored; the error log above is all support has.
		w.logger.Error("persist reconciliation case", zap.String("case_id", c.ID), zap.Error(err))
		out.CaseID = ""
	}
	if err := w.notifier.ReconciliationOpened(bg, c); err != nil {
		w.logger.Warn("reconciliation notification failed", zap.String("case_id", c.ID), zap.Error(err))
	}
	return out
}
