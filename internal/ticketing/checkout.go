package ticketing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/clock"
	"github.com/iliyamo/adas-events/internal/gateway"
	"github.com/iliyamo/adas-events/internal/logging"
	"github.com/iliyamo/adas-events/internal/model"
)

const defaultGatewayTimeout = 15 * time.Second

// PurchaseInput is a buyer's request for tickets of one tier.
type PurchaseInput struct {
	EventID  string
	TierID   string
	Holder   Holder
	Quantity int
}

// CheckoutSession is returned to the buyer to complete payment on the
// gateway's hosted page.
type CheckoutSession struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"paymentUrl"`
	AccessCode       string `json:"accessCode"`
	PublicKey        string `json:"publicKey"`
	AmountMinor      int64  `json:"amountMinor"`
	Currency         string `json:"currency"`
}

// Checkout drives the paid purchase flow.  Nothing touches inventory until
// the gateway confirms the payment.
type Checkout struct {
	store       CheckoutStore
	gateway     Gateway
	keys        KeyOpener
	writer      *Writer
	clock       clock.Clock
	logger      *zap.Logger
	timeout     time.Duration
	callbackURL string
	currency    string
}

type CheckoutOption func(*Checkout)

// WithGatewayTimeout bounds every gateway call.
func WithGatewayTimeout(d time.Duration) CheckoutOption {
	return func(c *Checkout) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCallbackURL sets where the gateway redirects the buyer after paying.
func WithCallbackURL(u string) CheckoutOption {
	return func(c *Checkout) { c.callbackURL = u }
}

func WithCurrency(code string) CheckoutOption {
	return func(c *Checkout) { c.currency = code }
}

func WithCheckoutClock(clk clock.Clock) CheckoutOption {
	return func(c *Checkout) { c.clock = clk }
}

func NewCheckout(store CheckoutStore, gw Gateway, keys KeyOpener, writer *Writer, logger *zap.Logger, opts ...CheckoutOption) *Checkout {
	c := &Checkout{
		store:    store,
		gateway:  gw,
		keys:     keys,
		writer:   writer,
		clock:    clock.NewSystem(),
		logger:   logging.OrNop(logger).Named("checkout"),
		timeout:  defaultGatewayTimeout,
		currency: "NGN",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateTransaction validates the purchase locally, records a pending
// payment and opens a transaction at the gateway.  The local guard run is
// advisory; the writer re-checks under lock after payment.
func (c *Checkout) CreateTransaction(ctx context.Context, in PurchaseInput) (CheckoutSession, error) {
	if in.Quantity < 1 {
		return CheckoutSession{}, ErrInvalidQuantity
	}
	event, err := c.store.GetEvent(ctx, in.EventID)
	if err != nil {
		return CheckoutSession{}, err
	}
	tier, ok := event.Tier(in.TierID)
	if !ok {
		return CheckoutSession{}, model.ErrTierNotFound
	}
	if tier.IsFree() {
		return CheckoutSession{}, ErrFreeTier
	}
	prior, err := c.store.SumPurchased(ctx, event.ID, tier.ID, in.Holder.UserID)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("sum purchased: %w", err)
	}
	if err := Check(RequestFor(tier, in.Quantity, prior)); err != nil {
		return CheckoutSession{}, err
	}

	setup, secret, err := c.credentials(ctx, event.CreatorID)
	if err != nil {
		return CheckoutSession{}, err
	}

	now := c.clock.Now()
	p := model.Payment{
		Reference:   NewReference(),
		EventID:     event.ID,
		CreatorID:   event.CreatorID,
		TierID:      tier.ID,
		BuyerID:     in.Holder.UserID,
		BuyerEmail:  in.Holder.Email,
		FullName:    in.Holder.FullName,
		Phone:       in.Holder.Phone,
		Quantity:    in.Quantity,
		AmountMinor: tier.PriceMinor * int64(in.Quantity),
		Currency:    c.currency,
		Status:      model.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.CreatePayment(ctx, p); err != nil {
		return CheckoutSession{}, fmt.Errorf("record payment: %w", err)
	}

	gctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	sess, err := c.gateway.Initialize(gctx, secret, gateway.InitializeRequest{
		Email:       in.Holder.Email,
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		Reference:   p.Reference,
		CallbackURL: c.callbackURL,
		Metadata: gateway.Metadata{
			EventID:  p.EventID,
			TierID:   p.TierID,
			BuyerID:  p.BuyerID,
			Quantity: p.Quantity,
		},
	})
	if err != nil {
		c.markPayment(ctx, p.Reference, model.PaymentFailed)
		return CheckoutSession{}, c.gatewayError("initialize transaction", err)
	}

	c.logger.Info("checkout created",
		zap.String("reference", p.Reference),
		zap.String("event_id", p.EventID),
		zap.String("tier_id", p.TierID),
		zap.Int64("amount_minor", p.AmountMinor),
	)
	return CheckoutSession{
		Reference:        p.Reference,
		AuthorizationURL: sess.AuthorizationURL,
		AccessCode:       sess.AccessCode,
		PublicKey:        setup.PublicKey,
		AmountMinor:      p.AmountMinor,
		Currency:         p.Currency,
	}, nil
}

// Verified is the result of VerifyTransaction.
type Verified struct {
	Issued
	Payment model.Payment
}

// VerifyTransaction asks the gateway whether the payment behind reference
// succeeded and, if so, issues the ticket.  Repeat calls for a settled
// reference return the existing ticket.  A successful payment for an event
// or tier deleted since checkout escalates like a sold-out one.
func (c *Checkout) VerifyTransaction(ctx context.Context, reference string) (Verified, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Verified{}, ErrVerificationFailed
	}

	p, err := c.store.GetPayment(ctx, reference)
	if err != nil {
		if errors.Is(err, model.ErrPaymentNotFound) {
			return Verified{}, fmt.Errorf("%w: unknown reference", ErrVerificationFailed)
		}
		return Verified{}, err
	}

	if existing, err := c.store.GetAttendeeByReference(ctx, reference); err != nil {
		return Verified{}, err
	} else if existing != nil {
		event, err := c.store.GetEvent(ctx, existing.EventID)
		if err != nil {
			return Verified{}, err
		}
		tier, _ := event.Tier(existing.TierID)
		return Verified{Issued: Issued{Attendee: *existing, Event: event, Tier: tier}, Payment: p}, nil
	}

	if p.Status == model.PaymentSoldOut {
		out := &SoldOutError{Reference: reference}
		if rc, err := c.store.GetReconciliationCaseByReference(ctx, reference); err == nil && rc != nil {
			out.CaseID = rc.ID
		}
		return Verified{}, out
	}

	// The event may be gone by now; the payment row still names the
	// organizer whose keys took the money.
	creatorID := p.CreatorID
	if creatorID == "" {
		event, err := c.store.GetEvent(ctx, p.EventID)
		if err != nil {
			return Verified{}, err
		}
		creatorID = event.CreatorID
	}
	_, secret, err := c.credentials(ctx, creatorID)
	if err != nil {
		return Verified{}, err
	}

	gctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	tx, err := c.gateway.Verify(gctx, secret, reference)
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			return Verified{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
		}
		return Verified{}, c.gatewayError("verify transaction", err)
	}
	if !tx.Succeeded() {
		if tx.Status == "failed" || tx.Status == "abandoned" || tx.Status == "reversed" {
			c.markPayment(ctx, reference, model.PaymentFailed)
		}
		return Verified{}, fmt.Errorf("%w: gateway status %q", ErrVerificationFailed, tx.Status)
	}
	if err := matches(p, tx); err != nil {
		c.logger.Warn("gateway transaction does not match pending payment",
			zap.String("reference", reference), zap.Error(err))
		return Verified{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	res, err := c.writer.IssueTicket(ctx, IssueInput{
		EventID:  tx.Metadata.EventID,
		TierID:   tx.Metadata.TierID,
		Quantity: tx.Metadata.Quantity,
		Holder: Holder{
			UserID:   tx.Metadata.BuyerID,
			FullName: p.FullName,
			Email:    p.BuyerEmail,
			Phone:    p.Phone,
		},
		Payment: Settlement{Reference: reference, AmountMinor: tx.AmountMinor},
	})
	if err != nil {
		if errors.Is(err, ErrSoldOut) {
			c.markPayment(ctx, reference, model.PaymentSoldOut)
		}
		return Verified{}, err
	}
	c.markPayment(ctx, reference, model.PaymentSucceeded)
	p.Status = model.PaymentSucceeded
	return Verified{Issued: res, Payment: p}, nil
}

// RegisterFree issues a free ticket.  The gateway is never contacted.
func (c *Checkout) RegisterFree(ctx context.Context, in PurchaseInput) (Issued, error) {
	return c.writer.IssueTicket(ctx, IssueInput{
		EventID:  in.EventID,
		TierID:   in.TierID,
		Holder:   in.Holder,
		Quantity: in.Quantity,
		Payment:  NoPayment,
	})
}

// credentials resolves the organizer's gateway keys.  A missing or partial
// setup is ErrGatewayUnavailable.
func (c *Checkout) credentials(ctx context.Context, creatorID string) (*model.PaymentSetup, string, error) {
	setup, err := c.store.GetPaymentSetup(ctx, creatorID)
	if err != nil && !errors.Is(err, model.ErrPaymentSetupMissing) {
		return nil, "", err
	}
	if !setup.Complete() {
		return nil, "", ErrGatewayUnavailable
	}
	secret, err := c.keys.Open(setup.SecretKeySealed)
	if err != nil {
		return nil, "", fmt.Errorf("open organizer credential: %w", err)
	}
	return setup, secret, nil
}

func (c *Checkout) gatewayError(op string, err error) error {
	if errors.Is(err, gateway.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("gateway timeout", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, ErrGatewayTimeout)
	}
	if errors.Is(err, gateway.ErrUnavailable) {
		c.logger.Warn("gateway unavailable", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, ErrGatewayDown)
	}
	c.logger.Error("gateway call failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Checkout) markPayment(ctx context.Context, ref string, status model.PaymentStatus) {
	if err := c.store.UpdatePaymentStatus(context.WithoutCancel(ctx), ref, status); err != nil {
		c.logger.Error("update payment status",
			zap.String("reference", ref), zap.String("status", string(status)), zap.Error(err))
	}
}

// matches cross-checks what the gateway charged against what we asked for.
func matches(p model.Payment, tx gateway.Transaction) error {
	switch {
	case tx.AmountMinor != p.AmountMinor:
		return fmt.Errorf("amount %d, expected %d", tx.AmountMinor, p.AmountMinor)
	case tx.Metadata.EventID != p.EventID:
		return errors.New("event id mismatch")
	case tx.Metadata.TierID != p.TierID:
		return errors.New("tier id mismatch")
	case tx.Metadata.BuyerID != p.BuyerID:
		return errors.New("buyer id mismatch")
	case tx.Metadata.Quantity != p.Quantity:
		return fmt.Errorf("quantity %d, expected %d", tx.Metadata.Quantity, p.Quantity)
	}
	return nil
}
