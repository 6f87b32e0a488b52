// Package service holds the organizer-facing operations: event and tier
// management, attendee lists, the dashboard, ticket lookup and check-in,
// and gateway credential setup.  Purchase and payment verification live in
// the ticketing package.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/clock"
	"github.com/iliyamo/adas-events/internal/logging"
	"github.com/iliyamo/adas-events/internal/model"
)

// ValidationError reports a rejected field.  Handlers answer it with 400.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

// ErrNotOnline is returned for meeting access on a physical event.
var ErrNotOnline = errors.New("event is not online")

// PaymentWindow is how long an unfinished checkout blocks deleting its
// event.  Older pending payments count as abandoned.
const PaymentWindow = 24 * time.Hour

// Store is the slice of the event store this package uses.
type Store interface {
	CreateEvent(ctx context.Context, e model.Event) error
	GetEvent(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e model.Event) error
	DeleteEvent(ctx context.Context, id string) error
	CountPendingPayments(ctx context.Context, eventID string, since time.Time) (int, error)
	UpdateTier(ctx context.Context, t model.TicketTier) (model.TicketTier, error)
	CreatorDashboard(ctx context.Context, creatorID string) ([]model.EventStats, error)

	ListAttendees(ctx context.Context, eventID string) ([]model.Attendee, error)
	ListAttendeesByUser(ctx context.Context, userID string) ([]model.Attendee, error)
	GetAttendeeByTicketID(ctx context.Context, ticketID string) (model.Attendee, error)
	ValidateTicket(ctx context.Context, ticketID string, at time.Time) (model.Attendee, error)
	IsAttendee(ctx context.Context, eventID, userID string) (bool, error)

	GetPaymentSetup(ctx context.Context, creatorID string) (*model.PaymentSetup, error)
	SavePaymentSetup(ctx context.Context, s model.PaymentSetup) error
}

// Sealer protects organizer secret keys at rest.
type Sealer interface {
	Seal(plain string) ([]byte, error)
}

type Events struct {
	store      Store
	sealer     Sealer
	clock      clock.Clock
	invalidate func(ctx context.Context) error
	logger     *zap.Logger
}

type Option func(*Events)

func WithClock(c clock.Clock) Option { return func(s *Events) { s.clock = c } }

// WithInvalidator runs fn after every write that changes what public
// event reads return.
func WithInvalidator(fn func(ctx context.Context) error) Option {
	return func(s *Events) { s.invalidate = fn }
}

func NewEvents(store Store, sealer Sealer, logger *zap.Logger, opts ...Option) *Events {
	s := &Events{
		store:  store,
		sealer: sealer,
		clock:  clock.NewSystem(),
		logger: logging.OrNop(logger).Named("events"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TierInput is one tier in a create request.  Price is in major units;
// nil quantity or limit means unlimited.  IsFree forces the price to 0.
type TierInput struct {
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	IsFree        bool    `json:"isFree"`
	Quantity      *int    `json:"quantity"`
	PurchaseLimit *int    `json:"purchaseLimit"`
}

// EventInput is the create request.
type EventInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	HostName    string      `json:"hostName"`
	ImageURL    string      `json:"imageUrl"`
	Language    string      `json:"language"`
	EventType   string      `json:"eventType"`
	StartsAt    time.Time   `json:"startsAt"`
	EndsAt      time.Time   `json:"endsAt"`
	Venue       model.Venue `json:"venue"`
	Tiers       []TierInput `json:"tiers"`
	model.EventFlags
}

// EventPatch changes only the fields that are set.
type EventPatch struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	HostName    *string      `json:"hostName"`
	ImageURL    *string      `json:"imageUrl"`
	Language    *string      `json:"language"`
	EventType   *string      `json:"eventType"`
	StartsAt    *time.Time   `json:"startsAt"`
	EndsAt      *time.Time   `json:"endsAt"`
	Venue       *model.Venue `json:"venue"`
	Status      *string      `json:"status"`
	model.EventFlags
}

// TierPatch edits a tier.  ClearQuantity and ClearLimit switch a finite
// tier to unlimited.
type TierPatch struct {
	Name          *string  `json:"name"`
	Price         *float64 `json:"price"`
	Quantity      *int     `json:"quantity"`
	ClearQuantity bool     `json:"unlimitedQuantity"`
	PurchaseLimit *int     `json:"purchaseLimit"`
	ClearLimit    bool     `json:"unlimitedPurchase"`
}

// ToMinor converts a major-unit price to minor units, rounding half away
// from zero.
func ToMinor(price float64) int64 { return int64(math.Round(price * 100)) }

func validateTier(i int, in TierInput) (model.TicketTier, error) {
	field := fmt.Sprintf("tiers[%d]", i)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.TicketTier{}, invalid(field+".name", "is required")
	}
	if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return model.TicketTier{}, invalid(field+".price", "must be zero or positive")
	}
	if in.Quantity != nil && *in.Quantity < 1 {
		return model.TicketTier{}, invalid(field+".quantity", "must be at least 1 or empty for unlimited")
	}
	if in.PurchaseLimit != nil && *in.PurchaseLimit < 1 {
		return model.TicketTier{}, invalid(field+".purchaseLimit", "must be at least 1 or empty for unlimited")
	}
	price := ToMinor(in.Price)
	if in.IsFree {
		price = 0
	}
	t := model.TicketTier{
		Name:          name,
		PriceMinor:    price,
		Quantity:      in.Quantity,
		PurchaseLimit: in.PurchaseLimit,
		Position:      i,
	}
	if in.Quantity != nil {
		left := *in.Quantity
		t.Remaining = &left
	}
	return t, nil
}

func validateEvent(e model.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return invalid("title", "is required")
	}
	if e.StartsAt.IsZero() || e.EndsAt.IsZero() {
		return invalid("startsAt", "start and end are required")
	}
	if !e.EndsAt.After(e.StartsAt) {
		return invalid("endsAt", "must be after startsAt")
	}
	switch e.EventType {
	case model.EventTypePhysical:
		if strings.TrimSpace(e.Venue.Address) == "" {
			return invalid("venue.address", "is required for physical events")
		}
		if (e.Venue.Latitude == nil) != (e.Venue.Longitude == nil) {
			return invalid("venue", "latitude and longitude go together")
		}
	case model.EventTypeOnline:
		if strings.TrimSpace(e.Venue.Platform) == "" {
			return invalid("venue.platform", "is required for online events")
		}
	default:
		return invalid("eventType", "must be physical or online")
	}
	switch e.Status {
	case model.EventStatusActive, model.EventStatusCancelled:
	default:
		return invalid("status", "must be active or cancelled")
	}
	return nil
}

func applyFlags(e *model.Event, f model.EventFlags) {
	if f.DiscussionRestricted != nil {
		e.DiscussionRestricted = *f.DiscussionRestricted
	}
	if f.ChatLocked != nil {
		e.ChatLocked = *f.ChatLocked
	}
	if f.AnonymousMode != nil {
		e.AnonymousMode = *f.AnonymousMode
	}
}

// Create stores a new event owned by creatorID.  At least one tier is
// required.
func (s *Events) Create(ctx context.Context, creatorID string, in EventInput) (model.Event, error) {
	now := s.clock.Now().UTC()
	e := model.Event{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		HostName:    strings.TrimSpace(in.HostName),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Language:    strings.TrimSpace(in.Language),
		EventType:   strings.ToLower(strings.TrimSpace(in.EventType)),
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      in.EndsAt.UTC(),
		Venue:       in.Venue,
		Status:      model.EventStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.EventType == "" {
		e.EventType = model.EventTypePhysical
	}
	applyFlags(&e, in.EventFlags)
	if err := validateEvent(e); err != nil {
		return model.Event{}, err
	}
	if len(in.Tiers) == 0 {
		return model.Event{}, invalid("tiers", "at least one ticket tier is required")
	}
	for i, ti := range in.Tiers {
		t, err := validateTier(i, ti)
		if err != nil {
			return model.Event{}, err
		}
		t.ID = uuid.NewString()
		t.EventID = e.ID
		t.CreatedAt, t.UpdatedAt = now, now
		e.Tiers = append(e.Tiers, t)
	}

	if err := s.store.CreateEvent(ctx, e); err != nil {
		return model.Event{}, err
	}
	s.logger.Info("event created", zap.String("event_id", e.ID), zap.String("creator_id", creatorID), zap.Int("tiers", len(e.Tiers)))
	s.changed(ctx)
	return e, nil
}

func (s *Events) Get(ctx context.Context, id string) (model.Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *Events) List(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	return s.store.ListEvents(ctx, f)
}

// owned loads the event and checks that userID created it.
func (s *Events) owned(ctx context.Context, eventID, userID string) (model.Event, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if e.CreatorID != userID {
		return model.Event{}, model.ErrForbidden
	}
	return e, nil
}

// Update applies the patch.  Only the creator may edit an event.
func (s *Events) Update(ctx context.Context, eventID, userID string, p EventPatch) (model.Event, error) {
	e, err := s.owned(ctx, eventID, userID)
	if err != nil {
		return model.Event{}, err
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&e.Title, p.Title)
	set(&e.Description, p.Description)
	set(&e.HostName, p.HostName)
	set(&e.ImageURL, p.ImageURL)
	set(&e.Language, p.Language)
	set(&e.Status, p.Status)
	if p.EventType != nil {
		e.EventType = strings.ToLower(strings.TrimSpace(*p.EventType))
	}
	if p.StartsAt != nil {
		e.StartsAt = p.StartsAt.UTC()
	}
	if p.EndsAt != nil {
		e.EndsAt = p.EndsAt.UTC()
	}
	if p.Venue != nil {
		e.Venue = *p.Venue
	}
	applyFlags(&e, p.EventFlags)
	if err := validateEvent(e); err != nil {
		return model.Event{}, err
	}
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return model.Event{}, err
	}
	s.changed(ctx)
	return s.store.GetEvent(ctx, eventID)
}

// Delete removes the creator's event.  It is refused while a checkout
// opened within PaymentWindow is still pending.
func (s *Events) Delete(ctx context.Context, eventID, userID string) error {
	if _, err := s.owned(ctx, eventID, userID); err != nil {
		return err
	}
	n, err := s.store.CountPendingPayments(ctx, eventID, s.clock.Now().Add(-PaymentWindow))
	if err != nil {
		return fmt.Errorf("count pending payments: %w", err)
	}
	if n > 0 {
		s.logger.Warn("event delete blocked by pending payments", zap.String("event_id", eventID), zap.Int("pending", n))
		return model.ErrPaymentsInFlight
	}
	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	s.logger.Info("event deleted", zap.String("event_id", eventID))
	s.changed(ctx)
	return nil
}

// UpdateTier edits one tier.  Changing the capacity recomputes remaining
// from what was sold; the store rejects a capacity below that.
func (s *Events) UpdateTier(ctx context.Context, eventID, tierID, userID string, p TierPatch) (model.TicketTier, error) {
	e, err := s.owned(ctx, eventID, userID)
	if err != nil {
		return model.TicketTier{}, err
	}
	t, ok := e.Tier(tierID)
	if !ok {
		return model.TicketTier{}, model.ErrTierNotFound
	}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return model.TicketTier{}, invalid("name", "is required")
		}
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.Price != nil {
		if *p.Price < 0 || math.IsNaN(*p.Price) {
			return model.TicketTier{}, invalid("price", "must be zero or positive")
		}
		t.PriceMinor = ToMinor(*p.Price)
	}
	switch {
	case p.ClearQuantity:
		t.Quantity = nil
	case p.Quantity != nil:
		if *p.Quantity < 1 {
			return model.TicketTier{}, invalid("quantity", "must be at least 1")
		}
		t.Quantity = p.Quantity
	}
	switch {
	case p.ClearLimit:
		t.PurchaseLimit = nil
	case p.PurchaseLimit != nil:
		if *p.PurchaseLimit < 1 {
			return model.TicketTier{}, invalid("purchaseLimit", "must be at least 1")
		}
		t.PurchaseLimit = p.PurchaseLimit
	}

	out, err := s.store.UpdateTier(ctx, t)
	if err != nil {
		return model.TicketTier{}, err
	}
	s.changed(ctx)
	return out, nil
}

// Attendees lists every ticket of the event for its creator.
func (s *Events) Attendees(ctx context.Context, eventID, userID string) ([]model.Attendee, error) {
	if _, err := s.owned(ctx, eventID, userID); err != nil {
		return nil, err
	}
	return s.store.ListAttendees(ctx, eventID)
}

// Dashboard is the organizer's sales overview.
type Dashboard struct {
	Events       []model.EventStats `json:"events"`
	TicketsSold  int                `json:"ticketsSold"`
	RevenueMinor int64              `json:"revenueMinor"`
}

func (s *Events) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	stats, err := s.store.CreatorDashboard(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{Events: stats}
	for _, st := range stats {
		d.TicketsSold += st.TicketsSold
		d.RevenueMinor += st.RevenueMinor
	}
	return d, nil
}

func (s *Events) changed(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	if err := s.invalidate(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}
