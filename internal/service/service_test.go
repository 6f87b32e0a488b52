package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/adas-events/internal/artifact"
	"github.com/iliyamo/adas-events/internal/clock"
	"github.com/iliyamo/adas-events/internal/credential"
	"github.com/iliyamo/adas-events/internal/model"
)

type memStore struct {
	mu        sync.Mutex
	events    map[string]model.Event
	attendees []model.Attendee
	setups    map[string]model.PaymentSetup
	payments  []model.Payment
}

func newMemStore() *memStore {
	return &memStore{events: map[string]model.Event{}, setups: map[string]model.PaymentSetup{}}
}

func (m *memStore) CreateEvent(_ context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	return nil
}

func (m *memStore) GetEvent(_ context.Context, id string) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return model.Event{}, model.ErrEventNotFound
	}
	return e, nil
}

func (m *memStore) ListEvents(_ context.Context, f model.EventFilter) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.events {
		if f.CreatorID == "" || e.CreatorID == f.CreatorID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) UpdateEvent(_ context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	return nil
}

func (m *memStore) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	return nil
}

func (m *memStore) CountPendingPayments(_ context.Context, eventID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.payments {
		if p.EventID == eventID && p.Status == model.PaymentPending && !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateTier(_ context.Context, t model.TicketTier) (model.TicketTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sold := 0
	for _, a := range m.attendees {
		if a.TierID == t.ID {
			sold += a.Quantity
		}
	}
	t.Remaining = nil
	if t.Quantity != nil {
		if *t.Quantity < sold {
			return model.TicketTier{}, model.ErrQuantityBelowSold
		}
		left := *t.Quantity - sold
		t.Remaining = &left
	}
	e := m.events[t.EventID]
	for i := range e.Tiers {
		if e.Tiers[i].ID == t.ID {
			e.Tiers[i] = t
		}
	}
	m.events[t.EventID] = e
	return t, nil
}

func (m *memStore) CreatorDashboard(_ context.Context, creatorID string) ([]model.EventStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.EventStats
	for _, e := range m.events {
		if e.CreatorID != creatorID {
			continue
		}
		st := model.EventStats{EventID: e.ID, Title: e.Title}
		for _, a := range m.attendees {
			if a.EventID == e.ID {
				st.TicketsSold += a.Quantity
				st.RevenueMinor += a.AmountMinor
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *memStore) filter(keep func(model.Attendee) bool) []model.Attendee {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Attendee{}
	for _, a := range m.attendees {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) ListAttendees(_ context.Context, eventID string) ([]model.Attendee, error) {
	return m.filter(func(a model.Attendee) bool { return a.EventID == eventID }), nil
}

func (m *memStore) ListAttendeesByUser(_ context.Context, userID string) ([]model.Attendee, error) {
	return m.filter(func(a model.Attendee) bool { return a.UserID == userID }), nil
}

func (m *memStore) GetAttendeeByTicketID(_ context.Context, ticketID string) (model.Attendee, error) {
	got := m.filter(func(a model.Attendee) bool { return a.TicketID == ticketID })
	if len(got) == 0 {
		return model.Attendee{}, model.ErrTicketNotFound
	}
	return got[0], nil
}

func (m *memStore) ValidateTicket(_ context.Context, ticketID string, at time.Time) (model.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.attendees {
		if m.attendees[i].TicketID != ticketID {
			continue
		}
		if m.attendees[i].Validated {
			return m.attendees[i], model.ErrAlreadyValidated
		}
		m.attendees[i].Validated = true
		m.attendees[i].ValidatedAt = &at
		return m.attendees[i], nil
	}
	return model.Attendee{}, model.ErrTicketNotFound
}

func (m *memStore) IsAttendee(_ context.Context, eventID, userID string) (bool, error) {
	return len(m.filter(func(a model.Attendee) bool { return a.EventID == eventID && a.UserID == userID })) > 0, nil
}

func (m *memStore) GetPaymentSetup(_ context.Context, creatorID string) (*model.PaymentSetup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.setups[creatorID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) SavePaymentSetup(_ context.Context, s model.PaymentSetup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setups[s.CreatorID] = s
	return nil
}

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func intp(n int) *int { return &n }

func newEvents(t *testing.T, store *memStore, opts ...Option) *Events {
	t.Helper()
	sealer, err := credential.NewSealer("test passphrase")
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithClock(clock.NewFixed(now))}, opts...)
	return NewEvents(store, sealer, nil, opts...)
}

func validInput() EventInput {
	return EventInput{
		Title:     "  Lagos Tech Night ",
		EventType: "physical",
		StartsAt:  now.Add(48 * time.Hour),
		EndsAt:    now.Add(52 * time.Hour),
		Venue:     model.Venue{Address: "Victoria Island"},
		Tiers: []TierInput{
			{Name: "Regular", Price: 2500.50, Quantity: intp(100), PurchaseLimit: intp(4)},
			{Name: "Community", Price: 999, IsFree: true},
		},
	}
}

func TestCreateEventConvertsTiers(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	invalidated := 0
	svc := newEvents(t, store, WithInvalidator(func(context.Context) error { invalidated++; return nil }))

	e, err := svc.Create(context.Background(), "org", validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Title != "Lagos Tech Night" || e.Status != model.EventStatusActive || !e.CreatedAt.Equal(now) {
		t.Fatalf("event = %+v", e)
	}
	reg, free := e.Tiers[0], e.Tiers[1]
	if reg.PriceMinor != 250050 || *reg.Remaining != 100 || *reg.PurchaseLimit != 4 {
		t.Fatalf("regular tier = %+v", reg)
	}
	if free.PriceMinor != 0 || !free.Unlimited() || free.Remaining != nil || free.PurchaseLimit != nil {
		t.Fatalf("free tier = %+v", free)
	}
	if invalidated != 1 {
		t.Fatalf("invalidations = %d", invalidated)
	}
}

func TestCreateEventValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		edit  func(*EventInput)
		field string
	}{
		{"no title", func(in *EventInput) { in.Title = " " }, "title"},
		{"ends before start", func(in *EventInput) { in.EndsAt = in.StartsAt }, "endsAt"},
		{"physical without address", func(in *EventInput) { in.Venue = model.Venue{} }, "venue.address"},
		{"online without platform", func(in *EventInput) { in.EventType = "online"; in.Venue = model.Venue{} }, "venue.platform"},
		{"unknown type", func(in *EventInput) { in.EventType = "hybrid" }, "eventType"},
		{"no tiers", func(in *EventInput) { in.Tiers = nil }, "tiers"},
		{"negative price", func(in *EventInput) { in.Tiers[0].Price = -1 }, "tiers[0].price"},
		{"zero quantity", func(in *EventInput) { in.Tiers[1].Quantity = intp(0) }, "tiers[1].quantity"},
		{"zero limit", func(in *EventInput) { in.Tiers[0].PurchaseLimit = intp(0) }, "tiers[0].purchaseLimit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := validInput()
			tc.edit(&in)
			_, err := newEvents(t, newMemStore()).Create(context.Background(), "org", in)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("err = %v, want field %s", err, tc.field)
			}
		})
	}
}

func TestUpdateTierCapacity(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newEvents(t, store)
	ctx := context.Background()
	e, _ := svc.Create(ctx, "org", validInput())
	tier := e.Tiers[0]
	store.attendees = append(store.attendees, model.Attendee{EventID: e.ID, TierID: tier.ID, UserID: "u1", Quantity: 30, TicketID: "t1"})

	if _, err := svc.UpdateTier(ctx, e.ID, tier.ID, "intruder", TierPatch{Quantity: intp(200)}); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("non creator = %v", err)
	}
	if _, err := svc.UpdateTier(ctx, e.ID, tier.ID, "org", TierPatch{Quantity: intp(10)}); !errors.Is(err, model.ErrQuantityBelowSold) {
		t.Fatalf("below sold = %v", err)
	}
	got, err := svc.UpdateTier(ctx, e.ID, tier.ID, "org", TierPatch{Quantity: intp(50)})
	if err != nil || *got.Remaining != 20 {
		t.Fatalf("grow = %+v, %v", got, err)
	}
	got, err = svc.UpdateTier(ctx, e.ID, tier.ID, "org", TierPatch{ClearQuantity: true, ClearLimit: true})
	if err != nil || !got.Unlimited() || got.PurchaseLimit != nil {
		t.Fatalf("unlimited = %+v, %v", got, err)
	}
	if _, err := svc.UpdateTier(ctx, e.ID, "missing", "org", TierPatch{}); !errors.Is(err, model.ErrTierNotFound) {
		t.Fatalf("missing tier = %v", err)
	}
}

func TestUpdateAndDeleteAreCreatorOnly(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newEvents(t, store)
	ctx := context.Background()
	e, _ := svc.Create(ctx, "org", validInput())

	title := "Renamed"
	if _, err := svc.Update(ctx, e.ID, "someone", EventPatch{Title: &title}); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("update by stranger = %v", err)
	}
	yes := true
	got, err := svc.Update(ctx, e.ID, "org", EventPatch{Title: &title, EventFlags: model.EventFlags{ChatLocked: &yes}})
	if err != nil || got.Title != "Renamed" || !got.ChatLocked {
		t.Fatalf("update = %+v, %v", got, err)
	}
	bad := "archived"
	if _, err := svc.Update(ctx, e.ID, "org", EventPatch{Status: &bad}); err == nil {
		t.Fatal("unknown status accepted")
	}
	if err := svc.Delete(ctx, e.ID, "someone"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("delete by stranger = %v", err)
	}
	if err := svc.Delete(ctx, e.ID, "org"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, e.ID); !errors.Is(err, model.ErrEventNotFound) {
		t.Fatalf("after delete = %v", err)
	}
}

func TestTicketAccessAndValidation(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newEvents(t, store)
	ctx := context.Background()
	e, _ := svc.Create(ctx, "org", validInput())
	store.attendees = append(store.attendees, model.Attendee{
		EventID: e.ID, TierID: e.Tiers[0].ID, UserID: "holder", Quantity: 2, TicketID: e.ID + "-ABC123", AmountMinor: 500100,
	})

	tk, err := svc.Ticket(ctx, e.ID+"-ABC123", "holder")
	if err != nil || tk.TierName != "Regular" {
		t.Fatalf("holder view = %+v, %v", tk, err)
	}
	if _, err := svc.Ticket(ctx, e.ID+"-ABC123", "stranger"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("stranger view = %v", err)
	}
	if _, err := svc.Validate(ctx, e.ID+"-ABC123", "holder"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("holder validating = %v", err)
	}

	payload, _ := artifact.Payload(e.ID, e.ID+"-ABC123")
	a, err := svc.Validate(ctx, payload, "org")
	if err != nil || !a.Validated || a.ValidatedAt == nil || !a.ValidatedAt.Equal(now) {
		t.Fatalf("validate = %+v, %v", a, err)
	}
	if _, err := svc.Validate(ctx, e.ID+"-ABC123", "org"); !errors.Is(err, model.ErrAlreadyValidated) {
		t.Fatalf("second validate = %v", err)
	}

	d, err := svc.Dashboard(ctx, "org")
	if err != nil || d.TicketsSold != 2 || d.RevenueMinor != 500100 || len(d.Events) != 1 {
		t.Fatalf("dashboard = %+v, %v", d, err)
	}
}

func TestMeetingAccess(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newEvents(t, store)
	ctx := context.Background()
	in := validInput()
	in.EventType, in.Venue = "online", model.Venue{Platform: "Jitsi"}
	online, err := svc.Create(ctx, "org", in)
	if err != nil {
		t.Fatal(err)
	}
	physical, _ := svc.Create(ctx, "org", validInput())
	store.attendees = append(store.attendees, model.Attendee{EventID: online.ID, UserID: "fan", TicketID: "x"})

	if _, mod, err := svc.MeetingAccess(ctx, online.ID, "org"); err != nil || !mod {
		t.Fatalf("creator = %v, %v", mod, err)
	}
	if _, mod, err := svc.MeetingAccess(ctx, online.ID, "fan"); err != nil || mod {
		t.Fatalf("attendee = %v, %v", mod, err)
	}
	if _, _, err := svc.MeetingAccess(ctx, online.ID, "stranger"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("stranger = %v", err)
	}
	if _, _, err := svc.MeetingAccess(ctx, physical.ID, "org"); !errors.Is(err, ErrNotOnline) {
		t.Fatalf("physical = %v", err)
	}
}

func TestPaymentSetupSealsSecret(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newEvents(t, store)
	ctx := context.Background()

	if st, err := svc.PaymentSetup(ctx, "org"); err != nil || st.Complete {
		t.Fatalf("empty setup = %+v, %v", st, err)
	}
	if _, err := svc.SavePaymentSetup(ctx, "org", "pk_live_abc", "sk_test_abc"); err == nil {
		t.Fatal("mixed live/test keys accepted")
	}
	if _, err := svc.SavePaymentSetup(ctx, "org", "public", "sk_test_abc"); err == nil {
		t.Fatal("bad public key accepted")
	}
	st, err := svc.SavePaymentSetup(ctx, "org", " pk_test_abc ", "sk_test_secret")
	if err != nil || !st.Complete || st.PublicKey != "pk_test_abc" || st.Live {
		t.Fatalf("save = %+v, %v", st, err)
	}

	stored := store.setups["org"]
	if string(stored.SecretKeySealed) == "sk_test_secret" {
		t.Fatal("secret stored in the clear")
	}
	sealer, _ := credential.NewSealer("test passphrase")
	if plain, err := sealer.Open(stored.SecretKeySealed); err != nil || plain != "sk_test_secret" {
		t.Fatalf("open = %q, %v", plain, err)
	}
}

func TestDeleteBlockedByRecentPendingPayment(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newEvents(t, store)
	ctx := context.Background()
	e, err := svc.Create(ctx, "org", validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.payments = []model.Payment{
		{Reference: "adas_old", EventID: e.ID, Status: model.PaymentPending, CreatedAt: now.Add(-PaymentWindow - time.Minute)},
		{Reference: "adas_done", EventID: e.ID, Status: model.PaymentSucceeded, CreatedAt: now.Add(-time.Minute)},
		{Reference: "adas_open", EventID: e.ID, Status: model.PaymentPending, CreatedAt: now.Add(-time.Minute)},
	}

	if err := svc.Delete(ctx, e.ID, "org"); !errors.Is(err, model.ErrPaymentsInFlight) {
		t.Fatalf("delete with open checkout = %v", err)
	}
	if _, err := svc.Get(ctx, e.ID); err != nil {
		t.Fatalf("event gone after blocked delete: %v", err)
	}

	store.mu.Lock()
	store.payments[2].Status = model.PaymentFailed
	store.mu.Unlock()
	if err := svc.Delete(ctx, e.ID, "org"); err != nil {
		t.Fatalf("delete after checkout settled: %v", err)
	}
}
