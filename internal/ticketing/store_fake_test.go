package ticketing

import (
	"context"
	"sync"

	"github.com/iliyamo/adas-events/internal/model"
)

type inTxKey struct{}

// memStore is an in-memory store.  WithTx holds the store mutex for the
// whole callback, which serialises purchases the way the tier row lock
// does, and rolls back tier and attendee changes when fn fails.
type memStore struct {
	mu        sync.Mutex
	events    map[string]model.Event
	tiers     map[string]*model.TicketTier
	attendees []model.Attendee
	payments  map[string]model.Payment
	setups    map[string]*model.PaymentSetup
	cases     []model.ReconciliationCase
	caseErr   error
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[string]model.Event{},
		tiers:    map[string]*model.TicketTier{},
		payments: map[string]model.Payment{},
		setups:   map[string]*model.PaymentSetup{},
	}
}

func intp(n int) *int { return &n }

func (s *memStore) addEvent(e model.Event, tiers ...model.TicketTier) {
	s.events[e.ID] = e
	for i := range tiers {
		t := tiers[i]
		t.EventID = e.ID
		if t.Quantity != nil && t.Remaining == nil {
			t.Remaining = intp(*t.Quantity)
		}
		s.tiers[t.ID] = &t
	}
}

func (s *memStore) lock(ctx context.Context) func() {
	if ctx.Value(inTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := map[string]*int{}
	for id, t := range s.tiers {
		if t.Remaining != nil {
			remaining[id] = intp(*t.Remaining)
		}
	}
	nAttendees := len(s.attendees)

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		for id, t := range s.tiers {
			t.Remaining = remaining[id]
		}
		s.attendees = s.attendees[:nAttendees]
		return err
	}
	return nil
}

func (s *memStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	defer s.lock(ctx)()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, model.ErrEventNotFound
	}
	e.Tiers = nil
	for _, t := range s.tiers {
		if t.EventID == id {
			cp := *t
			if t.Remaining != nil {
				cp.Remaining = intp(*t.Remaining)
			}
			e.Tiers = append(e.Tiers, cp)
		}
	}
	return e, nil
}

func (s *memStore) GetTierForUpdate(ctx context.Context, eventID, tierID string) (model.TicketTier, error) {
	defer s.lock(ctx)()
	t, ok := s.tiers[tierID]
	if !ok || t.EventID != eventID {
		return model.TicketTier{}, model.ErrTierNotFound
	}
	cp := *t
	if t.Remaining != nil {
		cp.Remaining = intp(*t.Remaining)
	}
	return cp, nil
}

func (s *memStore) SumPurchased(ctx context.Context, eventID, tierID, userID string) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, a := range s.attendees {
		if a.EventID == eventID && a.TierID == tierID && a.UserID == userID {
			n += a.Quantity
		}
	}
	return n, nil
}

func (s *memStore) DecrementRemaining(ctx context.Context, tierID string, qty int) (bool, error) {
	defer s.lock(ctx)()
	t := s.tiers[tierID]
	if t == nil || t.Remaining == nil || *t.Remaining < qty {
		return false, nil
	}
	t.Remaining = intp(*t.Remaining - qty)
	return true, nil
}

func (s *memStore) InsertAttendee(ctx context.Context, a model.Attendee) error {
	defer s.lock(ctx)()
	for _, x := range s.attendees {
		if x.TicketID == a.TicketID {
			return model.ErrDuplicateTicketID
		}
		if a.TransactionReference != nil && x.TransactionReference != nil && *x.TransactionReference == *a.TransactionReference {
			return model.ErrDuplicateReference
		}
	}
	s.attendees = append(s.attendees, a)
	return nil
}

func (s *memStore) GetAttendeeByReference(ctx context.Context, ref string) (*model.Attendee, error) {
	defer s.lock(ctx)()
	for _, a := range s.attendees {
		if a.TransactionReference != nil && *a.TransactionReference == ref {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetFreeAttendee(ctx context.Context, eventID, tierID, userID string) (*model.Attendee, error) {
	defer s.lock(ctx)()
	for _, a := range s.attendees {
		if a.EventID == eventID && a.TierID == tierID && a.UserID == userID && a.TransactionReference == nil {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateReconciliationCase(ctx context.Context, c model.ReconciliationCase) error {
	defer s.lock(ctx)()
	if s.caseErr != nil {
		return s.caseErr
	}
	s.cases = append(s.cases, c)
	return nil
}

func (s *memStore) GetReconciliationCaseByReference(ctx context.Context, ref string) (*model.ReconciliationCase, error) {
	defer s.lock(ctx)()
	for _, c := range s.cases {
		if c.Reference == ref {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetPaymentSetup(ctx context.Context, creatorID string) (*model.PaymentSetup, error) {
	defer s.lock(ctx)()
	p, ok := s.setups[creatorID]
	if !ok {
		return nil, model.ErrPaymentSetupMissing
	}
	return p, nil
}

func (s *memStore) CreatePayment(ctx context.Context, p model.Payment) error {
	defer s.lock(ctx)()
	s.payments[p.Reference] = p
	return nil
}

func (s *memStore) GetPayment(ctx context.Context, ref string) (model.Payment, error) {
	defer s.lock(ctx)()
	p, ok := s.payments[ref]
	if !ok {
		return model.Payment{}, model.ErrPaymentNotFound
	}
	return p, nil
}

func (s *memStore) UpdatePaymentStatus(ctx context.Context, ref string, status model.PaymentStatus) error {
	defer s.lock(ctx)()
	p, ok := s.payments[ref]
	if !ok {
		return model.ErrPaymentNotFound
	}
	p.Status = status
	s.payments[ref] = p
	return nil
}

func (s *memStore) remaining(tierID string) *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.tiers[tierID].Remaining; r != nil {
		return intp(*r)
	}
	return nil
}

// deleteEvent drops the event and its tiers the way the event store does.
// Payments are kept.
func (s *memStore) deleteEvent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	for tid, t := range s.tiers {
		if t.EventID == id {
			delete(s.tiers, tid)
		}
	}
}

func (s *memStore) attendeeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attendees)
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	issued []Issued
	cases  []model.ReconciliationCase
}

func (n *recordingNotifier) TicketIssued(_ context.Context, i Issued) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, i)
	return nil
}

func (n *recordingNotifier) ReconciliationOpened(_ context.Context, c model.ReconciliationCase) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cases = append(n.cases, c)
	return nil
}

// seqIDs hands out ids from a fixed list.
type seqIDs struct {
	mu  sync.Mutex
	ids []string
}

func (g *seqIDs) NewTicketID(string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[0]
	if len(g.ids) > 1 {
		g.ids = g.ids[1:]
	}
	return id, nil
}
