package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/artifact"
	"github.com/iliyamo/adas-events/internal/model"
)

// MyTickets returns the caller's own tickets.
func (s *Events) MyTickets(ctx context.Context, userID string) ([]model.Attendee, error) {
	return s.store.ListAttendeesByUser(ctx, userID)
}

// Ticket loads a ticket with what is printed on it.  The holder and the
// event creator may read it.
func (s *Events) Ticket(ctx context.Context, ticketID, userID string) (artifact.Ticket, error) {
	a, err := s.store.GetAttendeeByTicketID(ctx, ticketID)
	if err != nil {
		return artifact.Ticket{}, err
	}
	e, err := s.store.GetEvent(ctx, a.EventID)
	if err != nil {
		return artifact.Ticket{}, err
	}
	if a.UserID != userID && e.CreatorID != userID {
		return artifact.Ticket{}, model.ErrForbidden
	}
	t := artifact.Ticket{Attendee: a, Event: e}
	if tier, ok := e.Tier(a.TierID); ok {
		t.TierName = tier.Name
	}
	return t, nil
}

// Validate checks a ticket in at the door.  Only the event creator may
// validate, and only once.  code is either a ticket id or the QR payload.
func (s *Events) Validate(ctx context.Context, code, userID string) (model.Attendee, error) {
	ticketID := code
	if _, tid, err := artifact.ParsePayload(code); err == nil {
		ticketID = tid
	}
	a, err := s.store.GetAttendeeByTicketID(ctx, ticketID)
	if err != nil {
		return model.Attendee{}, err
	}
	if _, err := s.owned(ctx, a.EventID, userID); err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return model.Attendee{}, model.ErrTicketNotFound
		}
		return model.Attendee{}, err
	}
	out, err := s.store.ValidateTicket(ctx, ticketID, s.clock.Now())
	if err != nil {
		return out, err
	}
	s.logger.Info("ticket validated", zap.String("ticket_id", ticketID), zap.String("event_id", a.EventID))
	return out, nil
}

// MeetingAccess decides whether userID may join the event's online room.
// The creator joins as moderator.
func (s *Events) MeetingAccess(ctx context.Context, eventID, userID string) (model.Event, bool, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, false, err
	}
	if !e.IsOnline() {
		return model.Event{}, false, ErrNotOnline
	}
	if e.CreatorID == userID {
		return e, true, nil
	}
	ok, err := s.store.IsAttendee(ctx, eventID, userID)
	if err != nil {
		return model.Event{}, false, err
	}
	if !ok {
		return model.Event{}, false, model.ErrForbidden
	}
	return e, false, nil
}
