// Package collab implements event discussion and live polls.
//
// Access rule: on an unrestricted event any signed-in user may read and
// write; on a restricted event only attendees and the creator may.  A
// locked chat accepts messages from the creator only, and anonymous mode
// strips the author's display name from new messages.
package collab

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/clock"
	"github.com/iliyamo/adas-events/internal/feed"
	"github.com/iliyamo/adas-events/internal/logging"
	"github.com/iliyamo/adas-events/internal/model"
)

const (
	maxMessageLen = 2000
	maxOptions    = 10
	defaultLimit  = 100
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrChatLocked     = errors.New("chat is locked by the organizer")
	ErrInvalidPoll    = errors.New("a poll needs a question and at least two options")
	ErrInvalidOption  = errors.New("no such poll option")
	ErrPollEnded      = errors.New("poll has ended")
)

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	IsAttendee(ctx context.Context, eventID, userID string) (bool, error)
	UpdateEventFlags(ctx context.Context, eventID string, f model.EventFlags) error

	InsertMessage(ctx context.Context, m model.Message) error
	ListMessages(ctx context.Context, eventID string, limit int) ([]model.Message, error)

	InsertPoll(ctx context.Context, p model.Poll) error
	ListPolls(ctx context.Context, eventID string) ([]model.Poll, error)
	GetPollForUpdate(ctx context.Context, eventID, pollID string) (model.Poll, error)
	// SetVote moves userID's vote from previous (nil for a first vote)
	// to option, keeping the option tallies in step.
	SetVote(ctx context.Context, pollID, userID string, previous *int, option int) error
	EndPoll(ctx context.Context, pollID string) error
}

// Publisher announces changes to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, eventID, topic string) error
}

// Author is the signed-in user acting on the discussion.
type Author struct {
	UserID string
	Name   string
}

type Service struct {
	store  Store
	pub    Publisher
	clock  clock.Clock
	logger *zap.Logger
}

func NewService(store Store, pub Publisher, clk clock.Clock, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{store: store, pub: pub, clock: clk, logger: logging.OrNop(logger).Named("collab")}
}

// CanAccess applies the access rule to userID.
func (s *Service) CanAccess(ctx context.Context, event model.Event, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if event.CreatorID == userID || !event.DiscussionRestricted {
		return true, nil
	}
	return s.store.IsAttendee(ctx, event.ID, userID)
}

func (s *Service) authorize(ctx context.Context, eventID, userID string) (model.Event, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}
	ok, err := s.CanAccess(ctx, event, userID)
	if err != nil {
		return model.Event{}, err
	}
	if !ok {
		return model.Event{}, model.ErrForbidden
	}
	return event, nil
}

// Post adds a message to the event discussion.
func (s *Service) Post(ctx context.Context, eventID string, author Author, body string) (model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > maxMessageLen {
		return model.Message{}, ErrMessageTooLong
	}
	event, err := s.authorize(ctx, eventID, author.UserID)
	if err != nil {
		return model.Message{}, err
	}
	if event.ChatLocked && author.UserID != event.CreatorID {
		return model.Message{}, ErrChatLocked
	}

	m := model.Message{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    author.UserID,
		Username:  author.Name,
		Body:      body,
		CreatedAt: s.clock.Now(),
	}
	if event.AnonymousMode {
		m.Username = ""
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return model.Message{}, err
	}
	s.publish(ctx, eventID, feed.TopicDiscussion)
	return m, nil
}

// Messages returns the latest messages, oldest first.
func (s *Service) Messages(ctx context.Context, eventID, userID string, limit int) ([]model.Message, error) {
	if _, err := s.authorize(ctx, eventID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = defaultLimit
	}
	return s.store.ListMessages(ctx, eventID, limit)
}

// SetFlags changes the organizer switches.  Only the creator may call it.
func (s *Service) SetFlags(ctx context.Context, eventID, userID string, flags model.EventFlags) (model.Event, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if event.CreatorID != userID {
		return model.Event{}, model.ErrForbidden
	}
	if err := s.store.UpdateEventFlags(ctx, eventID, flags); err != nil {
		return model.Event{}, err
	}
	if flags.DiscussionRestricted != nil {
		event.DiscussionRestricted = *flags.DiscussionRestricted
	}
	if flags.ChatLocked != nil {
		event.ChatLocked = *flags.ChatLocked
	}
	if flags.AnonymousMode != nil {
		event.AnonymousMode = *flags.AnonymousMode
	}
	s.publish(ctx, eventID, feed.TopicDiscussion)
	return event, nil
}

// CreatePoll opens a poll.  Blank options are dropped before counting.
func (s *Service) CreatePoll(ctx context.Context, eventID string, author Author, question string, options []string) (model.Poll, error) {
	question = strings.TrimSpace(question)
	var opts []model.PollOption
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, model.PollOption{Label: o})
		}
	}
	if question == "" || len(opts) < 2 || len(opts) > maxOptions {
		return model.Poll{}, ErrInvalidPoll
	}
	if _, err := s.authorize(ctx, eventID, author.UserID); err != nil {
		return model.Poll{}, err
	}

	p := model.Poll{
		ID:        uuid.NewString(),
		EventID:   eventID,
		CreatorID: author.UserID,
		Question:  question,
		Options:   opts,
		Voters:    map[string]int{},
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.InsertPoll(ctx, p); err != nil {
		return model.Poll{}, err
	}
	s.publish(ctx, eventID, feed.TopicPolls)
	return p, nil
}

func (s *Service) Polls(ctx context.Context, eventID, userID string) ([]model.Poll, error) {
	if _, err := s.authorize(ctx, eventID, userID); err != nil {
		return nil, err
	}
	return s.store.ListPolls(ctx, eventID)
}

// Vote records userID's choice.  Voting again for a different option moves
// the vote; voting again for the same option is a no-op.
func (s *Service) Vote(ctx context.Context, eventID, pollID, userID string, option int) (model.Poll, error) {
	if _, err := s.authorize(ctx, eventID, userID); err != nil {
		return model.Poll{}, err
	}

	var out model.Poll
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetPollForUpdate(ctx, eventID, pollID)
		if err != nil {
			return err
		}
		if p.Ended {
			return ErrPollEnded
		}
		if option < 0 || option >= len(p.Options) {
			return ErrInvalidOption
		}
		if p.Voters == nil {
			p.Voters = map[string]int{}
		}
		prev, voted := p.Voters[userID]
		if voted && prev == option {
			out = p
			return nil
		}
		var previous *int
		if voted {
			previous = &prev
			p.Options[prev].Count--
		}
		if err := s.store.SetVote(ctx, pollID, userID, previous, option); err != nil {
			return err
		}
		p.Options[option].Count++
		p.Voters[userID] = option
		out = p
		return nil
	})
	if err != nil {
		return model.Poll{}, err
	}
	s.publish(ctx, eventID, feed.TopicPolls)
	return out, nil
}

// EndPoll closes voting.  The poll's author or the event creator may end
// it.
func (s *Service) EndPoll(ctx context.Context, eventID, pollID, userID string) (model.Poll, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Poll{}, err
	}
	var out model.Poll
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetPollForUpdate(ctx, eventID, pollID)
		if err != nil {
			return err
		}
		if userID != p.CreatorID && userID != event.CreatorID {
			return model.ErrForbidden
		}
		if !p.Ended {
			if err := s.store.EndPoll(ctx, pollID); err != nil {
				return err
			}
			p.Ended = true
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Poll{}, err
	}
	s.publish(ctx, eventID, feed.TopicPolls)
	return out, nil
}

func (s *Service) publish(ctx context.Context, eventID, topic string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, eventID, topic); err != nil {
		s.logger.Warn("publish change", zap.String("event_id", eventID), zap.String("topic", topic), zap.Error(err))
	}
}
