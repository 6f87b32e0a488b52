// Package feed fans out "something changed" notifications for an event's
// discussion and polls over Redis pub/sub.  Subscribers receive a fresh
// snapshot on subscribe and after every notification.
package feed

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/logging"
)

// Topics published per event.
const (
	TopicDiscussion = "discussion"
	TopicPolls      = "polls"
)

// Loader produces the current snapshot for a subscriber.
type Loader func(ctx context.Context) (any, error)

// Feed publishes and subscribes to per-event topics.  With a nil Redis
// client it degrades to polling the loader every fallback interval.
type Feed struct {
	rdb      *redis.Client
	prefix   string
	fallback time.Duration
	logger   *zap.Logger
}

func New(rdb *redis.Client, prefix string, fallback time.Duration, logger *zap.Logger) *Feed {
	if prefix == "" {
		prefix = "adas"
	}
	if fallback <= 0 {
		fallback = 5 * time.Second
	}
	return &Feed{rdb: rdb, prefix: prefix, fallback: fallback, logger: logging.OrNop(logger).Named("feed")}
}

func (f *Feed) Channel(eventID, topic string) string {
	return f.prefix + ":event:" + eventID + ":" + topic
}

// Publish notifies subscribers of eventID/topic.
func (f *Feed) Publish(ctx context.Context, eventID, topic string) error {
	if f.rdb == nil {
		return nil
	}
	return f.rdb.Publish(ctx, f.Channel(eventID, topic), strconv.FormatInt(time.Now().UnixMilli(), 10)).Err()
}

// Subscribe returns a channel of snapshots.  The subscription is live when
// Subscribe returns.  The channel is closed and the Redis subscription
// released when ctx ends.
func (f *Feed) Subscribe(ctx context.Context, eventID, topic string, load Loader) (<-chan any, error) {
	var ps *redis.PubSub
	if f.rdb != nil {
		ps = f.rdb.Subscribe(ctx, f.Channel(eventID, topic))
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return nil, err
		}
	}
	out := make(chan any)
	go f.pump(ctx, ps, load, out)
	return out, nil
}

func (f *Feed) pump(ctx context.Context, ps *redis.PubSub, load Loader, out chan<- any) {
	defer close(out)

	var (
		notify <-chan *redis.Message
		tick   <-chan time.Time
	)
	if ps != nil {
		defer ps.Close()
		notify = ps.Channel()
	} else {
		t := time.NewTicker(f.fallback)
		defer t.Stop()
		tick = t.C
	}

	emit := func() bool {
		snap, err := load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			f.logger.Warn("snapshot load failed", zap.Error(err))
			return true
		}
		select {
		case out <- snap:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notify:
			if !ok || !emit() {
				return
			}
		case <-tick:
			if !emit() {
				return
			}
		}
	}
}
