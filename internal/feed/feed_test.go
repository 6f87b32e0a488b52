package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func counter() (Loader, *atomic.Int32) {
	var n atomic.Int32
	return func(context.Context) (any, error) { return int(n.Add(1)), nil }, &n
}

func recv(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("feed closed early")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func TestSubscribeReceivesSnapshotPerPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := New(rdb, "test", 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	load, _ := counter()

	ch, err := f.Subscribe(ctx, "ev1", TopicDiscussion, load)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if got := recv(t, ch); got != 1 {
		t.Fatalf("initial snapshot = %v", got)
	}
	if err := f.Publish(context.Background(), "ev1", TopicDiscussion); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := recv(t, ch); got != 2 {
		t.Fatalf("snapshot after publish = %v", got)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// a snapshot may have been in flight; the next read must close
			if _, ok := <-ch; ok {
				t.Fatal("feed still open after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed after cancel")
	}
}

func TestOtherTopicsDoNotWake(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := New(rdb, "test", 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	load, n := counter()

	ch, err := f.Subscribe(ctx, "ev1", TopicPolls, load)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	recv(t, ch)
	_ = f.Publish(context.Background(), "ev2", TopicPolls)
	_ = f.Publish(context.Background(), "ev1", TopicDiscussion)

	select {
	case v := <-ch:
		t.Fatalf("unexpected snapshot %v", v)
	case <-time.After(100 * time.Millisecond):
	}
	if n.Load() != 1 {
		t.Fatalf("loader called %d times", n.Load())
	}
}

func TestPollingFallbackWithoutRedis(t *testing.T) {
	t.Parallel()

	f := New(nil, "", 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	load, _ := counter()

	ch, err := f.Subscribe(ctx, "ev1", TopicPolls, load)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	recv(t, ch)
	if got := recv(t, ch); got != 2 {
		t.Fatalf("polled snapshot = %v", got)
	}
	if err := f.Publish(ctx, "ev1", TopicPolls); err != nil {
		t.Fatalf("Publish without redis: %v", err)
	}
}
