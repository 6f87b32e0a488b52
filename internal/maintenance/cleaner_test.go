package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/adas-events/internal/clock"
)

type fakeStore struct {
	mu      sync.Mutex
	ends    map[string]time.Time
	cutoffs []time.Time
	err     error
}

func (s *fakeStore) DeleteEventsEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, cutoff)
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for id, end := range s.ends {
		if end.Before(cutoff) {
			delete(s.ends, id)
			n++
		}
	}
	return n, nil
}

func TestSweepDeletesOnlyExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{ends: map[string]time.Time{
		"old":    now.Add(-96 * time.Hour),
		"recent": now.Add(-48 * time.Hour),
		"future": now.Add(24 * time.Hour),
	}}
	c := NewCleaner(store, clock.NewFixed(now), 72*time.Hour, nil)

	n, err := c.Sweep(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if _, ok := store.ends["old"]; ok {
		t.Fatal("expired event survived")
	}
	if len(store.ends) != 2 {
		t.Fatalf("remaining events = %v", store.ends)
	}
	if !store.cutoffs[0].Equal(now.Add(-72 * time.Hour)) {
		t.Fatalf("cutoff = %v", store.cutoffs[0])
	}
}

func TestSweepReportsStoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	c := NewCleaner(&fakeStore{err: boom}, nil, 0, nil)
	if _, err := c.Sweep(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Sweep err = %v", err)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	t.Parallel()

	store := &fakeStore{ends: map[string]time.Time{}}
	c := NewCleaner(store, nil, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.cutoffs) < 2 {
		t.Fatalf("sweeps = %d, want at least 2", len(store.cutoffs))
	}
}
