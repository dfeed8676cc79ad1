package rates

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakeClock is a manually advanced clock shared by store and upstream.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingUpstream returns a snapshot stamped with the clock and counts calls.
type countingUpstream struct {
	clock *fakeClock
	calls atomic.Int32
	delay time.Duration
	fail  bool
	// gate, when set, holds every fetch until it is closed.
	gate chan struct{}
}

func (u *countingUpstream) Fetch(ctx context.Context) Snapshot {
	u.calls.Add(1)
	if u.delay > 0 {
		time.Sleep(u.delay)
	}
	if u.gate != nil {
		<-u.gate
	}
	if u.fail {
		return fb.Snapshot(u.clock.Now())
	}
	return Snapshot{
		USD:       decimal.RequireFromString("41.8183"),
		EUR:       decimal.RequireFromString("48.7857"),
		Date:      FormatDate(u.clock.Now()),
		Source:    SourcePrimary,
		FetchedAt: u.clock.Now().UTC(),
	}
}

func newTestCache(fail bool) (*Cache, *countingUpstream, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	up := &countingUpstream{clock: clk, fail: fail}
	return NewCache(up, NewMemoryStore(clk.Now), 0), up, clk
}

func mustJSON(t *testing.T, s Snapshot) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestCache_SameSnapshotWithinWindow(t *testing.T) {
	c, up, clk := newTestCache(false)
	ctx := context.Background()

	first := mustJSON(t, c.Get(ctx))
	clk.Advance(59*time.Minute + 59*time.Second)
	second := mustJSON(t, c.Get(ctx))

	if first != second {
		t.Fatalf("snapshots differ within window:\n%s\n%s", first, second)
	}
	if up.calls.Load() != 1 {
		t.Fatalf("upstream calls = %d, want 1", up.calls.Load())
	}
}

func TestCache_ExpiresAfterExactlyOneHour(t *testing.T) {
	c, up, clk := newTestCache(false)
	ctx := context.Background()

	_ = c.Get(ctx)
	clk.Advance(time.Hour)
	_ = c.Get(ctx)
	if up.calls.Load() != 2 {
		t.Fatalf("upstream calls = %d, want 2 after TTL", up.calls.Load())
	}
}

func TestCache_FailingUpstreamAcrossHours(t *testing.T) {
	c, up, clk := newTestCache(true)
	ctx := context.Background()

	var stamps []time.Time
	for h := 0; h < 3; h++ {
		s := c.Get(ctx)
		if s.Source != SourceFallback || !s.Valid() {
			t.Fatalf("hour %d: want valid FALLBACK, got %+v", h, s)
		}
		// Same fallback decision for the rest of the hour.
		clk.Advance(30 * time.Minute)
		if again := c.Get(ctx); mustJSON(t, again) != mustJSON(t, s) {
			t.Fatalf("hour %d: fallback snapshot changed within window", h)
		}
		stamps = append(stamps, s.FetchedAt)
		clk.Advance(30 * time.Minute)
	}
	if up.calls.Load() != 3 {
		t.Fatalf("upstream calls = %d, want 3", up.calls.Load())
	}
	if stamps[0].Equal(stamps[1]) || stamps[1].Equal(stamps[2]) {
		t.Fatalf("each hour should carry its own timestamp: %v", stamps)
	}
}

func TestCache_SingleFlightOnMiss(t *testing.T) {
	c, up, _ := newTestCache(false)
	up.delay = 50 * time.Millisecond

	const n = 32
	var wg sync.WaitGroup
	out := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = mustJSON(t, c.Get(context.Background()))
		}(i)
	}
	wg.Wait()

	if up.calls.Load() != 1 {
		t.Fatalf("upstream calls = %d, want 1", up.calls.Load())
	}
	for i := 1; i < n; i++ {
		if out[i] != out[0] {
			t.Fatalf("caller %d saw a different snapshot", i)
		}
	}
}

func TestCache_CancelledFirstCallerDoesNotPoisonJoiners(t *testing.T) {
	c, up, _ := newTestCache(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if s := c.Get(ctx); s.Source != SourcePrimary {
		t.Fatalf("cancelled caller still gets the fill result, got %s", s.Source)
	}
	if up.calls.Load() != 1 {
		t.Fatalf("upstream calls = %d", up.calls.Load())
	}
}

func TestCache_InvalidateByTag(t *testing.T) {
	c, up, _ := newTestCache(false)
	ctx := context.Background()

	_ = c.Get(ctx)
	if n, err := c.Invalidate(ctx, "unknown"); err != nil || n != 0 {
		t.Fatalf("unknown tag: n=%d err=%v", n, err)
	}
	_ = c.Get(ctx)
	if up.calls.Load() != 1 {
		t.Fatalf("unknown tag must not drop the entry")
	}

	if n, err := c.Invalidate(ctx, DefaultTag); err != nil || n != 1 {
		t.Fatalf("Invalidate: n=%d err=%v", n, err)
	}
	_ = c.Get(ctx)
	if up.calls.Load() != 2 {
		t.Fatalf("invalidated entry must be refetched, calls=%d", up.calls.Load())
	}
}

func TestCache_InvalidateDiscardsInFlightFill(t *testing.T) {
	c, up, _ := newTestCache(false)
	up.gate = make(chan struct{})
	ctx := context.Background()

	done := make(chan Snapshot)
	go func() { done <- c.Get(ctx) }()
	for up.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	if _, err := c.Invalidate(ctx, DefaultTag); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	close(up.gate)
	if s := <-done; s.Source != SourcePrimary {
		t.Fatalf("in-flight caller still gets its snapshot, got %+v", s)
	}

	if _, ok, _ := c.Store.Get(ctx, c.Key); ok {
		t.Fatalf("fill started before Invalidate must not be stored")
	}
	_ = c.Get(ctx)
	if up.calls.Load() != 2 {
		t.Fatalf("upstream calls = %d, want 2", up.calls.Load())
	}
	_ = c.Get(ctx)
	if up.calls.Load() != 2 {
		t.Fatalf("post-invalidation fill should be cached, calls=%d", up.calls.Load())
	}
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (Snapshot, bool, error) {
	return Snapshot{}, false, errors.New("down")
}
func (brokenStore) Set(context.Context, string, Snapshot, time.Duration) error {
	return errors.New("down")
}
func (brokenStore) Delete(context.Context, ...string) error { return errors.New("down") }

func TestCache_StoreErrorsDegradeToFetch(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	up := &countingUpstream{clock: clk}
	c := NewCache(up, brokenStore{}, time.Hour)

	if s := c.Get(context.Background()); !s.Valid() {
		t.Fatalf("store failure must still yield a snapshot")
	}
	if _, err := c.Invalidate(context.Background(), DefaultTag); err == nil {
		t.Fatalf("Invalidate should surface the store error")
	}
}
