package rates

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultKey is the cache key of the TRY snapshot.
	DefaultKey = "exchange-rates:TRY"
	// DefaultTag groups every exchange-rate key for invalidation.
	DefaultTag = "exchange-rates"
	// DefaultTTL is the memoization window.
	DefaultTTL = time.Hour
)

// Upstream produces a fresh snapshot. *Fetcher satisfies it.
type Upstream interface {
	Fetch(ctx context.Context) Snapshot
}

// Cache memoizes the upstream snapshot for TTL under Key. Concurrent misses
// share one upstream call, so every caller inside a window observes the same
// snapshot, fallback decision included.
type Cache struct {
	Upstream Upstream
	Store    Store
	TTL      time.Duration
	Key      string
	Tags     []string

	group singleflight.Group

	// mu orders fill writes against Invalidate; gen counts invalidations.
	mu  sync.Mutex
	gen uint64
}

// NewCache returns a Cache with the default key, tag and a one-hour TTL.
func NewCache(up Upstream, store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		Upstream: up,
		Store:    store,
		TTL:      ttl,
		Key:      DefaultKey,
		Tags:     []string{DefaultTag},
	}
}

// Get returns the cached snapshot, filling it from the upstream on a miss.
// A valid entry is never replaced before its TTL runs out.
func (c *Cache) Get(ctx context.Context) Snapshot {
	if s, ok := c.lookup(ctx); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return s
	}
	cacheLookups.WithLabelValues("miss").Inc()

	// The fill outlives the first caller so that joiners are not cancelled
	// with it.
	fillCtx := context.WithoutCancel(ctx)
	gen := c.generation()
	v, _, _ := c.group.Do(c.Key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		if s, ok := c.lookup(fillCtx); ok {
			return s, nil
		}
		return c.fill(fillCtx, gen), nil
	})
	return v.(Snapshot)
}

// Invalidate drops every key registered under tag and reports how many keys
// were targeted. Unknown tags are a no-op. Fills already in flight still
// answer their callers but no longer write to the store.
func (c *Cache) Invalidate(ctx context.Context, tag string) (int, error) {
	keys := c.keysFor(tag)
	if len(keys) == 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if err := c.Store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	log.Info().Str("tag", tag).Strs("keys", keys).Msg("rates: cache invalidated")
	return len(keys), nil
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Cache) keysFor(tag string) []string {
	for _, t := range c.Tags {
		if t == tag {
			return []string{c.Key}
		}
	}
	return nil
}

func (c *Cache) lookup(ctx context.Context) (Snapshot, bool) {
	s, ok, err := c.Store.Get(ctx, c.Key)
	if err != nil {
		log.Warn().Err(err).Str("key", c.Key).Msg("rates: cache read failed")
		return Snapshot{}, false
	}
	if ok && !s.Valid() {
		return Snapshot{}, false
	}
	return s, ok
}

func (c *Cache) fill(ctx context.Context, gen uint64) Snapshot {
	s := c.Upstream.Fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		log.Debug().Str("key", c.Key).Msg("rates: fill superseded by invalidation, not stored")
		return s
	}
	if err := c.Store.Set(ctx, c.Key, s, c.TTL); err != nil {
		log.Error().Err(err).Str("key", c.Key).Msg("rates: cache write failed")
	}
	return s
}
