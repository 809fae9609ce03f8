// Package cache is a keyed TTL cache that serves the last good value when a
// refresh fails.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/metrics"
)

// DefaultTTL is how long an entry is served without refetching.
const DefaultTTL = 30 * time.Minute

// DefaultRetryAfter is how long a failed fetch is remembered. Lookups in that
// window get the stale or empty result without calling upstream again.
const DefaultRetryAfter = time.Minute

// Status describes where a GetOrFetch value came from.
type Status string

const (
	// StatusFresh is a cached value younger than the TTL.
	StatusFresh Status = "fresh"
	// StatusFetched is a value fetched by this call (or a call it joined).
	StatusFetched Status = "fetched"
	// StatusStale is an expired value served because the refresh failed.
	StatusStale Status = "stale"
	// StatusEmpty means the refresh failed and nothing was cached.
	StatusEmpty Status = "empty"
)

// Usable reports whether a value accompanies the status.
func (s Status) Usable() bool {
	return s != StatusEmpty
}

type entry[V any] struct {
	value      V
	fetchedAt  time.Time
	generation uint64
}

type failure struct {
	at         time.Time
	generation uint64
}

// Cache holds one value per key. Concurrent misses for the same key share a
// single fetch.
type Cache[V any] struct {
	name       string
	log        *logger.Logger
	recorder   *metrics.Recorder
	now        func() time.Time
	retryAfter time.Duration

	mu         sync.Mutex
	entries    map[string]entry[V]
	failures   map[string]failure
	generation uint64

	flight singleflight.Group
}

// New creates an empty cache. name labels log entries and metrics; log and
// recorder may be nil.
func New[V any](name string, log *logger.Logger, recorder *metrics.Recorder) *Cache[V] {
	if log == nil {
		log = logger.Default()
	}
	return &Cache[V]{
		name:       name,
		log:        log,
		recorder:   recorder,
		now:        time.Now,
		retryAfter: DefaultRetryAfter,
		entries:    make(map[string]entry[V]),
		failures:   make(map[string]failure),
	}
}

// GetOrFetch returns the cached value for key when it is younger than ttl.
// Otherwise it calls fetch; on success the value is stored, on failure the
// previous value is returned as StatusStale, or the zero value as StatusEmpty.
// Errors never reach the caller; they are logged and counted. After a failure
// the key is not fetched again until the retry window passes or ExpireAll runs.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (V, error)) (V, Status) {
	if v, ok := c.fresh(key, ttl); ok {
		c.recorder.RecordLookup(c.name, string(StatusFresh))
		return v, StatusFresh
	}
	if out, ok := c.backingOff(key); ok {
		c.recorder.RecordLookup(c.name, string(out.status))
		return out.value, out.status
	}

	res, _, _ := c.flight.Do(key, func() (any, error) {
		// Another flight may have settled the key since the checks above.
		if v, ok := c.fresh(key, ttl); ok {
			return outcome[V]{value: v, status: StatusFetched}, nil
		}
		if out, ok := c.backingOff(key); ok {
			return out, nil
		}
		return c.refresh(ctx, key, fetch), nil
	})
	out := res.(outcome[V])
	c.recorder.RecordLookup(c.name, string(out.status))
	return out.value, out.status
}

type outcome[V any] struct {
	value  V
	status Status
}

// refresh fetches key and stores the result. Entries are stamped with the
// fetch start and the generation current at that moment, so a value fetched
// across an ExpireAll is already expired when it lands.
func (c *Cache[V]) refresh(ctx context.Context, key string, fetch func(context.Context) (V, error)) outcome[V] {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	start := c.now()
	v, err := fetch(ctx)
	c.recorder.RecordFetch(c.name, c.now().Sub(start), err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.entries[key] = entry[V]{value: v, fetchedAt: start, generation: gen}
		delete(c.failures, key)
		return outcome[V]{value: v, status: StatusFetched}
	}

	c.failures[key] = failure{at: start, generation: gen}
	fields := logger.Fields{"cache": c.name, "key": key}
	if prev, ok := c.entries[key]; ok {
		fields["age"] = c.now().Sub(prev.fetchedAt).Round(time.Second).String()
		c.log.Warn("Fetch failed, serving stale value", fields, err)
	} else {
		c.log.Warn("Fetch failed and nothing is cached", fields, err)
	}
	return c.fallbackLocked(key)
}

// backingOff returns the fallback for key when its last fetch failed within the
// retry window of the current generation.
func (c *Cache[V]) backingOff(key string) (outcome[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.failures[key]
	if !ok || f.generation != c.generation || c.now().Sub(f.at) >= c.retryAfter {
		return outcome[V]{}, false
	}
	return c.fallbackLocked(key), true
}

func (c *Cache[V]) fallbackLocked(key string) outcome[V] {
	if prev, ok := c.entries[key]; ok {
		return outcome[V]{value: prev.value, status: StatusStale}
	}
	var zero V
	return outcome[V]{value: zero, status: StatusEmpty}
}

func (c *Cache[V]) fresh(key string, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.generation != c.generation || c.now().Sub(e.fetchedAt) >= ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// peek returns the stored value for key regardless of age.
func (c *Cache[V]) peek(key string) (V, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.value, e.fetchedAt, ok
}

// ExpireAll marks every entry as expired and forgets recent failures. Values
// are kept so a failed refresh can still serve them.
func (c *Cache[V]) ExpireAll() {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()
}

// Len returns the number of stored keys.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
