// Package cache implements the read-through cache used for derived
// review assets (thumbnails, entity statuses).
//
// The cache guarantees at most one in-flight fetch per key regardless of
// concurrent callers (single-flight), never caches failures, and treats a
// resolved entry as immutable until it is explicitly invalidated. Batch
// warming throttles fetch fan-out so interactive input is not starved,
// and a new warm run cancels the previous one so a stale, slow fetch can
// never clobber fresher state after the caller has moved on.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrCancelled is returned when a resolve is abandoned because its
// context was cancelled before the result could be committed.
var ErrCancelled = errors.New("cache: resolve cancelled")

// errSuperseded signals that the key was invalidated while the fetch was
// in flight. Resolve retries internally; the error never escapes.
var errSuperseded = errors.New("cache: resolve superseded by invalidation")

// Key composes an entity or component id with a variant discriminator.
// An empty variant yields the bare id.
func Key(id, variant string) string {
	if variant == "" {
		return id
	}
	return id + "|" + variant
}

// Fetcher resolves a cache miss for one key.
type Fetcher[V any] func(ctx context.Context, key string) (V, error)

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithTTL sets a per-entry lifetime. Expired entries behave like misses.
// Zero (the default) means entries never expire.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(c *Cache[V]) { c.ttl = ttl }
}

// WithRelease sets the hook invoked when a cached value is discarded
// (invalidation, refresh, or wholesale clear) so owned display handles
// can be released.
func WithRelease[V any](release func(V)) Option[V] {
	return func(c *Cache[V]) { c.release = release }
}

// WithInteracting supplies the probe consulted by Warm to shrink batches
// and widen delays while the user is actively interacting.
func WithInteracting[V any](interacting func() bool) Option[V] {
	return func(c *Cache[V]) { c.interacting = interacting }
}

// WithLogger sets the logger. Nil is replaced with a stderr default.
func WithLogger[V any](logger *log.Logger) Option[V] {
	return func(c *Cache[V]) { c.logger = logger }
}

// WithBatching overrides the warm-batch tuning.
func WithBatching[V any](idleSize, interactiveSize int, idleDelay, interactiveDelay time.Duration) Option[V] {
	return func(c *Cache[V]) {
		c.batchSize = idleSize
		c.interactiveBatchSize = interactiveSize
		c.batchDelay = idleDelay
		c.interactiveBatchDelay = interactiveDelay
	}
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a process-scoped read-through cache keyed by composite string
// keys. Construct one per artifact type; there is no ambient global
// instance, so tests can build independent caches.
type Cache[V any] struct {
	fetch       Fetcher[V]
	release     func(V)
	interacting func() bool
	logger      *log.Logger
	ttl         time.Duration

	batchSize             int
	interactiveBatchSize  int
	batchDelay            time.Duration
	interactiveBatchDelay time.Duration

	mu      sync.Mutex
	entries map[string]entry[V]
	// gens counts invalidations per key. A flight captures the
	// generation before fetching; a commit with a stale generation is
	// discarded, so a fetch that raced an Invalidate or ForceRefresh can
	// never resurrect the invalidated value.
	gens  map[string]uint64
	group singleflight.Group

	warmMu     sync.Mutex
	warmCancel context.CancelFunc
}

// New creates a cache backed by fetch.
func New[V any](fetch Fetcher[V], opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		fetch:                 fetch,
		logger:                log.New(os.Stderr, "[cache] ", log.LstdFlags),
		batchSize:             5,
		interactiveBatchSize:  2,
		batchDelay:            50 * time.Millisecond,
		interactiveBatchDelay: 200 * time.Millisecond,
		entries:               make(map[string]entry[V]),
		gens:                  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}
	return c
}

// Get returns the cached value for key without fetching.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[V]) getLocked(key string) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.ttl > 0 && time.Since(e.storedAt) > c.ttl {
		// Expired entries are misses; the value is released lazily when
		// a fresh resolve replaces it or the cache is cleared.
		var zero V
		return zero, false
	}
	return e.value, true
}

// Resolve returns the cached value or fetches it, coalescing concurrent
// callers for the same key into one underlying fetch. Failures are not
// cached: the next call retries. A result is only committed if ctx is
// still live, so cancelled warm runs cannot write stale data.
func (c *Cache[V]) Resolve(ctx context.Context, key string) (V, error) {
	for {
		if v, ok := c.Get(key); ok {
			return v, nil
		}

		res, err, _ := c.group.Do(key, func() (any, error) {
			// A concurrent resolve may have stored the value while this
			// caller was waiting to enter the flight.
			if v, ok := c.Get(key); ok {
				return v, nil
			}

			gen := c.generation(key)
			v, err := c.fetch(ctx, key)
			if err != nil {
				return nil, err
			}
			if ctx.Err() != nil {
				if c.release != nil {
					c.release(v)
				}
				return nil, fmt.Errorf("%w: %s", ErrCancelled, key)
			}

			if !c.store(key, v, gen) {
				// The key was invalidated or refreshed mid-fetch, so
				// this value is already stale. Discard it; the caller
				// retries against the current generation.
				if c.release != nil {
					c.release(v)
				}
				return nil, errSuperseded
			}
			return v, nil
		})
		if errors.Is(err, errSuperseded) {
			continue
		}
		if err != nil {
			var zero V
			return zero, err
		}
		return res.(V), nil
	}
}

func (c *Cache[V]) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

// store commits a resolved value, provided the key's generation still
// matches gen and no other flight committed first. A live entry is never
// overwritten: refresh requires explicit invalidation first. It reports
// whether the value was committed; the caller owns it otherwise.
func (c *Cache[V]) store(key string, v V, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	if _, ok := c.getLocked(key); ok {
		// Another flight committed first; keep its entry.
		return false
	}
	if old, ok := c.entries[key]; ok && c.release != nil {
		// Replacing an expired entry.
		c.release(old.value)
	}
	c.entries[key] = entry[V]{value: v, storedAt: time.Now()}
	return true
}

// Invalidate removes a key, releasing its value. Any fetch already in
// flight for the key is barred from committing its result.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	c.gens[key]++
	e, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if ok && c.release != nil {
		c.release(e.value)
	}
}

// ForceRefresh invalidates key and immediately fetches a fresh value,
// bypassing the resolved cache.
func (c *Cache[V]) ForceRefresh(ctx context.Context, key string) (V, error) {
	c.Invalidate(key)
	c.group.Forget(key)
	return c.Resolve(ctx, key)
}

// Clear drops every entry, releasing held values, and cancels any warm
// run in progress. Used on logout and mode switch.
func (c *Cache[V]) Clear() {
	c.CancelWarm()

	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()

	if c.release != nil {
		for _, e := range entries {
			c.release(e.value)
		}
	}
}

// Len returns the number of resolved entries, including expired ones not
// yet replaced.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Warm resolves the given keys in rate-limited batches: 5 per batch with
// a 50ms pause when idle, 2 per batch with a 200ms pause while the user
// is interacting. Keys already resolved are skipped. Individual fetch
// failures are logged and do not stop the run; Warm returns an error
// only when ctx is cancelled.
func (c *Cache[V]) Warm(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); {
		if err := ctx.Err(); err != nil {
			return err
		}

		size := c.batchSize
		delay := c.batchDelay
		if c.interacting != nil && c.interacting() {
			size = c.interactiveBatchSize
			delay = c.interactiveBatchDelay
		}

		end := start + size
		if end > len(keys) {
			end = len(keys)
		}

		var wg sync.WaitGroup
		for _, key := range keys[start:end] {
			if _, ok := c.Get(key); ok {
				continue
			}
			wg.Add(1)
			go func(k string) {
				defer wg.Done()
				if _, err := c.Resolve(ctx, k); err != nil && !errors.Is(err, ErrCancelled) && ctx.Err() == nil {
					c.logger.Printf("warm fetch failed for %s: %v", k, err)
				}
			}(key)
		}
		wg.Wait()

		start = end
		if start < len(keys) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

// WarmLatest starts a warm run for keys after cancelling any previous
// run, so only the most recently requested entity set can commit results.
// It returns immediately; the run proceeds in the background.
func (c *Cache[V]) WarmLatest(keys []string) {
	c.warmMu.Lock()
	if c.warmCancel != nil {
		c.warmCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.warmCancel = cancel
	c.warmMu.Unlock()

	go func() {
		defer cancel()
		_ = c.Warm(ctx, keys)
	}()
}

// CancelWarm stops the current warm run, if any.
func (c *Cache[V]) CancelWarm() {
	c.warmMu.Lock()
	if c.warmCancel != nil {
		c.warmCancel()
		c.warmCancel = nil
	}
	c.warmMu.Unlock()
}
