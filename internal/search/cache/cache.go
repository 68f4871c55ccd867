// Package cache provides the Redis-backed result cache in front of the
// in-memory search engine. Entries are keyed by the canonical form of the
// query, concurrent lookups for the same key are collapsed with
// singleflight, and a circuit breaker keeps a failing Redis from slowing
// down searches.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/pkg/metrics"
	"github.com/packdex/search-platform/pkg/redis"
	"github.com/packdex/search-platform/pkg/resilience"
)

// keyPrefix namespaces all cache entries. Bump the version segment when the
// serialised result format changes.
const keyPrefix = "search:v1:"

// DefaultTTL is how long a cached result stays valid. Search results are
// cheap to regenerate, so staleness is bounded tightly.
const DefaultTTL = 5 * time.Minute

// SearchFunc computes a search result on a cache miss.
type SearchFunc func(ctx context.Context) (*search.PackageSearchResult, error)

// Stats is a point-in-time snapshot of cache behaviour.
type Stats struct {
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Errors       uint64 `json:"errors"`
	BreakerState string `json:"breaker_state"`
}

// ResultCache caches serialised search results in Redis. A nil Redis client
// disables caching and every lookup falls through to the compute function.
type ResultCache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64
}

// New creates a ResultCache. ttl zero means DefaultTTL; m may be nil.
func New(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{
		client:  client,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// Key derives the cache key for a query from its canonical form, so queries
// that only differ in token order or whitespace share an entry.
func Key(q search.ServiceSearchQuery) string {
	var b strings.Builder
	b.WriteString(q.Parsed.String())
	b.WriteByte('\n')
	b.WriteString(strings.Join(q.Tags.QueryParameters(), " "))
	b.WriteByte('\n')
	b.WriteString(string(q.Order))
	b.WriteByte('\n')
	b.WriteString(strconv.Itoa(q.Offset))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(q.Limit))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(q.MinPoints))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(q.UpdatedInDays))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatBool(q.IncludeHighlightedHit))

	sum := sha256.Sum256([]byte(b.String()))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// GetOrCompute returns the cached result for the query, computing and
// storing it on a miss. The second return value reports whether the result
// was served from the cache. Cache failures degrade to a plain compute; they
// are never surfaced to the caller.
func (c *ResultCache) GetOrCompute(ctx context.Context, q search.ServiceSearchQuery, fn SearchFunc) (*search.PackageSearchResult, bool, error) {
	if c.client == nil {
		res, err := fn(ctx)
		return res, false, err
	}
	key := Key(q)

	if res, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
		}
		return res, true, nil
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	// Collapse concurrent misses for the same key into one computation.
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		res, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*search.PackageSearchResult), false, nil
}

func (c *ResultCache) lookup(ctx context.Context, key string) (*search.PackageSearchResult, bool) {
	var raw string
	err := c.breaker.Execute(func() error {
		var err error
		raw, err = c.client.Get(ctx, key)
		return err
	})
	if err != nil {
		if !redis.IsNilError(err) {
			c.errors.Add(1)
			c.logger.Warn("cache lookup failed", "error", err)
		}
		return nil, false
	}
	var res search.PackageSearchResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache entry corrupt, discarding", "key", key, "error", err)
		return nil, false
	}
	return &res, true
}

func (c *ResultCache) store(ctx context.Context, key string, res *search.PackageSearchResult) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache store failed", "error", err)
	}
}

// Invalidate drops all cached search results, returning how many entries
// were removed.
func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.client.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Info("search cache invalidated", "deleted", deleted)
	return deleted, nil
}

// Stats returns hit/miss counters and the breaker state.
func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.errors.Load(),
		BreakerState: c.breaker.GetState().String(),
	}
}
