// Package validationcache caches validation results of numeric score values
// in a durable storage provider, fronted by an in-memory store.
package validationcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/atomic"

	"examscore/internal/cache"
	"examscore/internal/score"
	"examscore/internal/storage"
	"examscore/internal/validation"
)

// Tag groups every result written by a ValidationCache. A successful write
// invalidates the whole tag in the in-memory tier so readers go back to the
// durable store.
const Tag = "validation-results"

// Result is the cached payload.
type Result = validation.Result[float64]

// Config holds the cache policy.
type Config struct {
	// TTL is the maximum age of a result, measured from its ValidatedAt stamp.
	TTL time.Duration
	// MaxCacheSize is the number of distinct keys after which the cache is flushed.
	MaxCacheSize int
}

// DefaultConfig returns a 5 minute TTL and 1000 entries.
func DefaultConfig() Config {
	return Config{TTL: cache.DefaultTTL, MaxCacheSize: cache.DefaultMaxEntries}
}

// Option configures a ValidationCache.
type Option func(*settings)

type settings struct {
	clock           cache.Clock
	logger          *slog.Logger
	cleanupInterval time.Duration
}

// WithClock replaces the time source.
func WithClock(c cache.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCleanupInterval sets the janitor period of the in-memory tier.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *settings) {
		s.cleanupInterval = d
	}
}

// ValidationCache stores validation results keyed by (value, rules).
//
// Results read back from the provider are decoded, checked for a sane shape
// and discarded once older than the TTL, even if the provider still holds
// them. Once MaxCacheSize distinct keys have been written, writing a new key
// flushes the whole cache first; overwriting a known key never does.
// Concurrent misses on the same key are not coalesced; the last write wins.
type ValidationCache struct {
	provider storage.Provider
	config   Config
	memory   *cache.Store[Result]
	shape    *validation.Engine[Result]
	size     *atomic.Int64
	clock    cache.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	written map[string]struct{} // keys written since the last flush
}

// New creates a ValidationCache over provider. Zero config values fall back
// to DefaultConfig.
func New(provider storage.Provider, config Config, opts ...Option) (*ValidationCache, error) {
	if provider == nil {
		return nil, score.InvalidParams("validation cache: storage provider is required")
	}

	defaults := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.MaxCacheSize <= 0 {
		config.MaxCacheSize = defaults.MaxCacheSize
	}

	s := settings{
		clock:           time.Now,
		logger:          slog.Default(),
		cleanupInterval: cache.DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(&s)
	}

	return &ValidationCache{
		provider: provider,
		config:   config,
		memory: cache.New[Result](
			cache.WithTTL(config.TTL),
			cache.WithMaxEntries(config.MaxCacheSize),
			cache.WithCleanupInterval(s.cleanupInterval),
			cache.WithClock(s.clock),
			cache.WithLogger(s.logger),
		),
		shape:   validation.NewEngine(shapeRules(), nil, s.clock).WithLogger(s.logger),
		size:    atomic.NewInt64(0),
		clock:   s.clock,
		logger:  s.logger,
		written: make(map[string]struct{}),
	}, nil
}

// Get returns the cached result for (value, rules), or nil when nothing
// fresh and well-formed is cached.
func (c *ValidationCache) Get(ctx context.Context, value float64, rules []validation.Rule[float64]) (*Result, error) {
	key, err := c.key(value, rules)
	if err != nil {
		return nil, err
	}

	if entry, ok := c.memory.Get(key); ok && c.fresh(entry.Value) {
		result := entry.Value.Clone()
		return &result, nil
	}

	payload, found, err := c.provider.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, score.CodeCacheError, "validation cache: read failed")
	}
	if !found {
		return nil, nil
	}

	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		c.logger.Warn("discarding undecodable cached result", "key", key, "error", err)
		return nil, nil
	}
	if check := c.shape.Validate(result); !check.IsValid {
		c.logger.Warn("discarding malformed cached result", "key", key, "errors", check.Errors)
		return nil, nil
	}
	if !c.fresh(result) {
		c.logger.Debug("discarding stale cached result", "key", key, "validatedAt", result.Metadata.ValidatedAt)
		return nil, nil
	}

	if err := c.memory.Set(key, result.Clone(), Tag); err != nil {
		c.logger.Warn("unable to keep result in memory", "key", key, "error", err)
	}
	return &result, nil
}

// Set stores result for (value, rules). The result's ValidatedAt is stamped
// with the current time. After a successful write every in-memory entry of
// Tag is invalidated.
func (c *ValidationCache) Set(ctx context.Context, value float64, rules []validation.Rule[float64], result Result) error {
	key, err := c.key(value, rules)
	if err != nil {
		return err
	}

	stored := result.Clone()
	stored.Metadata.ValidatedAt = c.clock()
	if check := c.shape.Validate(stored); !check.IsValid {
		return errors.WithContext(
			score.InvalidParams("validation cache: result is malformed"),
			"errors", check.Errors,
		)
	}

	if !c.known(key) && c.size.Load() >= int64(c.config.MaxCacheSize) {
		c.logger.Debug("validation cache capacity reached, flushing", "size", c.size.Load(), "max", c.config.MaxCacheSize)
		if err := c.Clear(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, score.CodeCacheError, "validation cache: encode failed")
	}
	if err := c.provider.Set(ctx, key, string(payload), storage.SetOptions{TTL: c.config.TTL}); err != nil {
		return errors.Wrap(err, score.CodeCacheError, "validation cache: write failed")
	}
	c.remember(key)

	invalidated := c.memory.InvalidateTag(Tag)
	c.logger.Debug("validation result cached", "key", key, "invalidated", invalidated)
	return nil
}

// Clear flushes the provider and the in-memory tier and resets the size counter.
func (c *ValidationCache) Clear(ctx context.Context) error {
	if err := c.provider.FlushAll(ctx); err != nil {
		return errors.Wrap(err, score.CodeCacheError, "validation cache: flush failed")
	}
	c.memory.Clear()

	c.mu.Lock()
	c.written = make(map[string]struct{})
	c.size.Store(0)
	c.mu.Unlock()
	return nil
}

// Size returns the number of distinct keys written since the last flush.
// Keys the provider has since expired still count until the next flush.
func (c *ValidationCache) Size() int64 {
	return c.size.Load()
}

// Metrics returns the counters of the in-memory tier.
func (c *ValidationCache) Metrics() cache.Metrics {
	return c.memory.Metrics()
}

// Dispose stops the in-memory janitor. The durable store is left untouched.
func (c *ValidationCache) Dispose() {
	c.memory.Dispose()
}

func (c *ValidationCache) key(value float64, rules []validation.Rule[float64]) (string, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", score.InvalidParams("validation cache: value must be a finite number, got %v", value)
	}
	if len(rules) == 0 {
		return "", score.InvalidParams("validation cache: rules must not be empty")
	}
	return cache.CreateKey(value, rules)
}

func (c *ValidationCache) known(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.written[key]
	return ok
}

func (c *ValidationCache) remember(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.written[key]; !ok {
		c.written[key] = struct{}{}
		c.size.Inc()
	}
}

func (c *ValidationCache) fresh(result Result) bool {
	return c.clock().Sub(result.Metadata.ValidatedAt) <= c.config.TTL
}
