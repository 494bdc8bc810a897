package cache

import (
	"log/slog"
	"time"
)

// Defaults applied by New when no option overrides them.
const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxEntries      = 1000
	DefaultCleanupInterval = time.Minute
	DefaultRecentSamples   = 64
)

// Clock returns the current time. Stores and façades accept one so that
// TTL behaviour can be driven deterministically.
type Clock func() time.Time

// Option configures a Store.
type Option func(*options)

type options struct {
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	recentSamples   int
	clock           Clock
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		ttl:             DefaultTTL,
		maxEntries:      DefaultMaxEntries,
		cleanupInterval: DefaultCleanupInterval,
		recentSamples:   DefaultRecentSamples,
		clock:           time.Now,
		logger:          slog.Default(),
	}
}

// WithTTL sets the maximum age of a fresh entry.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithMaxEntries sets the capacity that triggers a full flush. Zero disables the limit.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxEntries = n
		}
	}
}

// WithCleanupInterval sets the janitor period. Zero or negative disables the janitor.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = d
	}
}

// WithRecentSamples sets how many access-time samples the metrics keep.
func WithRecentSamples(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.recentSamples = n
		}
	}
}

// WithClock replaces the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger used for eviction and cleanup events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
