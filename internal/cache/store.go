package cache

import (
	"log/slog"
	"sync"
	"time"

	"examscore/internal/score"
)

// Entry is a cached value with its timestamps. Entries are replaced
// wholesale on Set and never mutated in place.
type Entry[V any] struct {
	Value       V         `json:"value"`
	LastUpdated time.Time `json:"lastUpdated"`
	ComputedAt  time.Time `json:"computedAt"`
}

// Store is a thread-safe in-memory cache with TTL expiry, clear-all-on-capacity
// eviction and tag-based bulk invalidation.
//
// Expired entries are dropped lazily on Get and actively by a janitor goroutine
// started at construction. Dispose stops the janitor.
//
// Example:
//
//	store := cache.New[int](cache.WithTTL(time.Minute), cache.WithMaxEntries(100))
//	defer store.Dispose()
//	_ = store.Set("math", 80)
//	entry, ok := store.Get("math")
type Store[V any] struct {
	ttl        time.Duration
	maxEntries int
	clock      Clock
	logger     *slog.Logger

	entries map[string]Entry[V]
	keyTags map[string][]string            // tags attached to each key
	tagKeys map[string]map[string]struct{} // keys grouped under each tag
	metrics *recorder
	mu      sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a store and starts its janitor when a cleanup interval is set.
func New[V any](opts ...Option) *Store[V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[V]{
		ttl:        o.ttl,
		maxEntries: o.maxEntries,
		clock:      o.clock,
		logger:     o.logger,
		entries:    make(map[string]Entry[V]),
		keyTags:    make(map[string][]string),
		tagKeys:    make(map[string]map[string]struct{}),
		metrics:    newRecorder(o.recentSamples),
		stop:       make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go s.serve(time.NewTicker(o.cleanupInterval))
	}
	return s
}

// TTL returns the freshness window of the store.
func (s *Store[V]) TTL() time.Duration {
	return s.ttl
}

// Get returns the entry for key when it exists and its age does not exceed
// the TTL. An expired entry is removed and counted as a miss.
func (s *Store[V]) Get(key string) (Entry[V], bool) {
	started := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	defer func() { s.metrics.access(time.Since(started), now) }()

	entry, found := s.entries[key]
	if !found {
		s.metrics.miss()
		return Entry[V]{}, false
	}

	if now.Sub(entry.LastUpdated) > s.ttl {
		s.removeLocked(key)
		s.metrics.miss()
		return Entry[V]{}, false
	}

	s.metrics.hit()
	return entry, true
}

// Set stores value under key, replacing any previous entry and refreshing its
// timestamps. Tags group the entry for InvalidateTag. When the store is full
// and key is new, every entry is flushed before the write.
func (s *Store[V]) Set(key string, value V, tags ...string) error {
	if key == "" {
		return score.InvalidParams("cache: key must not be empty")
	}
	started := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	defer func() { s.metrics.access(time.Since(started), now) }()

	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.logger.Debug("cache capacity reached, flushing", "entries", len(s.entries), "max", s.maxEntries)
		s.flushLocked()
	}

	s.removeLocked(key)
	s.entries[key] = Entry[V]{
		Value:       value,
		LastUpdated: now,
		ComputedAt:  now,
	}
	if len(tags) > 0 {
		s.keyTags[key] = append([]string(nil), tags...)
		for _, tag := range tags {
			keys, ok := s.tagKeys[tag]
			if !ok {
				keys = make(map[string]struct{})
				s.tagKeys[tag] = keys
			}
			keys[key] = struct{}{}
		}
	}
	return nil
}

// Delete removes key. Missing keys are ignored.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
}

// InvalidateTag removes every entry carrying tag and returns how many were removed.
func (s *Store[V]) InvalidateTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.tagKeys[tag]
	removed := 0
	for key := range keys {
		if _, ok := s.entries[key]; ok {
			removed++
		}
		s.removeLocked(key)
	}
	delete(s.tagKeys, tag)
	return removed
}

// Cleanup removes the entries older than maxAge and returns how many were removed.
func (s *Store[V]) Cleanup(maxAge time.Duration) int {
	var outdated []string

	s.mu.RLock()
	now := s.clock()
	for key, entry := range s.entries {
		if now.Sub(entry.LastUpdated) > maxAge {
			outdated = append(outdated, key)
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	now = s.clock()
	removed := 0
	for _, key := range outdated {
		// An entry refreshed between the two locks is no longer stale.
		if entry, ok := s.entries[key]; ok && now.Sub(entry.LastUpdated) > maxAge {
			s.removeLocked(key)
			removed++
		}
	}
	s.metrics.cleanup(now)
	if removed > 0 {
		s.logger.Debug("cache cleanup", "removed", removed, "remaining", len(s.entries))
	}
	return removed
}

// Flush drops every entry but keeps the metrics.
func (s *Store[V]) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

// Clear drops every entry and resets the metrics.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	s.metrics.reset()
}

// Len returns the number of resident entries, expired ones included.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Metrics returns a snapshot of the counters.
func (s *Store[V]) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.snapshot()
}

// Dispose stops the janitor and releases every entry. It is safe to call
// more than once; the store remains usable without background cleanup.
func (s *Store[V]) Dispose() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.Clear()
}

func (s *Store[V]) serve(ticker *time.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup(s.ttl)
		case <-s.stop:
			return
		}
	}
}

func (s *Store[V]) removeLocked(key string) {
	delete(s.entries, key)
	for _, tag := range s.keyTags[key] {
		if keys, ok := s.tagKeys[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.tagKeys, tag)
			}
		}
	}
	delete(s.keyTags, key)
}

func (s *Store[V]) flushLocked() {
	s.entries = make(map[string]Entry[V])
	s.keyTags = make(map[string][]string)
	s.tagKeys = make(map[string]map[string]struct{})
}
