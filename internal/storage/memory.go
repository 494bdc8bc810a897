package storage

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryProvider is a Provider keeping values in process memory.
// Expired values are removed lazily on Get.
type MemoryProvider struct {
	items map[string]memoryItem
	clock func() time.Time
	mu    sync.Mutex
}

// NewMemoryProvider creates an empty provider. A nil clock uses time.Now.
func NewMemoryProvider(clock func() time.Time) *MemoryProvider {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryProvider{
		items: make(map[string]memoryItem),
		clock: clock,
	}
}

// Get implements Provider.
func (m *MemoryProvider) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, found := m.items[key]
	if !found {
		return "", false, nil
	}
	if item.expired(m.clock()) {
		delete(m.items, key)
		return "", false, nil
	}
	return item.value, true, nil
}

// Set implements Provider.
func (m *MemoryProvider) Set(ctx context.Context, key string, value string, opts SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if opts.TTL > 0 {
		item.expiresAt = m.clock().Add(opts.TTL)
	}
	m.items[key] = item
	return nil
}

// FlushAll implements Provider.
func (m *MemoryProvider) FlushAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]memoryItem)
	return nil
}

// Len returns the number of stored values, expired ones included.
func (m *MemoryProvider) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
