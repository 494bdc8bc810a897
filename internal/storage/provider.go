// Package storage defines the durable storage capability used by the
// validation cache, together with an in-process implementation.
package storage

import (
	"context"
	"time"
)

// SetOptions tune a single write.
type SetOptions struct {
	// TTL: lifetime of the stored value. Zero means no expiry.
	TTL time.Duration
}

// Provider is a durable key-value store holding JSON text.
// Implementations may block; every call receives the caller's context.
type Provider interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value string, opts SetOptions) error
	// FlushAll removes every stored value.
	FlushAll(ctx context.Context) error
}
