package shared

import (
	"context"
	"time"
)

// RunLock serializes exclusive background runs (e.g. reconciliation runs)
// across service instances. Acquire is atomic; a held lock expires after
// its TTL so a crashed run never blocks the tenant forever.
type RunLock interface {
	// Acquire attempts to take the lock for the given key.
	// Returns true if the lock was newly acquired, false if it is held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release releases the lock for the given key.
	Release(ctx context.Context, key string) error

	// Close closes the lock store and releases resources
	Close() error
}
