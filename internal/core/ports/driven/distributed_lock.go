package driven

import (
	"context"
	"time"
)

// DistributedLock keeps a named job to one runner across API instances.
// The sync runner takes one lock per source.
type DistributedLock interface {
	// Acquire attempts to take the named lock for at most ttl.
	// Returns false without error when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives the lock back. Safe to call when the lock has expired.
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
