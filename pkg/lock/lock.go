// Package lock provides run-level mutual exclusion for reconcilers. A run that
// cannot take its lock is skipped, never queued.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock: not acquired")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive leases keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Nop grants every request. Used when LOCK_BACKEND=none.
type Nop struct{}

func (Nop) Acquire(context.Context, string, time.Duration) (Lease, error) {
	return nopLease{}, nil
}

type nopLease struct{}

func (nopLease) Release(context.Context) error { return nil }
