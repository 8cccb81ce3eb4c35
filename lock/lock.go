// Package lock makes sure a single leaderboard computation runs at a time.
package lock

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrLocked    = errors.New("another leaderboard computation holds the lock")
	ErrLeaseLost = errors.New("lease expired or was taken over before release")
)

type Locker interface {
	// Acquire does not wait: it returns ErrLocked if the lock is held.
	Acquire(ctx context.Context) (Lease, error)
}

type Lease interface {
	// Done is closed once the lease is known to be lost. It is never closed by Release.
	Done() <-chan struct{}
	Release(ctx context.Context) error
}

// NewLocal returns a Locker scoped to the process.
func NewLocal() Locker {
	return &localLocker{held: make(chan struct{}, 1)}
}

type localLocker struct {
	held chan struct{}
}

func (l *localLocker) Acquire(ctx context.Context) (Lease, error) {
	select {
	case l.held <- struct{}{}:
		return &localLease{locker: l}, nil
	default:
		return nil, ErrLocked
	}
}

type localLease struct {
	locker *localLocker
	once   sync.Once
}

// A process-local lease cannot be lost.
func (l *localLease) Done() <-chan struct{} {
	return nil
}

func (l *localLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		<-l.locker.held
	})
	return nil
}
