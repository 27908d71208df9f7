// Package syncutil holds a small channel-based mutex whose lock attempt
// can itself be canceled, which a plain sync.Mutex cannot do. The
// breakpoint manager holds one, though none of its methods lock it.
package syncutil

import "context"

// Mutex behaves like sync.Mutex except:
//  1. it must be initialized with New before use;
//  2. a pending Lock can be aborted by canceling the given context.
type Mutex chan struct{}

// New returns a ready-to-use, unlocked Mutex.
func New() Mutex {
	m := make(Mutex, 1)
	m <- struct{}{}
	return m
}

// Lock blocks until the mutex is acquired or ctx is done, whichever comes
// first.
func (m Mutex) Lock(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m:
		return nil
	}
}

// Unlock releases the mutex. Calling Unlock without a matching successful
// Lock panics, the same as sync.Mutex.
func (m Mutex) Unlock() {
	select {
	case m <- struct{}{}:
	default:
		panic("syncutil: unlock of unlocked Mutex")
	}
}
