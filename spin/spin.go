// Package spin implements the two busy-waiting locks: Lock, which retries its compare-and-swap
// with a spin hint between attempts, and BackoffLock, which sleeps for a short fixed delay
// between attempts to reduce traffic on the state word.
//
// Neither lock involves the scheduler beyond yielding, and neither is fair: a goroutine that
// just arrived can win the state word over one that has been spinning for a long time. Under
// heavy contention a goroutine can starve. That is the accepted trade-off for the smallest
// possible uncontended cost; use fairq when arrival order matters.
//
// Example usage:
//
//	counter := spin.New(0)
//
//	g := counter.Lock()
//	*g.Value()++
//	g.Unlock()
//
//	if g, ok := counter.TryLock(); ok {
//	    // ... critical section ...
//	    g.Unlock()
//	}
//
// A *Lock is shared between goroutines by passing the pointer around; the lock and its value
// live as long as any goroutine still references it.
package spin

import (
	"sync/atomic"

	"github.com/ahrav/go-guardlocks/guard"
	"github.com/ahrav/go-guardlocks/internal/rawlock"
)

const (
	unlocked uint32 = iota
	locked
)

// Lock is a spin lock protecting a value of type T.
type Lock[T any] struct {
	state atomic.Uint32
	value T
}

var _ guard.Locker[int] = (*Lock[int])(nil)

// New returns an unlocked Lock holding v.
func New[T any](v T) *Lock[T] { return &Lock[T]{value: v} }

// Lock spins until the lock is acquired.
func (l *Lock[T]) Lock() *guard.Guard[T] {
	for i := 0; !l.state.CompareAndSwap(unlocked, locked); i++ {
		rawlock.Pause(i)
	}
	return guard.New(&l.value, (*releaser[T])(l))
}

// TryLock acquires the lock without blocking. It returns false if another goroutine holds it.
func (l *Lock[T]) TryLock() (*guard.Guard[T], bool) {
	if l.state.Load() != unlocked || !l.state.CompareAndSwap(unlocked, locked) {
		return nil, false
	}
	return guard.New(&l.value, (*releaser[T])(l)), true
}

// IsFree returns true if the lock is currently free.
func (l *Lock[T]) IsFree() bool { return l.state.Load() == unlocked }

type releaser[T any] Lock[T]

func (r *releaser[T]) Release() { r.state.Store(unlocked) }
