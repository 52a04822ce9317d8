// Package futex implements a blocking lock on a single 32-bit state word. A goroutine that
// finds the lock held spins for a short while and then sleeps until the holder wakes it, so
// contention costs no CPU once the spin budget is spent.
//
// The state word has three values: unlocked, locked, and contended. A waiter moves the word to
// contended before sleeping, which tells the releasing goroutine that a wake is needed. An
// uncontended Lock/Unlock pair therefore never touches the wait queue.
//
// Example usage:
//
//	lock := futex.New(map[string]int{})
//
//	g := lock.Lock()
//	g.Value()["hits"]++
//	g.Unlock()
//
//	// Park contending goroutines in the kernel instead of the Go scheduler (Linux only).
//	kl := futex.New(0, futex.WithKernelWait())
//
// The kernel backend blocks one OS thread per waiting goroutine. It suits a handful of
// long-waiting goroutines, not thousands.
package futex

import (
	"sync/atomic"

	"github.com/ahrav/go-guardlocks/guard"
	"github.com/ahrav/go-guardlocks/internal/futexwait"
	"github.com/ahrav/go-guardlocks/internal/rawlock"
)

const (
	unlocked uint32 = iota
	locked
	contended // locked, and at least one goroutine may be sleeping
)

// DefaultSpin is the number of spin attempts made before a goroutine sleeps.
const DefaultSpin = 100

// Backend names reported by Lock.Backend.
const (
	BackendQueue  = "queue"
	BackendKernel = "kernel"
)

// Lock is a futex-style lock protecting a value of type T. The zero value is an unlocked Lock
// holding the zero T that sleeps in the in-process queue without spinning first; use New for
// the default spin budget and the kernel backend.
type Lock[T any] struct {
	state  atomic.Uint32
	queue  futexwait.Queue
	kernel futexwait.Waiter // nil unless WithKernelWait took effect
	spin   int

	waits atomic.Uint64
	wakes atomic.Uint64

	value T
}

var _ guard.Locker[int] = (*Lock[int])(nil)

// Option configures a Lock.
type Option func(*config)

type config struct {
	spin   int
	kernel bool
}

// WithSpin sets how many times a contending goroutine polls the state word before sleeping.
// Zero sleeps right after the first failed attempt.
func WithSpin(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.spin = n
		}
	}
}

// WithKernelWait parks contending goroutines with futex(2). On platforms without it the
// in-process queue is kept.
func WithKernelWait() Option {
	return func(c *config) { c.kernel = true }
}

// Stats counts the slow-path events of a Lock.
type Stats struct {
	Waits uint64 // times a goroutine went to sleep
	Wakes uint64 // wake signals issued by Unlock
}

// New returns an unlocked Lock holding v.
func New[T any](v T, opts ...Option) *Lock[T] {
	cfg := config{spin: DefaultSpin}
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Lock[T]{spin: cfg.spin, value: v}
	if cfg.kernel {
		if w, err := futexwait.NewKernel(); err == nil {
			l.kernel = w
		}
	}
	return l
}

func (l *Lock[T]) waiter() futexwait.Waiter {
	if l.kernel != nil {
		return l.kernel
	}
	return &l.queue
}

// Lock acquires the lock, sleeping if it stays held past the spin budget. The uncontended path
// is one compare-and-swap from unlocked to locked. On failure the goroutine polls the state word
// for up to the spin budget, hoping the holder releases soon. After that it swaps the word to
// contended, which both claims the lock if it was released in the meantime and tells the holder
// that Unlock must issue a wake, then sleeps until the word changes. A goroutine that wins the
// lock through that swap leaves the word contended, since other sleepers may still exist; at
// worst this costs one unneeded wake.
//
// Calling Lock again while holding the guard deadlocks.
func (l *Lock[T]) Lock() *guard.Guard[T] {
	if !l.state.CompareAndSwap(unlocked, locked) {
		l.lockSlow()
	}
	return guard.New(&l.value, (*releaser[T])(l))
}

func (l *Lock[T]) lockSlow() {
	for i := 0; i < l.spin && l.state.Load() == locked; i++ {
		rawlock.Pause(i)
	}
	if l.state.CompareAndSwap(unlocked, locked) {
		return
	}

	// The swap both claims the lock when it is free and marks it contended when it is not.
	// Once marked, we may own the lock while other sleepers exist, so we keep contended and
	// the next Unlock issues a wake.
	for l.state.Swap(contended) != unlocked {
		l.waits.Add(1)
		l.waiter().Wait(&l.state, contended)
	}
}

// TryLock acquires the lock without blocking.
func (l *Lock[T]) TryLock() (*guard.Guard[T], bool) {
	if l.state.Load() != unlocked || !l.state.CompareAndSwap(unlocked, locked) {
		return nil, false
	}
	return guard.New(&l.value, (*releaser[T])(l)), true
}

// IsFree returns true if the lock is currently free.
func (l *Lock[T]) IsFree() bool { return l.state.Load() == unlocked }

// Backend returns BackendKernel or BackendQueue.
func (l *Lock[T]) Backend() string {
	if l.kernel != nil {
		return BackendKernel
	}
	return BackendQueue
}

// Stats returns the slow-path counters accumulated so far.
func (l *Lock[T]) Stats() Stats {
	return Stats{Waits: l.waits.Load(), Wakes: l.wakes.Load()}
}

type releaser[T any] Lock[T]

// Release stores unlocked and wakes one sleeper if the word was marked contended. The swap
// publishes the critical section's writes before any waiter can observe the free word. When
// the previous value was plain locked nobody went to sleep since the lock was taken, so the
// wait queue is not touched. Exactly one sleeper is woken; it retries the swap and, if a
// newcomer got there first, marks the word contended again and goes back to sleep.
func (r *releaser[T]) Release() {
	if r.state.Swap(unlocked) == contended {
		r.wakes.Add(1)
		(*Lock[T])(r).waiter().Wake(&r.state, 1)
	}
}
