package spin

import (
	"sync/atomic"
	"time"

	"github.com/ahrav/go-guardlocks/guard"
)

// DefaultDelay is the pause between attempts used by NewBackoff.
const DefaultDelay = 50 * time.Nanosecond

// BackoffLock is a spin lock that sleeps between failed attempts instead of spinning.
// The sleep trades acquisition latency for less contention on the state word; the runtime
// rounds very short sleeps up to its timer resolution.
type BackoffLock[T any] struct {
	state atomic.Uint32
	delay time.Duration
	value T
}

var _ guard.Locker[int] = (*BackoffLock[int])(nil)

// BackoffOption configures a BackoffLock.
type BackoffOption func(*backoffConfig)

type backoffConfig struct {
	delay time.Duration
}

// WithDelay sets the pause between attempts. Non-positive values keep DefaultDelay.
func WithDelay(d time.Duration) BackoffOption {
	return func(c *backoffConfig) {
		if d > 0 {
			c.delay = d
		}
	}
}

// NewBackoff returns an unlocked BackoffLock holding v.
func NewBackoff[T any](v T, opts ...BackoffOption) *BackoffLock[T] {
	cfg := backoffConfig{delay: DefaultDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &BackoffLock[T]{delay: cfg.delay, value: v}
}

// Lock acquires the lock, sleeping for the configured delay after every failed attempt.
func (l *BackoffLock[T]) Lock() *guard.Guard[T] {
	for !l.state.CompareAndSwap(unlocked, locked) {
		time.Sleep(l.delay)
	}
	return guard.New(&l.value, (*backoffReleaser[T])(l))
}

// TryLock acquires the lock without blocking.
func (l *BackoffLock[T]) TryLock() (*guard.Guard[T], bool) {
	if l.state.Load() != unlocked || !l.state.CompareAndSwap(unlocked, locked) {
		return nil, false
	}
	return guard.New(&l.value, (*backoffReleaser[T])(l)), true
}

// Delay returns the pause between attempts.
func (l *BackoffLock[T]) Delay() time.Duration { return l.delay }

// IsFree returns true if the lock is currently free.
func (l *BackoffLock[T]) IsFree() bool { return l.state.Load() == unlocked }

type backoffReleaser[T any] BackoffLock[T]

func (r *backoffReleaser[T]) Release() { r.state.Store(unlocked) }
