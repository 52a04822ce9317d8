// Package rawlock implements the manual-release spin lock the other locks are built from.
//
// Mutex owns a separately allocated value and hands out a bare pointer to it on Acquire. The
// caller must call Release exactly once per successful Acquire and must not use the pointer
// after Release. Neither rule is checked; breaking them is a data race. The guard-based locks
// are the supported public surface, this package exists for code inside the module that needs
// a lock before guards exist (the fair lock's wait queue, the futex wait queue).
package rawlock

import (
	"runtime"
	"sync/atomic"
)

const (
	unlocked uint32 = iota
	locked
)

// spinIterations is how many failed attempts are made between yields.
const spinIterations = 16

// Mutex is a test-and-set spin lock guarding a value of type T. The zero value is an unlocked
// Mutex whose value is allocated, as the zero T, by the first successful Acquire.
type Mutex[T any] struct {
	state atomic.Uint32
	value *T
}

// New allocates v on its own and returns an unlocked Mutex owning it.
func New[T any](v T) *Mutex[T] {
	value := new(T)
	*value = v
	return &Mutex[T]{value: value}
}

// Acquire spins until the lock is held and returns the protected value.
func (m *Mutex[T]) Acquire() *T {
	for i := 0; !m.state.CompareAndSwap(unlocked, locked); i++ {
		Pause(i)
	}
	return m.owned()
}

// TryAcquire acquires the lock only if it is free.
func (m *Mutex[T]) TryAcquire() (*T, bool) {
	if m.state.Load() != unlocked || !m.state.CompareAndSwap(unlocked, locked) {
		return nil, false
	}
	return m.owned(), true
}

// owned returns the value, allocating it on first use. The caller holds the lock.
func (m *Mutex[T]) owned() *T {
	if m.value == nil {
		m.value = new(T)
	}
	return m.value
}

// Release unlocks the mutex. Calling it without a matching Acquire is undefined.
func (m *Mutex[T]) Release() { m.state.Store(unlocked) }

// Locked reports whether the mutex is currently held.
func (m *Mutex[T]) Locked() bool { return m.state.Load() == locked }

// Pause is the spin hint used between failed attempts. Go exposes no PAUSE instruction, so
// every spinIterations-th attempt yields the processor to let the holder run.
func Pause(attempt int) {
	if attempt%spinIterations == spinIterations-1 {
		runtime.Gosched()
		return
	}
	for range 4 * (attempt%spinIterations + 1) {
		// Empty spin loop.
	}
}
