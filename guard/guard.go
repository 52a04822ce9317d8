// Package guard provides the scoped ownership handle shared by every lock in this module.
//
// A Guard is returned by a successful Lock or TryLock and represents exclusive access to the
// value protected by that lock. Calling Unlock on the guard runs the owning lock's release
// sequence exactly once: a plain store for the spin locks, store plus wake for the futex lock,
// and dequeue plus targeted hand-off for the fair queue lock.
//
// Example usage:
//
//	lock := spin.New(0)
//
//	g := lock.Lock()
//	*g.Value() += 1
//	g.Unlock()
//
//	// Scoped form, released even if fn panics.
//	guard.With(lock, func(v *int) { *v += 1 })
//
// Go has no destructors, so release is explicit: pair every Lock with a deferred Unlock or use
// With. A guard must not be copied; go vet reports copies through the embedded noCopy marker.
// Locking the same lock again while holding its guard deadlocks and is not detected.
package guard

import "fmt"

// Releaser is implemented by locks that hand out guards. Release is called exactly once per
// guard, by Guard.Unlock.
type Releaser interface {
	Release()
}

// Locker is the contract shared by all guard-based locks.
type Locker[T any] interface {
	// Lock blocks until exclusive access is granted.
	Lock() *Guard[T]
	// TryLock acquires the lock only if it is free right now.
	TryLock() (*Guard[T], bool)
}

// Guard grants exclusive access to a lock's value until Unlock is called.
type Guard[T any] struct {
	_        noCopy
	value    *T
	owner    Releaser
	released bool
}

// New returns a guard over value that calls owner.Release on Unlock. It is intended for lock
// implementations; callers get guards from Lock and TryLock.
func New[T any](value *T, owner Releaser) *Guard[T] {
	return &Guard[T]{value: value, owner: owner}
}

// Value returns a pointer to the protected value. The pointer must not be retained after Unlock.
func (g *Guard[T]) Value() *T {
	g.mustHold("Value")
	return g.value
}

// Load returns a copy of the protected value.
func (g *Guard[T]) Load() T { return *g.Value() }

// Store replaces the protected value.
func (g *Guard[T]) Store(v T) { *g.Value() = v }

// String formats the protected value with the default fmt verb.
func (g *Guard[T]) String() string { return fmt.Sprint(*g.Value()) }

// Unlock releases the owning lock. Unlocking a guard twice panics.
func (g *Guard[T]) Unlock() {
	g.mustHold("Unlock")
	g.released = true
	g.value = nil
	g.owner.Release()
}

func (g *Guard[T]) mustHold(op string) {
	if g.released {
		panic(fmt.Sprintf("guard: %s called on released guard", op))
	}
}

// With locks l, calls fn with the protected value and unlocks before returning, including when
// fn panics.
func With[T any](l Locker[T], fn func(*T)) {
	g := l.Lock()
	defer g.Unlock()
	fn(g.Value())
}

// Try is the non-blocking form of With. It reports whether fn ran.
func Try[T any](l Locker[T], fn func(*T)) bool {
	g, ok := l.TryLock()
	if !ok {
		return false
	}
	defer g.Unlock()
	fn(g.Value())
	return true
}

// noCopy may be embedded into structs which must not be copied after first use. See
// https://golang.org/issues/8005#issuecomment-190753527 for details.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
