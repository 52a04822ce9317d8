// Package fairq implements a lock that serves contending goroutines in the order they started
// waiting.
//
// Spin and futex locks let whichever goroutine reaches the state word first win it, so a
// goroutine that has waited a long time can keep losing to fresh arrivals. Lock instead keeps
// an explicit FIFO of waiters, protected by its own spin lock. Unlock hands ownership directly
// to the waiter at the head of the queue and wakes only that goroutine. The state word returns
// to unlocked only when nobody is queued, so a newcomer can win the compare-and-swap only while
// the queue is empty.
//
// Example usage:
//
//	lock := fairq.New([]string{})
//
//	g := lock.Lock()
//	*g.Value() = append(*g.Value(), "entry")
//	g.Unlock()
//
// The price of fairness is a scheduler round trip on every contended hand-off: the next owner
// must be woken before the critical section can run again.
package fairq

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-guardlocks/guard"
	"github.com/ahrav/go-guardlocks/internal/rawlock"
)

const (
	unlocked uint32 = iota
	locked
)

// waiter is the queue entry of one Lock call. It is the goroutine's identity in the queue.
type waiter struct {
	wake    chan struct{}
	elem    *list.Element // non-nil while enqueued
	granted bool          // set by Unlock when ownership is handed over
}

var waiterPool = sync.Pool{
	New: func() any { return &waiter{wake: make(chan struct{}, 1)} },
}

func getWaiter() *waiter { return waiterPool.Get().(*waiter) }

func putWaiter(w *waiter) {
	select {
	case <-w.wake:
	default:
	}
	w.elem, w.granted = nil, false
	waiterPool.Put(w)
}

// Lock is a FIFO queue lock protecting a value of type T. The zero value is an unlocked Lock
// holding the zero T; the wait queue is allocated on first use.
type Lock[T any] struct {
	state atomic.Uint32
	queue rawlock.Mutex[list.List] // of *waiter

	handoffs atomic.Uint64
	spurious atomic.Uint64

	value T
}

var _ guard.Locker[int] = (*Lock[int])(nil)

// New returns an unlocked Lock holding v.
func New[T any](v T) *Lock[T] {
	return &Lock[T]{value: v}
}

// Lock acquires the lock, queueing behind goroutines that are already waiting. The fast path is
// a single compare-and-swap on the state word, which can only succeed while nobody is queued.
// Otherwise the goroutine appends itself to the tail of the queue (once, however often it is
// woken) and sleeps until an Unlock hands it ownership. A wake that does not come with
// ownership is treated as spurious and the goroutine goes back to sleep in its old position.
//
// Calling Lock again while holding the guard deadlocks.
func (l *Lock[T]) Lock() *guard.Guard[T] {
	if !l.state.CompareAndSwap(unlocked, locked) {
		l.lockSlow()
	}
	return guard.New(&l.value, (*releaser[T])(l))
}

func (l *Lock[T]) lockSlow() {
	w := getWaiter()
	defer putWaiter(w)

	for woken := false; ; woken = true {
		q := l.queue.Acquire()
		if w.granted {
			l.queue.Release()
			return
		}
		if woken {
			// Being woken is not ownership; only granted is.
			l.spurious.Add(1)
		}
		// The word is only unlocked while the queue is empty; retrying under the queue lock
		// closes the window between a failed attempt and enqueueing.
		if l.state.CompareAndSwap(unlocked, locked) {
			if w.elem != nil {
				q.Remove(w.elem)
				w.elem = nil
			}
			l.queue.Release()
			return
		}
		if w.elem == nil {
			w.elem = q.PushBack(w)
		}
		l.queue.Release()

		<-w.wake
	}
}

// TryLock acquires the lock only if it is free and nobody is queued.
func (l *Lock[T]) TryLock() (*guard.Guard[T], bool) {
	if l.state.Load() != unlocked || !l.state.CompareAndSwap(unlocked, locked) {
		return nil, false
	}
	return guard.New(&l.value, (*releaser[T])(l)), true
}

// Len returns the number of goroutines waiting in the queue.
func (l *Lock[T]) Len() int {
	q := l.queue.Acquire()
	defer l.queue.Release()
	return q.Len()
}

// IsFree returns true if the lock is currently free.
func (l *Lock[T]) IsFree() bool { return l.state.Load() == unlocked }

// Handoffs returns how many times Unlock passed ownership to a queued waiter.
func (l *Lock[T]) Handoffs() uint64 { return l.handoffs.Load() }

type releaser[T any] Lock[T]

// Release pops the head of the queue and hands it the lock, or unlocks when the queue is empty.
// On a hand-off the state word stays locked: the popped waiter is marked granted under the queue
// lock and then woken with a targeted, non-blocking send on its own channel, so no other
// goroutine can slip in between the release and the next owner's critical section. Only when
// the queue is empty does the word go back to unlocked, and that store happens under the queue
// lock so a goroutine about to enqueue observes it and retries instead of sleeping forever.
func (r *releaser[T]) Release() {
	q := r.queue.Acquire()
	var next *waiter
	if front := q.Front(); front != nil {
		next = q.Remove(front).(*waiter)
		next.elem = nil
		next.granted = true
	} else {
		r.state.Store(unlocked)
	}
	r.queue.Release()

	if next == nil {
		return
	}
	r.handoffs.Add(1)
	select {
	case next.wake <- struct{}{}:
	default:
		// A wake is already pending; the waiter will see granted when it consumes it.
	}
}
