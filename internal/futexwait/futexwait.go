// Package futexwait provides futex-style wait and wake operations on a 32-bit state word.
//
// Wait blocks the caller until a Wake targets the same word, but only if the word still holds
// the expected value at the moment the caller is queued. That re-check is what keeps a wake
// that races with a wait from being lost: either the waiter sees the new value and returns
// immediately, or it is already queued when the waker looks for someone to resume.
//
// Two backends implement Waiter:
//   - Queue parks goroutines on channels in a wait list guarded by a rawlock spin lock. It
//     works everywhere and blocks only the goroutine.
//   - The kernel backend (Linux only, see NewKernel) issues FUTEX_WAIT_PRIVATE and
//     FUTEX_WAKE_PRIVATE. The kernel performs the re-check, but every waiter occupies an OS
//     thread while blocked.
//
// Both backends may return from Wait without a matching Wake (the value already changed, a
// signal interrupted the syscall). Callers re-check their condition in a loop.
package futexwait

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-guardlocks/internal/rawlock"
)

// ErrUnsupported is returned by NewKernel on platforms without a futex syscall.
var ErrUnsupported = fmt.Errorf("futexwait: kernel futex: %w", errors.ErrUnsupported)

// Waiter is a futex-style wait/wake primitive keyed on the address of word.
type Waiter interface {
	// Wait blocks while *word == val until woken. It may return spuriously.
	Wait(word *atomic.Uint32, val uint32)
	// Wake resumes up to n goroutines blocked in Wait on word and returns how many it woke.
	Wake(word *atomic.Uint32, n int) int
}

type waiter struct {
	word *atomic.Uint32
	ch   chan struct{}
	next *waiter
}

var waiterPool = sync.Pool{
	New: func() any { return &waiter{ch: make(chan struct{}, 1)} },
}

// waitList is a FIFO of parked waiters.
type waitList struct {
	head, tail *waiter
	len        int
}

func (l *waitList) push(w *waiter) {
	w.next = nil
	if l.tail == nil {
		l.head = w
	} else {
		l.tail.next = w
	}
	l.tail = w
	l.len++
}

// removeMatching unlinks up to n waiters parked on word and returns them as a chain.
func (l *waitList) removeMatching(word *atomic.Uint32, n int) *waiter {
	var chain, chainTail, prev *waiter
	for w := l.head; w != nil && n > 0; {
		next := w.next
		if w.word != word {
			prev = w
			w = next
			continue
		}
		if prev == nil {
			l.head = next
		} else {
			prev.next = next
		}
		if l.tail == w {
			l.tail = prev
		}
		l.len--
		n--

		w.next = nil
		if chainTail == nil {
			chain = w
		} else {
			chainTail.next = w
		}
		chainTail = w
		w = next
	}
	return chain
}

// Queue is the in-process Waiter. Each lock owns its own Queue; there is no process-wide table.
// The zero value is an empty Queue.
type Queue struct {
	list rawlock.Mutex[waitList]
}

var _ Waiter = (*Queue)(nil)

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Wait parks the calling goroutine if *word == val.
func (q *Queue) Wait(word *atomic.Uint32, val uint32) {
	l := q.list.Acquire()
	if word.Load() != val {
		q.list.Release()
		return
	}
	w := waiterPool.Get().(*waiter)
	w.word = word
	l.push(w)
	q.list.Release()

	<-w.ch
	w.word = nil
	waiterPool.Put(w)
}

// Wake resumes up to n goroutines parked on word, oldest first.
func (q *Queue) Wake(word *atomic.Uint32, n int) int {
	if n <= 0 {
		return 0
	}
	l := q.list.Acquire()
	chain := l.removeMatching(word, n)
	q.list.Release()

	woken := 0
	for w := chain; w != nil; {
		// w may be reused as soon as it is signalled.
		next := w.next
		w.ch <- struct{}{}
		woken++
		w = next
	}
	return woken
}

// Len returns the number of parked goroutines.
func (q *Queue) Len() int {
	l := q.list.Acquire()
	defer q.list.Release()
	return l.len
}
