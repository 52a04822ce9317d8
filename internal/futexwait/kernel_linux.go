//go:build linux

package futexwait

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Operations from linux/futex.h; FUTEX_PRIVATE_FLAG restricts the key to this process.
const (
	futexWaitPrivate = 0 | 128
	futexWakePrivate = 1 | 128
)

type kernel struct{}

// NewKernel returns the futex(2) backed Waiter. It issues one FUTEX_WAKE on a private word first
// and reports ErrUnsupported if that fails, e.g. under a seccomp filter that denies futex.
func NewKernel() (Waiter, error) {
	var word atomic.Uint32
	if errno := futex(&word, futexWakePrivate, 1); errno != 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, errno)
	}
	return kernel{}, nil
}

func futex(word *atomic.Uint32, op int, val uint32) unix.Errno {
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(word)), uintptr(op), uintptr(val), 0, 0, 0)
	return errno
}

// waitInterrupted reports whether errno is an expected FUTEX_WAIT outcome: woken (0), the value
// already changed (EAGAIN), or a signal arrived (EINTR).
func waitInterrupted(errno unix.Errno) bool {
	return errno == 0 || errno == unix.EAGAIN || errno == unix.EINTR
}

// Wait issues FUTEX_WAIT and returns to the caller, which re-checks the word. Any unexpected
// error yields the processor so a caller looping on Wait degrades to a yielding spin instead of
// a hot one.
func (kernel) Wait(word *atomic.Uint32, val uint32) {
	if errno := futex(word, futexWaitPrivate, val); !waitInterrupted(errno) {
		runtime.Gosched()
	}
}

// Wake issues FUTEX_WAKE for up to n waiters.
func (kernel) Wake(word *atomic.Uint32, n int) int {
	if n <= 0 {
		return 0
	}
	r, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(word)), futexWakePrivate, uintptr(n), 0, 0, 0)
	if errno != 0 {
		return 0
	}
	return int(r)
}
