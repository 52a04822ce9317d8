//go:build !linux

package futexwait

// NewKernel reports ErrUnsupported; only Linux exposes futex(2).
func NewKernel() (Waiter, error) { return nil, ErrUnsupported }
