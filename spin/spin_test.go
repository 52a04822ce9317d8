package spin

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-guardlocks/guard"
)

func TestLockConcurrentAccess(t *testing.T) {
	lock := New(0)
	const numGoroutines = 100
	const iterations = 500
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				g := lock.Lock()
				*g.Value()++
				g.Unlock()
			}
		}()
	}
	wg.Wait()

	g := lock.Lock()
	defer g.Unlock()
	expected := numGoroutines * iterations
	assert.Equal(t, expected, g.Load(), "Expected counter to be %d, got %d", expected, g.Load())
}

func TestLockAppendUnique(t *testing.T) {
	const numGoroutines = 10_000
	lock := New(make([]int, 0, numGoroutines))
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := range numGoroutines {
		go func(i int) {
			defer wg.Done()
			guard.With(lock, func(s *[]int) { *s = append(*s, i) })
		}(i)
	}
	wg.Wait()

	g := lock.Lock()
	defer g.Unlock()
	seen := make(map[int]struct{}, numGoroutines)
	for _, v := range g.Load() {
		seen[v] = struct{}{}
	}
	assert.Len(t, g.Load(), numGoroutines)
	assert.Len(t, seen, numGoroutines, "appended indices must be unique")
}

func TestLockReleaseFreesStateWord(t *testing.T) {
	lock := New("x")
	g := lock.Lock()
	assert.False(t, lock.IsFree())
	g.Unlock()
	assert.True(t, lock.IsFree())
}

func TestLockTryLock(t *testing.T) {
	lock := New(1)

	g, ok := lock.TryLock()
	require.True(t, ok, "TryLock failed on unlocked lock")

	_, ok = lock.TryLock()
	assert.False(t, ok, "TryLock succeeded on locked lock")

	// A blocking Lock from another goroutine must wait for the guard.
	ch := make(chan struct{}, 1)
	go func() {
		g := lock.Lock()
		ch <- struct{}{}
		g.Unlock()
	}()

	select {
	case <-ch:
		t.Fatalf("Lock succeeded on locked lock")
	case <-time.After(50 * time.Millisecond):
	}

	g.Unlock()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("Lock failed to acquire unlocked lock")
	}
}

func TestBackoffLockConcurrentAccess(t *testing.T) {
	lock := NewBackoff(101)
	const numGoroutines = 10_000
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			g := lock.Lock()
			*g.Value() += 1
			g.Unlock()
		}()
	}
	wg.Wait()

	g := lock.Lock()
	defer g.Unlock()
	assert.Equal(t, 10_101, g.Load())
}

func TestBackoffLockOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     []BackoffOption
		expected time.Duration
	}{
		{"default", nil, DefaultDelay},
		{"custom", []BackoffOption{WithDelay(time.Microsecond)}, time.Microsecond},
		{"zero keeps default", []BackoffOption{WithDelay(0)}, DefaultDelay},
		{"negative keeps default", []BackoffOption{WithDelay(-time.Second)}, DefaultDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lock := NewBackoff(0, tt.opts...)
			assert.Equal(t, tt.expected, lock.Delay())
		})
	}
}

func TestBackoffLockTryLock(t *testing.T) {
	lock := NewBackoff(0)

	g, ok := lock.TryLock()
	require.True(t, ok)
	_, ok = lock.TryLock()
	assert.False(t, ok)
	g.Unlock()
	assert.True(t, lock.IsFree())
}

func TestLockStress(t *testing.T) {
	lock := New(0)
	const numGoroutines = 10
	const iterations = 1000
	var wg sync.WaitGroup

	start := time.Now()
	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				g := lock.Lock()
				time.Sleep(time.Microsecond)
				g.Unlock()
			}
		}()
	}
	wg.Wait()
	duration := time.Since(start)

	assert.Less(t, duration, 10*time.Second, "Lock stress test took too long: %v", duration)
}

// BenchmarkMutexUncontended tests mutex performance with no contention
func BenchmarkMutexUncontended(b *testing.B) {
	var mu sync.Mutex
	for i := 0; i < b.N; i++ {
		mu.Lock()
		mu.Unlock()
	}
}

func BenchmarkLockUncontended(b *testing.B) {
	lock := New(0)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		lock.Lock().Unlock()
	}
}

func BenchmarkBackoffLockUncontended(b *testing.B) {
	lock := NewBackoff(0)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		lock.Lock().Unlock()
	}
}

// BenchmarkMutexContended tests mutex performance under contention
func BenchmarkMutexContended(b *testing.B) {
	var mu sync.Mutex
	shared := 0
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			mu.Lock()
			shared++
			mu.Unlock()
		}
	})
}

func BenchmarkLockContended(b *testing.B) {
	lock := New(0)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g := lock.Lock()
			*g.Value()++
			g.Unlock()
		}
	})
}

func BenchmarkBackoffLockContended(b *testing.B) {
	lock := NewBackoff(0)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g := lock.Lock()
			*g.Value()++
			g.Unlock()
		}
	})
}
