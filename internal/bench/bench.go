// Package bench runs the contended-increment workload against each lock variant and verifies
// that no update was lost.
package bench

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-guardlocks/fairq"
	"github.com/ahrav/go-guardlocks/futex"
	"github.com/ahrav/go-guardlocks/guard"
	"github.com/ahrav/go-guardlocks/spin"
)

// Variant names accepted in Config.Lock.
const (
	Spin    = "spin"
	Backoff = "backoff"
	Futex   = "futex"
	Fair    = "fair"
	All     = "all"
)

var variants = []string{Spin, Backoff, Futex, Fair}

var (
	// ErrUnknownLock is returned for a lock name outside Variants.
	ErrUnknownLock = errors.New("unknown lock variant")
	// ErrLostUpdate is returned when the final counter does not match the number of increments.
	ErrLostUpdate = errors.New("lost update")
)

// Variants returns the lock names in the order Run executes them.
func Variants() []string { return slices.Clone(variants) }

func isVariant(name string) bool { return slices.Contains(variants, name) }

// Result is the outcome of running one variant.
type Result struct {
	Lock     string
	Expected int
	Final    int
	Elapsed  time.Duration
}

// Run executes cfg against the selected variants in order. It stops at the first failure.
func Run(ctx context.Context, cfg Config, log logrus.FieldLogger, m *Metrics) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	selected := []string{cfg.Lock}
	if cfg.Lock == All {
		selected = variants
	}

	results := make([]Result, 0, len(selected))
	for _, name := range selected {
		res, err := runOne(ctx, name, cfg, log.WithField("lock", name), m)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func newLock(name string, cfg Config) (guard.Locker[int], error) {
	switch name {
	case Spin:
		return spin.New(cfg.Initial), nil
	case Backoff:
		return spin.NewBackoff(cfg.Initial, spin.WithDelay(time.Duration(cfg.BackoffDelay))), nil
	case Futex:
		opts := []futex.Option{futex.WithSpin(cfg.FutexSpin)}
		if cfg.KernelWait {
			opts = append(opts, futex.WithKernelWait())
		}
		return futex.New(cfg.Initial, opts...), nil
	case Fair:
		return fairq.New(cfg.Initial), nil
	default:
		return nil, fmt.Errorf("lock %q: %w", name, ErrUnknownLock)
	}
}

func runOne(ctx context.Context, name string, cfg Config, log logrus.FieldLogger, m *Metrics) (Result, error) {
	lock, err := newLock(name, cfg)
	if err != nil {
		return Result{}, err
	}
	log = log.WithFields(logrus.Fields{
		"goroutines": cfg.Goroutines,
		"iterations": cfg.Iterations,
	})
	if fl, ok := lock.(*futex.Lock[int]); ok {
		log = log.WithField("backend", fl.Backend())
	}
	log.Debug("starting run")

	hold := time.Duration(cfg.Hold)
	g, ctx := errgroup.WithContext(ctx)
	if cfg.MaxConcurrency > 0 {
		g.SetLimit(cfg.MaxConcurrency)
	}

	start := time.Now()
	for range cfg.Goroutines {
		g.Go(func() error {
			for range cfg.Iterations {
				// Acquisition itself cannot be cancelled; stop between critical sections.
				if err := ctx.Err(); err != nil {
					return err
				}
				began := time.Now()
				gd := lock.Lock()
				m.observeAcquire(name, time.Since(began))
				*gd.Value()++
				if hold > 0 {
					time.Sleep(hold)
				}
				gd.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("running %s: %w", name, err)
	}
	elapsed := time.Since(start)

	gd := lock.Lock()
	final := gd.Load()
	gd.Unlock()

	res := Result{
		Lock:     name,
		Expected: cfg.Initial + cfg.Goroutines*cfg.Iterations,
		Final:    final,
		Elapsed:  elapsed,
	}
	m.setElapsed(name, elapsed)
	recordSlowPath(lock, name, m, log)

	if res.Final != res.Expected {
		log.WithFields(logrus.Fields{"final": res.Final, "expected": res.Expected}).Error("counter mismatch")
		return res, fmt.Errorf("%s: final %d, expected %d: %w", name, res.Final, res.Expected, ErrLostUpdate)
	}
	log.WithFields(logrus.Fields{"final": res.Final, "elapsed": elapsed}).Info("run complete")
	return res, nil
}

func recordSlowPath(lock guard.Locker[int], name string, m *Metrics, log logrus.FieldLogger) {
	switch l := lock.(type) {
	case *futex.Lock[int]:
		st := l.Stats()
		m.addSlowPath(name, "wait", st.Waits)
		m.addSlowPath(name, "wake", st.Wakes)
		log.WithFields(logrus.Fields{"waits": st.Waits, "wakes": st.Wakes}).Debug("futex slow path")
	case *fairq.Lock[int]:
		m.addSlowPath(name, "handoff", l.Handoffs())
		log.WithField("handoffs", l.Handoffs()).Debug("fair queue hand-offs")
	}
}
