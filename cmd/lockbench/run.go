package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/ahrav/go-guardlocks/internal/bench"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	configPath string
	metrics    bool

	lock           string
	goroutines     int
	iterations     int
	initial        int
	hold           time.Duration
	maxConcurrency int
	backoffDelay   time.Duration
	futexSpin      int
	kernelWait     bool

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string { return "run" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string { return "run the contended-increment workload" }

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags]

Spawns -goroutines goroutines that each increment a shared counter -iterations
times through the selected lock, then checks that no increment was lost.
Flags override values from -config.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	def := bench.DefaultConfig()
	f.StringVar(&r.configPath, "config", "", "path to a TOML workload file.")
	f.BoolVar(&r.metrics, "metrics", false, "print Prometheus metrics after the run.")
	f.StringVar(&r.lock, "lock", def.Lock, "lock variant to run, or \"all\".")
	f.IntVar(&r.goroutines, "goroutines", def.Goroutines, "number of contending goroutines.")
	f.IntVar(&r.iterations, "iterations", def.Iterations, "increments per goroutine.")
	f.IntVar(&r.initial, "initial", def.Initial, "initial counter value.")
	f.DurationVar(&r.hold, "hold", time.Duration(def.Hold), "time to sleep while holding the lock.")
	f.IntVar(&r.maxConcurrency, "max-concurrency", def.MaxConcurrency, "goroutines running at once, 0 for unbounded.")
	f.DurationVar(&r.backoffDelay, "backoff-delay", time.Duration(def.BackoffDelay), "pause between attempts of the backoff lock.")
	f.IntVar(&r.futexSpin, "futex-spin", def.FutexSpin, "spin attempts before the futex lock sleeps.")
	f.BoolVar(&r.kernelWait, "kernel", def.KernelWait, "park futex lock waiters with futex(2) when available.")
}

// config resolves the workload: defaults, then the config file, then explicitly set flags.
func (r *Run) config(f *flag.FlagSet) (bench.Config, error) {
	cfg := bench.DefaultConfig()
	if r.configPath != "" {
		var err error
		if cfg, err = bench.LoadConfig(r.configPath); err != nil {
			return cfg, err
		}
	}
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "lock":
			cfg.Lock = r.lock
		case "goroutines":
			cfg.Goroutines = r.goroutines
		case "iterations":
			cfg.Iterations = r.iterations
		case "initial":
			cfg.Initial = r.initial
		case "hold":
			cfg.Hold = bench.Duration(r.hold)
		case "max-concurrency":
			cfg.MaxConcurrency = r.maxConcurrency
		case "backoff-delay":
			cfg.BackoffDelay = bench.Duration(r.backoffDelay)
		case "futex-spin":
			cfg.FutexSpin = r.futexSpin
		case "kernel":
			cfg.KernelWait = r.kernelWait
		}
	})
	return cfg, cfg.Validate()
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	log := args[0].(logrus.FieldLogger)
	out := r.out
	if out == nil {
		out = os.Stdout
	}

	cfg, err := r.config(f)
	if err != nil {
		log.WithError(err).Error("invalid workload")
		return subcommands.ExitUsageError
	}

	var m *bench.Metrics
	if r.metrics {
		m = bench.NewMetrics()
	}
	results, err := bench.Run(ctx, cfg, log, m)
	for _, res := range results {
		fmt.Fprintf(out, "%-8s final=%d took %v\n", res.Lock, res.Final, res.Elapsed)
	}
	if err != nil {
		log.WithError(err).Error("run failed")
		return subcommands.ExitFailure
	}

	if m != nil {
		if err := m.WriteText(out); err != nil {
			log.WithError(err).Warn("failed to write metrics")
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
