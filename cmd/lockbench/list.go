package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/ahrav/go-guardlocks/internal/bench"
)

var descriptions = map[string]string{
	bench.Spin:    "compare-and-swap loop with a spin hint, no fairness",
	bench.Backoff: "compare-and-swap loop that sleeps between attempts",
	bench.Futex:   "spins briefly, then sleeps until the holder wakes it",
	bench.Fair:    "FIFO queue of waiters, ownership handed to the head",
}

// List implements subcommands.Command for the "list" command.
type List struct {
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*List) Name() string { return "list" }

// Synopsis implements subcommands.Command.Synopsis.
func (*List) Synopsis() string { return "list the lock variants" }

// Usage implements subcommands.Command.Usage.
func (*List) Usage() string { return "list\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (*List) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (l *List) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	out := l.out
	if out == nil {
		out = os.Stdout
	}
	for _, name := range bench.Variants() {
		fmt.Fprintf(out, "%-8s %s\n", name, descriptions[name])
	}
	return subcommands.ExitSuccess
}
