// Binary lockbench runs the contended-increment workload against the locks in this module.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

var (
	debug     = flag.Bool("debug", false, "enable debug logging.")
	logFormat = flag.String("log-format", "text", "log format: text or json.")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&List{}, "")
	subcommands.Register(&Run{}, "")

	flag.Parse()

	log := newLogger(os.Stderr)
	os.Exit(int(subcommands.Execute(context.Background(), log)))
}

func newLogger(out *os.File) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}
	if *logFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
