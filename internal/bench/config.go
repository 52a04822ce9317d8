package bench

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that decodes from TOML strings such as "50ns" or "1ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config describes one benchmark workload.
type Config struct {
	// Lock selects the variant to run: one of Variants, or "all".
	Lock string `toml:"lock"`
	// Goroutines is the number of contending goroutines.
	Goroutines int `toml:"goroutines"`
	// Iterations is the number of increments each goroutine performs.
	Iterations int `toml:"iterations"`
	// Initial is the starting value of the shared counter.
	Initial int `toml:"initial"`
	// Hold is how long each critical section sleeps while holding the lock.
	Hold Duration `toml:"hold"`
	// MaxConcurrency bounds how many goroutines run at once. Zero means unbounded.
	MaxConcurrency int `toml:"max_concurrency"`

	// BackoffDelay is the pause between attempts of the backoff lock.
	BackoffDelay Duration `toml:"backoff_delay"`
	// FutexSpin is the spin budget of the futex lock before it sleeps.
	FutexSpin int `toml:"futex_spin"`
	// KernelWait parks futex lock waiters with futex(2) where available.
	KernelWait bool `toml:"kernel_wait"`
}

// DefaultConfig mirrors the increment workload the locks were first exercised with.
func DefaultConfig() Config {
	return Config{
		Lock:       All,
		Goroutines: 10_000,
		Iterations: 1,
		Initial:    1,
		FutexSpin:  100,
	}
}

// LoadConfig decodes the TOML file at path over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("loading config %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("loading config %q: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

// Validate reports every problem with c.
func (c Config) Validate() error {
	var errs []error
	if c.Lock != All && !isVariant(c.Lock) {
		errs = append(errs, fmt.Errorf("lock %q: %w", c.Lock, ErrUnknownLock))
	}
	if c.Goroutines < 0 {
		errs = append(errs, fmt.Errorf("goroutines must not be negative, got %d", c.Goroutines))
	}
	if c.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must not be negative, got %d", c.Iterations))
	}
	if c.Hold < 0 {
		errs = append(errs, fmt.Errorf("hold must not be negative, got %v", time.Duration(c.Hold)))
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("max_concurrency must not be negative, got %d", c.MaxConcurrency))
	}
	if c.FutexSpin < 0 {
		errs = append(errs, fmt.Errorf("futex_spin must not be negative, got %d", c.FutexSpin))
	}
	return errors.Join(errs...)
}
