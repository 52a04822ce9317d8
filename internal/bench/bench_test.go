package bench

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Goroutines = 50
	cfg.Iterations = 20
	return cfg
}

func TestRunAllVariants(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	m := NewMetrics()

	results, err := Run(context.Background(), smallConfig(), logger, m)
	require.NoError(t, err)
	require.Len(t, results, len(Variants()))

	for i, res := range results {
		assert.Equal(t, Variants()[i], res.Lock)
		assert.Equal(t, 1+50*20, res.Final)
		assert.Equal(t, res.Expected, res.Final)
		assert.Equal(t, float64(50*20), testutil.ToFloat64(m.acquisitions.WithLabelValues(res.Lock)))
	}

	var complete int
	for _, e := range hook.AllEntries() {
		if e.Message == "run complete" {
			complete++
			assert.Equal(t, logrus.InfoLevel, e.Level)
			assert.Contains(t, e.Data, "lock")
		}
	}
	assert.Equal(t, len(Variants()), complete)
}

func TestRunSingleVariantWithHold(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	cfg := smallConfig()
	cfg.Lock = Futex
	cfg.Hold = Duration(10 * time.Microsecond)
	cfg.FutexSpin = 0
	cfg.MaxConcurrency = 8
	m := NewMetrics()

	results, err := Run(context.Background(), cfg, logger, m)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, Futex, results[0].Lock)
	assert.Equal(t, cfg.Initial+cfg.Goroutines*cfg.Iterations, results[0].Final)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), `lockbench_acquire_wait_seconds_count{lock="futex"} 1000`)
	assert.Contains(t, buf.String(), `lockbench_run_seconds{lock="futex"}`)
}

func TestRunNilMetrics(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	cfg := smallConfig()
	cfg.Lock = Spin

	_, err := Run(context.Background(), cfg, logger, nil)
	assert.NoError(t, err)
}

func TestRunZeroGoroutines(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	cfg := smallConfig()
	cfg.Goroutines = 0
	cfg.Initial = 101

	results, err := Run(context.Background(), cfg, logger, nil)
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, 101, res.Final)
	}
}

func TestRunCancelled(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, smallConfig(), logger, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		wantMsg string
	}{
		{"default", func(*Config) {}, nil, ""},
		{"every variant", func(c *Config) { c.Lock = Fair }, nil, ""},
		{"unknown lock", func(c *Config) { c.Lock = "ticket" }, ErrUnknownLock, "ticket"},
		{"negative goroutines", func(c *Config) { c.Goroutines = -1 }, nil, "goroutines"},
		{"negative iterations", func(c *Config) { c.Iterations = -1 }, nil, "iterations"},
		{"negative hold", func(c *Config) { c.Hold = -1 }, nil, "hold"},
		{"negative concurrency", func(c *Config) { c.MaxConcurrency = -2 }, nil, "max_concurrency"},
		{"negative spin", func(c *Config) { c.FutexSpin = -2 }, nil, "futex_spin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
lock = "backoff"
goroutines = 8
iterations = 3
hold = "2us"
backoff_delay = "100ns"
kernel_wait = true
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Backoff, cfg.Lock)
	assert.Equal(t, 8, cfg.Goroutines)
	assert.Equal(t, 3, cfg.Iterations)
	assert.Equal(t, Duration(2*time.Microsecond), cfg.Hold)
	assert.Equal(t, Duration(100*time.Nanosecond), cfg.BackoffDelay)
	assert.True(t, cfg.KernelWait)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, DefaultConfig().Initial, cfg.Initial)
	assert.Equal(t, DefaultConfig().FutexSpin, cfg.FutexSpin)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("lokc = \"spin\"\n"), 0o644))
	_, err = LoadConfig(unknown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lokc")

	badDuration := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(badDuration, []byte("hold = \"soon\"\n"), 0o644))
	_, err = LoadConfig(badDuration)
	assert.Error(t, err)
}

func TestNewLockUnknown(t *testing.T) {
	_, err := newLock("ticket", DefaultConfig())
	assert.ErrorIs(t, err, ErrUnknownLock)
}
