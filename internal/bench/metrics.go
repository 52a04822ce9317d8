package bench

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metrics collects per-variant contention measurements in a private registry. A nil *Metrics
// records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	wait         *prometheus.HistogramVec
	acquisitions *prometheus.CounterVec
	slowPath     *prometheus.CounterVec
	elapsed      *prometheus.GaugeVec
}

// NewMetrics registers the benchmark collectors in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lockbench",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent inside Lock before the guard was returned.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
		}, []string{"lock"}),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockbench",
			Name:      "acquisitions_total",
			Help:      "Guards handed out.",
		}, []string{"lock"}),
		slowPath: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockbench",
			Name:      "slow_path_events_total",
			Help:      "Sleeps, wakes and hand-offs reported by the blocking locks.",
		}, []string{"lock", "event"}),
		elapsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lockbench",
			Name:      "run_seconds",
			Help:      "Wall time of the last run.",
		}, []string{"lock"}),
	}
	m.registry.MustRegister(m.wait, m.acquisitions, m.slowPath, m.elapsed)
	return m
}

func (m *Metrics) observeAcquire(lock string, wait time.Duration) {
	if m == nil {
		return
	}
	m.wait.WithLabelValues(lock).Observe(wait.Seconds())
	m.acquisitions.WithLabelValues(lock).Inc()
}

func (m *Metrics) addSlowPath(lock, event string, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.slowPath.WithLabelValues(lock, event).Add(float64(n))
}

func (m *Metrics) setElapsed(lock string, d time.Duration) {
	if m == nil {
		return
	}
	m.elapsed.WithLabelValues(lock).Set(d.Seconds())
}

// Gather returns the collected metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) { return m.registry.Gather() }

// WriteText writes every metric family in the Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	mfs, err := m.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
