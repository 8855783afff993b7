package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	LockResourcePackage      = "package"
	LockResourceStudent      = "student"
	LockResourceNotification = "notification"
	LockResourceBill         = "bill"
)

const (
	LockOutcomeAcquired = "acquired"
	LockOutcomeTimeout  = "timeout"
	LockOutcomeError    = "error"
)

// LockMetrics captures contention on the per-package, per-student and
// per-notification serialization points.
type LockMetrics struct {
	wait     *prometheus.HistogramVec
	attempts *prometheus.CounterVec
	bulkSize prometheus.Observer
}

var (
	lockMetricsOnce sync.Once
	lockMetrics     *LockMetrics
)

// Locks returns the singleton lock metrics registry.
func Locks() *LockMetrics {
	return LocksWithConfig(Config{})
}

func LocksWithConfig(cfg Config) *LockMetrics {
	lockMetricsOnce.Do(func() {
		lockMetrics = newLockMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return lockMetrics
}

func newLockMetrics(registerer prometheus.Registerer, cfg Config) *LockMetrics {
	constLabels := constLabelsFor(cfg)

	wait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "elmcorner_lock_wait_seconds",
		Help:        "Time spent waiting for a serialization lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"resource"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "elmcorner_lock_attempts_total",
		Help:        "Lock acquisitions by resource and outcome.",
		ConstLabels: constLabels,
	}, []string{"resource", "outcome"})
	bulkSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "elmcorner_bulk_notify_size",
		Help:        "Number of distinct packages per bulk notify request.",
		Buckets:     []float64{1, 2, 5, 10, 25, 50, 100, 200},
		ConstLabels: constLabels,
	})

	registerOrReuse(registerer, wait, func(existing prometheus.Collector) {
		wait = existing.(*prometheus.HistogramVec)
	})
	registerOrReuse(registerer, attempts, func(existing prometheus.Collector) {
		attempts = existing.(*prometheus.CounterVec)
	})
	var bulkHistogram prometheus.Histogram = bulkSize
	registerOrReuse(registerer, bulkSize, func(existing prometheus.Collector) {
		bulkHistogram = existing.(prometheus.Histogram)
	})

	return &LockMetrics{wait: wait, attempts: attempts, bulkSize: bulkHistogram}
}

// ObserveLock records how long an acquisition took and how it ended.
func (m *LockMetrics) ObserveLock(resource string, waited time.Duration, err error) {
	if m == nil {
		return
	}
	if waited < 0 {
		waited = 0
	}
	m.wait.WithLabelValues(resource).Observe(waited.Seconds())
	m.attempts.WithLabelValues(resource, classifyLockOutcome(err)).Inc()
}

func (m *LockMetrics) ObserveBulkSize(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bulkSize.Observe(float64(n))
}

func classifyLockOutcome(err error) string {
	switch {
	case err == nil:
		return LockOutcomeAcquired
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return LockOutcomeTimeout
	default:
		return LockOutcomeError
	}
}
