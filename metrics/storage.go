package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sagarc03/mediaproxy"
)

// StorageMetrics holds Prometheus collectors for gateway instrumentation.
type StorageMetrics struct {
	bytes   *prometheus.CounterVec
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// StorageObserver is a minimal observer interface implemented by StorageMetrics.
type StorageObserver interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

// NewStorageMetrics registers storage metrics on the provided registry.
func NewStorageMetrics(reg *prometheus.Registry) *StorageMetrics {
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "bytes_total",
		Help:      "Total bytes moved by storage operations.",
	}, []string{"op"})
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "ops_total",
		Help:      "Total number of storage operations by result.",
	}, []string{"op", "result"}) // result = "ok" | error kind
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "op_duration_seconds",
		Help:      "Histogram of storage operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	reg.MustRegister(bytes, ops, latency)

	return &StorageMetrics{
		bytes:   bytes,
		ops:     ops,
		latency: latency,
	}
}

// Observe records a storage operation with optional bytes and error.
// dur must be the total time spent in the operation.
func (m *StorageMetrics) Observe(op string, bytes int64, err error, dur time.Duration) {
	result := "ok"
	if err != nil {
		result = mediaproxy.KindOf(err).String()
	}
	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(dur.Seconds())
}
