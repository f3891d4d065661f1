package recordfile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements MetricsCollector on top of
// prometheus/client_golang. Operations are labeled by op name and
// status so dashboards can separate failures from successes.
type PrometheusCollector struct {
	ops         *prometheus.CounterVec
	opDurations *prometheus.HistogramVec
	readBytes   prometheus.Counter
	relocations prometheus.Counter
}

// NewPrometheusCollector creates a collector registered with reg. Pass
// prometheus.DefaultRegisterer to use the default registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recordfile",
			Name:      "operations_total",
			Help:      "Total number of store operations by op and status.",
		}, []string{"op", "status"}),
		opDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recordfile",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency by op.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		readBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recordfile",
			Name:      "read_bytes_total",
			Help:      "Total payload bytes delivered to readers.",
		}),
		relocations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recordfile",
			Name:      "relocations_total",
			Help:      "Total number of updates that moved a record.",
		}),
	}
}

func (p *PrometheusCollector) observe(op string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.ops.WithLabelValues(op, status).Inc()
	p.opDurations.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordCreate implements MetricsCollector.
func (p *PrometheusCollector) RecordCreate(duration time.Duration, err error) {
	p.observe("create", duration, err)
}

// RecordRead implements MetricsCollector.
func (p *PrometheusCollector) RecordRead(bytes int, duration time.Duration, err error) {
	p.observe("read", duration, err)
	if err == nil {
		p.readBytes.Add(float64(bytes))
	}
}

// RecordUpdate implements MetricsCollector.
func (p *PrometheusCollector) RecordUpdate(relocated bool, duration time.Duration, err error) {
	p.observe("update", duration, err)
	if relocated {
		p.relocations.Inc()
	}
}

// RecordRemove implements MetricsCollector.
func (p *PrometheusCollector) RecordRemove(duration time.Duration, err error) {
	p.observe("remove", duration, err)
}

// RecordFlush implements MetricsCollector.
func (p *PrometheusCollector) RecordFlush(duration time.Duration, err error) {
	p.observe("flush", duration, err)
}
