// Package selfmetrics instruments the running pipeline itself: queue
// depths, drop counts and control-request latency, exposed through a
// private prometheus.Registry rather than the out-of-scope Prometheus
// output plugin (spec.md §1 lists "Prometheus" among the excluded output
// plugins; this package is the agent observing itself, not a sink for
// measured data). Library: github.com/prometheus/client_golang, a direct
// teacher dependency used there as an HTTP query client
// (internal/metricdata/prometheus.go) and reused here for the concern the
// library is best known for, self-instrumentation via Collectors.
package selfmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles every self-observability metric the agent exposes.
// One Collector is created per running agent; it must not be shared
// across agents.
type Collector struct {
	Registry *prometheus.Registry

	TransformQueueDepth prometheus.Gauge
	OutputBacklogDepth  *prometheus.GaugeVec
	DroppedBuffers      *prometheus.CounterVec
	ControlRequestLatency *prometheus.HistogramVec
}

// NewCollector builds and registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		TransformQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alumet",
			Subsystem: "pipeline",
			Name:      "transform_queue_depth",
			Help:      "Number of measurement buffers waiting to enter the transform stage.",
		}),
		OutputBacklogDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "alumet",
			Subsystem: "pipeline",
			Name:      "output_backlog_depth",
			Help:      "Number of measurement buffers queued for one output.",
		}, []string{"output"}),
		DroppedBuffers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alumet",
			Subsystem: "pipeline",
			Name:      "dropped_buffers_total",
			Help:      "Measurement buffers dropped because an output's backlog was full.",
		}, []string{"output"}),
		ControlRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alumet",
			Subsystem: "control",
			Name:      "request_duration_seconds",
			Help:      "Time from a request's enqueue (Send or SendWait) to the control loop applying it.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.TransformQueueDepth,
		c.OutputBacklogDepth,
		c.DroppedBuffers,
		c.ControlRequestLatency,
	)
	return c
}
