package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the service's Prometheus metrics. Emissions are one-way:
// nothing in the pipeline reads these values back.
type Collector struct {
	requestsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	latency       prometheus.Histogram
}

// NewCollector creates and registers the clip metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clip_requests_total",
				Help: "Total number of clip requests",
			},
			[]string{"camera_id", "status"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clip_errors_total",
				Help: "Total number of clip processing errors",
			},
			[]string{"error_type"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clip_queue_depth",
				Help: "Number of clips waiting in the processing queue",
			},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clip_latency_seconds",
				Help:    "Time taken to process clip requests",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
		),
	}

	reg.MustRegister(c.requestsTotal, c.errorsTotal, c.queueDepth, c.latency)
	return c
}

// RecordRequest counts a request event for a camera. Status is one of
// "started", "success", "failed".
func (c *Collector) RecordRequest(cameraID, status string) {
	c.requestsTotal.WithLabelValues(cameraID, status).Inc()
}

// RecordError counts a processing error by kind.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.WithLabelValues(errorType).Inc()
}

// SetQueueDepth records the current number of pending jobs.
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// ObserveLatency records the end-to-end duration of a completed job.
func (c *Collector) ObserveLatency(d time.Duration) {
	c.latency.Observe(d.Seconds())
}
