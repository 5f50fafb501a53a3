// Package metrics exposes update loop statistics as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/aqueductfluidics/aqueduct/pkg/aqueduct"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aqueduct"

// Collector records update loop ticks. It implements aqueduct.Observer and
// owns a private registry so several sessions in one test binary never
// collide.
type Collector struct {
	registry *prometheus.Registry

	ticks        *prometheus.CounterVec // By status: ok, push_error, pull_error
	tickDuration prometheus.Histogram
	pushed       *prometheus.CounterVec // By kind: record, sample, query
	editsApplied prometheus.Counter
	resolutions  prometheus.Counter
	lastSuccess  prometheus.Gauge
	hubUp        prometheus.Gauge
}

// New creates a Collector with its metrics and the Go runtime collectors
// registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Update loop passes by outcome",
		}, []string{"status"}),

		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one push and pull",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		pushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "pushed_total",
			Help:      "Objects sent to the hub",
		}, []string{"kind"}),

		editsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "setpoint_edits_applied_total",
			Help:      "Operator setpoint edits applied to the session",
		}),

		resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "query_resolutions_total",
			Help:      "Operator answers applied to prompts and inputs",
		}),

		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last tick without errors",
		}),

		hubUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "up",
			Help:      "Hub Redis reachability at the last health check (0=down, 1=up)",
		}),
	}

	c.registry.MustRegister(
		c.ticks, c.tickDuration, c.pushed, c.editsApplied, c.resolutions, c.lastSuccess, c.hubUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveTick implements aqueduct.Observer.
func (c *Collector) ObserveTick(s aqueduct.TickStats) {
	status := "ok"
	switch {
	case s.PushErr != nil:
		status = "push_error"
	case s.PullErr != nil:
		status = "pull_error"
	}
	c.ticks.WithLabelValues(status).Inc()
	c.tickDuration.Observe(s.Duration.Seconds())

	c.pushed.WithLabelValues("record").Add(float64(s.RecordsPushed))
	c.pushed.WithLabelValues("sample").Add(float64(s.SamplesPushed))
	c.pushed.WithLabelValues("query").Add(float64(s.QueriesPushed))
	c.editsApplied.Add(float64(s.EditsApplied))
	c.resolutions.Add(float64(s.Resolutions))

	if status == "ok" {
		c.lastSuccess.Set(float64(time.Now().Unix()))
	}
}

// SetHubUp records the outcome of a hub health check.
func (c *Collector) SetHubUp(up bool) {
	if up {
		c.hubUp.Set(1)
	} else {
		c.hubUp.Set(0)
	}
}

// Registry returns the private registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

var _ aqueduct.Observer = (*Collector)(nil)
