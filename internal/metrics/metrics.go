// Package metrics records run statistics as Prometheus metrics and exports
// them in the node_exporter textfile format, so CI hosts can scrape how long
// each package's script took and how often it fails.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Iron-Ham/wsrun/internal/event"
)

const namespace = "wsrun"

// Collector turns run events into metrics. It owns its registry so a run's
// numbers never mix with anything else in the process.
type Collector struct {
	registry *prometheus.Registry

	packagesTotal   *prometheus.CounterVec
	packageDuration *prometheus.HistogramVec
	batchesTotal    prometheus.Counter
	inFlight        prometheus.Gauge
	runDuration     prometheus.Gauge
	runSuccess      prometheus.Gauge

	mu   sync.Mutex
	subs []string
	bus  *event.Bus
}

// NewCollector creates a Collector whose metrics carry the script name as a
// constant label.
func NewCollector(script string) *Collector {
	labels := prometheus.Labels{"script": script}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		packagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "packages_total",
			Help:        "Packages by final status: succeeded, failed or skipped.",
			ConstLabels: labels,
		}, []string{"status"}),
		packageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "package_duration_seconds",
			Help:        "Wall time of a single package's script.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"package"}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "batches_total",
			Help:        "Batches started.",
			ConstLabels: labels,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "invocations_in_flight",
			Help:        "Invocations currently running.",
			ConstLabels: labels,
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the whole run.",
			ConstLabels: labels,
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_success",
			Help:        "1 if the run succeeded, 0 otherwise.",
			ConstLabels: labels,
		}),
	}

	c.registry.MustRegister(
		c.packagesTotal,
		c.packageDuration,
		c.batchesTotal,
		c.inFlight,
		c.runDuration,
		c.runSuccess,
	)
	return c
}

// Registry returns the registry holding the run's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Subscribe starts recording events published on bus.
func (c *Collector) Subscribe(bus *event.Bus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bus = bus
	c.subs = append(c.subs,
		bus.Subscribe(event.TypeBatchStarted, func(event.Event) { c.batchesTotal.Inc() }),
		bus.Subscribe(event.TypePackageStarted, func(event.Event) { c.inFlight.Inc() }),
		bus.Subscribe(event.TypePackageFinished, c.onPackageFinished),
		bus.Subscribe(event.TypePackageSkipped, func(event.Event) {
			c.packagesTotal.WithLabelValues("skipped").Inc()
		}),
		bus.Subscribe(event.TypeRunFinished, c.onRunFinished),
	)
}

// Unsubscribe stops recording.
func (c *Collector) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.subs {
		c.bus.Unsubscribe(id)
	}
	c.subs = nil
}

func (c *Collector) onPackageFinished(e event.Event) {
	finished, ok := e.(event.PackageFinishedEvent)
	if !ok {
		return
	}
	c.inFlight.Dec()
	status := "succeeded"
	if !finished.Success() {
		status = "failed"
	}
	c.packagesTotal.WithLabelValues(status).Inc()
	c.packageDuration.WithLabelValues(finished.Package).Observe(finished.Duration.Seconds())
}

func (c *Collector) onRunFinished(e event.Event) {
	finished, ok := e.(event.RunFinishedEvent)
	if !ok {
		return
	}
	c.runDuration.Set(finished.Duration.Seconds())
	if finished.Success() {
		c.runSuccess.Set(1)
	} else {
		c.runSuccess.Set(0)
	}
}

// WriteTextfile writes the current metrics to path atomically, in the text
// exposition format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
