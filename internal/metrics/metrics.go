// Package metrics exposes engine counters to Prometheus. The collector
// implements policy.Observer, so the policies stay free of any metrics
// dependency; every callback is a single atomic counter increment.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments for one engine instance.
type Collector struct {
	registry *prometheus.Registry

	localDispatches *prometheus.CounterVec
	enqueues        *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
	demotions       prometheus.Counter
	queueDepth      *prometheus.GaugeVec
}

// NewCollector creates and registers all instruments on a private registry.
func NewCollector(policy string) *Collector {
	labels := prometheus.Labels{"policy": policy}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		localDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "schedpol_local_dispatches_total",
			Help:        "Tasks fast-pathed directly into an idle processor's local slot.",
			ConstLabels: labels,
		}, []string{"level"}),
		enqueues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "schedpol_enqueues_total",
			Help:        "Tasks appended to a shared dispatch queue.",
			ConstLabels: labels,
		}, []string{"level"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "schedpol_dispatches_total",
			Help:        "Tasks handed to an idle processor from a shared queue.",
			ConstLabels: labels,
		}, []string{"level"}),
		demotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "schedpol_demotions_total",
			Help:        "Tasks demoted from the top to the bottom priority level.",
			ConstLabels: labels,
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "schedpol_queue_depth",
			Help:        "Current length of each shared dispatch queue.",
			ConstLabels: labels,
		}, []string{"level"}),
	}

	c.registry.MustRegister(c.localDispatches, c.enqueues, c.dispatches, c.demotions, c.queueDepth)
	return c
}

// --- policy.Observer ---

func (c *Collector) LocalDispatched(level int) {
	c.localDispatches.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (c *Collector) Enqueued(level int) {
	c.enqueues.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (c *Collector) Dispatched(level int) {
	c.dispatches.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (c *Collector) Demoted() {
	c.demotions.Inc()
}

// SetQueueDepth records the current length of one level's queue. Called
// periodically by the host, not from scheduling hooks.
func (c *Collector) SetQueueDepth(level, depth int) {
	c.queueDepth.WithLabelValues(strconv.Itoa(level)).Set(float64(depth))
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gather exposes the registry for tests.
func (c *Collector) Gather() ([]*GatheredMetric, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	var out []*GatheredMetric
	for _, mf := range families {
		g := &GatheredMetric{Name: mf.GetName()}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				g.Value += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				g.Value += m.GetGauge().GetValue()
			}
		}
		out = append(out, g)
	}
	return out, nil
}

// GatheredMetric is a flattened view of one metric family, summed over all
// label values.
type GatheredMetric struct {
	Name  string
	Value float64
}
