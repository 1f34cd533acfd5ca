// Package metrics collects client-side reconciliation metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Mutation outcomes.
const (
	OutcomeSettled = "settled"
	OutcomeFailed  = "failed"
	OutcomeBusy    = "busy"
)

// MetricsCollector is used by the coordinator, the loader and bootstrap.
type MetricsCollector interface {
	RecordMutation(op, outcome string)
	RecordMutationLatency(op string, d time.Duration)
	RecordRefreshDiscarded(slice string)
	RecordRefreshFailed(slice string)
	RecordHydrationSkipped()
	RecordBootstrap(stage string)
}

// Collector is the Prometheus implementation.
type Collector struct {
	mutations        *prometheus.CounterVec
	mutationLatency  *prometheus.HistogramVec
	refreshDiscarded *prometheus.CounterVec
	refreshFailed    *prometheus.CounterVec
	hydrationSkipped prometheus.Counter
	bootstrap        *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_mutations_total",
			Help: "Coordinated mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		mutationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptvault_mutation_latency_seconds",
			Help:    "Time from mutation start to settlement or failure.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		refreshDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_refresh_discarded_total",
			Help: "Refresh results dropped as stale or unsubscribed, by slice.",
		}, []string{"slice"}),
		refreshFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_refresh_failed_total",
			Help: "Background queries that failed and left their slice unchanged.",
		}, []string{"slice"}),
		hydrationSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptvault_hydration_skipped_total",
			Help: "Purchased ids whose item record could not be fetched.",
		}),
		bootstrap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_bootstrap_total",
			Help: "Session bootstrap terminal stages.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		c.mutations,
		c.mutationLatency,
		c.refreshDiscarded,
		c.refreshFailed,
		c.hydrationSkipped,
		c.bootstrap,
	)
	return c
}

func (c *Collector) RecordMutation(op, outcome string) {
	c.mutations.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) RecordMutationLatency(op string, d time.Duration) {
	c.mutationLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) RecordRefreshDiscarded(slice string) {
	c.refreshDiscarded.WithLabelValues(slice).Inc()
}

func (c *Collector) RecordRefreshFailed(slice string) {
	c.refreshFailed.WithLabelValues(slice).Inc()
}

func (c *Collector) RecordHydrationSkipped() { c.hydrationSkipped.Inc() }

func (c *Collector) RecordBootstrap(stage string) {
	c.bootstrap.WithLabelValues(stage).Inc()
}

// WriteTextfile dumps everything gathered by g in the node-exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Nop discards everything.
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordMutation(string, string)               {}
func (Nop) RecordMutationLatency(string, time.Duration) {}
func (Nop) RecordRefreshDiscarded(string)               {}
func (Nop) RecordRefreshFailed(string)                  {}
func (Nop) RecordHydrationSkipped()                     {}
func (Nop) RecordBootstrap(string)                      {}
