package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the exemption engine.
type Metrics struct {
	// Decision outcomes by the rule that settled them
	DecisionOutcome *prometheus.CounterVec

	// Registry lookups by result: registered, not_registered, unknown, error, circuit_open
	RegistryLookups *prometheus.CounterVec
	RegistryLatency prometheus.Histogram

	// Registry cache hits/misses
	RegistryCache *prometheus.CounterVec

	// Reconciliation passes by trigger and authoritative source
	Reconciliations *prometheus.CounterVec

	// Live state corrections by source (order, session, disabled)
	LiveCorrections *prometheus.CounterVec

	// Recalculations suppressed by the re-entrancy guard
	SuppressedRecalculations prometheus.Counter

	// Persistence or publish failures by scope/target
	PersistenceFailures *prometheus.CounterVec

	// Override calls by result: order_record, passthrough, error
	Overrides *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatguard_decision_outcomes_total",
			Help: "Exemption decisions by settling rule",
		}, []string{"rule", "exempt"}),

		RegistryLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatguard_registry_lookups_total",
			Help: "Tax identifier registry lookups by result",
		}, []string{"result"}),

		RegistryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vatguard_registry_lookup_duration_seconds",
			Help:    "Duration of registry lookups including timeouts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		RegistryCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatguard_registry_cache_total",
			Help: "Registry cache lookups by outcome",
		}, []string{"outcome"}),

		Reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatguard_reconciliations_total",
			Help: "Reconciliation passes by trigger and authoritative source",
		}, []string{"trigger", "source"}),

		LiveCorrections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatguard_live_state_corrections_total",
			Help: "Live exemption flag corrections by authoritative source",
		}, []string{"source"}),

		SuppressedRecalculations: f.NewCounter(prometheus.CounterOpts{
			Name: "vatguard_recalculations_suppressed_total",
			Help: "Nested recalculation triggers suppressed by the re-entrancy guard",
		}),

		PersistenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatguard_persistence_failures_total",
			Help: "Non-fatal persistence and publish failures by target",
		}, []string{"target"}),

		Overrides: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatguard_overrides_total",
			Help: "Override filter calls by result",
		}, []string{"result"}),
	}
}

// IncrementDecision records a decision outcome.
func (m *Metrics) IncrementDecision(rule string, exempt bool) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(rule, boolLabel(exempt)).Inc()
	}
}

// ObserveRegistryLookup records a registry lookup result and its duration.
func (m *Metrics) ObserveRegistryLookup(result string, d time.Duration) {
	if m != nil {
		m.RegistryLookups.WithLabelValues(result).Inc()
		m.RegistryLatency.Observe(d.Seconds())
	}
}

// RecordCacheHit records a registry cache hit.
func (m *Metrics) RecordCacheHit() {
	if m != nil {
		m.RegistryCache.WithLabelValues("hit").Inc()
	}
}

// RecordCacheMiss records a registry cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m != nil {
		m.RegistryCache.WithLabelValues("miss").Inc()
	}
}

// IncrementReconciliation records a reconciliation pass.
func (m *Metrics) IncrementReconciliation(trigger, source string) {
	if m != nil {
		m.Reconciliations.WithLabelValues(trigger, source).Inc()
	}
}

// IncrementLiveCorrection records a live state correction.
func (m *Metrics) IncrementLiveCorrection(source string) {
	if m != nil {
		m.LiveCorrections.WithLabelValues(source).Inc()
	}
}

// IncrementSuppressedRecalculation records a recalculation skipped by the guard.
func (m *Metrics) IncrementSuppressedRecalculation() {
	if m != nil {
		m.SuppressedRecalculations.Inc()
	}
}

// IncrementPersistenceFailure records a non-fatal write failure.
func (m *Metrics) IncrementPersistenceFailure(target string) {
	if m != nil {
		m.PersistenceFailures.WithLabelValues(target).Inc()
	}
}

// IncrementOverride records an override filter result.
func (m *Metrics) IncrementOverride(result string) {
	if m != nil {
		m.Overrides.WithLabelValues(result).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
