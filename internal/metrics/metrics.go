// Package metrics exposes Prometheus counters for checkout and ledger activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carshow"

// Metrics holds the application's collectors. All methods are safe on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	checkouts       *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	votes           *prometheus.CounterVec
	donations       *prometheus.CounterVec
	ledgerResets    prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Vote checkout initiations by result.",
		}, []string{"result"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Checkout reconciliations by outcome.",
		}, []string{"outcome"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_committed_total",
			Help:      "Paid votes written to the ledger, by category.",
		}, []string{"category"}),
		donations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_total",
			Help:      "Gate donations by outcome.",
		}, []string{"outcome"}),
		ledgerResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_resets_total",
			Help:      "Admin ledger resets.",
		}),
	}

	m.registry.MustRegister(
		m.checkouts,
		m.reconciliations,
		m.votes,
		m.donations,
		m.ledgerResets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CheckoutStarted counts a checkout initiation. result is "created" or a rejection reason.
func (m *Metrics) CheckoutStarted(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

// Reconciled counts a reconciliation outcome.
func (m *Metrics) Reconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(outcome).Inc()
}

// VotesCommitted adds newly committed votes for a category.
func (m *Metrics) VotesCommitted(category string, quantity int) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(category).Add(float64(quantity))
}

// Donation counts a donation outcome.
func (m *Metrics) Donation(outcome string) {
	if m == nil {
		return
	}
	m.donations.WithLabelValues(outcome).Inc()
}

// LedgerReset counts an admin reset.
func (m *Metrics) LedgerReset() {
	if m == nil {
		return
	}
	m.ledgerResets.Inc()
}
