package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts tree mutations and the rows their cascades rewrite. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	mutations      *prometheus.CounterVec
	mutationErrors *prometheus.CounterVec
	rewrites       prometheus.Counter
	cascadeRows    prometheus.Histogram
	skippedParents prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_mutations_total",
			Help: "Completed tree mutations by operation",
		}, []string{"operation"}),
		mutationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_mutation_errors_total",
			Help: "Rolled back tree mutations by operation",
		}, []string{"operation"}),
		rewrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_rows_rewritten_total",
			Help: "Rows rewritten or deleted by mutations",
		}),
		cascadeRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_cascade_rows",
			Help:    "Rows rewritten or deleted per mutation",
			Buckets: []float64{1, 2, 5, 10, 50, 100, 1000},
		}),
		skippedParents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_skipped_parents_total",
			Help: "Previous parents that no longer existed when a move tried to recount them",
		}),
	}
	reg.MustRegister(m.mutations, m.mutationErrors, m.rewrites, m.cascadeRows, m.skippedParents)
	return m
}

// Mutation records a committed mutation and the rows it rewrote.
func (m *Metrics) Mutation(op string, rewritten int) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
	m.rewrites.Add(float64(rewritten))
	m.cascadeRows.Observe(float64(rewritten))
}

// Failed records a mutation that was rolled back.
func (m *Metrics) Failed(op string) {
	if m == nil {
		return
	}
	m.mutationErrors.WithLabelValues(op).Inc()
}

// SkippedParent records a vanished previous parent.
func (m *Metrics) SkippedParent() {
	if m == nil {
		return
	}
	m.skippedParents.Inc()
}
