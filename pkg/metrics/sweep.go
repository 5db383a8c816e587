package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sweep outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// SweepMetrics counts per-entity outcomes of the lifecycle sweep steps.
type SweepMetrics struct {
	entities *prometheus.CounterVec
}

// NewSweepMetrics registers the sweep counters on the provided registerer.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	entities := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_entities_total",
		Help:      "Entities handled by sweep steps, by outcome.",
	}, []string{"step", "outcome"})
	reg.MustRegister(entities)
	return &SweepMetrics{entities: entities}
}

// Add records n entities for the step and outcome.
func (s *SweepMetrics) Add(step, outcome string, n int) {
	if s == nil || s.entities == nil || n <= 0 {
		return
	}
	s.entities.WithLabelValues(normalizeLabel(step), outcome).Add(float64(n))
}

// LoanMetrics counts loan lifecycle transitions performed through the API.
type LoanMetrics struct {
	transitions *prometheus.CounterVec
}

// NewLoanMetrics registers the loan transition counter.
func NewLoanMetrics(reg prometheus.Registerer) *LoanMetrics {
	if reg == nil {
		return &LoanMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loan_transitions_total",
		Help:      "Loan lifecycle transitions.",
	}, []string{"transition"})
	reg.MustRegister(transitions)
	return &LoanMetrics{transitions: transitions}
}

// Inc records one transition.
func (l *LoanMetrics) Inc(transition string) {
	l.Add(transition, 1)
}

// Add records n transitions.
func (l *LoanMetrics) Add(transition string, n int) {
	if l == nil || l.transitions == nil || n <= 0 {
		return
	}
	l.transitions.WithLabelValues(normalizeLabel(transition)).Add(float64(n))
}
