package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/ken860819/loan-ai-system/internal/domain"
)

// Metrics holds all Prometheus metrics for the decision and ledger engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	evaluationsTotal *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	accountsTotal    prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_request_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		evaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_evaluations_total",
				Help: "Total KYC evaluations by decision.",
			},
			[]string{"decision"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_ledger_transitions_total",
				Help: "Total borrow/repay transitions by outcome.",
			},
			[]string{"type", "outcome"},
		),
		accountsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_accounts_provisioned_total",
				Help: "Total accounts provisioned.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrEvaluation counts one completed evaluation for the given decision.
func (m *Metrics) IncrEvaluation(decision string) {
	m.evaluationsTotal.WithLabelValues(decision).Inc()
}

// IncrTransition counts one borrow/repay attempt with its outcome
// ("success", "insufficient_credit", "over_repayment", "not_found", "error").
func (m *Metrics) IncrTransition(txType, outcome string) {
	m.transitionsTotal.WithLabelValues(txType, outcome).Inc()
}

// IncrProvisioned counts one provisioned account.
func (m *Metrics) IncrProvisioned() {
	m.accountsTotal.Inc()
}

// GetEngineSnapshot returns a snapshot of the engine counters suitable for
// the GET /v1/metrics/engine endpoint.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	approved := getCounterValue(m.evaluationsTotal, string(domain.DecisionApprove))
	reviewed := getCounterValue(m.evaluationsTotal, string(domain.DecisionReview))
	rejected := getCounterValue(m.evaluationsTotal, string(domain.DecisionReject))
	total := approved + reviewed + rejected

	borrows := getCounterValue(m.transitionsTotal, string(domain.TransactionBorrow), "success")
	repays := getCounterValue(m.transitionsTotal, string(domain.TransactionRepay), "success")
	rejectedTransitions := getCounterValue(m.transitionsTotal, string(domain.TransactionBorrow), "insufficient_credit") +
		getCounterValue(m.transitionsTotal, string(domain.TransactionRepay), "over_repayment")

	approvalRate := float64(0)
	if total > 0 {
		approvalRate = approved / total
	}

	return &domain.EngineMetrics{
		EvaluationsTotal:    int64(total),
		Approved:            int64(approved),
		Reviewed:            int64(reviewed),
		Rejected:            int64(rejected),
		AccountsProvisioned: int64(getSingleCounterValue(m.accountsTotal)),
		BorrowsTotal:        int64(borrows),
		RepaysTotal:         int64(repays),
		RejectedTransitions: int64(rejectedTransitions),
		ApprovalRate:        approvalRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for
// the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getSingleCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
