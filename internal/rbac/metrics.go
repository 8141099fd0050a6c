package rbac

import "github.com/prometheus/client_golang/prometheus"

// Decision outcomes recorded per authorization check.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Metrics collects Prometheus counters for the engine.
type Metrics struct {
	decisions          *prometheus.CounterVec
	auditWriteFailures prometheus.Counter
}

// NewMetrics registers the engine's counters with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partshub_rbac_decisions_total",
		Help: "Authorization decisions by outcome.",
	}, []string{"outcome"})
	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partshub_rbac_audit_write_failures_total",
		Help: "Audit entries that could not be written.",
	})
	reg.MustRegister(decisions, auditFailures)
	return &Metrics{decisions: decisions, auditWriteFailures: auditFailures}
}

// Decision records one authorization check outcome.
func (m *Metrics) Decision(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

// AuditWriteFailure records one best-effort audit write that failed.
func (m *Metrics) AuditWriteFailure() {
	if m == nil {
		return
	}
	m.auditWriteFailures.Inc()
}
