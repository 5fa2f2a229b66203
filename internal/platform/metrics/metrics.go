package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	ComplianceChecks   *prometheus.CounterVec
	DisputesCreated    prometheus.Counter
	DisputesResolved   *prometheus.CounterVec
	AppealsFiled       prometheus.Counter
	QuorumFailures     prometheus.Counter
	SettlementRequests *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ComplianceChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peershield_compliance_checks_total",
			Help: "Compliance gate evaluations by action and outcome",
		}, []string{"action", "outcome"}),
		DisputesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peershield_disputes_created_total",
			Help: "Disputes opened",
		}),
		DisputesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peershield_disputes_resolved_total",
			Help: "Disputes resolved by mechanism",
		}, []string{"mechanism"}),
		AppealsFiled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peershield_appeals_filed_total",
			Help: "Appeals accepted against resolved disputes",
		}),
		QuorumFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peershield_quorum_failures_total",
			Help: "Arbitration quorum assembly failures",
		}),
		SettlementRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peershield_settlement_requests_total",
			Help: "Settlement instruction emissions by result",
		}, []string{"result"}),
	}
}

// RecordComplianceCheck records one gate evaluation.
func (m *Metrics) RecordComplianceCheck(action string, approved bool) {
	outcome := "approved"
	if !approved {
		outcome = "denied"
	}
	m.ComplianceChecks.WithLabelValues(action, outcome).Inc()
}
