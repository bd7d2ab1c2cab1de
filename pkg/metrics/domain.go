package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// DomainMetrics counts money movements, delivery transitions and alert paths.
type DomainMetrics struct {
	earningsPosted     *prometheus.CounterVec
	payoutDecisions    *prometheus.CounterVec
	deliveryTransition *prometheus.CounterVec
	webhookFailures    *prometheus.CounterVec
	ledgerDrift        *prometheus.GaugeVec
}

// NewDomainMetrics registers the domain metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	m := &DomainMetrics{
		earningsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "earnings_posted_total",
			Help: "Earnings credited to driver and vendor accounts.",
		}, []string{"subject"}),
		payoutDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_decisions_total",
			Help: "Payout requests by outcome.",
		}, []string{"subject", "outcome"}),
		deliveryTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_transitions_total",
			Help: "Accepted delivery status transitions by target status.",
		}, []string{"status"}),
		webhookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_failures_total",
			Help: "Gateway webhooks that could not be applied.",
		}, []string{"kind"}),
		ledgerDrift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_drift_amount",
			Help: "Absolute difference between running totals and the ledger, summed per subject at the last reconciliation.",
		}, []string{"subject"}),
	}
	reg.MustRegister(m.earningsPosted, m.payoutDecisions, m.deliveryTransition, m.webhookFailures, m.ledgerDrift)
	return m
}

func (m *DomainMetrics) IncEarningPosted(subject string) {
	if m == nil || m.earningsPosted == nil {
		return
	}
	m.earningsPosted.WithLabelValues(normalizeLabel(subject)).Inc()
}

func (m *DomainMetrics) IncPayoutDecision(subject, outcome string) {
	if m == nil || m.payoutDecisions == nil {
		return
	}
	m.payoutDecisions.WithLabelValues(normalizeLabel(subject), normalizeLabel(outcome)).Inc()
}

func (m *DomainMetrics) IncDeliveryTransition(status string) {
	if m == nil || m.deliveryTransition == nil {
		return
	}
	m.deliveryTransition.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *DomainMetrics) IncWebhookFailure(kind string) {
	if m == nil || m.webhookFailures == nil {
		return
	}
	m.webhookFailures.WithLabelValues(normalizeLabel(kind)).Inc()
}

// SetLedgerDrift records the total drift found for subject.
func (m *DomainMetrics) SetLedgerDrift(subject string, amount decimal.Decimal) {
	if m == nil || m.ledgerDrift == nil {
		return
	}
	m.ledgerDrift.WithLabelValues(normalizeLabel(subject)).Set(amount.InexactFloat64())
}
