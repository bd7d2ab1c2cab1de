package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func TestDomainMetricsExportsCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDomainMetrics(reg)
	m.IncEarningPosted("driver")
	m.IncEarningPosted("driver")
	m.IncWebhookFailure("transfer")
	m.IncDeliveryTransition("delivered")
	m.IncPayoutDecision("vendor", "processed")
	m.SetLedgerDrift("vendor", decimal.RequireFromString("12.50"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "earnings_posted_total", "subject", "driver"); err != nil || got != 2 {
		t.Fatalf("expected earnings_posted_total=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "webhook_failures_total", "kind", "transfer"); err != nil || got != 1 {
		t.Fatalf("expected webhook_failures_total=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "delivery_transitions_total", "status", "delivered"); err != nil || got != 1 {
		t.Fatalf("expected delivery_transitions_total=1, got %f (%v)", got, err)
	}
	if got, err := fetchGaugeValue(mfs, "ledger_drift_amount", "subject", "vendor"); err != nil || got != 12.5 {
		t.Fatalf("expected ledger_drift_amount=12.5, got %f (%v)", got, err)
	}
}

func TestDomainMetricsNilSafe(t *testing.T) {
	var m *DomainMetrics
	m.IncEarningPosted("driver")
	NewDomainMetrics(nil).SetLedgerDrift("driver", decimal.Zero)
}

func TestDomainMetricsEmptyLabelsFallBackToUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDomainMetrics(reg)
	m.IncWebhookFailure("")
	m.IncPayoutDecision("", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "webhook_failures_total", "kind", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected webhook_failures_total{kind=unknown}=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "payout_decisions_total", "subject", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected payout_decisions_total{subject=unknown}=1, got %f (%v)", got, err)
	}
}
