package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.ObserveCompleted("INR", 2)
	m.IncFailure(StagePaymentOrder)
	m.IncFailure(StagePaymentOrder)
	m.IncReconciliationMismatch()
	m.AddOrphanedPayments(3)
	m.AddOrphanedPayments(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := labelledCounter(mfs, "bazaar_checkout_orders_created_total", "currency", "INR"); got != 2 {
		t.Fatalf("expected 2 orders created, got %f", got)
	}
	if got := labelledCounter(mfs, "bazaar_checkout_failures_total", "stage", StagePaymentOrder); got != 2 {
		t.Fatalf("expected 2 payment order failures, got %f", got)
	}
	if got := unlabelledCounter(t, reg, "bazaar_checkout_reconciliation_mismatch_total"); got != 1 {
		t.Fatalf("expected 1 mismatch, got %f", got)
	}
	if got := unlabelledCounter(t, reg, "bazaar_checkout_orphaned_payments_total"); got != 3 {
		t.Fatalf("expected 3 orphans, got %f", got)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var checkout *CheckoutMetrics
	checkout.ObserveCompleted("INR", 1)
	checkout.IncFailure(StagePricing)
	checkout.IncReconciliationMismatch()
	checkout.AddOrphanedPayments(1)

	unregistered := NewCheckoutMetrics(nil)
	unregistered.IncReconciliationMismatch()

	var outbox *OutboxMetrics
	outbox.IncPublished("order_created")
	outbox.IncFailed("order_created")
	outbox.IncDeadLetter("order_created", "max_attempts")
}

func TestOutboxMetricsCountByEventType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("order_created")
	m.IncPublished("order_created")
	m.IncFailed("refund_issued")
	m.IncDeadLetter("refund_issued", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := labelledCounter(mfs, "bazaar_outbox_published_total", "event_type", "order_created"); got != 2 {
		t.Fatalf("expected 2 published, got %f", got)
	}
	if got := labelledCounter(mfs, "bazaar_outbox_dead_letter_total", "reason", "max_attempts"); got != 1 {
		t.Fatalf("expected 1 dead letter, got %f", got)
	}
}

func unlabelledCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	mf := family(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		t.Fatalf("metric %q not found", name)
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

func labelledCounter(mfs []*dto.MetricFamily, name, key, value string) float64 {
	mf := family(mfs, name)
	if mf == nil {
		return -1
	}
	for _, metric := range mf.GetMetric() {
		if label(metric, key) == value {
			return metric.GetCounter().GetValue()
		}
	}
	return -1
}
