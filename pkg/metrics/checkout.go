package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Checkout failure stages.
const (
	StagePricing      = "pricing"
	StagePaymentOrder = "payment_order"
	StagePayment      = "payment_record"
	StageSellerOrders = "seller_orders"
)

// CheckoutMetrics tracks the combined checkout pipeline.
type CheckoutMetrics struct {
	ordersCreated  *prometheus.CounterVec
	checkouts      prometheus.Counter
	failures       *prometheus.CounterVec
	mismatches     prometheus.Counter
	orphans        prometheus.Counter
	sellersPerCart prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkout_orders_created_total",
			Help:      "Seller orders persisted by combined checkouts.",
		}, []string{"currency"}),
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkout_completed_total",
			Help:      "Combined checkouts that persisted every seller order.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkout_failures_total",
			Help:      "Combined checkouts that failed, by stage.",
		}, []string{"stage"}),
		mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkout_reconciliation_mismatch_total",
			Help:      "Checkouts whose persisted seller totals differ from the gateway amount.",
		}),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkout_orphaned_payments_total",
			Help:      "Gateway payment orders left without seller orders.",
		}),
		sellersPerCart: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "checkout_sellers_per_cart",
			Help:      "Number of sellers in a combined checkout.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),
	}
	reg.MustRegister(m.ordersCreated, m.checkouts, m.failures, m.mismatches, m.orphans, m.sellersPerCart)
	return m
}

// ObserveCompleted records a successful checkout split across sellers.
func (m *CheckoutMetrics) ObserveCompleted(currency string, sellers int) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.Inc()
	m.ordersCreated.WithLabelValues(normalizeLabel(currency)).Add(float64(sellers))
	m.sellersPerCart.Observe(float64(sellers))
}

// IncFailure records a checkout failure at stage.
func (m *CheckoutMetrics) IncFailure(stage string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncReconciliationMismatch records a persisted-vs-gateway total mismatch.
func (m *CheckoutMetrics) IncReconciliationMismatch() {
	if m == nil || m.mismatches == nil {
		return
	}
	m.mismatches.Inc()
}

// AddOrphanedPayments records payments marked orphaned by reconciliation.
func (m *CheckoutMetrics) AddOrphanedPayments(n int) {
	if m == nil || m.orphans == nil || n <= 0 {
		return
	}
	m.orphans.Add(float64(n))
}
