package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutConfirmTotal counts confirm attempts by outcome.
	CheckoutConfirmTotal *prometheus.CounterVec
	// BillingSubmitDuration records backend billing latency in milliseconds.
	BillingSubmitDuration *prometheus.HistogramVec
	// CouponEvaluationsTotal counts coupon checks by outcome.
	CouponEvaluationsTotal *prometheus.CounterVec
	// CartMutationsTotal counts applied cart actions.
	CartMutationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutConfirmTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_confirm_total",
			Help:      "Count of checkout confirmations by result.",
		}, []string{"result"}))
		BillingSubmitDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "billing_submit_duration_ms",
			Help:      "Latency of billing submissions to the backend in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"}))
		CouponEvaluationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_evaluations_total",
			Help:      "Count of coupon eligibility checks by result.",
		}, []string{"result"}))
		CartMutationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of applied cart actions.",
		}, []string{"action"}))
	})
}

// ObserveConfirm records a confirm outcome. It is a no-op until the domain
// metrics are registered.
func ObserveConfirm(result string) {
	if CheckoutConfirmTotal != nil {
		CheckoutConfirmTotal.WithLabelValues(result).Inc()
	}
}

// ObserveBillingSubmit records how long a backend billing call took.
func ObserveBillingSubmit(result string, d time.Duration) {
	if BillingSubmitDuration != nil {
		BillingSubmitDuration.WithLabelValues(result).Observe(DurationMillis(d))
	}
}

// ObserveCoupon records a coupon evaluation outcome.
func ObserveCoupon(result string) {
	if CouponEvaluationsTotal != nil {
		CouponEvaluationsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCartMutation records an applied cart action.
func ObserveCartMutation(action string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(action).Inc()
	}
}
