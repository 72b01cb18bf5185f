package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PurchaseTotal counts hosted checkout session creation outcomes.
	PurchaseTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// CartMutationTotal counts cart registry mutations by operation.
	CartMutationTotal *prometheus.CounterVec
	// CheckoutReconcileTotal counts checkout reconciliation outcomes.
	CheckoutReconcileTotal *prometheus.CounterVec
	// FulfillmentTaskTotal counts fulfillment task processing outcomes.
	FulfillmentTaskTotal *prometheus.CounterVec
	// LibraryCacheHits counts per-user library cache hits and misses.
	LibraryCacheHits *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PurchaseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_total",
			Help:      "Count of hosted checkout session creation outcomes.",
		}, []string{"tenant", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"event", "result"})
		CartMutationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutation_total",
			Help:      "Count of cart registry mutations by operation.",
		}, []string{"op"})
		CheckoutReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_reconcile_total",
			Help:      "Count of checkout reconciliation outcomes.",
		}, []string{"result"})
		FulfillmentTaskTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulfillment_task_total",
			Help:      "Count of checkout fulfillment task outcomes.",
		}, []string{"result"})
		LibraryCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_cache_total",
			Help:      "Library cache lookups by result (hit or miss).",
		}, []string{"result"})

		for _, c := range []**prometheus.CounterVec{
			&PurchaseTotal,
			&PaymentWebhookTotal,
			&CartMutationTotal,
			&CheckoutReconcileTotal,
			&FulfillmentTaskTotal,
			&LibraryCacheHits,
		} {
			mustRegisterCounterVec(reg, c)
		}
	})
}

func mustRegisterCounterVec(reg prometheus.Registerer, counter **prometheus.CounterVec) {
	if err := reg.Register(*counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				*counter = existing
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
