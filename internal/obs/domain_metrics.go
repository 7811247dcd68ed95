package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingResolutionsTotal counts waterfall resolutions by resulting source tag.
	PricingResolutionsTotal *prometheus.CounterVec
	// PricingBatchDuration records end-to-end batch pricing latency in milliseconds.
	PricingBatchDuration *prometheus.HistogramVec
	// PricingBatchFallbackTotal counts batches that degraded to full fallback pricing.
	PricingBatchFallbackTotal prometheus.Counter
	// ERPRequestsTotal counts outbound ERP queries by entity and outcome.
	ERPRequestsTotal *prometheus.CounterVec
	// ERPLoginTotal counts ERP login attempts by result.
	ERPLoginTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_resolutions_total",
			Help:      "Count of price waterfall resolutions by source tag.",
		}, []string{"source"})
		PricingBatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_batch_duration_ms",
			Help:      "Latency of batch pricing runs in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 30000, 60000, 120000},
		}, []string{"result"})
		PricingBatchFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_batch_fallback_total",
			Help:      "Number of batches that exhausted the global deadline and returned fallback prices.",
		})
		ERPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erp_requests_total",
			Help:      "Count of outbound ERP queries by entity and outcome.",
		}, []string{"entity", "result"})
		ERPLoginTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erp_login_total",
			Help:      "Count of ERP login attempts by result.",
		}, []string{"result"})

		reg.MustRegister(
			PricingResolutionsTotal,
			PricingBatchDuration,
			PricingBatchFallbackTotal,
			ERPRequestsTotal,
			ERPLoginTotal,
		)
	})
}
