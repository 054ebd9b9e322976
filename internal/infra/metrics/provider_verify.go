package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ProviderVerifyRequests,
		ProviderVerifyDuration,
		WebhookEvents,
	)
}

var (
	// Count of provider verify calls grouped by provider and result.
	// result: paid|not_paid|error
	ProviderVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_verify_requests_total",
			Help: "Count of provider verification calls by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// Latency of provider verify calls grouped by provider.
	ProviderVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_verify_duration_seconds",
			Help:    "Duration of provider verification calls in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"provider"},
	)

	// Webhook deliveries grouped by provider and disposition.
	// disposition: processed|duplicate|ignored|bad_signature|error
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Provider webhook deliveries by provider and disposition.",
		},
		[]string{"provider", "disposition"},
	)
)
