//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMustRegisterExposesAllFamilies(t *testing.T) {
	MustRegister()
	MustRegister() // second call must not panic on duplicate registration

	// A vec with no children exports nothing; touch one child per family.
	ReconcileRuns.WithLabelValues("cron", "reconcile").Inc()
	ReconcileCandidates.WithLabelValues("reconciled").Inc()
	ReconcileRunDuration.WithLabelValues("reconcile").Observe(0.1)
	ProviderVerifyRequests.WithLabelValues("paystack", "paid").Inc()
	ProviderVerifyDuration.WithLabelValues("paystack").Observe(0.1)
	WebhookEvents.WithLabelValues("stripe", "processed").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := make(map[string]bool, len(families))
	for _, mf := range families {
		got[mf.GetName()] = true
	}

	want := []string{
		"payment_reconcile_runs_total",
		"payment_reconcile_candidates_total",
		"payment_reconcile_run_duration_seconds",
		"provider_verify_requests_total",
		"provider_verify_duration_seconds",
		"payment_webhook_events_total",
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("family %s not in the default registry", name)
		}
	}
}
