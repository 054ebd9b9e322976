//go:build !integration

package model_test

import (
	"testing"

	"shortlet-payments/internal/domain/model"
)

func TestPaymentStatusCanTransitionTo(t *testing.T) {
	all := []model.PaymentStatus{
		model.PaymentStatusInitiated,
		model.PaymentStatusSucceeded,
		model.PaymentStatusFailed,
		model.PaymentStatusRefunded,
	}
	allowed := map[model.PaymentStatus][]model.PaymentStatus{
		model.PaymentStatusInitiated: {model.PaymentStatusSucceeded, model.PaymentStatusFailed},
		model.PaymentStatusSucceeded: {model.PaymentStatusRefunded},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	cases := map[model.PaymentStatus]bool{
		model.PaymentStatusInitiated: false,
		model.PaymentStatusSucceeded: false, // refund can still apply
		model.PaymentStatusFailed:    true,
		model.PaymentStatusRefunded:  true,
	}
	for s, want := range cases {
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
}
