//go:build !integration

package model_test

import (
	"testing"
	"time"

	"shortlet-payments/internal/domain/model"
)

func TestPostPaymentTarget(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("instant confirms directly", func(t *testing.T) {
		b := &model.Booking{Mode: model.BookingModeInstant, Status: model.BookingStatusPendingPayment}
		status, exp := b.PostPaymentTarget(now)
		if status != model.BookingStatusConfirmed {
			t.Fatalf("status = %s", status)
		}
		if exp != nil {
			t.Fatalf("instant mode must not carry an expiry, got %v", exp)
		}
	})

	t.Run("request opens a host window", func(t *testing.T) {
		b := &model.Booking{Mode: model.BookingModeRequest, Status: model.BookingStatusPendingPayment}
		status, exp := b.PostPaymentTarget(now)
		if status != model.BookingStatusPending {
			t.Fatalf("status = %s", status)
		}
		if exp == nil || !exp.Equal(now.Add(model.HostResponseWindow)) {
			t.Fatalf("expiry = %v", exp)
		}
	})
}

func TestSettledForPayment(t *testing.T) {
	cases := map[model.BookingStatus]bool{
		model.BookingStatusPendingPayment: false,
		model.BookingStatusPending:        false,
		model.BookingStatusConfirmed:      true,
		model.BookingStatusDeclined:       false,
		model.BookingStatusCancelled:      true,
		model.BookingStatusExpired:        false,
		model.BookingStatusCompleted:      true,
	}
	for status, want := range cases {
		b := &model.Booking{Status: status}
		if got := b.SettledForPayment(); got != want {
			t.Errorf("SettledForPayment(%s) = %v, want %v", status, got, want)
		}
	}
}
