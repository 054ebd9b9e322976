// File: internal/usecase/events.go
package usecase

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"shortlet-payments/internal/domain/model"
)

// NATS subjects for reconciliation outcome events.
const (
	SubjectBookingConfirmed = "payments.booking.confirmed"
	SubjectPaymentFailed    = "payments.payment.failed"
	SubjectPaymentFlagged   = "payments.payment.flagged"
)

// Envelope wraps every published event with common metadata.
type Envelope struct {
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func newEnvelope(subject string, data any) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Envelope{
		ID:        ulid.Make().String(),
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Data:      body,
	})
}

// BookingConfirmedEvent is published when a verified payment advanced its
// booking out of pending_payment.
type BookingConfirmedEvent struct {
	IntentID          string              `json:"intent_id"`
	BookingID         string              `json:"booking_id"`
	Provider          model.Provider      `json:"provider"`
	ProviderReference string              `json:"provider_reference"`
	AmountTotalMinor  int64               `json:"amount_total_minor"`
	Currency          string              `json:"currency"`
	BookingStatus     model.BookingStatus `json:"booking_status"`
}

// PaymentFailedEvent is published when the provider reported a definitive
// non-payment and the intent was marked failed.
type PaymentFailedEvent struct {
	IntentID          string         `json:"intent_id"`
	BookingID         string         `json:"booking_id"`
	Provider          model.Provider `json:"provider"`
	ProviderReference string         `json:"provider_reference"`
	ProviderStatus    string         `json:"provider_status"`
}

// PaymentFlaggedEvent is published when a candidate was flagged for another
// pass, including the succeeded-but-booking-stuck asymmetry that needs
// operator attention.
type PaymentFlaggedEvent struct {
	IntentID          string                `json:"intent_id"`
	BookingID         string                `json:"booking_id"`
	Provider          model.Provider        `json:"provider"`
	ProviderReference string                `json:"provider_reference"`
	Reason            model.ReconcileReason `json:"reason"`
}
