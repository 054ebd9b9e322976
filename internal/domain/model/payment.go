package model

import "time"

type Provider string

const (
	ProviderStripe   Provider = "stripe"
	ProviderPaystack Provider = "paystack"
)

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated" // checkout created a provider transaction; awaiting verification
	PaymentStatusSucceeded PaymentStatus = "succeeded" // verified paid at provider, amount/currency matched
	PaymentStatusFailed    PaymentStatus = "failed"    // provider reported definitively not paid
	PaymentStatusRefunded  PaymentStatus = "refunded"  // post-success refund
)

// ReconcileReason records why an intent was flagged for another pass.
type ReconcileReason string

const (
	ReasonProviderNotPaid         ReconcileReason = "provider_not_paid"
	ReasonProviderMismatch        ReconcileReason = "provider_mismatch"
	ReasonProviderVerifyFailed    ReconcileReason = "provider_verification_failed"
	ReasonBookingNotFound         ReconcileReason = "booking_not_found"
	ReasonBookingTransitionFailed ReconcileReason = "booking_status_transition_failed"
	ReasonProviderStatusUnknown   ReconcileReason = "provider_status_unknown"
)

// PaymentIntent records one checkout attempt against a provider.
// Unique on (provider, provider_reference) and on booking_id. Never deleted;
// it is the audit trail of everything the providers told us.
type PaymentIntent struct {
	ID          string // UUID
	BookingID   string // UUID, owning booking
	PropertyID  string
	GuestUserID string
	HostUserID  string

	Provider          Provider
	ProviderReference string // provider transaction/session id; the external idempotency key
	ProviderTxID      string // secondary charge/transaction id captured on success

	Currency         string
	AmountTotalMinor int64

	Status PaymentStatus

	// Reconciliation-loop bookkeeping (present only on the new schema).
	VerifyAttempts       int
	NeedsReconcile       bool
	ReconcileReason      ReconcileReason
	ReconcileLockedUntil *time.Time

	LastVerifiedAt  *time.Time
	ProviderPayload []byte // raw provider response snapshot at last check

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanTransitionTo reports whether moving to next is a legal status change.
// Status is one-directional: initiated -> {succeeded|failed}; the only
// post-success transition is succeeded -> refunded.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusInitiated:
		return next == PaymentStatusSucceeded || next == PaymentStatusFailed
	case PaymentStatusSucceeded:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

// Terminal reports whether no further automatic transition applies.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded
}
