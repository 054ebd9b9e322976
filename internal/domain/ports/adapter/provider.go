package adapter

import (
	"context"

	"shortlet-payments/internal/domain/model"
)

// VerificationResult is the provider-agnostic answer to "was this paid?".
// Amount and currency are the provider's authoritative captured values,
// never the amount we asked for at checkout.
type VerificationResult struct {
	OK              bool   // provider reports the transaction as paid
	Status          string // provider status vocabulary, e.g. "success", "abandoned", "complete/unpaid"
	PaidAmountMinor int64
	Currency        string
	ExternalTxID    string // provider-side charge/transaction id
	RawPayload      []byte // raw provider response for the audit snapshot
}

// ProviderVerifier is the hex port for payment providers.
//
// Verify must not return an error for "not yet paid" or "declined"; those
// are OK=false results with a descriptive Status. An error return is reserved
// for transport/auth failure and is treated upstream as retryable
// infrastructure trouble, never as a payment-failure signal.
type ProviderVerifier interface {
	Name() model.Provider
	Verify(ctx context.Context, reference string) (*VerificationResult, error)
}
