package provider

import (
	"context"
	"sync"

	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/adapter"
)

var _ adapter.ProviderVerifier = (*NoopVerifier)(nil)

// NoopVerifier is a simple in-memory verifier to use in dev runs and tests.
type NoopVerifier struct {
	name model.Provider

	mu      sync.Mutex
	results map[string]adapter.VerificationResult // reference -> canned result
}

func NewNoopVerifier(name model.Provider) *NoopVerifier {
	return &NoopVerifier{
		name:    name,
		results: make(map[string]adapter.VerificationResult),
	}
}

func (v *NoopVerifier) Name() model.Provider { return v.name }

// SetResult registers the result the next Verify for reference returns.
func (v *NoopVerifier) SetResult(reference string, res adapter.VerificationResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results[reference] = res
}

func (v *NoopVerifier) Verify(ctx context.Context, reference string) (*adapter.VerificationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if res, ok := v.results[reference]; ok {
		out := res
		return &out, nil
	}
	return &adapter.VerificationResult{OK: false, Status: "pending"}, nil
}
