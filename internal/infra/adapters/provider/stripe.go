package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/adapter"
	"shortlet-payments/internal/infra/metrics"
)

// StripeVerifier implements adapter.ProviderVerifier by retrieving the
// checkout session the reference points at. The session's payment_status and
// captured amount are the ground truth, never the amount we quoted.
type StripeVerifier struct {
	api *client.API
}

func NewStripeVerifier(secretKey string) *StripeVerifier {
	var api client.API
	api.Init(secretKey, nil)
	return &StripeVerifier{api: &api}
}

func (v *StripeVerifier) Name() model.Provider { return model.ProviderStripe }

func (v *StripeVerifier) Verify(ctx context.Context, reference string) (*adapter.VerificationResult, error) {
	start := time.Now()
	res, err := v.verify(ctx, reference)
	metrics.ProviderVerifyDuration.WithLabelValues(string(model.ProviderStripe)).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.ProviderVerifyRequests.WithLabelValues(string(model.ProviderStripe), "error").Inc()
	case res.OK:
		metrics.ProviderVerifyRequests.WithLabelValues(string(model.ProviderStripe), "paid").Inc()
	default:
		metrics.ProviderVerifyRequests.WithLabelValues(string(model.ProviderStripe), "not_paid").Inc()
	}
	return res, err
}

func (v *StripeVerifier) verify(ctx context.Context, reference string) (*adapter.VerificationResult, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	}
	params.AddExpand("payment_intent")

	sess, err := v.api.CheckoutSessions.Get(reference, params)
	if err != nil {
		// A missing or malformed session id is not a payment verdict; the
		// reconciler retries it like any other provider fault.
		if stripeErr, ok := err.(*stripe.Error); ok {
			return nil, fmt.Errorf("stripe session retrieve (%s): %w", stripeErr.Code, err)
		}
		return nil, fmt.Errorf("stripe session retrieve: %w", err)
	}

	var externalTxID string
	if sess.PaymentIntent != nil {
		externalTxID = sess.PaymentIntent.ID
	}

	var raw []byte
	if sess.LastResponse != nil {
		raw = sess.LastResponse.RawJSON
	}

	return &adapter.VerificationResult{
		OK:              sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Status:          fmt.Sprintf("%s/%s", sess.Status, sess.PaymentStatus),
		PaidAmountMinor: sess.AmountTotal,
		Currency:        string(sess.Currency),
		ExternalTxID:    externalTxID,
		RawPayload:      raw,
	}, nil
}
