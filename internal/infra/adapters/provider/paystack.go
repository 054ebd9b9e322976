package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/adapter"
	"shortlet-payments/internal/infra/metrics"
)

// PaystackVerifier implements adapter.ProviderVerifier using direct HTTP
// calls against the Paystack transaction-verify endpoint.
type PaystackVerifier struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewPaystackVerifier(secretKey, baseURL string) *PaystackVerifier {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &PaystackVerifier{
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (v *PaystackVerifier) Name() model.Provider { return model.ProviderPaystack }

// paystackVerifyResponse mirrors GET /transaction/verify/:reference.
type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID              int64  `json:"id"`
		Status          string `json:"status"` // success, failed, abandoned, reversed, ongoing, pending, ...
		Amount          int64  `json:"amount"` // minor units (kobo)
		Currency        string `json:"currency"`
		Reference       string `json:"reference"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

// Verify returns the provider's authoritative view of the transaction.
// A reachable API reporting "not paid" is an OK=false result, not an error;
// errors are reserved for transport/auth/unknown-reference failures.
func (v *PaystackVerifier) Verify(ctx context.Context, reference string) (*adapter.VerificationResult, error) {
	start := time.Now()
	res, err := v.verify(ctx, reference)
	metrics.ProviderVerifyDuration.WithLabelValues(string(model.ProviderPaystack)).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.ProviderVerifyRequests.WithLabelValues(string(model.ProviderPaystack), "error").Inc()
	case res.OK:
		metrics.ProviderVerifyRequests.WithLabelValues(string(model.ProviderPaystack), "paid").Inc()
	default:
		metrics.ProviderVerifyRequests.WithLabelValues(string(model.ProviderPaystack), "not_paid").Inc()
	}
	return res, err
}

func (v *PaystackVerifier) verify(ctx context.Context, reference string) (*adapter.VerificationResult, error) {
	url := fmt.Sprintf("%s/transaction/verify/%s", v.baseURL, reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("paystack auth error: status %d", resp.StatusCode)
	}

	var parsed paystackVerifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	// status=false covers unknown references and API-side trouble; neither is
	// a payment verdict, so surface it as an infrastructure error.
	if !parsed.Status {
		return nil, fmt.Errorf("paystack verify not available: %s", parsed.Message)
	}

	return &adapter.VerificationResult{
		OK:              parsed.Data.Status == "success",
		Status:          parsed.Data.Status,
		PaidAmountMinor: parsed.Data.Amount,
		Currency:        parsed.Data.Currency,
		ExternalTxID:    strconv.FormatInt(parsed.Data.ID, 10),
		RawPayload:      body,
	}, nil
}
