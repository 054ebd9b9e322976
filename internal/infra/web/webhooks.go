// File: internal/infra/web/webhooks.go
package web

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"shortlet-payments/internal/domain"
	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/infra/logging"
	"shortlet-payments/internal/infra/metrics"
)

const maxWebhookBody = 1 << 16 // 64 KiB

// stripeWebhookHandler applies provider pushes through the same ledger
// primitives the reconciler uses. The reconciler exists to cover the case
// where these deliveries never arrive, so a missing intent row is not an
// error here; the row is picked up by a later pass.
func (s *Server) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("stripe", "error").Inc()
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), s.stripeWebhookSecret)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("stripe", "bad_signature").Inc()
		l.Warn().Err(err).Msg("stripe webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	first, err := s.dedup.FirstSeen(r.Context(), "stripe", event.ID)
	if err != nil {
		l.Warn().Err(err).Msg("webhook dedup unavailable, processing anyway")
	} else if !first {
		metrics.WebhookEvents.WithLabelValues("stripe", "duplicate").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
	default:
		metrics.WebhookEvents.WithLabelValues("stripe", "ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		metrics.WebhookEvents.WithLabelValues("stripe", "error").Inc()
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	mode, err := s.probe.Detect(r.Context())
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("stripe", "error").Inc()
		l.Error().Err(err).Msg("schema probe failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		txID := ""
		if sess.PaymentIntent != nil {
			txID = sess.PaymentIntent.ID
		}
		out, err := s.payments.ConfirmAndTransition(r.Context(), mode, model.ProviderStripe, sess.ID, event.Data.Raw, txID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Delivery raced the checkout initiator; the intent row does
				// not exist yet.
				l.Info().Str("session", sess.ID).Msg("stripe event before intent row, deferring to reconciler")
				writeJSON(w, http.StatusOK, map[string]string{"status": "deferred"})
				return
			}
			metrics.WebhookEvents.WithLabelValues("stripe", "error").Inc()
			l.Error().Err(err).Str("session", sess.ID).Msg("stripe confirm failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if out.Reason != "" {
			if flagErr := s.payments.FlagForReconcile(r.Context(), mode, out.Intent.ID, out.Reason, event.Data.Raw); flagErr != nil {
				l.Warn().Err(flagErr).Msg("flag after webhook confirm failed")
			}
		}
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		if err := s.payments.MarkFailed(r.Context(), mode, model.ProviderStripe, sess.ID, event.Data.Raw, model.ReasonProviderNotPaid); err != nil {
			metrics.WebhookEvents.WithLabelValues("stripe", "error").Inc()
			l.Error().Err(err).Str("session", sess.ID).Msg("stripe mark failed errored")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	metrics.WebhookEvents.WithLabelValues("stripe", "processed").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

type paystackWebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

// paystackWebhookHandler verifies the HMAC-SHA512 body signature Paystack
// sends in x-paystack-signature, keyed with the account secret key.
func (s *Server) paystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("paystack", "error").Inc()
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	mac := hmac.New(sha512.New, []byte(s.paystackSecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if s.paystackSecretKey == "" || !hmac.Equal([]byte(expected), []byte(r.Header.Get("x-paystack-signature"))) {
		metrics.WebhookEvents.WithLabelValues("paystack", "bad_signature").Inc()
		l.Warn().Msg("paystack webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event paystackWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Data.Reference == "" {
		metrics.WebhookEvents.WithLabelValues("paystack", "error").Inc()
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Paystack events carry no envelope id; the transaction id plus event
	// name is stable across redeliveries.
	eventID := fmt.Sprintf("%s:%d", event.Event, event.Data.ID)
	first, err := s.dedup.FirstSeen(r.Context(), "paystack", eventID)
	if err != nil {
		l.Warn().Err(err).Msg("webhook dedup unavailable, processing anyway")
	} else if !first {
		metrics.WebhookEvents.WithLabelValues("paystack", "duplicate").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	if event.Event != "charge.success" && event.Event != "charge.failed" {
		metrics.WebhookEvents.WithLabelValues("paystack", "ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	mode, err := s.probe.Detect(r.Context())
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("paystack", "error").Inc()
		l.Error().Err(err).Msg("schema probe failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if event.Event == "charge.success" {
		txID := fmt.Sprintf("%d", event.Data.ID)
		out, err := s.payments.ConfirmAndTransition(r.Context(), mode, model.ProviderPaystack, event.Data.Reference, body, txID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				l.Info().Str("reference", event.Data.Reference).Msg("paystack event before intent row, deferring to reconciler")
				writeJSON(w, http.StatusOK, map[string]string{"status": "deferred"})
				return
			}
			metrics.WebhookEvents.WithLabelValues("paystack", "error").Inc()
			l.Error().Err(err).Str("reference", event.Data.Reference).Msg("paystack confirm failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if out.Reason != "" {
			if flagErr := s.payments.FlagForReconcile(r.Context(), mode, out.Intent.ID, out.Reason, body); flagErr != nil {
				l.Warn().Err(flagErr).Msg("flag after webhook confirm failed")
			}
		}
	} else {
		if err := s.payments.MarkFailed(r.Context(), mode, model.ProviderPaystack, event.Data.Reference, body, model.ReasonProviderNotPaid); err != nil {
			metrics.WebhookEvents.WithLabelValues("paystack", "error").Inc()
			l.Error().Err(err).Str("reference", event.Data.Reference).Msg("paystack mark failed errored")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	metrics.WebhookEvents.WithLabelValues("paystack", "processed").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
