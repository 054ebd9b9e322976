// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shortlet-payments/internal/domain"
	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/adapter"
	"shortlet-payments/internal/domain/ports/repository"
	"shortlet-payments/internal/infra/logging"
	"shortlet-payments/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// Run triggers.
const (
	TriggerCron   = "cron"
	TriggerWorker = "worker"
)

// DefaultNotPaidMarkers classifies a provider status string as "definitively
// not paid" by case-insensitive substring match. The vocabulary is inherited
// from the providers' own status strings; keep it explicit and overridable
// rather than guessing a new provider's wording.
var DefaultNotPaidMarkers = []string{"fail", "abandon", "cancel", "reverse", "declin"}

// SchemaDetector resolves the ledger's schema capability once per run.
type SchemaDetector interface {
	Detect(ctx context.Context) (repository.SchemaMode, error)
}

// RunSummary is the engine's only externally observable output; there is no
// persistent job-run record.
type RunSummary struct {
	SchemaMode          repository.SchemaMode `json:"schemaMode"`
	Scanned             int                   `json:"scanned"`
	Locked              int                   `json:"locked"`
	Reconciled          int                   `json:"reconciled"`
	FailedMarked        int                   `json:"failedMarked"`
	SkippedLocked       int                   `json:"skippedLocked"`
	SkippedTerminal     int                   `json:"skippedTerminal"`
	FlaggedForReconcile int                   `json:"flaggedForReconcile"`
	Errors              []string              `json:"errors"`
}

type ReconcileUseCase interface {
	// Run executes one reconciliation pass. limit <= 0 selects the default;
	// the value is clamped to the configured maximum.
	Run(ctx context.Context, trigger string, limit int) (*RunSummary, error)
}

// ReconcileOptions are the engine's run parameters.
type ReconcileOptions struct {
	StaleAfter    time.Duration // min age before an initiated intent is eligible
	DefaultLimit  int
	MaxLimit      int
	ActiveLockTTL time.Duration // lock held while processing one candidate
	RetryBackoff  time.Duration // throttle before the next run re-picks a row
	// NotPaidMarkers overrides DefaultNotPaidMarkers when non-nil.
	NotPaidMarkers []string
}

func (o *ReconcileOptions) withDefaults() {
	if o.StaleAfter <= 0 {
		o.StaleAfter = 5 * time.Minute
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 50
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = 200
	}
	if o.ActiveLockTTL <= 0 {
		o.ActiveLockTTL = 90 * time.Second
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 60 * time.Second
	}
	if o.NotPaidMarkers == nil {
		o.NotPaidMarkers = DefaultNotPaidMarkers
	}
}

type reconcileUC struct {
	intents   repository.PaymentIntentRepository
	bookings  repository.BookingRepository
	payments  PaymentService
	probe     SchemaDetector
	verifiers map[model.Provider]adapter.ProviderVerifier
	publisher adapter.EventPublisher

	opts ReconcileOptions
	log  *zerolog.Logger
}

func NewReconcileUseCase(
	intents repository.PaymentIntentRepository,
	bookings repository.BookingRepository,
	payments PaymentService,
	probe SchemaDetector,
	verifiers map[model.Provider]adapter.ProviderVerifier,
	publisher adapter.EventPublisher,
	opts ReconcileOptions,
	log *zerolog.Logger,
) *reconcileUC {
	opts.withDefaults()
	return &reconcileUC{
		intents:   intents,
		bookings:  bookings,
		payments:  payments,
		probe:     probe,
		verifiers: verifiers,
		publisher: publisher,
		opts:      opts,
		log:       log,
	}
}

func (u *reconcileUC) Run(ctx context.Context, trigger string, limit int) (*RunSummary, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Run")()

	if limit <= 0 {
		limit = u.opts.DefaultLimit
	}
	if limit > u.opts.MaxLimit {
		limit = u.opts.MaxLimit
	}

	// Capability resolved once per run and passed down; never re-checked
	// per candidate. A probe failure unrelated to missing columns is fatal.
	mode, err := u.probe.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema probe: %w", err)
	}

	start := time.Now()
	summary := &RunSummary{SchemaMode: mode, Errors: []string{}}
	metrics.ReconcileRuns.WithLabelValues(trigger, string(mode)).Inc()
	defer func() {
		metrics.ReconcileRunDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}()

	now := time.Now()
	candidates, err := u.selectCandidates(ctx, mode, now, limit)
	if err != nil {
		return nil, err
	}
	summary.Scanned = len(candidates)

	for _, intent := range candidates {
		u.processCandidate(ctx, mode, now, intent, summary)
	}

	u.log.Info().
		Str("trigger", trigger).
		Str("schema_mode", string(mode)).
		Int("scanned", summary.Scanned).
		Int("reconciled", summary.Reconciled).
		Int("failed_marked", summary.FailedMarked).
		Int("flagged", summary.FlaggedForReconcile).
		Int("skipped_locked", summary.SkippedLocked).
		Int("skipped_terminal", summary.SkippedTerminal).
		Int("errors", len(summary.Errors)).
		Msg("reconcile run finished")
	return summary, nil
}

// selectCandidates unions stale initiated intents with the re-verification
// backlog, deduplicated by id and capped at limit. On the legacy schema the
// backlog is every succeeded row (no needs_reconcile column to narrow it).
func (u *reconcileUC) selectCandidates(ctx context.Context, mode repository.SchemaMode, now time.Time, limit int) ([]*model.PaymentIntent, error) {
	staleBefore := now.Add(-u.opts.StaleAfter)

	stale, err := u.intents.ListStaleInitiated(ctx, nil, mode, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale initiated: %w", err)
	}

	var backlog []*model.PaymentIntent
	if mode == repository.SchemaModeReconcile {
		backlog, err = u.intents.ListNeedsReconcile(ctx, nil, now, limit)
		if err != nil {
			return nil, fmt.Errorf("list needs reconcile: %w", err)
		}
	} else {
		backlog, err = u.intents.ListSucceeded(ctx, nil, limit)
		if err != nil {
			return nil, fmt.Errorf("list succeeded: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(stale)+len(backlog))
	out := make([]*model.PaymentIntent, 0, limit)
	for _, batch := range [][]*model.PaymentIntent{stale, backlog} {
		for _, p := range batch {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// processCandidate runs the full lock -> fetch -> verify -> decide -> write
// sequence for one intent. Failures are isolated: any error or panic flags
// the row best-effort and is recorded in the summary, never aborting the run.
func (u *reconcileUC) processCandidate(ctx context.Context, mode repository.SchemaMode, now time.Time, intent *model.PaymentIntent, summary *RunSummary) {
	log := u.log.With().Str("intent_id", intent.ID).Str("booking_id", intent.BookingID).Logger()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return u.reconcileOne(ctx, mode, now, intent, summary, &log)
	}()
	if err == nil {
		return
	}

	summary.Errors = append(summary.Errors, fmt.Sprintf("%s:%v", intent.ID, err))
	metrics.ReconcileCandidates.WithLabelValues("error").Inc()
	log.Error().Err(err).Msg("candidate failed")

	// Best-effort flag so the next pass retries; already in an error path,
	// a failing write here is swallowed.
	if flagErr := u.payments.FlagForReconcile(ctx, mode, intent.ID, model.ReasonProviderVerifyFailed, nil); flagErr != nil {
		log.Warn().Err(flagErr).Msg("best-effort flag failed")
	}
	summary.FlaggedForReconcile++
}

func (u *reconcileUC) reconcileOne(ctx context.Context, mode repository.SchemaMode, now time.Time, intent *model.PaymentIntent, summary *RunSummary, log *zerolog.Logger) error {
	// Optimistic lock, reconcile schema only. Losing the race means another
	// worker or a later pass owns the row.
	if mode == repository.SchemaModeReconcile {
		locked, err := u.intents.LockForReconcile(ctx, nil, intent.ID, intent.VerifyAttempts, now.Add(u.opts.ActiveLockTTL), now)
		if err != nil {
			return fmt.Errorf("lock: %w", err)
		}
		if !locked {
			summary.SkippedLocked++
			metrics.ReconcileCandidates.WithLabelValues("skipped_locked").Inc()
			return nil
		}
		summary.Locked++
	}

	booking, err := u.bookings.FindByID(ctx, nil, intent.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Never synthesize booking data; flag and surface the id.
			if flagErr := u.payments.FlagForReconcile(ctx, mode, intent.ID, model.ReasonBookingNotFound, nil); flagErr != nil {
				return fmt.Errorf("flag booking_not_found: %w", flagErr)
			}
			summary.FlaggedForReconcile++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s:%s", intent.ID, model.ReasonBookingNotFound))
			metrics.ReconcileCandidates.WithLabelValues("flagged").Inc()
			return nil
		}
		return fmt.Errorf("fetch booking: %w", err)
	}

	// Settled pair: no provider call, just drop stale flags.
	if intent.Status == model.PaymentStatusSucceeded && booking.SettledForPayment() {
		if err := u.payments.ClearReconcileState(ctx, mode, intent.ID); err != nil {
			return fmt.Errorf("clear reconcile state: %w", err)
		}
		summary.SkippedTerminal++
		metrics.ReconcileCandidates.WithLabelValues("skipped_terminal").Inc()
		return nil
	}

	verifier, ok := u.verifiers[intent.Provider]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownProvider, intent.Provider)
	}

	res, err := verifier.Verify(ctx, intent.ProviderReference)
	if err != nil {
		// Transport/auth trouble: ambiguous, retry later. Never a
		// payment-failure signal.
		log.Warn().Err(err).Str("provider", string(intent.Provider)).Msg("provider verify failed")
		return u.flag(ctx, mode, intent, model.ReasonProviderVerifyFailed, nil, summary)
	}

	switch {
	case !res.OK && u.definitivelyNotPaid(res.Status):
		if err := u.payments.MarkFailed(ctx, mode, intent.Provider, intent.ProviderReference, res.RawPayload, model.ReasonProviderNotPaid); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		summary.FailedMarked++
		metrics.ReconcileCandidates.WithLabelValues("failed").Inc()
		log.Info().Str("provider_status", res.Status).Msg("payment marked failed")
		u.publish(ctx, SubjectPaymentFailed, &PaymentFailedEvent{
			IntentID:          intent.ID,
			BookingID:         intent.BookingID,
			Provider:          intent.Provider,
			ProviderReference: intent.ProviderReference,
			ProviderStatus:    res.Status,
		})
		return nil

	case !res.OK:
		// Pending or otherwise ambiguous at the provider; next pass retries.
		return u.flag(ctx, mode, intent, model.ReasonProviderNotPaid, res.RawPayload, summary)

	case res.PaidAmountMinor != booking.TotalAmountMinor || !strings.EqualFold(res.Currency, booking.Currency):
		log.Warn().
			Int64("paid_minor", res.PaidAmountMinor).
			Int64("expected_minor", booking.TotalAmountMinor).
			Str("paid_currency", res.Currency).
			Str("expected_currency", booking.Currency).
			Msg("provider amount mismatch, not confirming")
		return u.flag(ctx, mode, intent, model.ReasonProviderMismatch, res.RawPayload, summary)

	default:
		out, err := u.payments.ConfirmAndTransition(ctx, mode, intent.Provider, intent.ProviderReference, res.RawPayload, res.ExternalTxID)
		if err != nil {
			return fmt.Errorf("confirm: %w", err)
		}
		if out.Reason != "" {
			// Money captured but the booking could not be advanced;
			// flagged for follow-up, the payment stays succeeded.
			return u.flag(ctx, mode, intent, out.Reason, res.RawPayload, summary)
		}
		summary.Reconciled++
		metrics.ReconcileCandidates.WithLabelValues("reconciled").Inc()
		log.Info().Str("booking_status", string(out.BookingStatus)).Msg("payment reconciled")
		u.publish(ctx, SubjectBookingConfirmed, &BookingConfirmedEvent{
			IntentID:          intent.ID,
			BookingID:         intent.BookingID,
			Provider:          intent.Provider,
			ProviderReference: intent.ProviderReference,
			AmountTotalMinor:  out.Intent.AmountTotalMinor,
			Currency:          out.Intent.Currency,
			BookingStatus:     out.BookingStatus,
		})
		return nil
	}
}

func (u *reconcileUC) flag(ctx context.Context, mode repository.SchemaMode, intent *model.PaymentIntent, reason model.ReconcileReason, payload []byte, summary *RunSummary) error {
	if err := u.payments.FlagForReconcile(ctx, mode, intent.ID, reason, payload); err != nil {
		return fmt.Errorf("flag %s: %w", reason, err)
	}
	summary.FlaggedForReconcile++
	metrics.ReconcileCandidates.WithLabelValues("flagged").Inc()
	u.publish(ctx, SubjectPaymentFlagged, &PaymentFlaggedEvent{
		IntentID:          intent.ID,
		BookingID:         intent.BookingID,
		Provider:          intent.Provider,
		ProviderReference: intent.ProviderReference,
		Reason:            reason,
	})
	return nil
}

func (u *reconcileUC) definitivelyNotPaid(status string) bool {
	s := strings.ToLower(status)
	for _, marker := range u.opts.NotPaidMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func (u *reconcileUC) publish(ctx context.Context, subject string, data any) {
	if u.publisher == nil {
		return
	}
	body, err := newEnvelope(subject, data)
	if err != nil {
		u.log.Warn().Err(err).Str("subject", subject).Msg("encode event failed")
		return
	}
	if err := u.publisher.Publish(ctx, subject, body); err != nil {
		u.log.Warn().Err(err).Str("subject", subject).Msg("publish event failed")
	}
}
