// File: internal/usecase/payment_service.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"shortlet-payments/internal/domain"
	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/repository"
	"shortlet-payments/internal/infra/logging"
)

// Compile-time check
var _ PaymentService = (*paymentService)(nil)

// ConfirmOutcome is the tagged result of ConfirmAndTransition. The payment
// side and the booking side succeed or fail independently: Reason is set when
// the booking could not be advanced even though the payment is succeeded.
type ConfirmOutcome struct {
	Intent           *model.PaymentIntent
	AlreadySucceeded bool
	// BookingTransitioned is true only when this call moved the booking out
	// of pending_payment. A repeat call on an already-confirmed pair returns
	// success with BookingTransitioned=false and no Reason.
	BookingTransitioned bool
	BookingStatus       model.BookingStatus
	Reason              model.ReconcileReason
}

// PaymentService is the shared ledger primitive set used by the
// reconciliation engine and the provider webhook handlers. Both paths MUST go
// through the same operations so that duplicate triggers stay idempotent.
type PaymentService interface {
	// UpsertIntent is the idempotent create-or-update keyed by booking id.
	// Callers must not re-attempt charge creation when AlreadySucceeded.
	UpsertIntent(ctx context.Context, mode repository.SchemaMode, p *model.PaymentIntent) (*repository.UpsertResult, error)
	// ConfirmAndTransition flips the intent to succeeded and conditionally
	// advances the booking, in one transaction. The payment is kept succeeded
	// even when the booking transition fails; the outcome carries the reason.
	ConfirmAndTransition(ctx context.Context, mode repository.SchemaMode, provider model.Provider, reference string, payload []byte, externalTxID string) (*ConfirmOutcome, error)
	// MarkFailed records a definitive non-payment unless the row already
	// succeeded. Extends the retry backoff on the reconcile schema.
	MarkFailed(ctx context.Context, mode repository.SchemaMode, provider model.Provider, reference string, payload []byte, reason model.ReconcileReason) error
	// FlagForReconcile records a non-terminal outcome for the next pass.
	// No-op on the legacy schema (no reconcile columns to write).
	FlagForReconcile(ctx context.Context, mode repository.SchemaMode, id string, reason model.ReconcileReason, payload []byte) error
	// ClearReconcileState drops stale reconcile flags from a settled pair.
	ClearReconcileState(ctx context.Context, mode repository.SchemaMode, id string) error
	// ListFlagged pages intents awaiting manual follow-up.
	ListFlagged(ctx context.Context, offset, limit int) ([]*model.PaymentIntent, error)
}

type paymentService struct {
	tm       repository.TransactionManager
	intents  repository.PaymentIntentRepository
	bookings repository.BookingRepository

	retryBackoff time.Duration
	log          *zerolog.Logger
}

func NewPaymentService(tm repository.TransactionManager, intents repository.PaymentIntentRepository, bookings repository.BookingRepository, retryBackoff time.Duration, log *zerolog.Logger) *paymentService {
	if retryBackoff <= 0 {
		retryBackoff = time.Minute
	}
	return &paymentService{tm: tm, intents: intents, bookings: bookings, retryBackoff: retryBackoff, log: log}
}

func (s *paymentService) UpsertIntent(ctx context.Context, mode repository.SchemaMode, p *model.PaymentIntent) (*repository.UpsertResult, error) {
	if p == nil || p.BookingID == "" || p.Provider == "" || p.ProviderReference == "" {
		return nil, fmt.Errorf("%w: booking id, provider and reference are required", domain.ErrInvalidArgument)
	}
	if p.AmountTotalMinor <= 0 || p.Currency == "" {
		return nil, fmt.Errorf("%w: positive minor amount and currency are required", domain.ErrInvalidArgument)
	}
	now := time.Now()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.PaymentStatusInitiated
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return s.intents.Upsert(ctx, nil, mode, p)
}

func (s *paymentService) ConfirmAndTransition(ctx context.Context, mode repository.SchemaMode, provider model.Provider, reference string, payload []byte, externalTxID string) (*ConfirmOutcome, error) {
	defer logging.TraceDuration(s.log, "PaymentService.ConfirmAndTransition")()

	out := &ConfirmOutcome{}
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		res, err := s.intents.MarkSucceeded(ctx, tx, mode, provider, reference, payload, externalTxID)
		if err != nil {
			return err
		}
		out.Intent = res.Intent
		out.AlreadySucceeded = res.AlreadySucceeded

		booking, err := s.bookings.FindByID(ctx, tx, res.Intent.BookingID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				out.Reason = model.ReasonBookingNotFound
				return nil
			}
			return err
		}
		out.BookingStatus = booking.Status

		if booking.Status != model.BookingStatusPendingPayment {
			// Already advanced by a webhook or an earlier pass. Settled and
			// pending states are success-without-transition; a terminal
			// decline/expiry still needs follow-up.
			if !booking.SettledForPayment() && booking.Status != model.BookingStatusPending {
				out.Reason = model.ReasonBookingTransitionFailed
			}
			return nil
		}

		target, expiresAt := booking.PostPaymentTarget(time.Now())
		moved, err := s.bookings.TransitionFromPendingPayment(ctx, tx, booking.ID, target, reference, expiresAt)
		if err != nil {
			return err
		}
		if !moved {
			out.Reason = model.ReasonBookingTransitionFailed
			return nil
		}
		out.BookingTransitioned = true
		out.BookingStatus = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Reason != "" {
		s.log.Warn().
			Str("provider", string(provider)).
			Str("reference", reference).
			Str("reason", string(out.Reason)).
			Msg("payment succeeded but booking was not advanced")
	}
	return out, nil
}

func (s *paymentService) MarkFailed(ctx context.Context, mode repository.SchemaMode, provider model.Provider, reference string, payload []byte, reason model.ReconcileReason) error {
	var retryAt *time.Time
	if mode == repository.SchemaModeReconcile {
		t := time.Now().Add(s.retryBackoff)
		retryAt = &t
	}
	return s.intents.MarkFailed(ctx, nil, mode, provider, reference, payload, reason, retryAt)
}

func (s *paymentService) FlagForReconcile(ctx context.Context, mode repository.SchemaMode, id string, reason model.ReconcileReason, payload []byte) error {
	if mode != repository.SchemaModeReconcile {
		return nil
	}
	return s.intents.MarkNeedsReconcile(ctx, nil, id, reason, time.Now().Add(s.retryBackoff), payload)
}

func (s *paymentService) ClearReconcileState(ctx context.Context, mode repository.SchemaMode, id string) error {
	if mode != repository.SchemaModeReconcile {
		return nil
	}
	return s.intents.ClearReconcileState(ctx, nil, id)
}

func (s *paymentService) ListFlagged(ctx context.Context, offset, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.intents.ListFlagged(ctx, nil, offset, limit)
}
