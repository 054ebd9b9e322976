package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"shortlet-payments/internal/domain"
	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/repository"
)

var _ repository.PaymentIntentRepository = (*paymentIntentRepo)(nil)

type paymentIntentRepo struct{ pool *pgxpool.Pool }

func NewPaymentIntentRepo(pool *pgxpool.Pool) *paymentIntentRepo {
	return &paymentIntentRepo{pool: pool}
}

// Column lists. The reconcile bookkeeping columns exist only after the
// reconcile migration; legacy selects must not mention them at all.
const intentCols = `id, booking_id, property_id, guest_user_id, host_user_id, provider, provider_reference,
  COALESCE(provider_tx_id,''), currency, amount_total_minor, status,
  verify_attempts, needs_reconcile, COALESCE(reconcile_reason,''), reconcile_locked_until,
  last_verified_at, provider_payload, created_at, updated_at`

const intentColsLegacy = `id, booking_id, property_id, guest_user_id, host_user_id, provider, provider_reference,
  COALESCE(provider_tx_id,''), currency, amount_total_minor, status,
  last_verified_at, provider_payload, created_at, updated_at`

func scanIntent(row pgx.Row, mode repository.SchemaMode) (*model.PaymentIntent, error) {
	p := &model.PaymentIntent{}
	var err error
	if mode == repository.SchemaModeLegacy {
		err = row.Scan(&p.ID, &p.BookingID, &p.PropertyID, &p.GuestUserID, &p.HostUserID,
			&p.Provider, &p.ProviderReference, &p.ProviderTxID, &p.Currency, &p.AmountTotalMinor,
			&p.Status, &p.LastVerifiedAt, &p.ProviderPayload, &p.CreatedAt, &p.UpdatedAt)
	} else {
		err = row.Scan(&p.ID, &p.BookingID, &p.PropertyID, &p.GuestUserID, &p.HostUserID,
			&p.Provider, &p.ProviderReference, &p.ProviderTxID, &p.Currency, &p.AmountTotalMinor,
			&p.Status, &p.VerifyAttempts, &p.NeedsReconcile, &p.ReconcileReason, &p.ReconcileLockedUntil,
			&p.LastVerifiedAt, &p.ProviderPayload, &p.CreatedAt, &p.UpdatedAt)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentIntentRepo) Upsert(ctx context.Context, qx any, mode repository.SchemaMode, p *model.PaymentIntent) (*repository.UpsertResult, error) {
	q := `
INSERT INTO payment_intents (
  id, booking_id, property_id, guest_user_id, host_user_id, provider, provider_reference,
  currency, amount_total_minor, status, provider_payload, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())
ON CONFLICT (booking_id) DO UPDATE SET
  provider=$6, provider_reference=$7, currency=$8, amount_total_minor=$9,
  provider_payload=$11, updated_at=NOW()
  WHERE payment_intents.status <> 'succeeded'
RETURNING ` + colsFor(mode) + `;`

	row, err := pickRow(ctx, r.pool, qx, q,
		p.ID, p.BookingID, p.PropertyID, p.GuestUserID, p.HostUserID,
		p.Provider, p.ProviderReference, p.Currency, p.AmountTotalMinor,
		model.PaymentStatusInitiated, p.ProviderPayload)
	if err != nil {
		return nil, err
	}

	stored, err := scanIntent(row, mode)
	if err == nil {
		return &repository.UpsertResult{Intent: stored}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Zero rows back: the conflicting row is already succeeded. Return it
	// unchanged and tell the caller not to re-attempt charge creation.
	existing, ferr := r.FindByBookingID(ctx, qx, mode, p.BookingID)
	if ferr != nil {
		return nil, ferr
	}
	if existing.Status != model.PaymentStatusSucceeded {
		return nil, domain.ErrOperationFailed
	}
	return &repository.UpsertResult{Intent: existing, AlreadySucceeded: true}, nil
}

func colsFor(mode repository.SchemaMode) string {
	if mode == repository.SchemaModeLegacy {
		return intentColsLegacy
	}
	return intentCols
}

func (r *paymentIntentRepo) FindByID(ctx context.Context, qx any, mode repository.SchemaMode, id string) (*model.PaymentIntent, error) {
	q := `SELECT ` + colsFor(mode) + ` FROM payment_intents WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanIntent(row, mode)
}

func (r *paymentIntentRepo) FindByReference(ctx context.Context, qx any, mode repository.SchemaMode, provider model.Provider, reference string) (*model.PaymentIntent, error) {
	q := `SELECT ` + colsFor(mode) + ` FROM payment_intents WHERE provider=$1 AND provider_reference=$2 LIMIT 1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, provider, reference)
	if err != nil {
		return nil, err
	}
	return scanIntent(row, mode)
}

func (r *paymentIntentRepo) FindByBookingID(ctx context.Context, qx any, mode repository.SchemaMode, bookingID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + colsFor(mode) + ` FROM payment_intents WHERE booking_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, bookingID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row, mode)
}

func (r *paymentIntentRepo) listIntents(ctx context.Context, qx any, mode repository.SchemaMode, q string, args ...interface{}) ([]*model.PaymentIntent, error) {
	rows, err := queryRows(ctx, r.pool, qx, q, args...)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, nil
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		p, err := scanIntent(rows, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentIntentRepo) ListStaleInitiated(ctx context.Context, qx any, mode repository.SchemaMode, staleBefore time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + colsFor(mode) + ` FROM payment_intents
 WHERE status='initiated' AND created_at <= $1
 ORDER BY created_at ASC LIMIT $2;`
	return r.listIntents(ctx, qx, mode, q, staleBefore, limit)
}

// ListNeedsReconcile returns succeeded-but-unconfirmed intents whose retry
// lock has expired. Reconcile schema only.
func (r *paymentIntentRepo) ListNeedsReconcile(ctx context.Context, qx any, now time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + intentCols + ` FROM payment_intents
 WHERE status='succeeded' AND needs_reconcile = TRUE
   AND (reconcile_locked_until IS NULL OR reconcile_locked_until <= $1)
 ORDER BY updated_at ASC LIMIT $2;`
	return r.listIntents(ctx, qx, repository.SchemaModeReconcile, q, now, limit)
}

// ListSucceeded is the legacy-schema stand-in for ListNeedsReconcile.
func (r *paymentIntentRepo) ListSucceeded(ctx context.Context, qx any, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + intentColsLegacy + ` FROM payment_intents
 WHERE status='succeeded'
 ORDER BY updated_at ASC LIMIT $1;`
	return r.listIntents(ctx, qx, repository.SchemaModeLegacy, q, limit)
}

func (r *paymentIntentRepo) ListFlagged(ctx context.Context, qx any, offset, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + intentCols + ` FROM payment_intents
 WHERE needs_reconcile = TRUE
 ORDER BY updated_at DESC OFFSET $1 LIMIT $2;`
	return r.listIntents(ctx, qx, repository.SchemaModeReconcile, q, offset, limit)
}

// LockForReconcile atomically claims a candidate: the row must still carry the
// expected verify_attempts and its lock must be free or expired. The attempt
// counter advances in the same write, so a lost race is visible to everyone.
func (r *paymentIntentRepo) LockForReconcile(ctx context.Context, qx any, id string, expectedAttempts int, lockUntil, now time.Time) (bool, error) {
	const q = `
UPDATE payment_intents
   SET reconcile_locked_until = $3,
       verify_attempts = verify_attempts + 1,
       updated_at = NOW()
 WHERE id = $1
   AND verify_attempts = $2
   AND (reconcile_locked_until IS NULL OR reconcile_locked_until <= $4);`

	cmd, err := execSQL(ctx, r.pool, qx, q, id, expectedAttempts, lockUntil, now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentIntentRepo) MarkFailed(ctx context.Context, qx any, mode repository.SchemaMode, provider model.Provider, reference string, payload []byte, reason model.ReconcileReason, retryAt *time.Time) error {
	var q string
	var args []interface{}
	if mode == repository.SchemaModeLegacy {
		q = `
UPDATE payment_intents
   SET status = 'failed',
       provider_payload = COALESCE($3, provider_payload),
       last_verified_at = NOW(),
       updated_at = NOW()
 WHERE provider = $1 AND provider_reference = $2
   AND status <> 'succeeded';`
		args = []interface{}{provider, reference, payload}
	} else {
		q = `
UPDATE payment_intents
   SET status = 'failed',
       needs_reconcile = FALSE,
       reconcile_reason = $4,
       reconcile_locked_until = $5,
       provider_payload = COALESCE($3, provider_payload),
       last_verified_at = NOW(),
       updated_at = NOW()
 WHERE provider = $1 AND provider_reference = $2
   AND status <> 'succeeded';`
		args = []interface{}{provider, reference, payload, reason, retryAt}
	}

	if _, err := execSQL(ctx, r.pool, qx, q, args...); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// MarkNeedsReconcile records a non-terminal outcome and pushes the retry lock
// forward so the next scheduled run does not immediately re-pick the row.
// Reconcile schema only.
func (r *paymentIntentRepo) MarkNeedsReconcile(ctx context.Context, qx any, id string, reason model.ReconcileReason, lockUntil time.Time, payload []byte) error {
	const q = `
UPDATE payment_intents
   SET needs_reconcile = TRUE,
       reconcile_reason = $2,
       reconcile_locked_until = $3,
       provider_payload = COALESCE($4, provider_payload),
       updated_at = NOW()
 WHERE id = $1;`

	if _, err := execSQL(ctx, r.pool, qx, q, id, reason, lockUntil, payload); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// MarkSucceeded is the only write that moves an intent to succeeded. The row
// guard keeps it idempotent: a second call leaves amount and provider tx id
// untouched and reports AlreadySucceeded.
func (r *paymentIntentRepo) MarkSucceeded(ctx context.Context, qx any, mode repository.SchemaMode, provider model.Provider, reference string, payload []byte, externalTxID string) (*repository.MarkSucceededResult, error) {
	var q string
	if mode == repository.SchemaModeLegacy {
		q = `
UPDATE payment_intents
   SET status = 'succeeded',
       provider_tx_id = NULLIF($3, ''),
       provider_payload = COALESCE($4, provider_payload),
       last_verified_at = NOW(),
       updated_at = NOW()
 WHERE provider = $1 AND provider_reference = $2
   AND status <> 'succeeded'
RETURNING ` + intentColsLegacy + `;`
	} else {
		q = `
UPDATE payment_intents
   SET status = 'succeeded',
       provider_tx_id = NULLIF($3, ''),
       provider_payload = COALESCE($4, provider_payload),
       needs_reconcile = FALSE,
       reconcile_reason = NULL,
       reconcile_locked_until = NULL,
       last_verified_at = NOW(),
       updated_at = NOW()
 WHERE provider = $1 AND provider_reference = $2
   AND status <> 'succeeded'
RETURNING ` + intentCols + `;`
	}

	row, err := pickRow(ctx, r.pool, qx, q, provider, reference, externalTxID, payload)
	if err != nil {
		return nil, err
	}
	updated, serr := scanIntent(row, mode)
	if serr == nil {
		return &repository.MarkSucceededResult{Intent: updated}, nil
	}
	if !errors.Is(serr, domain.ErrNotFound) {
		return nil, serr
	}

	// Zero rows: either the row is already succeeded (fine) or it does not exist.
	existing, ferr := r.FindByReference(ctx, qx, mode, provider, reference)
	if ferr != nil {
		return nil, ferr
	}
	if existing.Status != model.PaymentStatusSucceeded {
		return nil, domain.ErrOperationFailed
	}
	return &repository.MarkSucceededResult{Intent: existing, AlreadySucceeded: true}, nil
}

func (r *paymentIntentRepo) ClearReconcileState(ctx context.Context, qx any, id string) error {
	const q = `
UPDATE payment_intents
   SET needs_reconcile = FALSE,
       reconcile_reason = NULL,
       reconcile_locked_until = NULL,
       updated_at = NOW()
 WHERE id = $1;`

	if _, err := execSQL(ctx, r.pool, qx, q, id); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
