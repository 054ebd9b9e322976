package repository

import (
	"context"
	"time"

	"shortlet-payments/internal/domain/model"
)

// SchemaMode is the per-run capability strategy: whether the ledger table
// carries the reconcile bookkeeping columns. Resolved once by the schema
// probe and passed down so no call re-checks mid-run.
type SchemaMode string

const (
	SchemaModeReconcile SchemaMode = "reconcile" // needs_reconcile, lock fields, verify_attempts present
	SchemaModeLegacy    SchemaMode = "legacy"    // pre-migration table; no lock or flag writes allowed
)

// UpsertResult reports the outcome of an idempotent create-or-update.
type UpsertResult struct {
	Intent *model.PaymentIntent
	// AlreadySucceeded is set when the stored intent has status succeeded;
	// callers must not re-attempt charge creation and must not mutate it.
	AlreadySucceeded bool
}

// MarkSucceededResult reports the terminal success write.
type MarkSucceededResult struct {
	Intent *model.PaymentIntent
	// AlreadySucceeded means the row was succeeded before this call; amount
	// and provider tx id were left untouched.
	AlreadySucceeded bool
}

// PaymentIntentRepository is the payment ledger. Rows are never deleted.
//
// Methods without a SchemaMode parameter are reconcile-schema-only
// (ListNeedsReconcile, ListFlagged, LockForReconcile, MarkNeedsReconcile,
// ClearReconcileState) or legacy-only (ListSucceeded); callers gate them on
// the mode resolved for the run.
type PaymentIntentRepository interface {
	Upsert(ctx context.Context, qx any, mode SchemaMode, p *model.PaymentIntent) (*UpsertResult, error)
	FindByID(ctx context.Context, qx any, mode SchemaMode, id string) (*model.PaymentIntent, error)
	FindByReference(ctx context.Context, qx any, mode SchemaMode, provider model.Provider, reference string) (*model.PaymentIntent, error)
	FindByBookingID(ctx context.Context, qx any, mode SchemaMode, bookingID string) (*model.PaymentIntent, error)

	// Candidate selection.
	ListStaleInitiated(ctx context.Context, qx any, mode SchemaMode, staleBefore time.Time, limit int) ([]*model.PaymentIntent, error)
	ListNeedsReconcile(ctx context.Context, qx any, now time.Time, limit int) ([]*model.PaymentIntent, error)
	ListSucceeded(ctx context.Context, qx any, limit int) ([]*model.PaymentIntent, error)
	ListFlagged(ctx context.Context, qx any, offset, limit int) ([]*model.PaymentIntent, error)

	// LockForReconcile is a single conditional UPDATE: succeeds only while
	// verify_attempts still equals expectedAttempts and the lock is free or
	// expired. Increments verify_attempts as part of taking the lock.
	LockForReconcile(ctx context.Context, qx any, id string, expectedAttempts int, lockUntil, now time.Time) (bool, error)

	// Terminal/retry writes. retryAt extends reconcile_locked_until to
	// throttle the next scheduled pass; ignored on the legacy schema.
	MarkFailed(ctx context.Context, qx any, mode SchemaMode, provider model.Provider, reference string, payload []byte, reason model.ReconcileReason, retryAt *time.Time) error
	MarkNeedsReconcile(ctx context.Context, qx any, id string, reason model.ReconcileReason, lockUntil time.Time, payload []byte) error
	MarkSucceeded(ctx context.Context, qx any, mode SchemaMode, provider model.Provider, reference string, payload []byte, externalTxID string) (*MarkSucceededResult, error)
	ClearReconcileState(ctx context.Context, qx any, id string) error
}
