package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"shortlet-payments/internal/domain/ports/repository"
)

// SQLSTATE codes that signal the reconcile migration has not been applied.
const (
	sqlstateUndefinedColumn = "42703"
	sqlstateUndefinedTable  = "42P01"
)

// SchemaProbe detects whether payment_intents carries the reconcile
// bookkeeping columns, so the same binary can run against pre- and
// post-migration databases during a rollout.
type SchemaProbe struct {
	pool *pgxpool.Pool
}

func NewSchemaProbe(pool *pgxpool.Pool) *SchemaProbe {
	return &SchemaProbe{pool: pool}
}

// Detect runs a zero-row read over the reconcile columns. A missing column or
// table maps to the legacy mode; any other failure is a real backend problem
// and propagates.
func (p *SchemaProbe) Detect(ctx context.Context) (repository.SchemaMode, error) {
	const q = `SELECT needs_reconcile, reconcile_reason, reconcile_locked_until, verify_attempts
  FROM payment_intents LIMIT 0;`

	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		if isMissingReconcileSchema(err) {
			return repository.SchemaModeLegacy, nil
		}
		return "", fmt.Errorf("schema probe: %w", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		if isMissingReconcileSchema(err) {
			return repository.SchemaModeLegacy, nil
		}
		return "", fmt.Errorf("schema probe: %w", err)
	}
	return repository.SchemaModeReconcile, nil
}

func isMissingReconcileSchema(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlstateUndefinedColumn || pgErr.Code == sqlstateUndefinedTable
}
