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

var _ repository.BookingRepository = (*bookingRepo)(nil)

type bookingRepo struct{ pool *pgxpool.Pool }

func NewBookingRepo(pool *pgxpool.Pool) *bookingRepo {
	return &bookingRepo{pool: pool}
}

const bookingCols = `id, property_id, guest_user_id, host_user_id, status, booking_mode,
  check_in, check_out, nights, total_amount_minor, currency,
  COALESCE(payment_reference,''), expires_at, created_at, updated_at`

func (r *bookingRepo) FindByID(ctx context.Context, qx any, id string) (*model.Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}

	b := &model.Booking{}
	if err := row.Scan(&b.ID, &b.PropertyID, &b.GuestUserID, &b.HostUserID, &b.Status, &b.Mode,
		&b.CheckIn, &b.CheckOut, &b.Nights, &b.TotalAmountMinor, &b.Currency,
		&b.PaymentReference, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return b, nil
}

// TransitionFromPendingPayment advances a booking out of pending_payment in a
// single conditional write. Zero rows affected means the booking was not in
// pending_payment at write time; the caller decides what that means.
func (r *bookingRepo) TransitionFromPendingPayment(ctx context.Context, qx any, id string, target model.BookingStatus, paymentReference string, expiresAt *time.Time) (bool, error) {
	const q = `
UPDATE bookings
   SET status = $2,
       payment_reference = $3,
       expires_at = COALESCE($4, expires_at),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending_payment';`

	cmd, err := execSQL(ctx, r.pool, qx, q, id, target, paymentReference, expiresAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}
