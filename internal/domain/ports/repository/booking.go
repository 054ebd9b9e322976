package repository

import (
	"context"
	"time"

	"shortlet-payments/internal/domain/model"
)

// -----------------------------
// Bookings
// -----------------------------

type BookingRepository interface {
	FindByID(ctx context.Context, qx any, id string) (*model.Booking, error)

	// TransitionFromPendingPayment conditionally advances a booking out of
	// pending_payment. Returns false when the row was not in pending_payment
	// at write time (lost race or already settled); that is not an error.
	TransitionFromPendingPayment(ctx context.Context, qx any, id string, target model.BookingStatus, paymentReference string, expiresAt *time.Time) (bool, error)
}
