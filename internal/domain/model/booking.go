package model

import "time"

type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "pending_payment" // checkout started, money not confirmed
	BookingStatusPending        BookingStatus = "pending"         // paid, awaiting host response (request mode)
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusDeclined       BookingStatus = "declined"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusExpired        BookingStatus = "expired"
	BookingStatusCompleted      BookingStatus = "completed"
)

type BookingMode string

const (
	BookingModeInstant BookingMode = "instant" // payment confirms the booking directly
	BookingModeRequest BookingMode = "request" // payment opens a host-response window
)

// HostResponseWindow is how long a request-mode host has to answer after payment.
const HostResponseWindow = 24 * time.Hour

// Booking is the booking aggregate as the reconciler sees it: status, dates
// and the pricing snapshot the payment must match.
type Booking struct {
	ID          string // UUID
	PropertyID  string
	GuestUserID string
	HostUserID  string

	Status BookingStatus
	Mode   BookingMode

	CheckIn  time.Time
	CheckOut time.Time
	Nights   int

	TotalAmountMinor int64
	Currency         string

	PaymentReference string // last reconciled provider reference
	ExpiresAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostPaymentTarget returns the status a pending_payment booking moves to once
// its payment is confirmed, plus the expiry clock for request mode.
func (b *Booking) PostPaymentTarget(now time.Time) (BookingStatus, *time.Time) {
	if b.Mode == BookingModeRequest {
		exp := now.Add(HostResponseWindow)
		return BookingStatusPending, &exp
	}
	return BookingStatusConfirmed, nil
}

// SettledForPayment reports whether a succeeded payment paired with this
// booking needs no further reconciliation: the booking already reached a
// post-payment terminal class. Cancelled counts as settled for the loop's
// purposes; any refund owed on it is a manual follow-up, not a re-verify.
func (b *Booking) SettledForPayment() bool {
	switch b.Status {
	case BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}
