// File: cmd/seed/main.go
// Seeds a demo booking plus a stale initiated payment intent so a local
// reconcile run has something to chew on.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	pg "shortlet-payments/internal/infra/db/postgres"
)

func main() {
	dsn := flag.String("dsn", "postgres://localhost:5432/shortlet?sslmode=disable", "postgres DSN")
	provider := flag.String("provider", "paystack", "provider for the seeded intent (stripe|paystack)")
	mode := flag.String("mode", "instant", "booking mode (instant|request)")
	amount := flag.Int64("amount", 500000, "booking total in minor units")
	currency := flag.String("currency", "NGN", "booking currency")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, *dsn, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	bookingID := uuid.NewString()
	propertyID := uuid.NewString()
	guestID := uuid.NewString()
	hostID := uuid.NewString()
	intentID := uuid.NewString()
	reference := "seed_" + uuid.NewString()[:8]

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 3)

	_, err = pool.Exec(ctx, `
INSERT INTO bookings (id, property_id, guest_user_id, host_user_id, status, booking_mode,
  check_in, check_out, nights, total_amount_minor, currency, created_at, updated_at)
VALUES ($1,$2,$3,$4,'pending_payment',$5,$6,$7,3,$8,$9,NOW(),NOW());`,
		bookingID, propertyID, guestID, hostID, *mode, checkIn, checkOut, *amount, *currency)
	if err != nil {
		log.Fatalf("seed booking: %v", err)
	}

	// Backdated so it is immediately eligible as a stale candidate.
	_, err = pool.Exec(ctx, `
INSERT INTO payment_intents (id, booking_id, property_id, guest_user_id, host_user_id,
  provider, provider_reference, currency, amount_total_minor, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'initiated',NOW() - INTERVAL '10 minutes',NOW());`,
		intentID, bookingID, propertyID, guestID, hostID, *provider, reference, *currency, *amount)
	if err != nil {
		log.Fatalf("seed intent: %v", err)
	}

	log.Printf("seeded booking=%s intent=%s provider=%s reference=%s", bookingID, intentID, *provider, reference)
}
