//go:build !integration

package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
)

func TestIsMissingReconcileSchema(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"undefined column", &pgconn.PgError{Code: "42703", Message: `column "needs_reconcile" does not exist`}, true},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: `relation "payment_intents" does not exist`}, true},
		{"wrapped undefined column", fmt.Errorf("query: %w", &pgconn.PgError{Code: "42703"}), true},
		{"permission denied", &pgconn.PgError{Code: "42501"}, false},
		{"connection failure", errors.New("dial tcp: connection refused"), false},
		{"nil-ish generic", errors.New("42703"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isMissingReconcileSchema(tc.err); got != tc.want {
				t.Fatalf("isMissingReconcileSchema(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
