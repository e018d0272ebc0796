package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tap-arena/internal/ledger"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapLockError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		lock bool
	}{
		{"lock_timeout", &pgconn.PgError{Code: sqlStateLockNotAvailable}, true},
		{"deadlock", &pgconn.PgError{Code: sqlStateDeadlockDetected}, true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"foreign_key", &pgconn.PgError{Code: "23503"}, false},
		{"unique", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapLockError(tc.err)
			if errors.Is(got, ledger.ErrLockAcquisitionFailed) != tc.lock {
				t.Fatalf("mapLockError(%v) lock=%v, want %v", tc.err, !tc.lock, tc.lock)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("original error lost: %v", got)
			}
		})
	}
	if mapLockError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
