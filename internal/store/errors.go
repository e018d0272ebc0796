package store

import (
	"context"
	"errors"

	"tap-arena/internal/ledger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateLockNotAvailable = "55P03"
	sqlStateDeadlockDetected = "40P01"
	sqlStateQueryCanceled    = "57014"
)

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// mapLockError turns lock waits that ran out of time, and connections lost while
// locking, into ledger.ErrLockAcquisitionFailed. Anything else is returned as is.
func mapLockError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return errors.Join(ledger.ErrLockAcquisitionFailed, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateLockNotAvailable, sqlStateDeadlockDetected, sqlStateQueryCanceled:
			return errors.Join(ledger.ErrLockAcquisitionFailed, err)
		}
	}
	return err
}
