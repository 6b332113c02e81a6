package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidState is returned when a guarded state transition
	// matched no row, e.g. consuming a token that is not active.
	ErrInvalidState = errors.New("repository: invalid state")
	// ErrLockTimeout is returned when a row lock could not be acquired
	// within the transaction's lock_timeout.
	ErrLockTimeout = errors.New("repository: lock timeout")
	// ErrDuplicate is returned on a unique constraint violation.
	ErrDuplicate = errors.New("repository: duplicate key")
)

const (
	pgCodeLockNotAvailable = "55P03"
	pgCodeUniqueViolation  = "23505"
)

// translate maps driver errors into the repository error set.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		case pgCodeUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return err
}

// ApplyLockTimeout bounds row-lock waits for the remainder of the
// transaction. Postgres only; sqlite has a single writer so there is
// nothing to bound.
func ApplyLockTimeout(tx *gorm.DB, d time.Duration) error {
	if tx.Dialector.Name() != "postgres" || d <= 0 {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())).Error
}
