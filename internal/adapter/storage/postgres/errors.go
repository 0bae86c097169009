package postgres

import (
	"errors"
	"fmt"

	"staffing-ledger/internal/core/domain"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// classify tags lock waits, deadlocks and serialization failures with
// domain.ErrLockNotAvailable so services can retry them.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.LockNotAvailable, pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return fmt.Errorf("%w: %w", domain.ErrLockNotAvailable, err)
		}
	}
	return err
}

// money renders an amount for a NUMERIC(19,2) parameter.
func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}
