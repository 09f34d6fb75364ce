package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/skybook/skybook/internal/repository"
)

// IsRetryable reports whether the transaction may be retried as-is
// (serialization failure or deadlock).
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return errors.Is(err, repository.ErrStoreUnavailable)
}

// translateDBErr maps driver errors onto the repository sentinels.
func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return repository.ErrStoreUnavailable
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		// unique_violation
		case "23505":
			return repository.ErrConflict
		// not_null_violation, foreign_key_violation, check_violation
		case "23502", "23503", "23514":
			return repository.ErrValidation
		// query_canceled, admin_shutdown, crash_shutdown
		case "57014", "57P01", "57P02":
			return repository.ErrStoreUnavailable
		}
		// connection exception class
		if strings.HasPrefix(pge.Code, "08") {
			return repository.ErrStoreUnavailable
		}
	}

	if pgconn.Timeout(err) {
		return repository.ErrStoreUnavailable
	}

	return err
}
