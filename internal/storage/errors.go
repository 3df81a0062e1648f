package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/neexbeast/destinasi/internal/destination"
)

// Postgres SQLSTATE codes the application reacts to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInsufficientPrivs   = "42501"
)

// classify tags driver errors with the matching destination sentinel so that
// callers can test them with errors.Is. Unknown errors pass through unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", destination.ErrUniqueViolation, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", destination.ErrForeignKeyViolation, err)
	case codeInsufficientPrivs:
		return fmt.Errorf("%w: %w", destination.ErrPermissionDenied, err)
	}
	return err
}
