package destination

import "errors"

// Store-level failures. The storage layer wraps driver errors with these so
// callers can use errors.Is without knowing database error codes.
var (
	ErrNotFound            = errors.New("not found")
	ErrUniqueViolation     = errors.New("unique violation")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrPermissionDenied    = errors.New("permission denied")
)
