package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/neexbeast/destinasi/internal/destination"
)

// Kind is the user-facing category of a wishlist failure. Callers switch on
// Kind and never on store error codes.
type Kind string

const (
	KindAuthRequired     Kind = "auth_required"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindTransient        Kind = "transient"
)

var (
	ErrAuthRequired       = errors.New("sign in required")
	ErrUnknownDestination = errors.New("destination does not exist")

	// ErrSessionChanged marks work discarded because the signed-in user
	// changed while it was in flight.
	ErrSessionChanged = errors.New("session changed during operation")
)

// Error is returned by Controller and Service operations.
type Error struct {
	Kind          Kind
	Op            string
	DestinationID string
	Err           error
}

func (e *Error) Error() string {
	if e.DestinationID != "" {
		return fmt.Sprintf("wishlist %s %s: %s: %v", e.Op, e.DestinationID, e.Kind, e.Err)
	}
	return fmt.Sprintf("wishlist %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the text shown to the user for the error's kind.
func (e *Error) Message() string {
	switch e.Kind {
	case KindAuthRequired:
		return "Please log in to manage your wishlist."
	case KindNotFound:
		return "This destination is no longer available."
	case KindPermissionDenied:
		return "Your session is no longer valid. Please try logging in again."
	default:
		return "Could not reach the server. Please try again."
	}
}

// KindOf returns the Kind of err, or "" when err is not a wishlist error.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

// classify translates a store error into a wishlist Error.
func classify(op, destinationID string, err error) *Error {
	kind := KindTransient
	switch {
	case errors.Is(err, destination.ErrPermissionDenied):
		kind = KindPermissionDenied
	case errors.Is(err, destination.ErrForeignKeyViolation),
		errors.Is(err, destination.ErrNotFound),
		errors.Is(err, ErrUnknownDestination):
		kind = KindNotFound
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrSessionChanged):
		kind = KindAuthRequired
	}
	return &Error{Kind: kind, Op: op, DestinationID: destinationID, Err: err}
}

func isDuplicate(err error) bool {
	return errors.Is(err, destination.ErrUniqueViolation)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
