package wishlist

import (
	"context"
	"log/slog"
	"time"

	"github.com/neexbeast/destinasi/internal/destination"
)

// ServiceStore is the store surface the stateless Service needs.
type ServiceStore interface {
	Store
	ListWishlist(ctx context.Context, userID string) ([]destination.WishlistItem, error)
	WishlistEntryExists(ctx context.Context, userID, destinationID string) (bool, error)
}

// Change is a committed wishlist mutation.
type Change struct {
	UserID        string    `json:"user_id"`
	DestinationID string    `json:"destination_id"`
	Action        Action    `json:"action"`
	At            time.Time `json:"at"`
}

// Notifier is told about committed changes. Implementations must not fail
// the caller; delivery is best effort.
type Notifier interface {
	WishlistChanged(ctx context.Context, c Change)
}

// Service applies the toggle policy for request/response callers that keep
// no local membership set, such as the HTTP API.
type Service struct {
	store     ServiceStore
	timeout   time.Duration
	notifiers []Notifier
	log       *slog.Logger
}

func NewService(store ServiceStore, timeout time.Duration, log *slog.Logger, notifiers ...Notifier) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{store: store, timeout: timeout, notifiers: notifiers, log: log}
}

func (s *Service) notify(ctx context.Context, userID, destinationID string, action Action) {
	c := Change{UserID: userID, DestinationID: destinationID, Action: action, At: time.Now().UTC()}
	for _, n := range s.notifiers {
		n.WishlistChanged(ctx, c)
	}
}

// Toggle flips membership of destinationID for userID using the store as the
// source of truth for the current state.
func (s *Service) Toggle(ctx context.Context, userID, destinationID string) (Result, error) {
	const op = "toggle"
	if userID == "" {
		return Result{}, classify(op, destinationID, ErrAuthRequired)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	present, err := s.store.WishlistEntryExists(ctx, userID, destinationID)
	if err != nil {
		return Result{}, classify(op, destinationID, err)
	}

	res := Result{DestinationID: destinationID, Action: ActionAdded}
	changed := false
	if present {
		res.Action = ActionRemoved
		changed, err = s.store.DeleteWishlistEntry(ctx, userID, destinationID)
		if err != nil {
			return Result{}, classify(op, destinationID, err)
		}
	} else {
		ok, err := s.store.DestinationExists(ctx, destinationID)
		if err != nil {
			return Result{}, classify(op, destinationID, err)
		}
		if !ok {
			return Result{}, classify(op, destinationID, ErrUnknownDestination)
		}

		err = s.store.InsertWishlistEntry(ctx, &destination.WishlistEntry{UserID: userID, DestinationID: destinationID})
		switch {
		case isDuplicate(err):
			res.AlreadyPresent = true
		case err != nil:
			return Result{}, classify(op, destinationID, err)
		default:
			changed = true
		}
	}

	recCtx, recCancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer recCancel()
	res.Present, err = s.store.WishlistEntryExists(recCtx, userID, destinationID)
	if err != nil {
		s.log.Warn("reconciling wishlist", "user_id", userID, "destination_id", destinationID, "err", err)
		res.Present = res.Action == ActionAdded
	} else {
		res.Reconciled = true
	}

	if changed {
		s.notify(ctx, userID, destinationID, res.Action)
	}
	return res, nil
}

// List returns userID's wishlist joined with destination summaries.
func (s *Service) List(ctx context.Context, userID string) ([]destination.WishlistItem, error) {
	if userID == "" {
		return nil, classify("list", "", ErrAuthRequired)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.store.ListWishlist(ctx, userID)
	if err != nil {
		return nil, classify("list", "", err)
	}
	return items, nil
}

// Remove deletes one entry. Removing an absent entry is not an error; the
// returned bool reports whether a row was deleted.
func (s *Service) Remove(ctx context.Context, userID, destinationID string) (bool, error) {
	const op = "remove"
	if userID == "" {
		return false, classify(op, destinationID, ErrAuthRequired)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.store.DeleteWishlistEntry(ctx, userID, destinationID)
	if err != nil {
		return false, classify(op, destinationID, err)
	}
	if removed {
		s.notify(ctx, userID, destinationID, ActionRemoved)
	}
	return removed, nil
}

// Membership returns the destination ids on userID's wishlist.
func (s *Service) Membership(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, classify("membership", "", ErrAuthRequired)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.store.ListMembership(ctx, userID)
	if err != nil {
		return nil, classify("membership", "", err)
	}
	return ids, nil
}
