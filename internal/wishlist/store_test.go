package wishlist_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/neexbeast/destinasi/internal/destination"
)

type pair struct{ user, dest string }

// memStore is an in-memory relational store enforcing the unique
// (user_id, destination_id) constraint. Hooks run outside the lock.
type memStore struct {
	mu           sync.Mutex
	destinations map[string]bool
	rows         map[pair]time.Time

	onList      func(ctx context.Context) error
	onExists    func(ctx context.Context) error
	onInsert    func(ctx context.Context) error
	afterInsert func(ctx context.Context) error
	onDelete    func(ctx context.Context) error

	listCalls   int
	existsCalls int
	insertCalls int
}

func newMemStore(destinationIDs ...string) *memStore {
	s := &memStore{destinations: map[string]bool{}, rows: map[pair]time.Time{}}
	for _, id := range destinationIDs {
		s.destinations[id] = true
	}
	return s
}

func (s *memStore) ListMembership(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	s.listCalls++
	hook := s.onList
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for p := range s.rows {
		if p.user == userID {
			ids = append(ids, p.dest)
		}
	}
	return ids, nil
}

func (s *memStore) DestinationExists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	s.existsCalls++
	hook := s.onExists
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return false, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destinations[id], nil
}

func (s *memStore) InsertWishlistEntry(ctx context.Context, e *destination.WishlistEntry) error {
	s.mu.Lock()
	s.insertCalls++
	hook, after := s.onInsert, s.afterInsert
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	p := pair{e.UserID, e.DestinationID}
	if !s.destinations[e.DestinationID] {
		s.mu.Unlock()
		return destination.ErrForeignKeyViolation
	}
	if _, ok := s.rows[p]; ok {
		s.mu.Unlock()
		return destination.ErrUniqueViolation
	}
	s.rows[p] = time.Now()
	s.mu.Unlock()

	if after != nil {
		return after(ctx)
	}
	return nil
}

func (s *memStore) DeleteWishlistEntry(ctx context.Context, userID, destinationID string) (bool, error) {
	s.mu.Lock()
	hook := s.onDelete
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return false, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := pair{userID, destinationID}
	_, ok := s.rows[p]
	delete(s.rows, p)
	return ok, nil
}

func (s *memStore) WishlistEntryExists(_ context.Context, userID, destinationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[pair{userID, destinationID}]
	return ok, nil
}

func (s *memStore) ListWishlist(_ context.Context, userID string) ([]destination.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []destination.WishlistItem{}
	for p, at := range s.rows {
		if p.user != userID {
			continue
		}
		items = append(items, destination.WishlistItem{
			WishlistEntry: destination.WishlistEntry{UserID: p.user, DestinationID: p.dest, AddedAt: at},
			Destination:   destination.Destination{ID: p.dest},
		})
	}
	return items, nil
}

// add seeds a row directly.
func (s *memStore) add(userID, destinationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[pair{userID, destinationID}] = time.Now()
}

// count returns the number of rows for the pair.
func (s *memStore) count(userID, destinationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[pair{userID, destinationID}]; ok {
		return 1
	}
	return 0
}

func (s *memStore) members(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for p := range s.rows {
		if p.user == userID {
			ids = append(ids, p.dest)
		}
	}
	slices.Sort(ids)
	return ids
}

func (s *memStore) set(fn func(s *memStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
