package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neexbeast/destinasi/internal/destination"
)

var (
	ErrDestinationNotFound = errors.New("destination not found")
	ErrInvalidReview       = errors.New("invalid review")
)

// Store is the read side of the relational store plus review writes.
type Store interface {
	ListDestinations(ctx context.Context) ([]destination.Destination, error)
	GetDestination(ctx context.Context, id string) (*destination.Destination, error)
	SimilarDestinations(ctx context.Context, category destination.Category, excludeID string, limit int) ([]destination.Destination, error)
	ListReviews(ctx context.Context, destinationID string) ([]destination.Review, error)
	CreateReview(ctx context.Context, rv *destination.Review) error
	WishlistEntryExists(ctx context.Context, userID, destinationID string) (bool, error)
	GetProfile(ctx context.Context, userID string) (*destination.Profile, error)
}

// Cache holds catalog snapshots. Failures are logged and never fail a read.
type Cache interface {
	GetCatalog(ctx context.Context) ([]destination.Destination, error)
	SetCatalog(ctx context.Context, list []destination.Destination) error
	Get(ctx context.Context, id string) (*destination.Destination, error)
	Set(ctx context.Context, d *destination.Destination) error
}

type Service struct {
	store Store
	cache Cache
	log   *slog.Logger
}

func NewService(store Store, cache Cache, log *slog.Logger) *Service {
	return &Service{store: store, cache: cache, log: log}
}

// List returns the catalog ordered by name, filtered by q.
// Cache hit → return. Store hit → cache + return.
func (s *Service) List(ctx context.Context, q Query) ([]destination.Destination, error) {
	all, err := s.cache.GetCatalog(ctx)
	if err != nil {
		s.log.Error("cache get catalog failed", "err", err)
	}

	if all == nil {
		all, err = s.store.ListDestinations(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing destinations: %w", err)
		}
		if err := s.cache.SetCatalog(ctx, all); err != nil {
			s.log.Warn("cache set catalog failed", "err", err)
		}
	}

	return Filter(all, q), nil
}

// Get returns one destination through the cache, or ErrDestinationNotFound.
func (s *Service) Get(ctx context.Context, id string) (*destination.Destination, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.Error("cache get failed", "destination_id", id, "err", err)
	}
	if cached != nil {
		return cached, nil
	}

	d, err := s.store.GetDestination(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting destination %s: %w", id, err)
	}
	if d == nil {
		return nil, ErrDestinationNotFound
	}

	if err := s.cache.Set(ctx, d); err != nil {
		s.log.Warn("cache set failed after db hit", "destination_id", id, "err", err)
	}
	return d, nil
}

// Reviews lists the reviews of a destination, newest first.
func (s *Service) Reviews(ctx context.Context, destinationID string) ([]destination.Review, error) {
	reviews, err := s.store.ListReviews(ctx, destinationID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for %s: %w", destinationID, err)
	}
	return reviews, nil
}

// ReviewInput is a review submitted by a signed-in user.
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AddReview stores a review by userID. The review is attributed to the
// profile username, falling back to the email local part.
func (s *Service) AddReview(ctx context.Context, userID, destinationID string, in ReviewInput) (*destination.Review, error) {
	comment := strings.TrimSpace(in.Comment)
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidReview)
	}
	if comment == "" {
		return nil, fmt.Errorf("%w: comment is required", ErrInvalidReview)
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting profile %s: %w", userID, err)
	}

	rv := &destination.Review{
		UserID:        userID,
		DestinationID: destinationID,
		UserName:      displayName(profile),
		Rating:        in.Rating,
		Comment:       comment,
	}
	if err := s.store.CreateReview(ctx, rv); err != nil {
		if errors.Is(err, destination.ErrForeignKeyViolation) {
			return nil, ErrDestinationNotFound
		}
		return nil, fmt.Errorf("creating review: %w", err)
	}
	return rv, nil
}

func displayName(p *destination.Profile) string {
	switch {
	case p == nil:
		return "Pengunjung"
	case p.Username != nil && *p.Username != "":
		return *p.Username
	case p.FullName != nil && *p.FullName != "":
		return *p.FullName
	}
	if at := strings.Index(p.Email, "@"); at > 0 {
		return p.Email[:at]
	}
	return "Pengunjung"
}
