// Package admin manages destination records and their images.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/neexbeast/destinasi/internal/destination"
	"github.com/neexbeast/destinasi/internal/events"
)

type Store interface {
	GetDestination(ctx context.Context, id string) (*destination.Destination, error)
	CreateDestination(ctx context.Context, d *destination.Destination) error
	UpdateDestination(ctx context.Context, d *destination.Destination) error
	DeleteDestination(ctx context.Context, id string) (int64, error)
	Stats(ctx context.Context) (destination.Stats, error)
}

type Cache interface {
	Invalidate(ctx context.Context, ids ...string) error
}

// Events receives destination lifecycle notifications.
type Events interface {
	DestinationDeleted(ctx context.Context, ev events.DestinationDeleted)
}

// ValidationError lists the invalid fields of an Input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range []string{"name", "location", "description", "price", "category"} {
		if msg, ok := e.Fields[f]; ok {
			parts = append(parts, f+" "+msg)
		}
	}
	return "invalid destination: " + strings.Join(parts, ", ")
}

// Input is the admin form for creating or updating a destination.
type Input struct {
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// Validate checks the required fields and returns the parsed category.
func Validate(in Input) (destination.Category, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if strings.TrimSpace(in.Location) == "" {
		fields["location"] = "is required"
	}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "is required"
	}
	if in.Price <= 0 {
		fields["price"] = "must be greater than zero"
	}
	cat, ok := destination.ParseCategory(in.Category)
	if !ok {
		fields["category"] = "must be one of Gunung, Pantai, Sejarah, Taman Nasional"
	}

	if len(fields) > 0 {
		return "", &ValidationError{Fields: fields}
	}
	return cat, nil
}

func (in Input) apply(d *destination.Destination, cat destination.Category) {
	d.Name = strings.TrimSpace(in.Name)
	d.Location = strings.TrimSpace(in.Location)
	d.Description = strings.TrimSpace(in.Description)
	d.Price = in.Price
	d.Category = cat
	d.ImageURL = in.ImageURL
	if d.ImageURL != nil && strings.TrimSpace(*d.ImageURL) == "" {
		d.ImageURL = nil
	}
	d.Latitude = in.Latitude
	d.Longitude = in.Longitude
}

type Service struct {
	store     Store
	cache     Cache
	images    *Images
	notifiers []Events
	log       *slog.Logger
}

func NewService(store Store, cache Cache, images *Images, log *slog.Logger, notifiers ...Events) *Service {
	return &Service{store: store, cache: cache, images: images, notifiers: notifiers, log: log}
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("cache invalidate failed", "destination_id", id, "err", err)
	}
}

func (s *Service) Create(ctx context.Context, in Input) (*destination.Destination, error) {
	cat, err := Validate(in)
	if err != nil {
		return nil, err
	}

	d := &destination.Destination{Rating: destination.DefaultRating}
	in.apply(d, cat)
	if err := s.store.CreateDestination(ctx, d); err != nil {
		return nil, fmt.Errorf("creating destination: %w", err)
	}

	s.invalidate(ctx, d.ID)
	s.log.Info("destination created", "destination_id", d.ID)
	return d, nil
}

// Update overwrites a destination. It returns destination.ErrNotFound when
// id does not exist.
func (s *Service) Update(ctx context.Context, id string, in Input) (*destination.Destination, error) {
	cat, err := Validate(in)
	if err != nil {
		return nil, err
	}

	d := &destination.Destination{ID: id}
	in.apply(d, cat)
	if err := s.store.UpdateDestination(ctx, d); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.log.Info("destination updated", "destination_id", id)
	return d, nil
}

// Delete removes a destination and every wishlist entry referencing it. It
// returns the number of wishlist entries removed, or destination.ErrNotFound.
func (s *Service) Delete(ctx context.Context, id, deletedBy string) (int64, error) {
	existing, err := s.store.GetDestination(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("getting destination %s: %w", id, err)
	}
	if existing == nil {
		return 0, destination.ErrNotFound
	}

	removed, err := s.store.DeleteDestination(ctx, id)
	if err != nil {
		if errors.Is(err, destination.ErrNotFound) {
			return 0, destination.ErrNotFound
		}
		return 0, err
	}

	s.invalidate(ctx, id)
	ev := events.DestinationDeleted{
		DestinationID:   id,
		Name:            existing.Name,
		WishlistRemoved: removed,
		DeletedBy:       deletedBy,
	}
	for _, n := range s.notifiers {
		n.DestinationDeleted(ctx, ev)
	}
	s.log.Info("destination deleted", "destination_id", id, "wishlist_removed", removed)
	return removed, nil
}

// UploadImage stores an image and returns its public URL.
func (s *Service) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	return s.images.Upload(ctx, filename, r)
}

func (s *Service) Stats(ctx context.Context) (destination.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return destination.Stats{}, fmt.Errorf("loading stats: %w", err)
	}
	return st, nil
}
