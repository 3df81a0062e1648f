package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/destinasi/internal/destination"
)

const similarLimit = 3

// Detail is the destination page aggregate.
type Detail struct {
	Destination destination.Destination   `json:"destination"`
	Image       string                    `json:"image"`
	Tags        []string                  `json:"tags"`
	PriceLabel  string                    `json:"price_label"`
	Reviews     []destination.Review      `json:"reviews"`
	Similar     []destination.Destination `json:"similar"`
	Wishlisted  bool                      `json:"wishlisted"`
}

// Detail loads a destination with its reviews, similar destinations and,
// when userID is set, its wishlist membership, in parallel. Only the
// destination itself is required: the other parts degrade to empty with the
// failure logged.
func (s *Service) Detail(ctx context.Context, id, userID string) (*Detail, error) {
	g, gCtx := errgroup.WithContext(ctx)

	var (
		dest       *destination.Destination
		reviews    []destination.Review
		wishlisted bool
	)

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("destination load panicked", "recover", r)
				err = fmt.Errorf("destination load panicked: %v", r)
			}
		}()
		dest, err = s.Get(gCtx, id)
		return err
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("reviews load panicked", "recover", r)
				err = fmt.Errorf("reviews load panicked: %v", r)
			}
		}()
		rv, loadErr := s.store.ListReviews(gCtx, id)
		if loadErr != nil {
			s.log.Warn("reviews load failed", "destination_id", id, "err", loadErr)
			return nil
		}
		reviews = rv
		return nil
	})

	if userID != "" {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("membership load panicked", "recover", r)
					err = fmt.Errorf("membership load panicked: %v", r)
				}
			}()
			ok, loadErr := s.store.WishlistEntryExists(gCtx, userID, id)
			if loadErr != nil {
				s.log.Warn("membership load failed", "destination_id", id, "user_id", userID, "err", loadErr)
				return nil
			}
			wishlisted = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Similar destinations depend on the category, so they load after.
	similar, err := s.store.SimilarDestinations(ctx, dest.Category, dest.ID, similarLimit)
	if err != nil {
		s.log.Warn("similar destinations load failed", "destination_id", id, "err", err)
		similar = nil
	}

	if reviews == nil {
		reviews = []destination.Review{}
	}
	if similar == nil {
		similar = []destination.Destination{}
	}

	return &Detail{
		Destination: *dest,
		Image:       dest.Image(),
		Tags:        Tags(dest.Category),
		PriceLabel:  FormatPrice(dest.Price),
		Reviews:     reviews,
		Similar:     similar,
		Wishlisted:  wishlisted,
	}, nil
}
