package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neexbeast/destinasi/internal/destination"
)

// ListMembership returns the destination ids wishlisted by userID.
func (r *Repository) ListMembership(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT destination_id FROM wishlist WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying wishlist membership for user %s: %w", userID, classify(err))
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning wishlist membership row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wishlist membership rows: %w", classify(err))
	}
	return ids, nil
}

// ListWishlist returns userID's wishlist joined with destination data,
// newest first.
func (r *Repository) ListWishlist(ctx context.Context, userID string) ([]destination.WishlistItem, error) {
	const q = `
		SELECT w.id, w.user_id, w.destination_id, w.added_at, w.notes,
		       d.id, d.name, d.description, d.location, d.latitude, d.longitude,
		       d.category, d.image_url, d.price, d.rating, d.created_at, d.updated_at
		FROM wishlist w
		JOIN destinations d ON d.id = w.destination_id
		WHERE w.user_id = $1
		ORDER BY w.added_at DESC
	`

	rows, err := r.q.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("querying wishlist for user %s: %w", userID, classify(err))
	}
	defer rows.Close()

	items := []destination.WishlistItem{}
	for rows.Next() {
		var it destination.WishlistItem
		var category string
		if err := rows.Scan(
			&it.ID,
			&it.UserID,
			&it.DestinationID,
			&it.AddedAt,
			&it.Notes,
			&it.Destination.ID,
			&it.Destination.Name,
			&it.Destination.Description,
			&it.Destination.Location,
			&it.Destination.Latitude,
			&it.Destination.Longitude,
			&category,
			&it.Destination.ImageURL,
			&it.Destination.Price,
			&it.Destination.Rating,
			&it.Destination.CreatedAt,
			&it.Destination.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning wishlist row: %w", err)
		}
		it.Destination.Category = destination.Category(category)
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wishlist rows: %w", classify(err))
	}
	return items, nil
}

// InsertWishlistEntry inserts e, assigning an id when e.ID is empty.
// A second entry for the same (user, destination) pair fails with
// destination.ErrUniqueViolation.
func (r *Repository) InsertWishlistEntry(ctx context.Context, e *destination.WishlistEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO wishlist (id, user_id, destination_id, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING added_at
	`

	if err := r.q.QueryRow(ctx, q, e.ID, e.UserID, e.DestinationID, e.Notes).Scan(&e.AddedAt); err != nil {
		return fmt.Errorf("inserting wishlist entry for user %s destination %s: %w", e.UserID, e.DestinationID, classify(err))
	}
	return nil
}

// DeleteWishlistEntry removes the (userID, destinationID) entry. Deleting an
// absent entry is not an error; the boolean reports whether a row was removed.
func (r *Repository) DeleteWishlistEntry(ctx context.Context, userID, destinationID string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM wishlist WHERE user_id = $1 AND destination_id = $2`, userID, destinationID)
	if err != nil {
		return false, fmt.Errorf("deleting wishlist entry for user %s destination %s: %w", userID, destinationID, classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

// WishlistEntryExists reports whether userID has wishlisted destinationID.
func (r *Repository) WishlistEntryExists(ctx context.Context, userID, destinationID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM wishlist WHERE user_id = $1 AND destination_id = $2)`

	var exists bool
	if err := r.q.QueryRow(ctx, q, userID, destinationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking wishlist entry for user %s destination %s: %w", userID, destinationID, classify(err))
	}
	return exists, nil
}
