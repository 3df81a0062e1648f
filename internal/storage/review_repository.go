package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neexbeast/destinasi/internal/destination"
)

// ListReviews returns the reviews of a destination, newest first.
func (r *Repository) ListReviews(ctx context.Context, destinationID string) ([]destination.Review, error) {
	const q = `
		SELECT id, user_id, destination_id, user_name, rating, comment, created_at
		FROM reviews
		WHERE destination_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.q.Query(ctx, q, destinationID)
	if err != nil {
		return nil, fmt.Errorf("querying reviews for destination %s: %w", destinationID, classify(err))
	}
	defer rows.Close()

	reviews := []destination.Review{}
	for rows.Next() {
		var rv destination.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.UserID,
			&rv.DestinationID,
			&rv.UserName,
			&rv.Rating,
			&rv.Comment,
			&rv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating review rows: %w", classify(err))
	}
	return reviews, nil
}

// CreateReview inserts rv, assigning an id when rv.ID is empty.
func (r *Repository) CreateReview(ctx context.Context, rv *destination.Review) error {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO reviews (id, user_id, destination_id, user_name, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, q, rv.ID, rv.UserID, rv.DestinationID, rv.UserName, rv.Rating, rv.Comment).Scan(&rv.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting review for destination %s: %w", rv.DestinationID, classify(err))
	}
	return nil
}
