package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/destinasi/internal/destination"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository provides database access for destinations, wishlist entries,
// reviews, users and profiles.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

const destinationColumns = `id, name, description, location, latitude, longitude, category, image_url, price, rating, created_at, updated_at`

func scanDestination(row pgx.Row) (*destination.Destination, error) {
	var d destination.Destination
	var category string
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.Location,
		&d.Latitude,
		&d.Longitude,
		&category,
		&d.ImageURL,
		&d.Price,
		&d.Rating,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Category = destination.Category(category)
	return &d, nil
}

func collectDestinations(rows pgx.Rows) ([]destination.Destination, error) {
	defer rows.Close()

	results := []destination.Destination{}
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning destination row: %w", err)
		}
		results = append(results, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating destination rows: %w", err)
	}
	return results, nil
}

// ListDestinations returns the whole catalog ordered by name.
func (r *Repository) ListDestinations(ctx context.Context) ([]destination.Destination, error) {
	rows, err := r.q.Query(ctx, `SELECT `+destinationColumns+` FROM destinations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying destinations: %w", classify(err))
	}
	return collectDestinations(rows)
}

// GetDestination retrieves a destination by id.
// Returns nil, nil when the destination does not exist.
func (r *Repository) GetDestination(ctx context.Context, id string) (*destination.Destination, error) {
	d, err := scanDestination(r.q.QueryRow(ctx, `SELECT `+destinationColumns+` FROM destinations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying destination %s: %w", id, classify(err))
	}
	return d, nil
}

// DestinationExists reports whether a destination with the given id exists.
func (r *Repository) DestinationExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM destinations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking destination %s: %w", id, classify(err))
	}
	return exists, nil
}

// SimilarDestinations returns up to limit destinations of the same category,
// excluding excludeID.
func (r *Repository) SimilarDestinations(ctx context.Context, category destination.Category, excludeID string, limit int) ([]destination.Destination, error) {
	const q = `SELECT ` + destinationColumns + `
		FROM destinations
		WHERE category = $1 AND id <> $2
		ORDER BY rating DESC, name
		LIMIT $3`

	rows, err := r.q.Query(ctx, q, string(category), excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying similar destinations: %w", classify(err))
	}
	return collectDestinations(rows)
}

// CreateDestination inserts d, assigning an id when d.ID is empty.
// CreatedAt and UpdatedAt are filled from the database.
func (r *Repository) CreateDestination(ctx context.Context, d *destination.Destination) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO destinations (id, name, description, location, latitude, longitude, category, image_url, price, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, q,
		d.ID, d.Name, d.Description, d.Location, d.Latitude, d.Longitude,
		string(d.Category), d.ImageURL, d.Price, d.Rating,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting destination %s: %w", d.ID, classify(err))
	}
	return nil
}

// UpdateDestination overwrites the mutable attributes of d.
// Returns destination.ErrNotFound when no row has d.ID.
func (r *Repository) UpdateDestination(ctx context.Context, d *destination.Destination) error {
	const q = `
		UPDATE destinations
		SET name        = $2,
		    description = $3,
		    location    = $4,
		    latitude    = $5,
		    longitude   = $6,
		    category    = $7,
		    image_url   = $8,
		    price       = $9,
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING rating, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, q,
		d.ID, d.Name, d.Description, d.Location, d.Latitude, d.Longitude,
		string(d.Category), d.ImageURL, d.Price,
	).Scan(&d.Rating, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("updating destination %s: %w", d.ID, destination.ErrNotFound)
		}
		return fmt.Errorf("updating destination %s: %w", d.ID, classify(err))
	}
	return nil
}

// DeleteDestination removes a destination together with every wishlist entry
// referencing it, in one transaction. It returns the number of wishlist
// entries removed, or destination.ErrNotFound when the destination is absent.
func (r *Repository) DeleteDestination(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := inTx(ctx, r.q, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM wishlist WHERE destination_id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting wishlist entries: %w", classify(err))
		}
		removed = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM destinations WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting destination row: %w", classify(err))
		}
		if tag.RowsAffected() == 0 {
			return destination.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting destination %s: %w", id, err)
	}
	return removed, nil
}

// RecomputeRatings sets each reviewed destination's rating to the average of
// its reviews rounded to one decimal. It returns the number of changed rows.
func (r *Repository) RecomputeRatings(ctx context.Context) (int64, error) {
	const q = `
		UPDATE destinations d
		SET rating = r.avg_rating, updated_at = NOW()
		FROM (
			SELECT destination_id, ROUND(AVG(rating)::numeric, 1)::float8 AS avg_rating
			FROM reviews
			GROUP BY destination_id
		) r
		WHERE d.id = r.destination_id
		AND d.rating IS DISTINCT FROM r.avg_rating
	`

	tag, err := r.q.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("recomputing ratings: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}

// Stats returns the row counts shown on the admin dashboard.
func (r *Repository) Stats(ctx context.Context) (destination.Stats, error) {
	const q = `
		SELECT (SELECT COUNT(*) FROM destinations),
		       (SELECT COUNT(*) FROM profiles),
		       (SELECT COUNT(*) FROM wishlist),
		       (SELECT COUNT(*) FROM reviews)
	`

	var s destination.Stats
	if err := r.q.QueryRow(ctx, q).Scan(&s.Destinations, &s.Users, &s.WishlistEntries, &s.Reviews); err != nil {
		return destination.Stats{}, fmt.Errorf("counting dashboard stats: %w", classify(err))
	}
	return s, nil
}
