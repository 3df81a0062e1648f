package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/destinasi/internal/auth"
	"github.com/neexbeast/destinasi/internal/destination"
)

const profileColumns = `id, email, username, full_name, avatar_url, role, created_at, updated_at`

func scanProfile(row pgx.Row) (*destination.Profile, error) {
	var p destination.Profile
	var role string
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Username,
		&p.FullName,
		&p.AvatarURL,
		&role,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Role = destination.Role(role)
	return &p, nil
}

// CreateUser inserts the credential row and its profile in one transaction.
// Email is stored lowercased. A duplicate email fails with
// destination.ErrUniqueViolation.
func (r *Repository) CreateUser(ctx context.Context, u *auth.User, p *destination.Profile) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = destination.RoleUser
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	err := inTx(ctx, r.q, func(tx pgx.Tx) error {
		const insertUser = `
			INSERT INTO users (id, email, password_hash)
			VALUES ($1, $2, $3)
			RETURNING created_at
		`
		if err := tx.QueryRow(ctx, insertUser, u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt); err != nil {
			return fmt.Errorf("inserting user: %w", classify(err))
		}

		const insertProfile = `
			INSERT INTO profiles (id, email, username, full_name, avatar_url, role)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING ` + profileColumns
		created, err := scanProfile(tx.QueryRow(ctx, insertProfile,
			u.ID, u.Email, p.Username, p.FullName, p.AvatarURL, string(u.Role),
		))
		if err != nil {
			return fmt.Errorf("inserting profile: %w", classify(err))
		}
		*p = *created
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating user %s: %w", u.Email, err)
	}
	return nil
}

// GetUserByEmail looks up credentials by (case-insensitive) email.
// Returns nil, nil when no user has that email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	const q = `
		SELECT u.id, u.email, u.password_hash, COALESCE(p.role, 'user'), u.created_at
		FROM users u
		LEFT JOIN profiles p ON p.id = u.id
		WHERE u.email = $1
	`

	var u auth.User
	var role string
	err := r.q.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(email))).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by email: %w", classify(err))
	}
	u.Role = destination.Role(role)
	return &u, nil
}

// GetProfile returns the profile for userID, or nil, nil when absent.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*destination.Profile, error) {
	p, err := scanProfile(r.q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile %s: %w", userID, classify(err))
	}
	return p, nil
}

// UpdateProfile applies the non-nil fields of upd and returns the result.
// Returns destination.ErrNotFound when the profile does not exist.
func (r *Repository) UpdateProfile(ctx context.Context, userID string, upd destination.ProfileUpdate) (*destination.Profile, error) {
	const q = `
		UPDATE profiles
		SET username   = COALESCE($2, username),
		    full_name  = COALESCE($3, full_name),
		    avatar_url = COALESCE($4, avatar_url),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.q.QueryRow(ctx, q, userID, upd.Username, upd.FullName, upd.AvatarURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("updating profile %s: %w", userID, destination.ErrNotFound)
		}
		return nil, fmt.Errorf("updating profile %s: %w", userID, classify(err))
	}
	return p, nil
}
