package destination

import (
	"strings"
	"time"
)

// Category is one of the fixed destination categories shown in the catalog.
type Category string

const (
	CategoryMountain     Category = "Gunung"
	CategoryBeach        Category = "Pantai"
	CategoryHistory      Category = "Sejarah"
	CategoryNationalPark Category = "Taman Nasional"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryMountain, CategoryBeach, CategoryHistory, CategoryNationalPark}

// DefaultRating is used for destinations that have no reviews yet.
const DefaultRating = 4.5

// DefaultImage is returned by the legacy API when a destination has no image.
const DefaultImage = "/default-destination.jpg"

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s against the known categories, ignoring case and
// surrounding whitespace. The second result is false when nothing matches.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, known := range Categories {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Destination is a catalog record owned by the admin panel.
type Destination struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Category    Category  `json:"category"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Price       int64     `json:"price"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Image returns the image URL, or DefaultImage when none is set.
func (d Destination) Image() string {
	if d.ImageURL == nil || *d.ImageURL == "" {
		return DefaultImage
	}
	return *d.ImageURL
}

// WishlistEntry is one (user, destination) membership row.
// At most one entry exists per pair.
type WishlistEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	DestinationID string    `json:"destination_id"`
	AddedAt       time.Time `json:"added_at"`
	Notes         *string   `json:"notes,omitempty"`
}

// WishlistItem is a wishlist entry joined with its destination.
type WishlistItem struct {
	WishlistEntry
	Destination Destination `json:"destination"`
}

// Review is a user's rating and comment for a destination.
type Review struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	DestinationID string    `json:"destination_id"`
	UserName      string    `json:"user_name"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}

// Role is the authorization role stored on a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile is the public part of a user account.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username,omitempty"`
	FullName  *string   `json:"full_name,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Stats are the admin dashboard counters.
type Stats struct {
	Destinations    int64 `json:"destinations"`
	Users           int64 `json:"users"`
	WishlistEntries int64 `json:"wishlist_entries"`
	Reviews         int64 `json:"reviews"`
}
