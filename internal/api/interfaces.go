package api

import (
	"context"
	"io"

	"github.com/neexbeast/destinasi/internal/admin"
	"github.com/neexbeast/destinasi/internal/auth"
	"github.com/neexbeast/destinasi/internal/catalog"
	"github.com/neexbeast/destinasi/internal/destination"
	"github.com/neexbeast/destinasi/internal/wishlist"
)

// Sessions defines the identity provider operations needed by handlers.
type Sessions interface {
	SignUp(ctx context.Context, email, password string, meta auth.Metadata) (*auth.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	GetCurrentSession(ctx context.Context, accessToken string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Catalog defines the read side of the destination catalog.
type Catalog interface {
	List(ctx context.Context, q catalog.Query) ([]destination.Destination, error)
	Detail(ctx context.Context, id, userID string) (*catalog.Detail, error)
	Reviews(ctx context.Context, destinationID string) ([]destination.Review, error)
	AddReview(ctx context.Context, userID, destinationID string, in catalog.ReviewInput) (*destination.Review, error)
}

// Wishlist defines the server-side wishlist operations.
type Wishlist interface {
	Toggle(ctx context.Context, userID, destinationID string) (wishlist.Result, error)
	List(ctx context.Context, userID string) ([]destination.WishlistItem, error)
	Remove(ctx context.Context, userID, destinationID string) (bool, error)
	Membership(ctx context.Context, userID string) ([]string, error)
}

// Profiles defines profile reads and updates.
type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*destination.Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd destination.ProfileUpdate) (*destination.Profile, error)
}

// Admin defines the admin panel operations.
type Admin interface {
	Create(ctx context.Context, in admin.Input) (*destination.Destination, error)
	Update(ctx context.Context, id string, in admin.Input) (*destination.Destination, error)
	Delete(ctx context.Context, id, deletedBy string) (int64, error)
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)
	Stats(ctx context.Context) (destination.Stats, error)
}
