package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/neexbeast/destinasi/internal/wishlist"
)

// DestinationDeleted is published after an admin removes a destination.
type DestinationDeleted struct {
	DestinationID   string    `json:"destination_id"`
	Name            string    `json:"name"`
	WishlistRemoved int64     `json:"wishlist_removed"`
	DeletedBy       string    `json:"deleted_by"`
	At              time.Time `json:"at"`
}

// WishlistChanged is published after a committed wishlist mutation.
type WishlistChanged struct {
	UserID        string          `json:"user_id"`
	DestinationID string          `json:"destination_id"`
	Action        wishlist.Action `json:"action"`
	At            time.Time       `json:"at"`
}

// Emitter turns domain notifications into queue messages.
type Emitter struct {
	pub Publisher
	log *slog.Logger
}

func NewEmitter(pub Publisher, log *slog.Logger) *Emitter {
	if pub == nil {
		pub = Noop{}
	}
	return &Emitter{pub: pub, log: log}
}

// WishlistChanged implements wishlist.Notifier.
func (e *Emitter) WishlistChanged(ctx context.Context, c wishlist.Change) {
	e.publish(ctx, QueueWishlistChanged, WishlistChanged{
		UserID:        c.UserID,
		DestinationID: c.DestinationID,
		Action:        c.Action,
		At:            c.At,
	})
}

func (e *Emitter) DestinationDeleted(ctx context.Context, ev DestinationDeleted) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	e.publish(ctx, QueueDestinationDeleted, ev)
}

func (e *Emitter) publish(ctx context.Context, queue string, payload any) {
	if err := e.pub.Publish(context.WithoutCancel(ctx), queue, payload); err != nil {
		e.log.Warn("event publish failed", "queue", queue, "err", err)
	}
}
