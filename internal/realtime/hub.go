// Package realtime serves the wishlist sync websocket. Each connection is one
// browser context with its own wishlist.Controller; the Hub indexes
// connections by signed-in user so committed changes elsewhere can ask them
// to reconcile.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/neexbeast/destinasi/internal/events"
	"github.com/neexbeast/destinasi/internal/wishlist"
)

type Hub struct {
	mu     sync.RWMutex
	all    map[*Conn]struct{}
	byUser map[string]map[*Conn]struct{}
	log    *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		all:    make(map[*Conn]struct{}),
		byUser: make(map[string]map[*Conn]struct{}),
		log:    log,
	}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.all[c] = struct{}{}
	n := len(h.all)
	h.mu.Unlock()
	h.log.Debug("sync client connected", "total", n)
}

func (h *Hub) remove(c *Conn, userID string) {
	h.mu.Lock()
	delete(h.all, c)
	h.unbindLocked(c, userID)
	n := len(h.all)
	h.mu.Unlock()
	h.log.Debug("sync client disconnected", "total", n)
}

// bind moves c from the index of oldUser to that of newUser. Either may be
// empty.
func (h *Hub) bind(c *Conn, oldUser, newUser string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(c, oldUser)
	if newUser == "" {
		return
	}
	set, ok := h.byUser[newUser]
	if !ok {
		set = make(map[*Conn]struct{})
		h.byUser[newUser] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unbindLocked(c *Conn, userID string) {
	set, ok := h.byUser[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.byUser, userID)
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// UserCount returns the number of open connections signed in as userID.
func (h *Hub) UserCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// UserTotal returns the number of distinct users with an open connection.
func (h *Hub) UserTotal() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// ReconcileUser asks every connection of userID to re-read its membership
// and returns how many were asked.
func (h *Hub) ReconcileUser(userID string) int {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.requestReconcile()
	}
	return len(conns)
}

// WishlistChanged implements wishlist.Notifier.
func (h *Hub) WishlistChanged(_ context.Context, ch wishlist.Change) {
	if n := h.ReconcileUser(ch.UserID); n > 0 {
		h.log.Debug("sync clients asked to reconcile", "user_id", ch.UserID, "conns", n)
	}
}

// DestinationDeleted asks every signed-in connection to reconcile, since the
// cascade may have removed entries of any user.
func (h *Hub) DestinationDeleted(_ context.Context, ev events.DestinationDeleted) {
	if ev.WishlistRemoved == 0 {
		return
	}
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.all))
	for _, set := range h.byUser {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.requestReconcile()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.all))
	for c := range h.all {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
}
