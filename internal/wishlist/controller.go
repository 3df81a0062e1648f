// Package wishlist keeps a user's wishlist membership consistent between a
// browser context and the relational store.
//
// A Controller owns the membership set of one browser context. Toggles apply
// a tentative local change, write to the store, and then re-read the
// membership from the store. The store's unique (user_id, destination_id)
// constraint is the only concurrency control: a duplicate insert means the
// entry already exists and is reported as success.
package wishlist

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/neexbeast/destinasi/internal/destination"
)

const defaultTimeout = 10 * time.Second

// Store is the subset of the relational store the controller uses.
type Store interface {
	ListMembership(ctx context.Context, userID string) ([]string, error)
	DestinationExists(ctx context.Context, id string) (bool, error)
	InsertWishlistEntry(ctx context.Context, e *destination.WishlistEntry) error
	DeleteWishlistEntry(ctx context.Context, userID, destinationID string) (bool, error)
}

// State is the lifecycle state of a Controller's membership set.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateEmpty         State = "empty"
)

// Transition is a session change reported by the identity provider.
type Transition string

const (
	SignedIn  Transition = "signed_in"
	SignedOut Transition = "signed_out"
	Refreshed Transition = "refreshed"
)

// Action is the membership change a toggle performed.
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
)

// Result describes a completed toggle. Present is the membership of the
// destination after reconciliation; when Reconciled is false the re-read
// failed and Present is the local view.
type Result struct {
	DestinationID  string `json:"destination_id"`
	Action         Action `json:"action"`
	AlreadyPresent bool   `json:"already_present"`
	Present        bool   `json:"present"`
	Reconciled     bool   `json:"reconciled"`
}

// Snapshot is a copy of the controller state handed to listeners.
type Snapshot struct {
	UserID  string   `json:"user_id,omitempty"`
	State   State    `json:"state"`
	Members []string `json:"members"`
}

// Controller holds the wishlist membership of one browser context.
type Controller struct {
	store   Store
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	userID  string
	state   State
	members map[string]struct{}
	loaded  bool
	// epoch changes whenever the signed-in user changes. Work started under
	// an older epoch is discarded.
	epoch uint64
	// fetchSeq orders membership reads so an older read never overwrites a
	// newer one.
	fetchSeq   uint64
	appliedSeq uint64

	notifyMu  sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewController returns a controller in the uninitialized state. Every store
// call is bounded by timeout; zero means ten seconds.
func NewController(store Store, timeout time.Duration, log *slog.Logger) *Controller {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Controller{
		store:     store,
		timeout:   timeout,
		log:       log,
		state:     StateUninitialized,
		members:   make(map[string]struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
}

// OnChange registers fn to receive a snapshot after every state change.
// Listeners run serially and must not call back into the controller's
// mutating methods.
func (c *Controller) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	c.notifyMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.notifyMu.Unlock()

	return func() {
		c.notifyMu.Lock()
		delete(c.listeners, id)
		c.notifyMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	snap := c.Snapshot()
	for _, fn := range c.listeners {
		fn(snap)
	}
}

// Snapshot returns a copy of the current user, state and members.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{UserID: c.userID, State: c.state, Members: c.membersLocked()}
}

func (c *Controller) membersLocked() []string {
	out := make([]string, 0, len(c.members))
	for id := range c.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Members returns the membership set in sorted order.
func (c *Controller) Members() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.membersLocked()
}

// Contains reports whether destinationID is in the local membership set.
func (c *Controller) Contains(destinationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.members[destinationID]
	return ok
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the signed-in user, or "" when signed out.
func (c *Controller) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// signOutLocked clears the membership and invalidates in-flight work.
func (c *Controller) signOutLocked() {
	c.userID = ""
	c.state = StateEmpty
	c.members = make(map[string]struct{})
	c.loaded = false
	c.epoch++
}

// Initialize loads userID's membership from the store. An empty userID
// clears the set. When the read fails the previous set for the same user is
// kept and the error is returned; a different user's set is never shown.
func (c *Controller) Initialize(ctx context.Context, userID string) error {
	c.mu.Lock()
	if userID == "" {
		c.signOutLocked()
		c.mu.Unlock()
		c.notify()
		return nil
	}
	if userID != c.userID {
		c.userID = userID
		c.members = make(map[string]struct{})
		c.loaded = false
		c.epoch++
	}
	c.state = StateLoading
	epoch := c.epoch
	c.mu.Unlock()
	c.notify()

	_, err := c.reconcile(ctx, userID, epoch)
	if err != nil {
		c.log.Warn("loading wishlist membership", "user_id", userID, "err", err)
		return classify("initialize", "", err)
	}
	return nil
}

// reconcile reads the membership of userID and installs it when epoch is
// still current and no newer read has been applied. It reports whether the
// read was installed. A ready controller is loading until the read returns.
func (c *Controller) reconcile(ctx context.Context, userID string, epoch uint64) (bool, error) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false, ErrSessionChanged
	}
	c.fetchSeq++
	seq := c.fetchSeq
	reloading := c.loaded && c.state == StateReady
	if reloading {
		c.state = StateLoading
	}
	c.mu.Unlock()
	if reloading {
		c.notify()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ids, err := c.store.ListMembership(ctx, userID)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false, ErrSessionChanged
	}
	if err != nil {
		if c.state == StateLoading {
			c.state = StateUninitialized
			if c.loaded {
				c.state = StateReady
			}
		}
		c.mu.Unlock()
		c.notify()
		return false, err
	}
	if seq < c.appliedSeq {
		c.mu.Unlock()
		return false, nil
	}

	c.appliedSeq = seq
	c.members = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c.members[id] = struct{}{}
	}
	c.loaded = true
	c.state = StateReady
	c.mu.Unlock()
	c.notify()
	return true, nil
}

// Reconcile re-reads the membership of the signed-in user. It does nothing
// when nobody is signed in or the user changes while the read is running.
func (c *Controller) Reconcile(ctx context.Context) error {
	c.mu.Lock()
	userID, epoch := c.userID, c.epoch
	c.mu.Unlock()
	if userID == "" {
		return nil
	}

	if _, err := c.reconcile(ctx, userID, epoch); err != nil && !errors.Is(err, ErrSessionChanged) {
		return classify("reconcile", "", err)
	}
	return nil
}

// OnAuthTransition reacts to a session change. Sign-out clears the set
// immediately, independent of the store, and invalidates in-flight toggles.
// Sign-in and refresh with a user reload the set.
func (c *Controller) OnAuthTransition(ctx context.Context, t Transition, userID string) error {
	if t == SignedOut || userID == "" {
		c.mu.Lock()
		c.signOutLocked()
		c.mu.Unlock()
		c.notify()
		return nil
	}
	return c.Initialize(ctx, userID)
}

// setLocal applies a tentative membership change if epoch is still current.
func (c *Controller) setLocal(epoch uint64, destinationID string, present bool) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	if present {
		c.members[destinationID] = struct{}{}
	} else {
		delete(c.members, destinationID)
	}
	c.mu.Unlock()
	c.notify()
	return true
}

// Toggle flips the membership of destinationID. The destination's existence
// is checked before an insert but not before a delete. A duplicate insert is
// reported as success with AlreadyPresent set. Any other store failure is
// returned as *Error after reconciliation has rolled back the tentative
// change. A toggle that outlives its session returns KindAuthRequired and
// leaves the state untouched.
func (c *Controller) Toggle(ctx context.Context, destinationID string) (Result, error) {
	const op = "toggle"

	c.mu.Lock()
	userID, epoch := c.userID, c.epoch
	signedIn := userID != "" && c.state != StateEmpty
	_, present := c.members[destinationID]
	c.mu.Unlock()

	if !signedIn {
		return Result{}, classify(op, destinationID, ErrAuthRequired)
	}

	res := Result{DestinationID: destinationID, Action: ActionAdded}
	if present {
		res.Action = ActionRemoved
	} else {
		ok, err := c.destinationExists(ctx, destinationID)
		if err != nil {
			return Result{}, classify(op, destinationID, err)
		}
		if !ok {
			return Result{}, classify(op, destinationID, ErrUnknownDestination)
		}
	}

	if !c.setLocal(epoch, destinationID, !present) {
		return Result{}, classify(op, destinationID, ErrSessionChanged)
	}

	var writeErr error
	if present {
		writeErr = c.remove(ctx, userID, destinationID)
	} else {
		writeErr = c.insert(ctx, userID, destinationID)
		if isDuplicate(writeErr) {
			res.AlreadyPresent = true
			writeErr = nil
		}
	}

	// The reconciliation read gets its own deadline so a timed-out write
	// still resolves to store truth.
	_, recErr := c.reconcile(context.WithoutCancel(ctx), userID, epoch)
	if errors.Is(recErr, ErrSessionChanged) {
		return Result{}, classify(op, destinationID, ErrSessionChanged)
	}

	res.Reconciled = recErr == nil
	if recErr != nil {
		c.log.Warn("reconciling wishlist", "user_id", userID, "destination_id", destinationID, "err", recErr)
		if writeErr != nil && !c.setLocal(epoch, destinationID, present) {
			return Result{}, classify(op, destinationID, ErrSessionChanged)
		}
	}
	res.Present = c.Contains(destinationID)

	if writeErr != nil {
		// A timed-out write whose effect is visible after reconciliation
		// succeeded.
		if isTimeout(writeErr) && res.Reconciled && res.Present == !present {
			c.log.Info("wishlist write timed out but was applied", "user_id", userID, "destination_id", destinationID)
			return res, nil
		}
		c.log.Warn("toggling wishlist", "user_id", userID, "destination_id", destinationID, "err", writeErr)
		return res, classify(op, destinationID, writeErr)
	}
	return res, nil
}

func (c *Controller) destinationExists(ctx context.Context, destinationID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.DestinationExists(ctx, destinationID)
}

func (c *Controller) insert(ctx context.Context, userID, destinationID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.InsertWishlistEntry(ctx, &destination.WishlistEntry{UserID: userID, DestinationID: destinationID})
}

func (c *Controller) remove(ctx context.Context, userID, destinationID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.store.DeleteWishlistEntry(ctx, userID, destinationID)
	return err
}
