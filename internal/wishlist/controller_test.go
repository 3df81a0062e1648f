package wishlist_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/destinasi/internal/destination"
	"github.com/neexbeast/destinasi/internal/wishlist"
)

const user = "user-1"

func newReadyController(t *testing.T, store *memStore) *wishlist.Controller {
	t.Helper()
	c := wishlist.NewController(store, time.Second, discardLogger())
	require.NoError(t, c.Initialize(context.Background(), user))
	require.Equal(t, wishlist.StateReady, c.State())
	return c
}

func TestToggle_AddThenRemoveBromo(t *testing.T) {
	store := newMemStore("bromo-1")
	c := newReadyController(t, store)
	ctx := context.Background()

	res, err := c.Toggle(ctx, "bromo-1")
	require.NoError(t, err)
	assert.Equal(t, wishlist.ActionAdded, res.Action)
	assert.False(t, res.AlreadyPresent)
	assert.True(t, res.Present)
	assert.True(t, res.Reconciled)
	assert.Equal(t, 1, store.count(user, "bromo-1"))
	assert.True(t, c.Contains("bromo-1"))

	res, err = c.Toggle(ctx, "bromo-1")
	require.NoError(t, err)
	assert.Equal(t, wishlist.ActionRemoved, res.Action)
	assert.False(t, res.Present)
	assert.Equal(t, 0, store.count(user, "bromo-1"))
	assert.False(t, c.Contains("bromo-1"))
}

func TestToggle_OddEvenConvergence(t *testing.T) {
	for n := 1; n <= 6; n++ {
		store := newMemStore("bromo-1")
		c := newReadyController(t, store)

		for i := 0; i < n; i++ {
			_, err := c.Toggle(context.Background(), "bromo-1")
			require.NoError(t, err)
		}

		wantPresent, wantRows := n%2 == 1, n%2
		assert.Equal(t, wantPresent, c.Contains("bromo-1"), "n=%d", n)
		assert.Equal(t, wantRows, store.count(user, "bromo-1"), "n=%d", n)
	}
}

func TestInitialize_RoundTripAfterAdd(t *testing.T) {
	store := newMemStore("bromo-1", "toba-2")
	c := newReadyController(t, store)

	_, err := c.Toggle(context.Background(), "toba-2")
	require.NoError(t, err)

	fresh := wishlist.NewController(store, time.Second, discardLogger())
	require.NoError(t, fresh.Initialize(context.Background(), user))
	assert.Equal(t, []string{"toba-2"}, fresh.Members())
}

func TestToggle_ConcurrentContextsConverge(t *testing.T) {
	store := newMemStore("bromo-1")
	tabA := newReadyController(t, store)
	tabB := newReadyController(t, store)

	// Both inserts wait until the other has also observed "absent".
	var arrived sync.WaitGroup
	arrived.Add(2)
	store.set(func(s *memStore) {
		s.onInsert = func(context.Context) error {
			arrived.Done()
			arrived.Wait()
			return nil
		}
	})

	var wg sync.WaitGroup
	results := make([]wishlist.Result, 2)
	errs := make([]error, 2)
	for i, c := range []*wishlist.Controller{tabA, tabB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Toggle(context.Background(), "bromo-1")
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, store.count(user, "bromo-1"), "exactly one row survives the race")
	assert.NotEqual(t, results[0].AlreadyPresent, results[1].AlreadyPresent, "one insert wins, the other sees a duplicate")
	for i, r := range results {
		assert.Equal(t, wishlist.ActionAdded, r.Action, "tab %d", i)
		assert.True(t, r.Present, "tab %d", i)
	}
	assert.True(t, tabA.Contains("bromo-1"))
	assert.True(t, tabB.Contains("bromo-1"))
}

func TestToggle_DoubleClickConvergesToStore(t *testing.T) {
	store := newMemStore("bromo-1")
	c := newReadyController(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Toggle(context.Background(), "bromo-1")
		}()
	}
	wg.Wait()

	require.NoError(t, c.Initialize(context.Background(), user))
	assert.Equal(t, store.members(user), c.Members())
	assert.LessOrEqual(t, store.count(user, "bromo-1"), 1)
}

func TestToggle_RequiresSignIn(t *testing.T) {
	store := newMemStore("bromo-1")
	c := wishlist.NewController(store, time.Second, discardLogger())

	_, err := c.Toggle(context.Background(), "bromo-1")
	require.Error(t, err)
	assert.Equal(t, wishlist.KindAuthRequired, wishlist.KindOf(err))
	assert.ErrorIs(t, err, wishlist.ErrAuthRequired)
	assert.Zero(t, store.insertCalls)
	assert.Zero(t, store.existsCalls)
}

func TestToggle_UnknownDestinationLeavesStateUnmodified(t *testing.T) {
	store := newMemStore("bromo-1")
	store.add(user, "bromo-1")
	c := newReadyController(t, store)

	var snapshots int
	c.OnChange(func(wishlist.Snapshot) { snapshots++ })

	_, err := c.Toggle(context.Background(), "atlantis-9")
	require.Error(t, err)
	assert.Equal(t, wishlist.KindNotFound, wishlist.KindOf(err))
	assert.Equal(t, []string{"bromo-1"}, c.Members())
	assert.Zero(t, store.insertCalls)
	assert.Zero(t, snapshots, "no tentative change was published")
}

func TestToggle_DeleteSkipsExistenceCheck(t *testing.T) {
	store := newMemStore()
	store.add(user, "gone-3")
	c := newReadyController(t, store)
	require.True(t, c.Contains("gone-3"))

	res, err := c.Toggle(context.Background(), "gone-3")
	require.NoError(t, err)
	assert.Equal(t, wishlist.ActionRemoved, res.Action)
	assert.Zero(t, store.existsCalls)
	assert.False(t, c.Contains("gone-3"))
}

func TestToggle_StoreErrorsAreClassifiedAndRolledBack(t *testing.T) {
	tests := []struct {
		name     string
		seed     bool
		failWith error
		want     wishlist.Kind
	}{
		{"insert permission denied", false, destination.ErrPermissionDenied, wishlist.KindPermissionDenied},
		{"insert foreign key", false, destination.ErrForeignKeyViolation, wishlist.KindNotFound},
		{"insert network", false, errors.New("connection reset"), wishlist.KindTransient},
		{"delete permission denied", true, destination.ErrPermissionDenied, wishlist.KindPermissionDenied},
		{"delete network", true, errors.New("connection reset"), wishlist.KindTransient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore("bromo-1")
			if tc.seed {
				store.add(user, "bromo-1")
			}
			c := newReadyController(t, store)

			fail := func(context.Context) error { return tc.failWith }
			store.set(func(s *memStore) {
				s.onInsert = fail
				s.onDelete = fail
			})

			res, err := c.Toggle(context.Background(), "bromo-1")
			require.Error(t, err)
			assert.Equal(t, tc.want, wishlist.KindOf(err))
			assert.ErrorIs(t, err, tc.failWith)
			assert.True(t, res.Reconciled)
			assert.Equal(t, tc.seed, res.Present)
			assert.Equal(t, tc.seed, c.Contains("bromo-1"), "tentative change rolled back")
		})
	}
}

func TestToggle_ManualRollbackWhenReconcileFails(t *testing.T) {
	store := newMemStore("bromo-1")
	c := newReadyController(t, store)

	store.set(func(s *memStore) {
		s.onInsert = func(context.Context) error { return errors.New("connection reset") }
		s.onList = func(context.Context) error { return errors.New("connection reset") }
	})

	res, err := c.Toggle(context.Background(), "bromo-1")
	require.Error(t, err)
	assert.Equal(t, wishlist.KindTransient, wishlist.KindOf(err))
	assert.False(t, res.Reconciled)
	assert.False(t, c.Contains("bromo-1"))
	assert.Equal(t, wishlist.StateReady, c.State())
}

func TestToggle_DuplicateWithoutLocalKnowledge(t *testing.T) {
	store := newMemStore("bromo-1")
	c := newReadyController(t, store)

	// Another context adds the row after this one loaded its set.
	store.add(user, "bromo-1")

	res, err := c.Toggle(context.Background(), "bromo-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyPresent)
	assert.True(t, res.Present)
	assert.Equal(t, 1, store.count(user, "bromo-1"))
}

func TestToggle_TimeoutForcesReconciliation(t *testing.T) {
	t.Run("write landed", func(t *testing.T) {
		store := newMemStore("bromo-1")
		c := wishlist.NewController(store, 20*time.Millisecond, discardLogger())
		require.NoError(t, c.Initialize(context.Background(), user))

		store.set(func(s *memStore) {
			s.afterInsert = func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}
		})

		res, err := c.Toggle(context.Background(), "bromo-1")
		require.NoError(t, err)
		assert.True(t, res.Reconciled)
		assert.True(t, res.Present)
		assert.True(t, c.Contains("bromo-1"))
	})

	t.Run("write lost", func(t *testing.T) {
		store := newMemStore("bromo-1")
		c := wishlist.NewController(store, 20*time.Millisecond, discardLogger())
		require.NoError(t, c.Initialize(context.Background(), user))

		store.set(func(s *memStore) {
			s.onInsert = func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}
		})

		res, err := c.Toggle(context.Background(), "bromo-1")
		require.Error(t, err)
		assert.Equal(t, wishlist.KindTransient, wishlist.KindOf(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, res.Reconciled)
		assert.False(t, c.Contains("bromo-1"))
	})
}

func TestOnAuthTransition_SignOutClearsImmediately(t *testing.T) {
	store := newMemStore("bromo-1", "toba-2")
	store.add(user, "bromo-1")
	store.add(user, "toba-2")
	c := newReadyController(t, store)
	require.Equal(t, []string{"bromo-1", "toba-2"}, c.Members())

	listCalls := store.listCalls
	require.NoError(t, c.OnAuthTransition(context.Background(), wishlist.SignedOut, ""))

	assert.Empty(t, c.Members())
	assert.Equal(t, wishlist.StateEmpty, c.State())
	assert.Empty(t, c.UserID())
	assert.Equal(t, listCalls, store.listCalls, "sign-out does not consult the store")
	assert.Equal(t, 2, len(store.members(user)), "durable rows are untouched")

	_, err := c.Toggle(context.Background(), "bromo-1")
	assert.Equal(t, wishlist.KindAuthRequired, wishlist.KindOf(err))
}

func TestOnAuthTransition_SignOutDiscardsInFlightToggle(t *testing.T) {
	store := newMemStore("bromo-1")
	c := newReadyController(t, store)

	entered := make(chan struct{})
	release := make(chan struct{})
	store.set(func(s *memStore) {
		s.onInsert = func(context.Context) error {
			close(entered)
			<-release
			return nil
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Toggle(context.Background(), "bromo-1")
		done <- err
	}()

	<-entered
	require.NoError(t, c.OnAuthTransition(context.Background(), wishlist.SignedOut, ""))
	close(release)

	err := <-done
	require.Error(t, err)
	assert.Equal(t, wishlist.KindAuthRequired, wishlist.KindOf(err))
	assert.ErrorIs(t, err, wishlist.ErrSessionChanged)
	assert.Empty(t, c.Members(), "result not applied to a signed-out state")
	assert.Equal(t, wishlist.StateEmpty, c.State())
}

func TestOnAuthTransition_SignInAndRefresh(t *testing.T) {
	store := newMemStore("bromo-1", "toba-2")
	store.add(user, "bromo-1")
	c := wishlist.NewController(store, time.Second, discardLogger())

	var states []wishlist.State
	c.OnChange(func(s wishlist.Snapshot) { states = append(states, s.State) })

	require.NoError(t, c.OnAuthTransition(context.Background(), wishlist.SignedIn, user))
	assert.Equal(t, []string{"bromo-1"}, c.Members())

	store.add(user, "toba-2")
	require.NoError(t, c.OnAuthTransition(context.Background(), wishlist.Refreshed, user))
	assert.Equal(t, []string{"bromo-1", "toba-2"}, c.Members())

	require.NoError(t, c.OnAuthTransition(context.Background(), wishlist.SignedOut, ""))
	require.NoError(t, c.OnAuthTransition(context.Background(), wishlist.SignedIn, user))

	assert.Equal(t, []wishlist.State{
		wishlist.StateLoading, wishlist.StateReady,
		wishlist.StateLoading, wishlist.StateReady,
		wishlist.StateEmpty,
		wishlist.StateLoading, wishlist.StateReady,
	}, states)
}

func TestReconcile_PicksUpChangesFromOtherContexts(t *testing.T) {
	store := newMemStore("bromo-1", "toba-2")
	c := newReadyController(t, store)
	require.Empty(t, c.Members())

	store.add(user, "toba-2")
	require.NoError(t, c.Reconcile(context.Background()))
	assert.Equal(t, []string{"toba-2"}, c.Members())
}

func TestReconcile_SignedOutIsNoop(t *testing.T) {
	store := newMemStore("bromo-1")
	store.add(user, "bromo-1")
	c := newReadyController(t, store)
	require.NoError(t, c.OnAuthTransition(context.Background(), wishlist.SignedOut, ""))

	listCalls := store.listCalls
	require.NoError(t, c.Reconcile(context.Background()))
	assert.Equal(t, listCalls, store.listCalls)
	assert.Empty(t, c.Members())
	assert.Equal(t, wishlist.StateEmpty, c.State())
}

func TestReconcile_SignOutDuringReadDiscardsResult(t *testing.T) {
	store := newMemStore("bromo-1")
	store.add(user, "bromo-1")
	c := newReadyController(t, store)

	entered := make(chan struct{})
	release := make(chan struct{})
	store.set(func(s *memStore) {
		s.onList = func(context.Context) error {
			close(entered)
			<-release
			return nil
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.Reconcile(context.Background()) }()

	<-entered
	require.NoError(t, c.OnAuthTransition(context.Background(), wishlist.SignedOut, ""))
	close(release)

	require.NoError(t, <-done)
	assert.Empty(t, c.Members())
	assert.Equal(t, wishlist.StateEmpty, c.State())
}

func TestReconcile_FailureIsTransient(t *testing.T) {
	store := newMemStore("bromo-1")
	c := newReadyController(t, store)
	store.set(func(s *memStore) {
		s.onList = func(context.Context) error { return errors.New("connection refused") }
	})

	err := c.Reconcile(context.Background())
	assert.Equal(t, wishlist.KindTransient, wishlist.KindOf(err))
	assert.Equal(t, wishlist.StateReady, c.State())
}

func TestReconcile_ReadyPassesThroughLoading(t *testing.T) {
	store := newMemStore("bromo-1")
	c := newReadyController(t, store)

	var states []wishlist.State
	c.OnChange(func(s wishlist.Snapshot) { states = append(states, s.State) })

	_, err := c.Toggle(context.Background(), "bromo-1")
	require.NoError(t, err)
	require.NoError(t, c.Reconcile(context.Background()))

	assert.Equal(t, []wishlist.State{
		wishlist.StateReady, // tentative add
		wishlist.StateLoading, wishlist.StateReady,
		wishlist.StateLoading, wishlist.StateReady,
	}, states)
}

func TestReconcile_FailureReturnsToReady(t *testing.T) {
	store := newMemStore("bromo-1")
	store.add(user, "bromo-1")
	c := newReadyController(t, store)
	store.set(func(s *memStore) {
		s.onList = func(context.Context) error { return errors.New("connection refused") }
	})

	var states []wishlist.State
	c.OnChange(func(s wishlist.Snapshot) { states = append(states, s.State) })

	require.Error(t, c.Reconcile(context.Background()))
	assert.Equal(t, []wishlist.State{wishlist.StateLoading, wishlist.StateReady}, states)
	assert.Equal(t, []string{"bromo-1"}, c.Members())
}

func TestInitialize_NoUserIsEmpty(t *testing.T) {
	c := wishlist.NewController(newMemStore(), time.Second, discardLogger())
	assert.Equal(t, wishlist.StateUninitialized, c.State())

	require.NoError(t, c.Initialize(context.Background(), ""))
	assert.Equal(t, wishlist.StateEmpty, c.State())
	assert.Empty(t, c.Members())
}

func TestInitialize_FailureKeepsPreviousSet(t *testing.T) {
	store := newMemStore("bromo-1")
	store.add(user, "bromo-1")
	c := newReadyController(t, store)

	store.set(func(s *memStore) {
		s.onList = func(context.Context) error { return errors.New("connection refused") }
	})

	err := c.Initialize(context.Background(), user)
	require.Error(t, err)
	assert.Equal(t, wishlist.KindTransient, wishlist.KindOf(err))
	assert.Equal(t, []string{"bromo-1"}, c.Members(), "stale but safe, never treated as empty")
	assert.Equal(t, wishlist.StateReady, c.State())
}

func TestInitialize_FailureForNewUserShowsNothing(t *testing.T) {
	store := newMemStore("bromo-1")
	store.add(user, "bromo-1")
	c := newReadyController(t, store)

	store.set(func(s *memStore) {
		s.onList = func(context.Context) error { return errors.New("connection refused") }
	})

	err := c.Initialize(context.Background(), "user-2")
	require.Error(t, err)
	assert.Empty(t, c.Members())
	assert.Equal(t, "user-2", c.UserID())
	assert.Equal(t, wishlist.StateUninitialized, c.State())
}

func TestOnChange_Unsubscribe(t *testing.T) {
	store := newMemStore("bromo-1")
	c := newReadyController(t, store)

	var got []wishlist.Snapshot
	unsubscribe := c.OnChange(func(s wishlist.Snapshot) { got = append(got, s) })

	_, err := c.Toggle(context.Background(), "bromo-1")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, user, last.UserID)
	assert.Equal(t, []string{"bromo-1"}, last.Members)

	unsubscribe()
	n := len(got)
	_, err = c.Toggle(context.Background(), "bromo-1")
	require.NoError(t, err)
	assert.Len(t, got, n)
}

func TestError_Message(t *testing.T) {
	for _, kind := range []wishlist.Kind{
		wishlist.KindAuthRequired, wishlist.KindNotFound, wishlist.KindPermissionDenied, wishlist.KindTransient,
	} {
		e := &wishlist.Error{Kind: kind, Op: "toggle", DestinationID: "bromo-1", Err: errors.New("x")}
		assert.NotEmpty(t, e.Message())
		assert.Contains(t, e.Error(), string(kind))
	}
	assert.Equal(t, wishlist.Kind(""), wishlist.KindOf(errors.New("plain")))
}
