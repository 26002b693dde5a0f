// Package carttest is a behavior suite every cart.Repository must pass.
// Owner ids are random, so the suite can run against shared backends.
package carttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdom "petshop/internal/domain/cart"
)

var stock = cartdom.Stock{"p1": 100, "p2": 100, "p3": 100}

// RunRepositoryContract runs the suite. newRepo is called once per subtest.
func RunRepositoryContract(t *testing.T, newRepo func(t *testing.T) cartdom.Repository) {
	t.Helper()

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		repo := newRepo(t)
		c, err := repo.GetByOwner(context.Background(), cartdom.GuestOwner(uuid.NewString()))
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("MutateCreatesAndPersists", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := cartdom.UserOwner(uuid.NewString())
		now := time.Now().UTC().Truncate(time.Millisecond)

		got, err := repo.Mutate(ctx, owner, func(cur *cartdom.Cart) (*cartdom.Cart, error) {
			require.Nil(t, cur)
			c := mustNew(t, owner, now)
			require.NoError(t, c.Add("p1", 2, cartdom.ModeIncrement, stock, now))
			require.NoError(t, c.Add("p2", 1, cartdom.ModeIncrement, stock, now))
			return c, nil
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.Version)

		stored, err := repo.GetByOwner(ctx, owner)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, got.ID, stored.ID)
		assert.Equal(t, owner, stored.Owner())
		assert.Equal(t, []cartdom.Item{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		}, stored.Items)
		assert.False(t, stored.Changed())
	})

	t.Run("MutateErrorDoesNotWrite", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := cartdom.GuestOwner(uuid.NewString())
		boom := errors.New("boom")

		_, err := repo.Mutate(ctx, owner, func(cur *cartdom.Cart) (*cartdom.Cart, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		c, err := repo.GetByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("UnchangedSkipsWrite", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := cartdom.GuestOwner(uuid.NewString())
		now := time.Now().UTC()

		_, err := repo.Mutate(ctx, owner, func(*cartdom.Cart) (*cartdom.Cart, error) {
			return mustNew(t, owner, now), nil
		})
		require.NoError(t, err)

		got, err := repo.Mutate(ctx, owner, func(cur *cartdom.Cart) (*cartdom.Cart, error) {
			return cur, nil
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.Version)
	})

	t.Run("ConcurrentIncrementsSerialize", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := cartdom.GuestOwner(uuid.NewString())
		const n = 10

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Mutate(ctx, owner, func(cur *cartdom.Cart) (*cartdom.Cart, error) {
					now := time.Now().UTC()
					c := cur
					if c == nil {
						c = mustNew(t, owner, now)
					}
					return c, c.Add("p1", 1, cartdom.ModeIncrement, stock, now)
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		c, err := repo.GetByOwner(ctx, owner)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, n, c.Quantity("p1"))
	})

	t.Run("MergeReownsGuestCart", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		uid, sid := uuid.NewString(), uuid.NewString()
		guest := seed(t, repo, cartdom.GuestOwner(sid), cartdom.Item{ProductID: "p1", Quantity: 2})

		out, err := repo.Merge(ctx, uid, sid, func(g, u *cartdom.Cart) (*cartdom.Cart, error) {
			require.NotNil(t, g)
			require.Nil(t, u)
			return g, g.Reown(uid, time.Now().UTC())
		})
		require.NoError(t, err)
		assert.Equal(t, guest.ID, out.ID)

		gone, err := repo.GetByOwner(ctx, cartdom.GuestOwner(sid))
		require.NoError(t, err)
		assert.Nil(t, gone)

		stored, err := repo.GetByOwner(ctx, cartdom.UserOwner(uid))
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, guest.ID, stored.ID)
		assert.Equal(t, 2, stored.Quantity("p1"))
		assert.True(t, stored.ExpiresAt.IsZero())
	})

	t.Run("MergeSumsAndDeletesGuest", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		uid, sid := uuid.NewString(), uuid.NewString()
		seed(t, repo, cartdom.GuestOwner(sid), cartdom.Item{ProductID: "p1", Quantity: 2}, cartdom.Item{ProductID: "p3", Quantity: 1})
		user := seed(t, repo, cartdom.UserOwner(uid), cartdom.Item{ProductID: "p1", Quantity: 1})

		out, err := repo.Merge(ctx, uid, sid, func(g, u *cartdom.Cart) (*cartdom.Cart, error) {
			require.NotNil(t, g)
			require.NotNil(t, u)
			return u, u.Absorb(g, time.Now().UTC())
		})
		require.NoError(t, err)
		assert.Equal(t, user.ID, out.ID)

		gone, err := repo.GetByOwner(ctx, cartdom.GuestOwner(sid))
		require.NoError(t, err)
		assert.Nil(t, gone)

		stored, err := repo.GetByOwner(ctx, cartdom.UserOwner(uid))
		require.NoError(t, err)
		assert.Equal(t, 3, stored.Quantity("p1"))
		assert.Equal(t, 1, stored.Quantity("p3"))
	})

	t.Run("MergeWithoutGuestKeepsUserCart", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		uid, sid := uuid.NewString(), uuid.NewString()
		user := seed(t, repo, cartdom.UserOwner(uid), cartdom.Item{ProductID: "p2", Quantity: 4})

		out, err := repo.Merge(ctx, uid, sid, func(g, u *cartdom.Cart) (*cartdom.Cart, error) {
			require.Nil(t, g)
			return u, nil
		})
		require.NoError(t, err)
		assert.Equal(t, user.ID, out.ID)
		assert.Equal(t, user.Version, out.Version)
	})

	t.Run("MergeIsAtomicToReaders", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		uid, sid := uuid.NewString(), uuid.NewString()
		seed(t, repo, cartdom.GuestOwner(sid), cartdom.Item{ProductID: "p1", Quantity: 2})
		seed(t, repo, cartdom.UserOwner(uid), cartdom.Item{ProductID: "p2", Quantity: 1})

		before := map[string]int{"p2": 1}
		merged := map[string]int{"p1": 2, "p2": 1}

		type observation struct {
			items      map[string]int
			guestAfter bool
			err        error
		}
		var (
			mu   sync.Mutex
			seen []observation
			wg   sync.WaitGroup
		)
		done := make(chan struct{})
		record := func(o observation) {
			mu.Lock()
			seen = append(seen, o)
			mu.Unlock()
		}

		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(useMutate bool) {
				defer wg.Done()
				for {
					var (
						c   *cartdom.Cart
						err error
					)
					if useMutate {
						c, err = repo.Mutate(ctx, cartdom.UserOwner(uid), func(cur *cartdom.Cart) (*cartdom.Cart, error) {
							return cur, nil
						})
					} else {
						c, err = repo.GetByOwner(ctx, cartdom.UserOwner(uid))
					}
					o := observation{err: err}
					if err == nil && c != nil {
						o.items = itemMap(c)
						// the user cart is read first, so a merged user cart
						// followed by a live guest record would be a torn merge
						g, gerr := repo.GetByOwner(ctx, cartdom.GuestOwner(sid))
						o.err = gerr
						o.guestAfter = g != nil
					}
					record(o)

					select {
					case <-done:
						return
					default:
					}
				}
			}(i%2 == 0)
		}

		_, err := repo.Merge(ctx, uid, sid, func(g, u *cartdom.Cart) (*cartdom.Cart, error) {
			return u, u.Absorb(g, time.Now().UTC())
		})
		close(done)
		wg.Wait()
		require.NoError(t, err)

		require.NotEmpty(t, seen)
		for _, o := range seen {
			require.NoError(t, o.err)
			require.NotNil(t, o.items)
			if assert.Contains(t, []map[string]int{before, merged}, o.items) && o.guestAfter {
				assert.NotEqual(t, merged, o.items, "guest record still present after merged user cart was visible")
			}
		}

		stored, err := repo.GetByOwner(ctx, cartdom.UserOwner(uid))
		require.NoError(t, err)
		assert.Equal(t, merged, itemMap(stored))
		gone, err := repo.GetByOwner(ctx, cartdom.GuestOwner(sid))
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("DeleteByOwner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := cartdom.UserOwner(uuid.NewString())
		seed(t, repo, owner, cartdom.Item{ProductID: "p1", Quantity: 1})

		require.NoError(t, repo.DeleteByOwner(ctx, owner))
		require.NoError(t, repo.DeleteByOwner(ctx, owner))

		c, err := repo.GetByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("SweepExpiredDeletesOnlyExpiredGuests", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()

		expired := cartdom.GuestOwner(uuid.NewString())
		fresh := cartdom.GuestOwner(uuid.NewString())
		user := cartdom.UserOwner(uuid.NewString())

		seedAt(t, repo, expired, now.Add(-2*time.Hour), time.Hour)
		seedAt(t, repo, fresh, now, time.Hour)
		seedAt(t, repo, user, now.Add(-2*time.Hour), time.Hour)

		n, err := repo.SweepExpired(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		for owner, wantGone := range map[cartdom.Owner]bool{expired: true, fresh: false, user: false} {
			c, err := repo.GetByOwner(ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, wantGone, c == nil, owner.Key())
		}
	})
}

func mustNew(t *testing.T, owner cartdom.Owner, now time.Time) *cartdom.Cart {
	t.Helper()
	c, err := cartdom.NewCart(uuid.NewString(), owner, now, time.Hour)
	require.NoError(t, err)
	return c
}

func seed(t *testing.T, repo cartdom.Repository, owner cartdom.Owner, items ...cartdom.Item) *cartdom.Cart {
	t.Helper()
	now := time.Now().UTC()
	c, err := repo.Mutate(context.Background(), owner, func(*cartdom.Cart) (*cartdom.Cart, error) {
		c := mustNew(t, owner, now)
		for _, it := range items {
			if err := c.Add(it.ProductID, it.Quantity, cartdom.ModeSet, stock, now); err != nil {
				return nil, err
			}
		}
		return c, nil
	})
	require.NoError(t, err)
	return c
}

func seedAt(t *testing.T, repo cartdom.Repository, owner cartdom.Owner, at time.Time, ttl time.Duration) {
	t.Helper()
	_, err := repo.Mutate(context.Background(), owner, func(*cartdom.Cart) (*cartdom.Cart, error) {
		c, err := cartdom.NewCart(uuid.NewString(), owner, at, ttl)
		if err != nil {
			return nil, err
		}
		return c, c.Add("p1", 1, cartdom.ModeIncrement, stock, at)
	})
	require.NoError(t, err)
}

func itemMap(c *cartdom.Cart) map[string]int {
	out := make(map[string]int, len(c.Items))
	for _, it := range c.Items {
		out[it.ProductID] = it.Quantity
	}
	return out
}
