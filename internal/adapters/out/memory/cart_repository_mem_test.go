package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petshop/internal/adapters/out/carttest"
	cartdom "petshop/internal/domain/cart"
)

func TestCartRepositoryMem_Contract(t *testing.T) {
	carttest.RunRepositoryContract(t, func(t *testing.T) cartdom.Repository {
		return NewCartRepositoryMem()
	})
}

func TestCartRepositoryMem_StoresCopies(t *testing.T) {
	repo := NewCartRepositoryMem()
	ctx := context.Background()
	owner := cartdom.GuestOwner("s1")
	now := time.Now().UTC()

	out, err := repo.Mutate(ctx, owner, func(*cartdom.Cart) (*cartdom.Cart, error) {
		c, err := cartdom.NewCart("c1", owner, now, time.Hour)
		if err != nil {
			return nil, err
		}
		return c, c.Add("p1", 1, cartdom.ModeIncrement, cartdom.Stock{"p1": 5}, now)
	})
	require.NoError(t, err)

	out.Items[0].Quantity = 99

	stored, err := repo.GetByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quantity("p1"))
	assert.Equal(t, 1, repo.Len())
}

func TestCartRepositoryMem_RejectsOwnerChange(t *testing.T) {
	repo := NewCartRepositoryMem()
	owner := cartdom.GuestOwner("s1")

	_, err := repo.Mutate(context.Background(), owner, func(*cartdom.Cart) (*cartdom.Cart, error) {
		return cartdom.NewCart("c1", cartdom.UserOwner("u1"), time.Now(), time.Hour)
	})
	assert.Error(t, err)
	assert.Zero(t, repo.Len())
}

func TestCartRepositoryMem_CanceledContext(t *testing.T) {
	repo := NewCartRepositoryMem()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Mutate(ctx, cartdom.GuestOwner("s1"), func(*cartdom.Cart) (*cartdom.Cart, error) {
		t.Fatal("fn must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
