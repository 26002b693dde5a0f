package mall

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petshop/internal/adapters/out/memory"
	cartdom "petshop/internal/domain/cart"
)

func newCart(t *testing.T, items ...cartdom.Item) *cartdom.Cart {
	t.Helper()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	c, err := cartdom.NewCart("cart-1", cartdom.GuestOwner("sess-1"), now, time.Hour)
	require.NoError(t, err)
	for _, it := range items {
		require.NoError(t, c.Add(it.ProductID, it.Quantity, cartdom.ModeSet, cartdom.Stock{it.ProductID: 100}, now))
	}
	return c
}

func TestCartQuery_View(t *testing.T) {
	cat := memory.NewCatalogMem()
	cat.PutSimple("kibble", "Dry Kibble", "24.90", 5)
	cat.PutSimple("ball", "Squeaky Ball", "0.10", 50)
	q := NewCartQuery(cat)

	t.Run("TotalsUseLivePrices", func(t *testing.T) {
		c := newCart(t,
			cartdom.Item{ProductID: "kibble", Quantity: 2},
			cartdom.Item{ProductID: "ball", Quantity: 3},
		)

		v, err := q.View(context.Background(), c)
		require.NoError(t, err)

		assert.Equal(t, "cart-1", v.ID)
		assert.Equal(t, "guest", v.Owner.Kind)
		require.Len(t, v.Items, 2)
		assert.Equal(t, "kibble", v.Items[0].ProductID)
		assert.Equal(t, "Dry Kibble", v.Items[0].Name)
		assert.Equal(t, "49.8", v.Items[0].LineTotal.String())
		assert.Equal(t, "0.3", v.Items[1].LineTotal.String())
		assert.Equal(t, "50.1", v.Total.String())
		assert.Equal(t, 5, v.TotalQuantity)
		require.NotNil(t, v.ExpiresAt)

		cat.PutSimple("kibble", "Dry Kibble", "20.00", 5)
		v, err = q.View(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, "40.3", v.Total.String())
		cat.PutSimple("kibble", "Dry Kibble", "24.90", 5)
	})

	t.Run("MissingProductContributesZero", func(t *testing.T) {
		c := newCart(t,
			cartdom.Item{ProductID: "ball", Quantity: 1},
			cartdom.Item{ProductID: "gone", Quantity: 4},
		)

		v, err := q.View(context.Background(), c)
		require.NoError(t, err)
		assert.False(t, v.Items[0].Unavailable)
		assert.True(t, v.Items[1].Unavailable)
		assert.True(t, v.Items[1].LineTotal.IsZero())
		assert.Equal(t, "0.1", v.Total.String())
	})

	t.Run("EmptyCartSkipsCatalog", func(t *testing.T) {
		before := cat.Calls()
		v, err := q.View(context.Background(), newCart(t))
		require.NoError(t, err)
		assert.Empty(t, v.Items)
		assert.True(t, v.Total.IsZero())
		assert.Equal(t, before, cat.Calls())
	})

	t.Run("CatalogDown", func(t *testing.T) {
		down := memory.NewCatalogMem()
		down.FailWith(errors.New("unreachable"))
		_, err := NewCartQuery(down).View(context.Background(), newCart(t, cartdom.Item{ProductID: "x", Quantity: 1}))
		assert.ErrorIs(t, err, cartdom.ErrStorageUnavailable)
	})
}

func TestCartDTO_JSONMoneyAsString(t *testing.T) {
	cat := memory.NewCatalogMem()
	cat.PutSimple("kibble", "Dry Kibble", "24.90", 5)

	v, err := NewCartQuery(cat).View(context.Background(), newCart(t, cartdom.Item{ProductID: "kibble", Quantity: 1}))
	require.NoError(t, err)

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "24.9", m["total"])
	items := m["items"].([]any)
	assert.Equal(t, "24.9", items[0].(map[string]any)["price"])
	assert.NotContains(t, items[0].(map[string]any), "unavailable")
}
