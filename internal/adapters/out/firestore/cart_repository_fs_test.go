package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"petshop/internal/adapters/out/carttest"
	cartdom "petshop/internal/domain/cart"
	catalogdom "petshop/internal/domain/catalog"
)

// Runs against the emulator only: FIRESTORE_EMULATOR_HOST=localhost:8080 go test ./...
func TestCartRepositoryFS_Contract(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	client, err := firestore.NewClient(context.Background(), "petshop-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	carttest.RunRepositoryContract(t, func(t *testing.T) cartdom.Repository {
		repo := NewCartRepositoryFS(client)
		repo.Collection = "carts_test_" + uuid.NewString()[:8]
		return repo
	})
}

func TestCartDoc_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	c, err := cartdom.NewCart("c1", cartdom.GuestOwner("s1"), now, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Add("p1", 2, cartdom.ModeIncrement, cartdom.Stock{"p1": 5}, now))
	c.Version = 3

	doc := cartDocFromDomain(c)
	require.NotNil(t, doc.ExpiresAt)
	assert.Equal(t, "s1", doc.SessionID)

	back := doc.toDomain()
	assert.Equal(t, c.ID, back.ID)
	assert.Equal(t, c.Items, back.Items)
	assert.Equal(t, c.ExpiresAt, back.ExpiresAt)
	assert.EqualValues(t, 3, back.Version)
}

func TestCartDoc_UserCartHasNoExpiry(t *testing.T) {
	c, err := cartdom.NewCart("c1", cartdom.UserOwner("u1"), time.Now(), time.Hour)
	require.NoError(t, err)
	assert.Nil(t, cartDocFromDomain(c).ExpiresAt)
}

func TestCartDoc_ToDomainNormalizes(t *testing.T) {
	doc := cartDoc{
		ID:     "c1",
		UserID: "u1",
		Items: []cartItemDoc{
			{ProductID: "a", Quantity: 1},
			{ProductID: " b ", Quantity: 2},
			{ProductID: "a", Quantity: 2},
			{ProductID: "c", Quantity: 0},
			{ProductID: "", Quantity: 5},
		},
	}
	assert.Equal(t, []cartdom.Item{
		{ProductID: "a", Quantity: 3},
		{ProductID: "b", Quantity: 2},
	}, doc.toDomain().Items)
}

func TestWrapErr(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{name: "Unavailable", err: status.Error(codes.Unavailable, "down"), unavailable: true},
		{name: "Deadline", err: fmt.Errorf("x: %w", context.DeadlineExceeded), unavailable: true},
		{name: "Aborted", err: status.Error(codes.Aborted, "contention"), unavailable: true},
		{name: "PermissionDenied", err: status.Error(codes.PermissionDenied, "nope")},
		{name: "Domain", err: cartdom.ErrOutOfStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapErr("op", tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(got, cartdom.ErrStorageUnavailable))
			if !tt.unavailable {
				assert.Equal(t, tt.err, got)
			}
		})
	}
	assert.NoError(t, wrapErr("op", nil))
}

func TestProductFromData(t *testing.T) {
	p, err := productFromData("p1", map[string]any{"name": "Bone", "price": "12.90", "stock": int64(3)})
	require.NoError(t, err)
	assert.Equal(t, "12.9", p.Price.String())
	assert.Equal(t, 3, p.Stock)

	p, err = productFromData("p2", map[string]any{"name": "Bowl", "price": 4.5, "stock": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, "4.5", p.Price.String())

	_, err = productFromData("p3", map[string]any{"name": "Bowl"})
	assert.Error(t, err)

	_, err = productFromData("p4", map[string]any{"price": "1", "stock": int64(-1)})
	assert.Error(t, err)
}

func TestDecodeProducts(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		out, err := decodeProducts(map[string]catalogdom.Product{}, map[string]map[string]any{
			"p1": {"name": "Bone", "price": "12.90", "stock": int64(3)},
			"p2": {"name": "Bowl", "price": "4.50", "stock": int64(0)},
		})
		require.NoError(t, err)
		assert.Len(t, out, 2)
		assert.Equal(t, 0, out["p2"].Stock)
	})

	t.Run("MalformedFailsRead", func(t *testing.T) {
		out, err := decodeProducts(map[string]catalogdom.Product{}, map[string]map[string]any{
			"p1": {"name": "Bone", "price": "12.90", "stock": int64(3)},
			"p2": {"name": "Bowl", "price": true, "stock": int64(1)},
		})
		assert.ErrorIs(t, err, cartdom.ErrStorageUnavailable)
		assert.Nil(t, out)
	})
}
