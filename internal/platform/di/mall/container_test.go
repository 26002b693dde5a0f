package mall

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petshop/internal/adapters/in/http/middleware"
	"petshop/internal/application/query/mall/dto"
	appcfg "petshop/internal/infra/config"
	shared "petshop/internal/platform/di/shared"
)

func memoryInfra(t *testing.T, auth string) *shared.Infra {
	t.Helper()
	cfg := &appcfg.Config{
		CartStore:      appcfg.StoreMemory,
		AuthMode:       auth,
		JWTSecret:      "s3cret",
		GuestCartTTL:   time.Hour,
		StorageTimeout: time.Second,
	}
	require.NoError(t, cfg.Validate())

	infra, err := shared.NewInfra(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close() })
	return infra
}

func TestNewContainer_Memory(t *testing.T) {
	cont, err := NewContainer(context.Background(), memoryInfra(t, appcfg.AuthNone))
	require.NoError(t, err)

	assert.NotNil(t, cont.CartUC)
	assert.NotNil(t, cont.CartQuery)
	assert.Nil(t, cont.Verifier)
}

func TestNewContainer_FirestoreWithoutClient(t *testing.T) {
	infra := &shared.Infra{Config: &appcfg.Config{CartStore: appcfg.StoreFirestore, AuthMode: appcfg.AuthNone}}
	_, err := NewContainer(context.Background(), infra)
	assert.Error(t, err)
}

func TestNewContainer_NilInfra(t *testing.T) {
	_, err := NewContainer(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewRouter_EndToEnd(t *testing.T) {
	cont, err := NewContainer(context.Background(), memoryInfra(t, appcfg.AuthJWT))
	require.NoError(t, err)
	h := NewRouter(cont)

	t.Run("Healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	// guest adds, then logs in and merges
	req := httptest.NewRequest(http.MethodPost, "/mall/me/cart",
		strings.NewReader(`{"productId":"squeaky-ball","quantity":2,"mode":"increment"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sid := rec.Header().Get(middleware.SessionHeader)
	require.NotEmpty(t, sid)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "u-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/mall/me/cart/merge", nil)
	req.Header.Set(middleware.SessionHeader, sid)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view dto.CartDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, dto.CartOwnerDTO{Kind: "user", ID: "u-42"}, view.Owner)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Nil(t, view.ExpiresAt)
}

func TestRegister_NilContainer(t *testing.T) {
	h := NewRouter(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mall/me/cart", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
