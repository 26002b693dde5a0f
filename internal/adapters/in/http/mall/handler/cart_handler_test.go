package mallHandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petshop/internal/adapters/in/http/middleware"
	"petshop/internal/adapters/out/memory"
	mallquery "petshop/internal/application/query/mall"
	"petshop/internal/application/query/mall/dto"
	usecase "petshop/internal/application/usecase"
	cartdom "petshop/internal/domain/cart"
)

// tokenVerifier accepts "tok-<uid>".
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, "tok-") {
		return "", errors.New("bad token")
	}
	return strings.TrimPrefix(token, "tok-"), nil
}

type server struct {
	h       http.Handler
	catalog *memory.CatalogMem
	repo    *memory.CartRepositoryMem
}

func newServer(t *testing.T) server {
	t.Helper()

	repo := memory.NewCartRepositoryMem()
	cat := memory.NewCatalogMem()
	cat.PutSimple("kibble", "Dry Kibble 5kg", "24.90", 5)
	cat.PutSimple("ball", "Squeaky Ball", "3.50", 10)
	cat.PutSimple("soldout", "Heated Bed", "59.00", 0)

	uc := usecase.NewCartUsecase(repo, cat)
	h := NewCartHandler(uc, mallquery.NewCartQuery(cat))

	n := 0
	r := chi.NewRouter()
	r.Use(middleware.Session(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))
	r.Use((&middleware.OptionalUserAuth{Verifier: tokenVerifier{}}).Handler)
	r.Mount("/mall/me/cart", h)

	return server{h: r, catalog: cat, repo: repo}
}

type call struct {
	method  string
	path    string
	body    string
	session string
	token   string
}

func (s server) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.session != "" {
		req.Header.Set(middleware.SessionHeader, c.session)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) dto.CartDTO {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var v dto.CartDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestCartHandler_GuestFlow(t *testing.T) {
	s := newServer(t)
	const sid = "sess-abc"

	rec := s.do(t, call{method: http.MethodPost, path: "/mall/me/cart", session: sid,
		body: `{"productId":"kibble","quantity":2,"mode":"increment"}`})
	assert.Equal(t, sid, rec.Header().Get(middleware.SessionHeader))
	v := decodeCart(t, rec)
	assert.Equal(t, dto.CartOwnerDTO{Kind: "guest", ID: sid}, v.Owner)
	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].Quantity)
	assert.True(t, v.Total.Equal(decimal.RequireFromString("49.80")), v.Total.String())
	assert.NotNil(t, v.ExpiresAt)

	// set clamps to stock
	v = decodeCart(t, s.do(t, call{method: http.MethodPut, path: "/mall/me/cart/kibble", session: sid,
		body: `{"quantity":99}`}))
	assert.Equal(t, 5, v.Items[0].Quantity)

	v = decodeCart(t, s.do(t, call{method: http.MethodPost, path: "/mall/me/cart", session: sid,
		body: `{"productId":"ball","quantity":1,"mode":"set"}`}))
	assert.Equal(t, 6, v.TotalQuantity)

	v = decodeCart(t, s.do(t, call{method: http.MethodDelete, path: "/mall/me/cart/kibble", session: sid}))
	require.Len(t, v.Items, 1)
	assert.Equal(t, "ball", v.Items[0].ProductID)

	v = decodeCart(t, s.do(t, call{method: http.MethodDelete, path: "/mall/me/cart", session: sid}))
	assert.Empty(t, v.Items)

	// clear again is still 200
	decodeCart(t, s.do(t, call{method: http.MethodDelete, path: "/mall/me/cart", session: sid}))
}

func TestCartHandler_GeneratesSession(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/mall/me/cart"})
	sid := rec.Header().Get(middleware.SessionHeader)
	assert.Equal(t, "gen-1", sid)

	v := decodeCart(t, rec)
	assert.Equal(t, dto.CartOwnerDTO{Kind: "guest", ID: sid}, v.Owner)
	assert.Empty(t, v.Items)
}

func TestCartHandler_UserWinsOverSession(t *testing.T) {
	s := newServer(t)

	v := decodeCart(t, s.do(t, call{method: http.MethodPost, path: "/mall/me/cart", session: "sess-1", token: "tok-u1",
		body: `{"productId":"ball","quantity":3,"mode":"increment"}`}))
	assert.Equal(t, dto.CartOwnerDTO{Kind: "user", ID: "u1"}, v.Owner)
	assert.Nil(t, v.ExpiresAt)

	// the guest cart was never touched
	v = decodeCart(t, s.do(t, call{method: http.MethodGet, path: "/mall/me/cart", session: "sess-1"}))
	assert.Empty(t, v.Items)
}

func TestCartHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		call       call
		wantStatus int
		wantCode   string
	}{
		{
			name:       "UnknownProduct",
			call:       call{method: http.MethodPost, body: `{"productId":"nope","quantity":1,"mode":"increment"}`},
			wantStatus: http.StatusNotFound, wantCode: "product_not_found",
		},
		{
			name:       "SoldOut",
			call:       call{method: http.MethodPost, body: `{"productId":"soldout","quantity":1,"mode":"increment"}`},
			wantStatus: http.StatusConflict, wantCode: "out_of_stock",
		},
		{
			name:       "ZeroQuantity",
			call:       call{method: http.MethodPost, body: `{"productId":"ball","quantity":0,"mode":"set"}`},
			wantStatus: http.StatusBadRequest, wantCode: "invalid_quantity",
		},
		{
			name:       "MissingQuantity",
			call:       call{method: http.MethodPost, body: `{"productId":"ball","mode":"set"}`},
			wantStatus: http.StatusBadRequest, wantCode: "invalid_quantity",
		},
		{
			name:       "BadMode",
			call:       call{method: http.MethodPost, body: `{"productId":"ball","quantity":1,"mode":"replace"}`},
			wantStatus: http.StatusBadRequest, wantCode: "invalid_mode",
		},
		{
			name:       "MissingProductID",
			call:       call{method: http.MethodPost, body: `{"quantity":1,"mode":"set"}`},
			wantStatus: http.StatusBadRequest, wantCode: "invalid_request",
		},
		{
			name:       "UnknownField",
			call:       call{method: http.MethodPost, body: `{"productId":"ball","quantity":1,"mode":"set","price":1}`},
			wantStatus: http.StatusBadRequest, wantCode: "invalid_request",
		},
		{
			name:       "BrokenJSON",
			call:       call{method: http.MethodPost, body: `{"productId":`},
			wantStatus: http.StatusBadRequest, wantCode: "invalid_request",
		},
		{
			name:       "UpdateNegative",
			call:       call{method: http.MethodPut, path: "/mall/me/cart/ball", body: `{"quantity":-1}`},
			wantStatus: http.StatusBadRequest, wantCode: "invalid_quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			c := tt.call
			if c.path == "" {
				c.path = "/mall/me/cart"
			}
			c.session = "sess-err"

			rec := s.do(t, c)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decodeErr(t, rec))
		})
	}
}

func TestCartHandler_UpdateMissingLineIsNoop(t *testing.T) {
	s := newServer(t)

	v := decodeCart(t, s.do(t, call{method: http.MethodPut, path: "/mall/me/cart/ball", session: "sess-up",
		body: `{"quantity":2}`}))
	assert.Empty(t, v.Items)
}

func TestCartHandler_Merge(t *testing.T) {
	s := newServer(t)
	const sid = "sess-merge"

	decodeCart(t, s.do(t, call{method: http.MethodPost, path: "/mall/me/cart", session: sid,
		body: `{"productId":"kibble","quantity":2,"mode":"increment"}`}))
	decodeCart(t, s.do(t, call{method: http.MethodPost, path: "/mall/me/cart", token: "tok-u9",
		body: `{"productId":"kibble","quantity":1,"mode":"increment"}`}))

	t.Run("RequiresLogin", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/mall/me/cart/merge", session: sid})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/mall/me/cart/merge", session: sid, token: "garbage"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Sums", func(t *testing.T) {
		v := decodeCart(t, s.do(t, call{method: http.MethodPost, path: "/mall/me/cart/merge", session: sid, token: "tok-u9"}))
		assert.Equal(t, dto.CartOwnerDTO{Kind: "user", ID: "u9"}, v.Owner)
		require.Len(t, v.Items, 1)
		assert.Equal(t, 3, v.Items[0].Quantity)

		guest, err := s.repo.GetByOwner(context.Background(), cartdom.GuestOwner(sid))
		require.NoError(t, err)
		assert.Nil(t, guest)
	})

	t.Run("RetryIsStable", func(t *testing.T) {
		v := decodeCart(t, s.do(t, call{method: http.MethodPost, path: "/mall/me/cart/merge", session: sid, token: "tok-u9"}))
		assert.Equal(t, 3, v.Items[0].Quantity)
	})
}

func TestCartHandler_PurgesVanishedProduct(t *testing.T) {
	s := newServer(t)
	const sid = "sess-purge"

	decodeCart(t, s.do(t, call{method: http.MethodPost, path: "/mall/me/cart", session: sid,
		body: `{"productId":"ball","quantity":2,"mode":"increment"}`}))
	s.catalog.Delete("ball")

	v := decodeCart(t, s.do(t, call{method: http.MethodGet, path: "/mall/me/cart", session: sid}))
	assert.Empty(t, v.Items)
}

func TestCartHandler_NotConfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	NewCartHandler(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWriteCartErr(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{cartdom.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
		{cartdom.ErrInvalidMode, http.StatusBadRequest, "invalid_mode"},
		{usecase.ErrCartInvalidArgument, http.StatusBadRequest, "invalid_request"},
		{cartdom.ErrNoOwner, http.StatusBadRequest, "owner_required"},
		{cartdom.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		{cartdom.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
		{fmt.Errorf("%w: firestore get: deadline", cartdom.ErrStorageUnavailable), http.StatusServiceUnavailable, "storage_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeCartErr(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeErr(t, rec))
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}
