// internal/adapters/in/http/mall/handler/cart_handler.go
package mallHandler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"petshop/internal/adapters/in/http/middleware"
	"petshop/internal/application/query/mall/dto"
	usecase "petshop/internal/application/usecase"
	cartdom "petshop/internal/domain/cart"
)

// CartCommands is the write side the handler needs.
type CartCommands interface {
	GetCart(ctx context.Context, owner cartdom.Owner) (*cartdom.Cart, error)
	AddItem(ctx context.Context, owner cartdom.Owner, productID string, qty int, mode cartdom.Mode) (*cartdom.Cart, error)
	UpdateQuantity(ctx context.Context, owner cartdom.Owner, productID string, qty int) (*cartdom.Cart, error)
	RemoveItem(ctx context.Context, owner cartdom.Owner, productID string) (*cartdom.Cart, error)
	ClearCart(ctx context.Context, owner cartdom.Owner) (*cartdom.Cart, error)
	MergeOnLogin(ctx context.Context, userID, sessionID string) (*cartdom.Cart, error)
}

// CartViewer renders a cart with live prices.
type CartViewer interface {
	View(ctx context.Context, c *cartdom.Cart) (dto.CartDTO, error)
}

// CartHandler serves Mall cart endpoints (mounted at /mall/me/cart):
//
//	GET    /                 cart view
//	POST   /                 add item {productId, quantity, mode}
//	DELETE /                 clear
//	PUT    /{productId}      set quantity {quantity}
//	DELETE /{productId}      remove item
//	POST   /merge            merge guest cart into the logged-in user's cart
type CartHandler struct {
	uc     CartCommands
	query  CartViewer
	router chi.Router
}

func NewCartHandler(uc CartCommands, query CartViewer) *CartHandler {
	h := &CartHandler{uc: uc, query: query}

	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Post("/", h.handleAddItem)
	r.Delete("/", h.handleClear)
	r.With(middleware.RequireUser).Post("/merge", h.handleMerge)
	r.Put("/{productId}", h.handleUpdateQuantity)
	r.Delete("/{productId}", h.handleRemoveItem)
	h.router = r

	return h
}

func (h *CartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil || h.query == nil {
		writeErr(w, http.StatusInternalServerError, "not_configured", "cart handler is not configured")
		return
	}
	h.router.ServeHTTP(w, r)
}

// -------------------------
// request bodies
// -------------------------

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
	Mode      string `json:"mode"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// -------------------------
// handlers
// -------------------------

func (h *CartHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	c, err := h.uc.GetCart(r.Context(), owner)
	h.respond(w, r, "get", owner, c, err)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeErr(w, http.StatusBadRequest, "invalid_request", "productId is required")
		return
	}
	if req.Quantity == nil {
		writeErr(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}
	mode, err := cartdom.ParseMode(req.Mode)
	if err != nil {
		writeCartErr(w, err)
		return
	}

	c, err := h.uc.AddItem(r.Context(), owner, req.ProductID, *req.Quantity, mode)
	h.respond(w, r, "add", owner, c, err)
}

func (h *CartHandler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Quantity == nil {
		writeErr(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	c, err := h.uc.UpdateQuantity(r.Context(), owner, chi.URLParam(r, "productId"), *req.Quantity)
	h.respond(w, r, "update", owner, c, err)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	c, err := h.uc.RemoveItem(r.Context(), owner, chi.URLParam(r, "productId"))
	h.respond(w, r, "remove", owner, c, err)
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	c, err := h.uc.ClearCart(r.Context(), owner)
	h.respond(w, r, "clear", owner, c, err)
}

func (h *CartHandler) handleMerge(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.CurrentUserUID(r)
	sid, ok := middleware.CurrentSessionID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "session_required", middleware.SessionHeader+" is required")
		return
	}

	c, err := h.uc.MergeOnLogin(r.Context(), uid, sid)
	h.respond(w, r, "merge", cartdom.UserOwner(uid), c, err)
}

// -------------------------
// helpers
// -------------------------

func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request, op string, owner cartdom.Owner, c *cartdom.Cart, err error) {
	if err != nil {
		log.WithFields(log.Fields{
			"op":        op,
			"owner":     owner.String(),
			"requestId": middleware.RequestID(r.Context()),
		}).Infof("[mall_cart_handler] %s failed err=%v", op, err)
		writeCartErr(w, err)
		return
	}

	view, err := h.query.View(r.Context(), c)
	if err != nil {
		log.WithFields(log.Fields{"op": op, "owner": owner.String()}).
			Warnf("[mall_cart_handler] view failed err=%v", err)
		writeCartErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func ownerFrom(w http.ResponseWriter, r *http.Request) (cartdom.Owner, bool) {
	uid, _ := middleware.CurrentUserUID(r)
	sid, _ := middleware.CurrentSessionID(r)

	owner, err := cartdom.ResolveOwner(uid, sid)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "owner_required", "a session id or a signed-in user is required")
		return cartdom.Owner{}, false
	}
	return owner, true
}

// writeCartErr maps domain errors to HTTP statuses.
func writeCartErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cartdom.ErrInvalidQuantity):
		writeErr(w, http.StatusBadRequest, "invalid_quantity", "quantity must be >= 1")
	case errors.Is(err, cartdom.ErrInvalidMode):
		writeErr(w, http.StatusBadRequest, "invalid_mode", `mode must be "increment" or "set"`)
	case errors.Is(err, usecase.ErrCartInvalidArgument), errors.Is(err, cartdom.ErrInvalidCart):
		writeErr(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, cartdom.ErrNoOwner):
		writeErr(w, http.StatusBadRequest, "owner_required", err.Error())
	case errors.Is(err, cartdom.ErrProductNotFound):
		writeErr(w, http.StatusNotFound, "product_not_found", "product does not exist")
	case errors.Is(err, cartdom.ErrOutOfStock):
		writeErr(w, http.StatusConflict, "out_of_stock", "product is out of stock")
	case errors.Is(err, cartdom.ErrStorageUnavailable):
		w.Header().Set("Retry-After", "1")
		writeErr(w, http.StatusServiceUnavailable, "storage_unavailable", "temporarily unavailable, retry")
	default:
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
