package cart

import "errors"

var (
	ErrInvalidCart = errors.New("cart: invalid")

	// ErrInvalidQuantity is returned when a requested quantity is < 1.
	ErrInvalidQuantity = errors.New("cart: invalid quantity")

	// ErrInvalidMode is returned for an add mode other than set/increment.
	ErrInvalidMode = errors.New("cart: invalid add mode")

	// ErrProductNotFound is returned when the catalog has no such product.
	ErrProductNotFound = errors.New("cart: product not found")

	// ErrOutOfStock is returned when the first add of a product finds stock == 0.
	ErrOutOfStock = errors.New("cart: out of stock")

	// ErrStorageUnavailable marks transient storage/catalog failures.
	// Callers may retry the whole operation; nothing is retried internally.
	ErrStorageUnavailable = errors.New("cart: storage unavailable")

	// ErrNoOwner is returned when neither a user id nor a session id is present.
	ErrNoOwner = errors.New("cart: no owner")
)
