// Package catalog is the read-only view of the product catalog the cart depends on.
// Product CRUD lives elsewhere.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("catalog: invalid product")

// Product is what the cart needs to know about a catalog entry.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func (p Product) Validate() error {
	if p.ID == "" || p.Stock < 0 || p.Price.IsNegative() {
		return ErrInvalidProduct
	}
	return nil
}

// Reader looks products up by id.
// Missing ids are simply absent from the result; an error means the lookup
// itself failed.
type Reader interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]Product, error)
}

// StockOf projects products to productId -> stock.
func StockOf(products map[string]Product) map[string]int {
	out := make(map[string]int, len(products))
	for id, p := range products {
		out[id] = p.Stock
	}
	return out
}
