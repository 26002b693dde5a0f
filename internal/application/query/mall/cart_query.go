// internal/application/query/mall/cart_query.go
package mall

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"petshop/internal/application/query/mall/dto"
	cartdom "petshop/internal/domain/cart"
	catalogdom "petshop/internal/domain/catalog"
)

// CartQuery builds the cart read-model: product snapshots, line totals and the
// cart total, always against live catalog prices.
type CartQuery struct {
	catalog catalogdom.Reader
}

func NewCartQuery(catalog catalogdom.Reader) *CartQuery {
	return &CartQuery{catalog: catalog}
}

// View renders c. A line whose product is missing from the catalog contributes
// zero to the total and is flagged unavailable; the next GetCart purges it.
func (q *CartQuery) View(ctx context.Context, c *cartdom.Cart) (dto.CartDTO, error) {
	if c == nil {
		return dto.CartDTO{}, errors.New("cart_query: cart is nil")
	}
	if q == nil || q.catalog == nil {
		return dto.CartDTO{}, fmt.Errorf("%w: catalog is not configured", cartdom.ErrStorageUnavailable)
	}

	products := map[string]catalogdom.Product{}
	if ids := c.ProductIDs(); len(ids) > 0 {
		found, err := q.catalog.GetByIDs(ctx, ids)
		if err != nil {
			return dto.CartDTO{}, fmt.Errorf("%w: %v", cartdom.ErrStorageUnavailable, err)
		}
		products = found
	}

	return BuildCartDTO(c, products), nil
}

// BuildCartDTO is the pure part of View.
func BuildCartDTO(c *cartdom.Cart, products map[string]catalogdom.Product) dto.CartDTO {
	owner := c.Owner()
	out := dto.CartDTO{
		ID:        c.ID,
		Owner:     dto.CartOwnerDTO{Kind: string(owner.Kind), ID: owner.ID},
		Items:     make([]dto.CartItemDTO, 0, len(c.Items)),
		Total:     decimal.Zero,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if !c.ExpiresAt.IsZero() {
		t := c.ExpiresAt
		out.ExpiresAt = &t
	}

	missing := 0
	for _, it := range c.Items {
		line := dto.CartItemDTO{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     decimal.Zero,
			LineTotal: decimal.Zero,
		}

		p, ok := products[it.ProductID]
		if !ok {
			line.Unavailable = true
			missing++
		} else {
			line.Name = p.Name
			line.Price = p.Price
			line.Stock = p.Stock
			line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			out.Total = out.Total.Add(line.LineTotal)
		}

		out.TotalQuantity += it.Quantity
		out.Items = append(out.Items, line)
	}

	if missing > 0 {
		log.WithFields(log.Fields{
			"owner":   owner.String(),
			"missing": missing,
		}).Warn("[cart_query] cart has lines without catalog data")
	}
	return out
}
