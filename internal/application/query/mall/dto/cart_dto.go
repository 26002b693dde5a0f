// internal/application/query/mall/dto/cart_dto.go
package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartOwnerDTO identifies who the cart belongs to.
type CartOwnerDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// CartItemDTO is one line with a live product snapshot.
// Unavailable lines (product lookup failed) carry zero price and line total.
type CartItemDTO struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	LineTotal decimal.Decimal `json:"lineTotal"`

	Unavailable bool `json:"unavailable,omitempty"`
}

// CartDTO is the cart as the storefront and checkout see it.
type CartDTO struct {
	ID    string        `json:"id"`
	Owner CartOwnerDTO  `json:"owner"`
	Items []CartItemDTO `json:"items"`

	TotalQuantity int             `json:"totalQuantity"`
	Total         decimal.Decimal `json:"total"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
