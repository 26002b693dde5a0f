package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	catalogdom "petshop/internal/domain/catalog"
)

// CatalogMem is an in-memory catalog.Reader with setters for tests and local runs.
type CatalogMem struct {
	mu       sync.RWMutex
	products map[string]catalogdom.Product

	// Calls counts GetByIDs invocations.
	calls int
	// Err, when set, is returned by GetByIDs.
	err error
}

func NewCatalogMem(products ...catalogdom.Product) *CatalogMem {
	c := &CatalogMem{products: map[string]catalogdom.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *CatalogMem) GetByIDs(ctx context.Context, ids []string) (map[string]catalogdom.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]catalogdom.Product, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *CatalogMem) Put(p catalogdom.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// PutSimple is Put with a price parsed from a decimal string.
func (c *CatalogMem) PutSimple(id, name, price string, stock int) {
	c.Put(catalogdom.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock})
}

func (c *CatalogMem) SetStock(id string, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.products[id]; ok {
		p.Stock = stock
		c.products[id] = p
	}
}

func (c *CatalogMem) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

// FailWith makes every lookup return err (nil restores normal behavior).
func (c *CatalogMem) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *CatalogMem) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
