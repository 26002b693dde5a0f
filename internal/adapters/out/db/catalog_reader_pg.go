package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	catalogdom "petshop/internal/domain/catalog"
)

// CatalogReaderPG reads the catalog's products table.
type CatalogReaderPG struct {
	DB      *sqlx.DB
	Timeout time.Duration
}

func NewCatalogReaderPG(db *sqlx.DB) *CatalogReaderPG {
	return &CatalogReaderPG{DB: db, Timeout: defaultTimeout}
}

type productRow struct {
	ID    string          `db:"id"`
	Name  string          `db:"name"`
	Price decimal.Decimal `db:"price"`
	Stock int             `db:"stock"`
}

func (r *CatalogReaderPG) GetByIDs(ctx context.Context, ids []string) (map[string]catalogdom.Product, error) {
	if r == nil || r.DB == nil {
		return nil, errors.New("catalog_reader_pg: db is nil")
	}

	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	out := make(map[string]catalogdom.Product, len(clean))
	if len(clean) == 0 {
		return out, nil
	}

	d := r.Timeout
	if d <= 0 {
		d = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	var rows []productRow
	err := r.DB.SelectContext(ctx, &rows,
		`SELECT id, name, price, stock FROM products WHERE id = ANY($1)`,
		pq.Array(clean),
	)
	if err != nil {
		return nil, wrapErr("catalog select", err)
	}

	for _, row := range rows {
		out[row.ID] = catalogdom.Product{
			ID:    row.ID,
			Name:  row.Name,
			Price: row.Price,
			Stock: row.Stock,
		}
	}
	return out, nil
}
