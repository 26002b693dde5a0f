package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	cartdom "petshop/internal/domain/cart"
	catalogdom "petshop/internal/domain/catalog"
)

const defaultProductsCollection = "products"

// CatalogReaderFS reads products from the catalog's Firestore collection.
//
//   - docId: productId
//   - fields: name, price (string "12.90" or number), stock (number)
//
// The catalog is owned by another service; this adapter only reads.
type CatalogReaderFS struct {
	Client     *firestore.Client
	Collection string
	Timeout    time.Duration
}

func NewCatalogReaderFS(client *firestore.Client) *CatalogReaderFS {
	return &CatalogReaderFS{Client: client, Collection: defaultProductsCollection, Timeout: defaultTimeout}
}

func (r *CatalogReaderFS) GetByIDs(ctx context.Context, ids []string) (map[string]catalogdom.Product, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("catalog_reader_fs: firestore client is nil")
	}

	name := strings.TrimSpace(r.Collection)
	if name == "" {
		name = defaultProductsCollection
	}
	col := r.Client.Collection(name)

	seen := map[string]struct{}{}
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || strings.Contains(id, "/") {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, col.Doc(id))
	}

	out := make(map[string]catalogdom.Product, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snaps, err := r.Client.GetAll(ctx, refs)
	if err != nil {
		return nil, wrapErr("catalog get", err)
	}

	docs := make(map[string]map[string]any, len(snaps))
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		docs[snap.Ref.ID] = snap.Data()
	}
	return decodeProducts(out, docs)
}

// decodeProducts fails the whole read on a malformed entry. Only an absent
// document means the product is gone; a bad one must not purge cart lines.
func decodeProducts(out map[string]catalogdom.Product, docs map[string]map[string]any) (map[string]catalogdom.Product, error) {
	for id, raw := range docs {
		p, err := productFromData(id, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cartdom.ErrStorageUnavailable, err)
		}
		out[p.ID] = p
	}
	return out, nil
}

func productFromData(id string, raw map[string]any) (catalogdom.Product, error) {
	p := catalogdom.Product{
		ID:    id,
		Name:  strings.TrimSpace(asString(raw["name"])),
		Stock: asInt(raw["stock"]),
	}

	price, err := asDecimal(raw["price"])
	if err != nil {
		return catalogdom.Product{}, fmt.Errorf("catalog_reader_fs: product %s: %w", id, err)
	}
	p.Price = price

	if err := p.Validate(); err != nil {
		return catalogdom.Product{}, err
	}
	return p, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case int64:
		return decimal.NewFromInt(t), nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case nil:
		return decimal.Zero, errors.New("price is missing")
	default:
		return decimal.Zero, fmt.Errorf("unsupported price type %T", v)
	}
}
