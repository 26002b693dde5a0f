// Package resolver holds catalog.Reader decorators used by the usecases.
package resolver

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	catalogdom "petshop/internal/domain/catalog"
)

// CoalescingReader collapses concurrent lookups for the same id set into one
// call to the underlying reader. Results are not cached past the in-flight call,
// so stock is always read live.
type CoalescingReader struct {
	next  catalogdom.Reader
	group singleflight.Group
}

func NewCoalescingReader(next catalogdom.Reader) *CoalescingReader {
	return &CoalescingReader{next: next}
}

func (r *CoalescingReader) GetByIDs(ctx context.Context, ids []string) (map[string]catalogdom.Product, error) {
	norm := normalizeIDs(ids)
	if len(norm) == 0 {
		return map[string]catalogdom.Product{}, nil
	}

	key := strings.Join(norm, "\x00")
	ch := r.group.DoChan(key, func() (any, error) {
		// detached so one caller's cancellation does not fail the others
		return r.next.GetByIDs(context.WithoutCancel(ctx), norm)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.(map[string]catalogdom.Product)
		out := make(map[string]catalogdom.Product, len(shared))
		for k, v := range shared {
			out[k] = v
		}
		return out, nil
	}
}

// normalizeIDs trims, dedupes and sorts ids.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
