// Package memory holds in-process adapters used for local runs and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	cartdom "petshop/internal/domain/cart"
)

// CartRepositoryMem implements cart.Repository in memory.
// Each owner key has its own mutex; Merge takes both keys in sorted order.
type CartRepositoryMem struct {
	mu    sync.Mutex
	carts map[string]*cartdom.Cart
	locks map[string]*sync.Mutex
}

func NewCartRepositoryMem() *CartRepositoryMem {
	return &CartRepositoryMem{
		carts: map[string]*cartdom.Cart{},
		locks: map[string]*sync.Mutex{},
	}
}

func (r *CartRepositoryMem) GetByOwner(ctx context.Context, owner cartdom.Owner) (*cartdom.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := r.lock(owner.Key())
	defer unlock()

	return r.load(owner.Key()), nil
}

func (r *CartRepositoryMem) Mutate(ctx context.Context, owner cartdom.Owner, fn cartdom.MutateFunc) (*cartdom.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("cart_repository_mem: mutate fn is nil")
	}

	key := owner.Key()
	unlock := r.lock(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next, err := fn(r.load(key))
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}
	if next.Owner().Key() != key {
		return nil, errors.New("cart_repository_mem: mutate changed cart owner")
	}

	if err := r.store(next); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *CartRepositoryMem) Merge(ctx context.Context, userID, sessionID string, fn cartdom.MergeFunc) (*cartdom.Cart, error) {
	userKey := cartdom.UserOwner(userID).Key()
	guestKey := cartdom.GuestOwner(sessionID).Key()
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
		return nil, cartdom.ErrNoOwner
	}
	if fn == nil {
		return nil, errors.New("cart_repository_mem: merge fn is nil")
	}

	keys := []string{userKey, guestKey}
	sort.Strings(keys)
	for _, k := range keys {
		unlock := r.lock(k)
		defer unlock()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	guest := r.load(guestKey)
	user := r.load(userKey)

	out, err := fn(guest, user)
	if err != nil {
		return nil, err
	}
	if out != nil && out.Owner().Key() != userKey {
		return nil, errors.New("cart_repository_mem: merge result must be owned by the user")
	}

	if out != nil {
		if err := r.store(out); err != nil {
			return nil, err
		}
	}
	if guest != nil {
		r.mu.Lock()
		delete(r.carts, guestKey)
		r.mu.Unlock()
	}
	return out, nil
}

func (r *CartRepositoryMem) DeleteByOwner(ctx context.Context, owner cartdom.Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	unlock := r.lock(owner.Key())
	defer unlock()

	r.mu.Lock()
	delete(r.carts, owner.Key())
	r.mu.Unlock()
	return nil
}

func (r *CartRepositoryMem) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	keys := make([]string, 0, len(r.carts))
	for k := range r.carts {
		if strings.HasPrefix(k, string(cartdom.OwnerGuest)+":") {
			keys = append(keys, k)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		unlock := r.lock(k)
		r.mu.Lock()
		if c, ok := r.carts[k]; ok && c.Expired(now) {
			delete(r.carts, k)
			n++
		}
		r.mu.Unlock()
		unlock()
	}
	return n, nil
}

// Len returns the number of stored carts.
func (r *CartRepositoryMem) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

// lock acquires the per-key mutex. Key mutexes are never removed, which is
// fine for the process lifetimes this adapter is used for.
func (r *CartRepositoryMem) lock(key string) func() {
	r.mu.Lock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (r *CartRepositoryMem) load(key string) *cartdom.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[key]
	if !ok {
		return nil
	}
	cp := c.Clone()
	cp.MarkClean()
	return cp
}

func (r *CartRepositoryMem) store(c *cartdom.Cart) error {
	if !c.Changed() {
		return nil
	}
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("cart_repository_mem: cart id is empty")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	c.Version++
	c.MarkClean()

	r.mu.Lock()
	r.carts[c.Owner().Key()] = c.Clone()
	r.mu.Unlock()
	return nil
}
