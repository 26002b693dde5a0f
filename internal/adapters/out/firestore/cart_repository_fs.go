// internal/adapters/out/firestore/cart_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	cartdom "petshop/internal/domain/cart"
)

const (
	defaultCartsCollection = "carts"
	defaultTimeout         = 5 * time.Second
)

// CartRepositoryFS implements cart.Repository using Firestore.
//
// Collection design:
//   - collection: carts
//   - docId: owner key ("user:<uid>" / "guest:<sessionId>"), so one cart per owner
//   - fields: id, userId | sessionId, items[], createdAt, updatedAt, expiresAt, version
//
// TTL:
//   - Configure Firestore TTL on "expiresAt". Only guest carts carry it.
//
// Every read-modify-write runs in RunTransaction. Firestore may re-run the
// callback on contention; callbacks always re-derive from the snapshot they get.
type CartRepositoryFS struct {
	Client     *firestore.Client
	Collection string
	Timeout    time.Duration
}

func NewCartRepositoryFS(client *firestore.Client) *CartRepositoryFS {
	return &CartRepositoryFS{
		Client:     client,
		Collection: defaultCartsCollection,
		Timeout:    defaultTimeout,
	}
}

func (r *CartRepositoryFS) col() *firestore.CollectionRef {
	name := strings.TrimSpace(r.Collection)
	if name == "" {
		name = defaultCartsCollection
	}
	return r.Client.Collection(name)
}

func (r *CartRepositoryFS) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := r.Timeout
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

func (r *CartRepositoryFS) check() error {
	if r == nil || r.Client == nil {
		return errors.New("cart_repository_fs: firestore client is nil")
	}
	return nil
}

// GetByOwner returns (nil, nil) if not found (nil policy).
func (r *CartRepositoryFS) GetByOwner(ctx context.Context, owner cartdom.Owner) (*cartdom.Cart, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	snap, err := r.col().Doc(owner.Key()).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, wrapErr("get", err)
	}
	return cartFromSnapshot(snap)
}

func (r *CartRepositoryFS) Mutate(ctx context.Context, owner cartdom.Owner, fn cartdom.MutateFunc) (*cartdom.Cart, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("cart_repository_fs: mutate fn is nil")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ref := r.col().Doc(owner.Key())

	var out *cartdom.Cart
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = nil

		current, err := txGetCart(tx, ref)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		if next.Owner().Key() != owner.Key() {
			return errors.New("cart_repository_fs: mutate changed cart owner")
		}

		if next.Changed() {
			if err := txSetCart(tx, ref, next); err != nil {
				return err
			}
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, wrapErr("mutate", err)
	}

	// the transaction committed; writes are now durable
	if out != nil && out.Changed() {
		out.Version++
		out.MarkClean()
	}
	return out, nil
}

func (r *CartRepositoryFS) Merge(ctx context.Context, userID, sessionID string, fn cartdom.MergeFunc) (*cartdom.Cart, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(userID)
	sid := strings.TrimSpace(sessionID)
	if uid == "" || sid == "" {
		return nil, cartdom.ErrNoOwner
	}
	if fn == nil {
		return nil, errors.New("cart_repository_fs: merge fn is nil")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	userRef := r.col().Doc(cartdom.UserOwner(uid).Key())
	guestRef := r.col().Doc(cartdom.GuestOwner(sid).Key())

	var out *cartdom.Cart
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = nil

		// all reads before any write
		guest, err := txGetCart(tx, guestRef)
		if err != nil {
			return err
		}
		user, err := txGetCart(tx, userRef)
		if err != nil {
			return err
		}

		next, err := fn(guest, user)
		if err != nil {
			return err
		}
		if next != nil && next.Owner().Key() != userRef.ID {
			return errors.New("cart_repository_fs: merge result must be owned by the user")
		}

		if next != nil && next.Changed() {
			if err := txSetCart(tx, userRef, next); err != nil {
				return err
			}
		}
		if guest != nil {
			if err := tx.Delete(guestRef); err != nil {
				return err
			}
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, wrapErr("merge", err)
	}

	if out != nil && out.Changed() {
		out.Version++
		out.MarkClean()
	}
	return out, nil
}

func (r *CartRepositoryFS) DeleteByOwner(ctx context.Context, owner cartdom.Owner) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := owner.Validate(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	// Delete on a missing doc succeeds.
	_, err := r.col().Doc(owner.Key()).Delete(ctx)
	return wrapErr("delete", err)
}

// SweepExpired deletes guest carts whose expiresAt <= now.
// Each delete re-checks expiry in a transaction so a cart refreshed meanwhile survives.
// With a Firestore TTL policy on expiresAt this is only a backstop.
func (r *CartRepositoryFS) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}

	it := r.col().Where("expiresAt", "<=", now).Documents(ctx)
	defer it.Stop()

	n := 0
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return n, wrapErr("sweep", err)
		}

		deleted, err := r.deleteIfExpired(ctx, snap.Ref, now)
		if err != nil {
			return n, err
		}
		if deleted {
			n++
		}
	}
	return n, nil
}

func (r *CartRepositoryFS) deleteIfExpired(ctx context.Context, ref *firestore.DocumentRef, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	deleted := false
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = false
		c, err := txGetCart(tx, ref)
		if err != nil || c == nil || !c.Expired(now) {
			return err
		}
		deleted = true
		return tx.Delete(ref)
	})
	if err != nil {
		return false, wrapErr("sweep", err)
	}
	return deleted, nil
}

// -----------------------------------------
// transaction helpers
// -----------------------------------------

func txGetCart(tx *firestore.Transaction, ref *firestore.DocumentRef) (*cartdom.Cart, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return cartFromSnapshot(snap)
}

func txSetCart(tx *firestore.Transaction, ref *firestore.DocumentRef, c *cartdom.Cart) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("cart_repository_fs: cart id is empty")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	doc := cartDocFromDomain(c)
	doc.Version = c.Version + 1
	return tx.Set(ref, doc)
}

// -----------------------------------------
// Firestore DTO
// -----------------------------------------

type cartDoc struct {
	ID        string        `firestore:"id"`
	UserID    string        `firestore:"userId,omitempty"`
	SessionID string        `firestore:"sessionId,omitempty"`
	Items     []cartItemDoc `firestore:"items"`

	CreatedAt time.Time  `firestore:"createdAt"`
	UpdatedAt time.Time  `firestore:"updatedAt"`
	ExpiresAt *time.Time `firestore:"expiresAt"`

	Version int64 `firestore:"version"`
}

type cartItemDoc struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"quantity"`
}

func cartFromSnapshot(snap *firestore.DocumentSnapshot) (*cartdom.Cart, error) {
	if snap == nil || !snap.Exists() {
		return nil, nil
	}

	var doc cartDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}

	c := doc.toDomain()
	// docId is the source of truth for the owner
	if owner, err := cartdom.ParseOwnerKey(snap.Ref.ID); err == nil {
		switch owner.Kind {
		case cartdom.OwnerUser:
			c.UserID, c.SessionID = owner.ID, ""
		case cartdom.OwnerGuest:
			c.UserID, c.SessionID = "", owner.ID
		}
	}
	if c.ID == "" {
		c.ID = snap.Ref.ID
	}
	c.MarkClean()
	return c, nil
}

func cartDocFromDomain(c *cartdom.Cart) cartDoc {
	items := make([]cartItemDoc, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemDoc{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	doc := cartDoc{
		ID:        c.ID,
		UserID:    c.UserID,
		SessionID: c.SessionID,
		Items:     items,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
		Version:   c.Version,
	}
	if !c.ExpiresAt.IsZero() {
		t := c.ExpiresAt.UTC()
		doc.ExpiresAt = &t
	}
	return doc
}

// toDomain drops non-positive quantities and folds duplicate product ids,
// keeping the first position.
func (d cartDoc) toDomain() *cartdom.Cart {
	items := make([]cartdom.Item, 0, len(d.Items))
	index := map[string]int{}
	for _, it := range d.Items {
		pid := strings.TrimSpace(it.ProductID)
		if pid == "" || it.Quantity <= 0 {
			continue
		}
		if i, ok := index[pid]; ok {
			items[i].Quantity += it.Quantity
			continue
		}
		index[pid] = len(items)
		items = append(items, cartdom.Item{ProductID: pid, Quantity: it.Quantity})
	}

	c := &cartdom.Cart{
		ID:        strings.TrimSpace(d.ID),
		UserID:    strings.TrimSpace(d.UserID),
		SessionID: strings.TrimSpace(d.SessionID),
		Items:     items,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Version:   d.Version,
	}
	if d.ExpiresAt != nil {
		c.ExpiresAt = *d.ExpiresAt
	}
	return c
}
