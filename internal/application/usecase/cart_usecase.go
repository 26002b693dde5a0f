// internal/application/usecase/cart_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	cartdom "petshop/internal/domain/cart"
	catalogdom "petshop/internal/domain/catalog"
)

var (
	ErrCartInvalidArgument = errors.New("cart_usecase: invalid argument")
)

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MergeOutcome tells which branch of the login merge ran.
type MergeOutcome string

const (
	MergeNoGuest MergeOutcome = "no_guest"
	MergeReowned MergeOutcome = "reowned"
	MergeSummed  MergeOutcome = "summed"
)

// CartUsecase coordinates cart operations.
//
// Every mutation runs inside repo.Mutate, so concurrent requests for one owner
// are applied one at a time against the latest stored state. Catalog data is
// read inside that section and every mutation re-clamps the whole cart.
type CartUsecase struct {
	repo     cartdom.Repository
	catalog  catalogdom.Reader
	clock    Clock
	newID    func() string
	guestTTL time.Duration
}

type CartOption func(*CartUsecase)

func WithClock(c Clock) CartOption {
	return func(uc *CartUsecase) {
		if c != nil {
			uc.clock = c
		}
	}
}

func WithGuestTTL(d time.Duration) CartOption {
	return func(uc *CartUsecase) {
		if d > 0 {
			uc.guestTTL = d
		}
	}
}

func WithIDGenerator(fn func() string) CartOption {
	return func(uc *CartUsecase) {
		if fn != nil {
			uc.newID = fn
		}
	}
}

func NewCartUsecase(repo cartdom.Repository, catalog catalogdom.Reader, opts ...CartOption) *CartUsecase {
	uc := &CartUsecase{
		repo:     repo,
		catalog:  catalog,
		clock:    systemClock{},
		newID:    uuid.NewString,
		guestTTL: cartdom.DefaultGuestTTL,
	}
	for _, o := range opts {
		o(uc)
	}
	return uc
}

// NewCartUsecaseWithClock is useful for tests.
func NewCartUsecaseWithClock(repo cartdom.Repository, catalog catalogdom.Reader, clock Clock) *CartUsecase {
	return NewCartUsecase(repo, catalog, WithClock(clock))
}

// GetCart returns the owner's cart, creating an empty one on first access.
// Lines whose product disappeared are purged and the rest re-clamped.
func (uc *CartUsecase) GetCart(ctx context.Context, owner cartdom.Owner) (*cartdom.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	return uc.mutate(ctx, owner, "get", func(c *cartdom.Cart, now time.Time) error {
		_, err := uc.reconcile(ctx, c, now)
		return err
	})
}

// AddItem adds productID to the owner's cart using mode (set | increment).
// The quantity is clamped to stock; a first add with no stock is ErrOutOfStock.
func (uc *CartUsecase) AddItem(
	ctx context.Context,
	owner cartdom.Owner,
	productID string,
	qty int,
	mode cartdom.Mode,
) (*cartdom.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return nil, ErrCartInvalidArgument
	}
	if qty < 1 {
		return nil, cartdom.ErrInvalidQuantity
	}
	if mode != cartdom.ModeIncrement && mode != cartdom.ModeSet {
		return nil, cartdom.ErrInvalidMode
	}

	// existence check before touching the cart
	found, err := uc.lookup(ctx, []string{pid})
	if err != nil {
		return nil, err
	}
	if _, ok := found[pid]; !ok {
		return nil, cartdom.ErrProductNotFound
	}

	return uc.mutate(ctx, owner, "add", func(c *cartdom.Cart, now time.Time) error {
		present := c.Quantity(pid) > 0
		stock, err := uc.reconcile(ctx, c, now, pid)
		if err != nil {
			return err
		}
		if present && c.Quantity(pid) == 0 {
			// an existing line clamped to zero stock is removed, not rejected
			return nil
		}
		return c.Add(pid, qty, mode, stock, now)
	})
}

// UpdateQuantity sets the quantity of a line already in the cart.
// A missing line is a no-op; a line whose product vanished is removed.
func (uc *CartUsecase) UpdateQuantity(
	ctx context.Context,
	owner cartdom.Owner,
	productID string,
	qty int,
) (*cartdom.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return nil, ErrCartInvalidArgument
	}
	if qty < 1 {
		return nil, cartdom.ErrInvalidQuantity
	}

	return uc.mutate(ctx, owner, "update", func(c *cartdom.Cart, now time.Time) error {
		if c.Quantity(pid) == 0 {
			// stale update, nothing to change
			_, err := uc.reconcile(ctx, c, now)
			return err
		}
		stock, err := uc.reconcile(ctx, c, now, pid)
		if err != nil {
			return err
		}
		return c.SetQuantity(pid, qty, stock, now)
	})
}

// RemoveItem deletes a line. Removing an absent product is a no-op.
func (uc *CartUsecase) RemoveItem(ctx context.Context, owner cartdom.Owner, productID string) (*cartdom.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return nil, ErrCartInvalidArgument
	}

	return uc.mutate(ctx, owner, "remove", func(c *cartdom.Cart, now time.Time) error {
		if err := c.Remove(pid, now); err != nil {
			return err
		}
		_, err := uc.reconcile(ctx, c, now)
		return err
	})
}

// ClearCart empties the cart. Idempotent; used by checkout after an order is placed.
func (uc *CartUsecase) ClearCart(ctx context.Context, owner cartdom.Owner) (*cartdom.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	return uc.mutate(ctx, owner, "clear", func(c *cartdom.Cart, now time.Time) error {
		return c.Clear(now)
	})
}

// MergeOnLogin folds the guest cart of sessionID into the cart of userID.
//
//   - no guest cart: the user cart is returned (created if needed)
//   - guest cart only: it is re-owned by the user, keeping its id
//   - both: quantities are summed, clamped to stock, and the guest cart is deleted
//
// Retrying after a partial failure lands in the first case.
func (uc *CartUsecase) MergeOnLogin(ctx context.Context, userID, sessionID string) (*cartdom.Cart, error) {
	uid := strings.TrimSpace(userID)
	sid := strings.TrimSpace(sessionID)
	if uid == "" || sid == "" {
		return nil, ErrCartInvalidArgument
	}

	start := uc.clock.Now()
	var outcome MergeOutcome

	merged, err := uc.repo.Merge(ctx, uid, sid, func(guest, user *cartdom.Cart) (*cartdom.Cart, error) {
		now := uc.clock.Now()

		if guest != nil {
			guest.ResetIfExpired(now)
		}

		var out *cartdom.Cart
		switch {
		case guest == nil:
			outcome = MergeNoGuest
			out = user
			if out == nil {
				c, err := cartdom.NewCart(uc.newID(), cartdom.UserOwner(uid), now, uc.guestTTL)
				if err != nil {
					return nil, err
				}
				out = c
			}

		case user == nil:
			outcome = MergeReowned
			if err := guest.Reown(uid, now); err != nil {
				return nil, err
			}
			out = guest

		default:
			outcome = MergeSummed
			if err := user.Absorb(guest, now); err != nil {
				return nil, err
			}
			out = user
		}

		if _, err := uc.reconcile(ctx, out, now); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		log.WithFields(log.Fields{
			"user":    cartdom.UserOwner(uid).String(),
			"session": cartdom.GuestOwner(sid).String(),
		}).Warnf("[cart_usecase] merge failed err=%v", err)
		return nil, uc.wrapStorageErr(err)
	}

	log.WithFields(log.Fields{
		"user":    cartdom.UserOwner(uid).String(),
		"session": cartdom.GuestOwner(sid).String(),
		"outcome": string(outcome),
		"items":   len(merged.Items),
		"elapsed": uc.clock.Now().Sub(start).String(),
	}).Info("[cart_usecase] merge on login")

	return merged, nil
}

// SweepExpired deletes guest carts past their TTL.
func (uc *CartUsecase) SweepExpired(ctx context.Context) (int, error) {
	n, err := uc.repo.SweepExpired(ctx, uc.clock.Now())
	if err != nil {
		return n, uc.wrapStorageErr(err)
	}
	if n > 0 {
		log.WithField("deleted", n).Info("[cart_usecase] swept expired guest carts")
	}
	return n, nil
}

// ---------------------------------------------------------
// helpers
// ---------------------------------------------------------

// mutate wraps repo.Mutate: lazy creation, guest expiry and TTL refresh.
func (uc *CartUsecase) mutate(
	ctx context.Context,
	owner cartdom.Owner,
	op string,
	apply func(c *cartdom.Cart, now time.Time) error,
) (*cartdom.Cart, error) {
	out, err := uc.repo.Mutate(ctx, owner, func(current *cartdom.Cart) (*cartdom.Cart, error) {
		now := uc.clock.Now()

		c := current
		if c == nil {
			created, err := cartdom.NewCart(uc.newID(), owner, now, uc.guestTTL)
			if err != nil {
				return nil, err
			}
			c = created
		}
		c.ResetIfExpired(now)

		if err := apply(c, now); err != nil {
			return nil, err
		}
		if c.Changed() {
			c.ExtendExpiry(now, uc.guestTTL)
		}
		return c, nil
	})
	if err != nil {
		if !isDomainErr(err) {
			log.WithFields(log.Fields{"owner": owner.String(), "op": op}).
				Warnf("[cart_usecase] storage error err=%v", err)
		}
		return nil, uc.wrapStorageErr(err)
	}
	return out, nil
}

// reconcile loads stock for the cart (plus extra ids) and purges/clamps lines.
func (uc *CartUsecase) reconcile(ctx context.Context, c *cartdom.Cart, now time.Time, extra ...string) (cartdom.Stock, error) {
	ids := append(c.ProductIDs(), extra...)
	if len(ids) == 0 {
		return cartdom.Stock{}, nil
	}

	products, err := uc.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	stock := cartdom.Stock(catalogdom.StockOf(products))

	if purged := c.Reconcile(stock, now); len(purged) > 0 {
		log.WithFields(log.Fields{
			"owner":  c.Owner().String(),
			"purged": purged,
		}).Info("[cart_usecase] purged items for missing products")
	}
	return stock, nil
}

func (uc *CartUsecase) lookup(ctx context.Context, ids []string) (map[string]catalogdom.Product, error) {
	if uc.catalog == nil {
		return nil, fmt.Errorf("%w: catalog is not configured", cartdom.ErrStorageUnavailable)
	}
	products, err := uc.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, uc.wrapStorageErr(err)
	}
	return products, nil
}

// wrapStorageErr keeps domain errors as-is and marks anything else unavailable.
func (uc *CartUsecase) wrapStorageErr(err error) error {
	if err == nil || isDomainErr(err) || errors.Is(err, cartdom.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", cartdom.ErrStorageUnavailable, err)
}

func isDomainErr(err error) bool {
	return errors.Is(err, cartdom.ErrInvalidCart) ||
		errors.Is(err, cartdom.ErrInvalidQuantity) ||
		errors.Is(err, cartdom.ErrInvalidMode) ||
		errors.Is(err, cartdom.ErrProductNotFound) ||
		errors.Is(err, cartdom.ErrOutOfStock) ||
		errors.Is(err, cartdom.ErrNoOwner) ||
		errors.Is(err, ErrCartInvalidArgument)
}
