// internal/domain/cart/entity.go
package cart

import (
	"strings"
	"time"
)

// DefaultGuestTTL is the inactivity window after which a guest cart becomes
// eligible for deletion (Firestore TTL should be configured on expiresAt).
// User carts never expire.
const DefaultGuestTTL = 7 * 24 * time.Hour

// Mode selects how AddItem combines a quantity with an existing line.
type Mode string

const (
	// ModeIncrement adds to the existing quantity ("add to cart" button).
	ModeIncrement Mode = "increment"
	// ModeSet overwrites the existing quantity (quantity editor).
	ModeSet Mode = "set"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeIncrement:
		return ModeIncrement, nil
	case ModeSet:
		return ModeSet, nil
	default:
		return "", ErrInvalidMode
	}
}

// Stock maps productId -> currently available stock.
// A product missing from the map no longer exists in the catalog.
type Stock map[string]int

// Item is one line of a cart. Quantity is always >= 1.
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Cart is the persisted cart record.
//   - exactly one of UserID / SessionID is set
//   - Items keep insertion order; a productId appears at most once
//   - ExpiresAt is only set on guest carts and refreshed on each mutation
//   - Version is bumped by the repository on every write
type Cart struct {
	ID        string `json:"id"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	Items []Item `json:"items"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`

	Version int64 `json:"version"`

	changed bool
}

// NewCart creates an empty cart for owner.
// The result is marked changed so the first Mutate persists it.
func NewCart(id string, owner Owner, now time.Time, guestTTL time.Duration) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	c := &Cart{
		ID:        strings.TrimSpace(id),
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
		changed:   true,
	}
	switch owner.Kind {
	case OwnerUser:
		c.UserID = owner.ID
	case OwnerGuest:
		c.SessionID = owner.ID
		c.ExtendExpiry(now, guestTTL)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Owner returns the owner key of the cart.
func (c *Cart) Owner() Owner {
	if c == nil {
		return Owner{}
	}
	if c.UserID != "" {
		return UserOwner(c.UserID)
	}
	return GuestOwner(c.SessionID)
}

// Changed reports whether the cart differs from what was loaded.
func (c *Cart) Changed() bool { return c != nil && c.changed }

// MarkClean is called by repositories after a successful write or load.
func (c *Cart) MarkClean() {
	if c != nil {
		c.changed = false
	}
}

// Quantity returns the quantity of productID (0 if absent).
func (c *Cart) Quantity(productID string) int {
	if c == nil {
		return 0
	}
	if idx := findItemIndex(c.Items, strings.TrimSpace(productID)); idx >= 0 {
		return c.Items[idx].Quantity
	}
	return 0
}

// ProductIDs returns the product ids in item order.
func (c *Cart) ProductIDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.ProductID)
	}
	return out
}

func (c *Cart) TotalQuantity() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Add puts productID into the cart.
//
//   - increment: existing + qty, set: qty
//   - the result is clamped to stock
//   - first add with stock == 0 is ErrOutOfStock
//   - an existing line clamped to 0 is removed
func (c *Cart) Add(productID string, qty int, mode Mode, stock Stock, now time.Time) error {
	if c == nil {
		return ErrInvalidCart
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return ErrInvalidCart
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if mode != ModeIncrement && mode != ModeSet {
		return ErrInvalidMode
	}

	avail, ok := stock[pid]
	if !ok {
		return ErrProductNotFound
	}

	idx := findItemIndex(c.Items, pid)
	if idx < 0 {
		if avail <= 0 {
			return ErrOutOfStock
		}
		c.Items = append(c.Items, Item{ProductID: pid, Quantity: clamp(qty, avail)})
		c.touch(now)
		return c.validate()
	}

	next := qty
	if mode == ModeIncrement {
		next = c.Items[idx].Quantity + qty
	}
	c.setAt(idx, clamp(next, avail), now)
	return c.validate()
}

// SetQuantity overwrites the quantity of an existing line, clamped to stock.
// An absent line is a no-op. A line whose product is gone is removed.
func (c *Cart) SetQuantity(productID string, qty int, stock Stock, now time.Time) error {
	if c == nil {
		return ErrInvalidCart
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}

	idx := findItemIndex(c.Items, strings.TrimSpace(productID))
	if idx < 0 {
		return nil
	}

	avail, ok := stock[c.Items[idx].ProductID]
	if !ok {
		c.Items = removeIndex(c.Items, idx)
		c.touch(now)
		return c.validate()
	}

	c.setAt(idx, clamp(qty, avail), now)
	return c.validate()
}

// Remove deletes a line. Removing an absent product is a no-op.
func (c *Cart) Remove(productID string, now time.Time) error {
	if c == nil {
		return ErrInvalidCart
	}
	idx := findItemIndex(c.Items, strings.TrimSpace(productID))
	if idx < 0 {
		return nil
	}
	c.Items = removeIndex(c.Items, idx)
	c.touch(now)
	return c.validate()
}

// Clear empties the cart. Clearing an empty cart is a no-op.
func (c *Cart) Clear(now time.Time) error {
	if c == nil {
		return ErrInvalidCart
	}
	if len(c.Items) == 0 {
		return nil
	}
	c.Items = []Item{}
	c.touch(now)
	return nil
}

// Reconcile drops lines whose product is gone and clamps the rest to stock.
// It returns the purged product ids.
func (c *Cart) Reconcile(stock Stock, now time.Time) []string {
	if c == nil || len(c.Items) == 0 {
		return nil
	}

	var purged []string
	kept := c.Items[:0:0]
	dirty := false
	for _, it := range c.Items {
		avail, ok := stock[it.ProductID]
		if !ok {
			purged = append(purged, it.ProductID)
			dirty = true
			continue
		}
		q := clamp(it.Quantity, avail)
		if q < 1 {
			dirty = true
			continue
		}
		if q != it.Quantity {
			dirty = true
		}
		kept = append(kept, Item{ProductID: it.ProductID, Quantity: q})
	}

	if dirty {
		c.Items = kept
		c.touch(now)
	}
	return purged
}

// Absorb sums guest lines into c.
// Lines already in c keep their position; new ones are appended in guest order.
// Stock clamping is left to Reconcile.
func (c *Cart) Absorb(guest *Cart, now time.Time) error {
	if c == nil {
		return ErrInvalidCart
	}
	if guest == nil || len(guest.Items) == 0 {
		return nil
	}
	for _, it := range guest.Items {
		if it.Quantity < 1 {
			continue
		}
		if idx := findItemIndex(c.Items, it.ProductID); idx >= 0 {
			c.Items[idx].Quantity += it.Quantity
		} else {
			c.Items = append(c.Items, it)
		}
	}
	c.touch(now)
	return c.validate()
}

// Reown moves a guest cart to userID. The cart id and items are kept.
// User carts do not expire, so ExpiresAt is cleared.
func (c *Cart) Reown(userID string, now time.Time) error {
	if c == nil {
		return ErrInvalidCart
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrNoOwner
	}
	c.UserID = uid
	c.SessionID = ""
	c.ExpiresAt = time.Time{}
	c.touch(now)
	return c.validate()
}

// ExtendExpiry refreshes the guest TTL. No-op for user carts.
func (c *Cart) ExtendExpiry(now time.Time, ttl time.Duration) {
	if c == nil || c.UserID != "" {
		return
	}
	if ttl <= 0 {
		ttl = DefaultGuestTTL
	}
	c.ExpiresAt = now.Add(ttl)
	c.changed = true
}

// Expired reports whether a guest cart is past its TTL.
func (c *Cart) Expired(now time.Time) bool {
	if c == nil || c.UserID != "" || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// ResetIfExpired empties an expired guest cart. It reports whether it did.
func (c *Cart) ResetIfExpired(now time.Time) bool {
	if !c.Expired(now) {
		return false
	}
	c.Items = []Item{}
	c.touch(now)
	return true
}

// Clone returns a deep copy, including the changed flag.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = cloneItems(c.Items)
	return &cp
}

// Validate checks the cart invariants.
func (c *Cart) Validate() error { return c.validate() }

// ---------------------------------------------------------
// internal helpers
// ---------------------------------------------------------

func (c *Cart) setAt(idx, qty int, now time.Time) {
	if qty < 1 {
		c.Items = removeIndex(c.Items, idx)
		c.touch(now)
		return
	}
	if c.Items[idx].Quantity == qty {
		return
	}
	c.Items[idx].Quantity = qty
	c.touch(now)
}

func (c *Cart) touch(now time.Time) {
	c.UpdatedAt = now
	c.changed = true
}

func (c *Cart) validate() error {
	if c == nil {
		return ErrInvalidCart
	}
	// exactly one owner
	if (c.UserID == "") == (c.SessionID == "") {
		return ErrInvalidCart
	}

	seen := make(map[string]struct{}, len(c.Items))
	for _, it := range c.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity < 1 {
			return ErrInvalidCart
		}
		if _, dup := seen[it.ProductID]; dup {
			return ErrInvalidCart
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}

func clamp(qty, avail int) int {
	if avail < 0 {
		avail = 0
	}
	if qty > avail {
		return avail
	}
	return qty
}

func findItemIndex(items []Item, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func removeIndex(items []Item, idx int) []Item {
	if idx < 0 || idx >= len(items) {
		return items
	}
	out := make([]Item, 0, len(items)-1)
	out = append(out, items[:idx]...)
	out = append(out, items[idx+1:]...)
	return out
}

func cloneItems(items []Item) []Item {
	if len(items) == 0 {
		return []Item{}
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
