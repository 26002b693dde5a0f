package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	cartdom "petshop/internal/domain/cart"
)

const defaultTimeout = 5 * time.Second

// CartRepositoryPG implements cart.Repository on PostgreSQL.
//
//   - table carts, one row per cart; partial unique indexes on user_id and session_id
//   - items are a JSONB array in insertion order
//   - an owner is serialized with pg_advisory_xact_lock(hashtext(ownerKey)), which
//     also covers the first insert when no row exists yet to SELECT ... FOR UPDATE
type CartRepositoryPG struct {
	DB      *sqlx.DB
	Timeout time.Duration
}

func NewCartRepositoryPG(db *sqlx.DB) *CartRepositoryPG {
	return &CartRepositoryPG{DB: db, Timeout: defaultTimeout}
}

type cartRow struct {
	ID        string         `db:"id"`
	UserID    sql.NullString `db:"user_id"`
	SessionID sql.NullString `db:"session_id"`
	Items     types.JSONText `db:"items"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	ExpiresAt sql.NullTime   `db:"expires_at"`
	Version   int64          `db:"version"`
}

const cartColumns = `id::text AS id, user_id, session_id, items, created_at, updated_at, expires_at, version`

func (r *CartRepositoryPG) GetByOwner(ctx context.Context, owner cartdom.Owner) (*cartdom.Cart, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.selectCart(ctx, r.DB, owner, false)
}

func (r *CartRepositoryPG) Mutate(ctx context.Context, owner cartdom.Owner, fn cartdom.MutateFunc) (*cartdom.Cart, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("cart_repository_pg: mutate fn is nil")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var out *cartdom.Cart
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockOwners(ctx, tx, owner.Key()); err != nil {
			return err
		}

		current, err := r.selectCart(ctx, tx, owner, true)
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
			return errors.New("cart_repository_pg: mutate changed cart owner")
		}

		if err := upsertCart(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	markWritten(out)
	return out, nil
}

func (r *CartRepositoryPG) Merge(ctx context.Context, userID, sessionID string, fn cartdom.MergeFunc) (*cartdom.Cart, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(userID)
	sid := strings.TrimSpace(sessionID)
	if uid == "" || sid == "" {
		return nil, cartdom.ErrNoOwner
	}
	if fn == nil {
		return nil, errors.New("cart_repository_pg: merge fn is nil")
	}

	userOwner := cartdom.UserOwner(uid)
	guestOwner := cartdom.GuestOwner(sid)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var out *cartdom.Cart
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockOwners(ctx, tx, guestOwner.Key(), userOwner.Key()); err != nil {
			return err
		}

		guest, err := r.selectCart(ctx, tx, guestOwner, true)
		if err != nil {
			return err
		}
		user, err := r.selectCart(ctx, tx, userOwner, true)
		if err != nil {
			return err
		}

		next, err := fn(guest, user)
		if err != nil {
			return err
		}
		if next != nil && next.Owner().Key() != userOwner.Key() {
			return errors.New("cart_repository_pg: merge result must be owned by the user")
		}

		// the guest row goes first so a re-owned row never collides with itself
		if guest != nil && (next == nil || next.ID != guest.ID) {
			if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, guest.ID); err != nil {
				return wrapErr("merge delete guest", err)
			}
		}
		if next != nil {
			if err := upsertCart(ctx, tx, next); err != nil {
				return err
			}
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	markWritten(out)
	return out, nil
}

func (r *CartRepositoryPG) DeleteByOwner(ctx context.Context, owner cartdom.Owner) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := owner.Validate(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	col, val := ownerColumn(owner)
	_, err := r.DB.ExecContext(ctx, `DELETE FROM carts WHERE `+col+` = $1`, val)
	return wrapErr("delete", err)
}

// SweepExpired relies on row locks: a cart being mutated is re-checked after
// the mutation commits, so a refreshed cart is kept.
func (r *CartRepositoryPG) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM carts WHERE session_id IS NOT NULL AND expires_at IS NOT NULL AND expires_at <= $1`,
		now.UTC(),
	)
	if err != nil {
		return 0, wrapErr("sweep", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("sweep", err)
	}
	return int(n), nil
}

// ========================================
// helpers
// ========================================

func (r *CartRepositoryPG) check() error {
	if r == nil || r.DB == nil {
		return errors.New("cart_repository_pg: db is nil")
	}
	return nil
}

func (r *CartRepositoryPG) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := r.Timeout
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

func (r *CartRepositoryPG) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("commit", err)
	}
	return nil
}

// lockOwners takes transaction-scoped advisory locks in a fixed order.
func lockOwners(ctx context.Context, tx *sqlx.Tx, keys ...string) error {
	sorted := append([]string(nil), keys...)
	if len(sorted) == 2 && sorted[0] > sorted[1] {
		sorted[0], sorted[1] = sorted[1], sorted[0]
	}
	for _, k := range sorted {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k); err != nil {
			return wrapErr("lock", err)
		}
	}
	return nil
}

func ownerColumn(owner cartdom.Owner) (string, string) {
	if owner.IsUser() {
		return "user_id", owner.ID
	}
	return "session_id", owner.ID
}

func (r *CartRepositoryPG) selectCart(ctx context.Context, q sqlx.QueryerContext, owner cartdom.Owner, forUpdate bool) (*cartdom.Cart, error) {
	col, val := ownerColumn(owner)
	query := `SELECT ` + cartColumns + ` FROM carts WHERE ` + col + ` = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row cartRow
	if err := sqlx.GetContext(ctx, q, &row, query, val); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("select", err)
	}
	return row.toDomain()
}

func upsertCart(ctx context.Context, tx *sqlx.Tx, c *cartdom.Cart) error {
	if !c.Changed() {
		return nil
	}
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("cart_repository_pg: cart id is empty")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	row, err := cartRowFromDomain(c)
	if err != nil {
		return err
	}
	row.Version = c.Version + 1

	_, err = tx.NamedExecContext(ctx, `
INSERT INTO carts (id, user_id, session_id, items, created_at, updated_at, expires_at, version)
VALUES (:id, :user_id, :session_id, :items, :created_at, :updated_at, :expires_at, :version)
ON CONFLICT (id) DO UPDATE SET
  user_id    = EXCLUDED.user_id,
  session_id = EXCLUDED.session_id,
  items      = EXCLUDED.items,
  updated_at = EXCLUDED.updated_at,
  expires_at = EXCLUDED.expires_at,
  version    = EXCLUDED.version`, row)
	return wrapErr("upsert", err)
}

// markWritten syncs the in-memory cart with the committed row.
func markWritten(c *cartdom.Cart) {
	if c != nil && c.Changed() {
		c.Version++
		c.MarkClean()
	}
}

func cartRowFromDomain(c *cartdom.Cart) (cartRow, error) {
	items := c.Items
	if items == nil {
		items = []cartdom.Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return cartRow{}, err
	}

	row := cartRow{
		ID:        c.ID,
		UserID:    sql.NullString{String: c.UserID, Valid: c.UserID != ""},
		SessionID: sql.NullString{String: c.SessionID, Valid: c.SessionID != ""},
		Items:     types.JSONText(raw),
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
		Version:   c.Version,
	}
	if !c.ExpiresAt.IsZero() {
		row.ExpiresAt = sql.NullTime{Time: c.ExpiresAt.UTC(), Valid: true}
	}
	return row, nil
}

func (row cartRow) toDomain() (*cartdom.Cart, error) {
	var items []cartdom.Item
	if len(row.Items) > 0 {
		if err := row.Items.Unmarshal(&items); err != nil {
			return nil, err
		}
	}

	c := &cartdom.Cart{
		ID:        row.ID,
		UserID:    row.UserID.String,
		SessionID: row.SessionID.String,
		Items:     make([]cartdom.Item, 0, len(items)),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Version:   row.Version,
	}
	for _, it := range items {
		if it.Quantity > 0 && strings.TrimSpace(it.ProductID) != "" {
			c.Items = append(c.Items, it)
		}
	}
	if row.ExpiresAt.Valid {
		c.ExpiresAt = row.ExpiresAt.Time
	}
	c.MarkClean()
	return c, nil
}
