package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	cartdom "petshop/internal/domain/cart"
)

// IsUniqueViolation reports a duplicate key error (SQLSTATE 23505). On carts it
// means a second row for one owner, which a retry cannot fix.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isTransient reports failures a client may retry: lost connections, timeouts,
// serialization conflicts and server shutdown/overload.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57": // connection, insufficient resources, operator intervention
			return true
		}
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return fmt.Errorf("postgres %s: owner already has a cart: %w", op, err)
	}
	if isTransient(err) {
		return fmt.Errorf("%w: postgres %s: %v", cartdom.ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}
