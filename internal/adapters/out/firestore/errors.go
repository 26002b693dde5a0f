package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartdom "petshop/internal/domain/cart"
)

// transientCodes are gRPC codes a client may retry the whole request on.
var transientCodes = map[codes.Code]bool{
	codes.Unavailable:       true,
	codes.DeadlineExceeded:  true,
	codes.Aborted:           true,
	codes.ResourceExhausted: true,
	codes.Canceled:          true,
}

// wrapErr adds the operation name and maps transient Firestore failures to
// cart.ErrStorageUnavailable. Errors returned by callbacks pass through as-is.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: firestore %s: %v", cartdom.ErrStorageUnavailable, op, err)
	}
	if s, ok := status.FromError(err); ok && transientCodes[s.Code()] {
		return fmt.Errorf("%w: firestore %s: %v", cartdom.ErrStorageUnavailable, op, err)
	}
	return err
}

func isNotFound(err error) bool {
	return err != nil && status.Code(err) == codes.NotFound
}
