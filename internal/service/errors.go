package service

import "yaca/internal/apperr"

// storageFailure wraps a backend error so it surfaces as a generic Internal failure.
func storageFailure(op string, err error) error {
	return apperr.Wrap(apperr.Internal, op, err)
}
