// Package shared holds sentinel errors recognized across layers. Callers
// match them with errors.Is after the usual %w wrapping.
package shared

import "errors"

var (
	// ErrNotReady is returned when the replica store or queue is used
	// before initialization completes. Not retried; callers must await
	// readiness.
	ErrNotReady = errors.New("store not ready")

	// ErrNotFound marks an absent entity, as opposed to an empty result.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation the caller can recover
	// from, e.g. a tag name or link pair that already exists.
	ErrConflict = errors.New("already exists")

	// ErrValidation marks input rejected before it reaches storage.
	ErrValidation = errors.New("validation error")

	// auth-specific errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// ErrNeedsConnection rejects promotion of a card with no incident
	// links.
	ErrNeedsConnection = errors.New("card needs at least one connection before promotion")

	// ErrAlreadyPermanent rejects promotion of a permanent card.
	ErrAlreadyPermanent = errors.New("card is already permanent")
)
