package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a missing or malformed field; no write happened.
	ErrValidation = errors.New("validation failed")
	// ErrPriceUnavailable is returned when no price per page is known for the job.
	ErrPriceUnavailable = errors.New("price per page is not available")
	// ErrDuplicateConfig marks a second pricing entry for the same paper size and color mode.
	ErrDuplicateConfig = errors.New("duplicate pricing configuration")
	// ErrStoreUnavailable wraps failures talking to the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotificationDispatch is non-fatal: the status change it follows is already committed.
	ErrNotificationDispatch = errors.New("notification dispatch failed")
	ErrNotFound             = errors.New("not found")
	// ErrSelectionRequired is returned when an operator owns several shops and picked none.
	ErrSelectionRequired = errors.New("shop selection required")
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrVersionConflict is returned when an event stream moved past the expected version.
	ErrVersionConflict = errors.New("concurrency exception")
)

// DuplicateConfigError names the conflicting pricing configuration.
type DuplicateConfigError struct {
	Key PricingKey
	// Stored is set when the conflict came from the database constraint
	// rather than from the submitted batch itself.
	Stored bool
}

func (e *DuplicateConfigError) Error() string {
	if e.Stored {
		return fmt.Sprintf("Pricing for %s, %s already exists", e.Key.PaperSize, e.Key.ColorMode.Label())
	}
	return fmt.Sprintf("Duplicate configuration found: %s, %s", e.Key.PaperSize, e.Key.ColorMode.Label())
}

func (e *DuplicateConfigError) Is(target error) bool {
	return target == ErrDuplicateConfig
}
