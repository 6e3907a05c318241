// Package service implements the activation key lifecycle, the admin
// authorization gate, and the read-side reports. Every operation reads the
// store directly; nothing is cached in process.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/bcnelson/activation-key-server/internal/domain"
)

// Clock returns the current time. Services store UTC timestamps.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// storeErr marks err as a persistence failure unless it already carries a
// domain meaning.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrAlreadyExists) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}
