package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrNotOwner         = errors.New("reservation held by another shopper")

	// ErrAdjustmentConflict is returned when a manual stock adjustment keeps
	// losing the version race after bounded retries.
	ErrAdjustmentConflict = errors.New("concurrent stock adjustment")
)

// AlreadyClaimedError reports that another shopper holds the active claim
// on the product. HolderName is surfaced so the caller can show who.
type AlreadyClaimedError struct {
	HolderName string
	ExpiresAt  time.Time
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("already claimed by %s", e.HolderName)
}
