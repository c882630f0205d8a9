package domain

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")

	// ErrStoreUnavailable wraps transport failures of the backing store.
	// Callers propagate it without retrying.
	ErrStoreUnavailable = errors.New("store unavailable")
)
