package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// AcquireHold atomically claims the product for holderID; returns true
	// when the hold is free or already owned by the same holder.
	AcquireHold(ctx context.Context, productID, holderID string, ttl time.Duration) (bool, error)

	// ReleaseHold drops the hold only if holderID still owns it.
	ReleaseHold(ctx context.Context, productID, holderID string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
