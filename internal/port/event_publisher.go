package port

import (
	"context"

	"storecore/internal/core/domain"
)

// EventPublisher is the downstream accounting hook. Publishing is
// best-effort: order processing never fails on a publish error.
type EventPublisher interface {
	OrderPlaced(ctx context.Context, order domain.Order) error
	OrderCancelled(ctx context.Context, orderID string) error
}
