package port

import (
	"context"
	"time"

	"storecore/internal/core/domain"
)

// LedgerRepository is the authoritative record store. Every mutating method
// is a single conditional write or a single transaction, so callers never
// rely on read-then-write sequences for correctness.
type LedgerRepository interface {
	// GetProduct returns nil when the product does not exist.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// DecrementStock applies stock -= quantity guarded by stock >= quantity.
	// Returns false when the guard fails; domain.ErrProductNotFound when
	// the product is missing.
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	// IncrementStock restores stock (for rollback on failure)
	IncrementStock(ctx context.Context, productID string, quantity int) error

	// DecrementStockAll decrements every item in one transaction.
	// Any shortfall rolls the whole transaction back and returns an error
	// wrapping domain.ErrInsufficientStock (or domain.ErrProductNotFound).
	DecrementStockAll(ctx context.Context, items []domain.OrderItem) error

	// SetStockVersioned writes newStock conditioned on the current version
	// and appends the audit row in the same transaction. Returns false on
	// version conflict.
	SetStockVersioned(ctx context.Context, productID string, newStock, version int, rec domain.StockHistory) (bool, error)

	ListStockHistory(ctx context.Context, productID string) ([]domain.StockHistory, error)

	// CreateReservation inserts the claim only if no active, unexpired claim
	// exists for the product. Returns false when one does.
	CreateReservation(ctx context.Context, r domain.Reservation) (bool, error)

	// ActiveReservations returns active claims for the product, newest first.
	ActiveReservations(ctx context.Context, productID string) ([]domain.Reservation, error)

	// TransitionReservation moves a claim from one status to another,
	// conditioned on the current status. Returns false when the claim was
	// not in the expected status.
	TransitionReservation(ctx context.Context, reservationID string, from, to domain.ReservationStatus) (bool, error)

	// ExpireOverdue flips every active claim past its deadline to expired
	// and returns how many were flipped.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)

	// CreateOrder persists the order and its items in one transaction.
	CreateOrder(ctx context.Context, order domain.Order) error

	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// CancelOrderAndRestock marks the order cancelled and re-increments
	// stock for every line item in one transaction, guarded so it applies
	// at most once per order. Returns false when the restock had already
	// been applied; domain.ErrOrderNotFound when the order is missing.
	CancelOrderAndRestock(ctx context.Context, orderID string) (bool, error)
}
