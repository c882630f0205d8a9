package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storecore/internal/core/domain"
	"storecore/internal/port"
)

// casRetries bounds the read-modify-write loop on manual adjustments.
const casRetries = 3

// InventoryService owns every stock mutation. Checkout decrements go through
// conditional single-statement writes; manual adjustments use a versioned
// compare-and-swap with a bounded retry.
type InventoryService struct {
	repo port.LedgerRepository
	log  zerolog.Logger
	now  func() time.Time
}

func NewInventoryService(repo port.LedgerRepository, log zerolog.Logger) *InventoryService {
	return &InventoryService{repo: repo, log: log, now: time.Now}
}

// DecrementOne takes quantity units off the product's stock, rejecting the
// whole request when fewer are available. Never clamps, never oversells.
func (s *InventoryService) DecrementOne(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	ok, err := s.repo.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
	}
	return nil
}

// DecrementMany decrements every item or none of them.
func (s *InventoryService) DecrementMany(ctx context.Context, items []domain.OrderItem) error {
	for _, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive for product %s, got %d", it.ProductID, it.Quantity)
		}
	}
	return s.repo.DecrementStockAll(ctx, items)
}

// Increase adds quantity units and records the audit row.
func (s *InventoryService) Increase(ctx context.Context, productID string, quantity int, reason, actorID string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	return s.adjust(ctx, productID, quantity, reason, actorID, func(cur int) int { return cur + quantity })
}

// Decrease removes quantity units, clamping at zero, and records the audit row.
func (s *InventoryService) Decrease(ctx context.Context, productID string, quantity int, reason, actorID string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	return s.adjust(ctx, productID, quantity, reason, actorID, func(cur int) int {
		next := cur - quantity
		if next < 0 {
			next = 0
		}
		return next
	})
}

// SetAbsolute overwrites the stock count. No clamping: negative targets are
// allowed so an operator can flag oversold state explicitly.
func (s *InventoryService) SetAbsolute(ctx context.Context, productID string, quantity int, reason, actorID string) error {
	return s.adjust(ctx, productID, quantity, reason, actorID, func(int) int { return quantity })
}

func (s *InventoryService) adjust(ctx context.Context, productID string, quantity int, reason, actorID string, next func(int) int) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrProductNotFound
		}
		newStock := next(p.Stock)
		rec := domain.StockHistory{
			ProductID:     productID,
			PreviousStock: p.Stock,
			NewStock:      newStock,
			Quantity:      quantity,
			Reason:        reason,
			CreatedBy:     actorID,
			CreatedAt:     s.now(),
		}
		ok, err := s.repo.SetStockVersioned(ctx, productID, newStock, p.Version, rec)
		if err != nil {
			return err
		}
		if ok {
			s.log.Info().
				Str("product_id", productID).
				Int("previous_stock", p.Stock).
				Int("new_stock", newStock).
				Str("reason", reason).
				Str("actor_id", actorID).
				Msg("stock adjusted")
			return nil
		}
	}
	return fmt.Errorf("product %s: %w", productID, ErrAdjustmentConflict)
}

// Status reports the current stock count and its classification.
func (s *InventoryService) Status(ctx context.Context, productID string) (int, domain.StockStatus, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, "", err
	}
	if p == nil {
		return 0, "", domain.ErrProductNotFound
	}
	return p.Stock, domain.StatusOf(p.Stock), nil
}

// History returns the audit trail for a product, newest first.
func (s *InventoryService) History(ctx context.Context, productID string) ([]domain.StockHistory, error) {
	return s.repo.ListStockHistory(ctx, productID)
}
