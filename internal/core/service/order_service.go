package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storecore/internal/core/domain"
	"storecore/internal/port"
)

const publishTimeout = 5 * time.Second

// CartItem is one line of the shopper's cart as the checkout collaborator
// hands it over. UnitPrice may be empty, in which case the catalog price
// at order time applies.
type CartItem struct {
	ProductID string
	Quantity  int
	UnitPrice string
}

type PlaceOrderRequest struct {
	RequestID       string
	UserID          string
	Items           []CartItem
	ShippingAddress string
	PaymentMethod   string
}

// OrderService finalizes checkouts: all line-item decrements succeed before
// the order record exists, claim completion is best-effort afterwards, and
// cancellation restores stock exactly once.
type OrderService struct {
	repo         port.LedgerRepository
	cache        port.CacheRepository
	inventory    *InventoryService
	reservations *ReservationService
	publisher    port.EventPublisher
	log          zerolog.Logger
	now          func() time.Time
}

func NewOrderService(repo port.LedgerRepository, cache port.CacheRepository, inventory *InventoryService, reservations *ReservationService, publisher port.EventPublisher, log zerolog.Logger) *OrderService {
	return &OrderService{
		repo:         repo,
		cache:        cache,
		inventory:    inventory,
		reservations: reservations,
		publisher:    publisher,
		log:          log,
		now:          time.Now,
	}
}

func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (string, error) {
	if len(req.Items) == 0 {
		return "", errors.New("order has no items")
	}

	idempotencyKey := fmt.Sprintf("checkout:%s:%s", req.UserID, req.RequestID)
	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return "", fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return "", ErrDuplicateRequest
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	var total int64
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return "", fmt.Errorf("quantity must be positive for product %s, got %d", it.ProductID, it.Quantity)
		}
		p, err := s.repo.GetProduct(ctx, it.ProductID)
		if err != nil {
			return "", err
		}
		if p == nil {
			return "", fmt.Errorf("product %s: %w", it.ProductID, domain.ErrProductNotFound)
		}
		unit := it.UnitPrice
		if unit == "" {
			unit = p.Price
		}
		cents, err := domain.ParseAmount(unit)
		if err != nil {
			return "", fmt.Errorf("product %s: %w", it.ProductID, err)
		}
		line := cents * int64(it.Quantity)
		total += line
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   domain.FormatAmount(cents),
			LineTotal:   domain.FormatAmount(line),
		})
	}

	if err := s.inventory.DecrementMany(ctx, items); err != nil {
		return "", err
	}

	now := s.now()
	order := domain.Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           items,
		TotalAmount:     domain.FormatAmount(total),
		Status:          domain.OrderStatusPlaced,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		// The decrements are already committed; put the stock back so a
		// failed order leaves no trace.
		s.rollbackDecrements(ctx, items)
		return "", err
	}

	for _, it := range items {
		done, err := s.reservations.Complete(ctx, it.ProductID, req.UserID)
		if err != nil || !done {
			// Best-effort: the order stands even when claim cleanup fails.
			s.log.Warn().Err(err).
				Str("order_id", order.ID).
				Str("product_id", it.ProductID).
				Msg("reservation completion skipped")
		}
	}

	s.publishAsync("order placed", func(ctx context.Context) error {
		return s.publisher.OrderPlaced(ctx, order)
	})

	s.log.Info().
		Str("order_id", order.ID).
		Str("user_id", req.UserID).
		Str("total_amount", order.TotalAmount).
		Int("items", len(items)).
		Msg("order placed")
	return order.ID, nil
}

// CancelOrder marks the order cancelled and returns its inventory to the
// pool. Idempotent: repeated cancellations cannot double-credit stock.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) error {
	ok, err := s.repo.CancelOrderAndRestock(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info().Str("order_id", orderID).Msg("cancel repeated, restock already applied")
		return nil
	}
	s.publishAsync("order cancelled", func(ctx context.Context) error {
		return s.publisher.OrderCancelled(ctx, orderID)
	})
	s.log.Info().Str("order_id", orderID).Msg("order cancelled, stock restored")
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

func (s *OrderService) rollbackDecrements(ctx context.Context, items []domain.OrderItem) {
	for _, it := range items {
		if err := s.repo.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.log.Error().Err(err).
				Str("product_id", it.ProductID).
				Int("quantity", it.Quantity).
				Msg("stock rollback failed")
		}
	}
}

func (s *OrderService) publishAsync(what string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Warn().Err(err).Msg("event publish failed: " + what)
		}
	}()
}
