package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storecore/internal/core/domain"
)

// memLedger mimics the MySQL adapter's conditional-write semantics under a
// single mutex, so concurrent service calls race exactly one guard.
type memLedger struct {
	mu           sync.Mutex
	products     map[string]*domain.Product
	reservations map[string]*domain.Reservation
	orders       map[string]*domain.Order
	history      []domain.StockHistory

	adjustConflicts int   // forces SetStockVersioned misses
	createOrderErr  error // forces CreateOrder failures
}

func newMemLedger() *memLedger {
	return &memLedger{
		products:     make(map[string]*domain.Product),
		reservations: make(map[string]*domain.Reservation),
		orders:       make(map[string]*domain.Order),
	}
}

func (m *memLedger) addProduct(id, name, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = &domain.Product{ID: id, Name: name, Price: price, Stock: stock}
}

func (m *memLedger) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memLedger) reservationStatus(id string) domain.ReservationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reservations[id]; ok {
		return r.Status
	}
	return ""
}

func (m *memLedger) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memLedger) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memLedger) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return false, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	p.Version++
	return true, nil
}

func (m *memLedger) IncrementStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	p.Stock += quantity
	p.Version++
	return nil
}

func (m *memLedger) DecrementStockAll(ctx context.Context, items []domain.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		p, ok := m.products[it.ProductID]
		if !ok {
			return fmt.Errorf("product %s: %w", it.ProductID, domain.ErrProductNotFound)
		}
		if p.Stock < it.Quantity {
			return fmt.Errorf("product %s: %w", it.ProductID, domain.ErrInsufficientStock)
		}
	}
	for _, it := range items {
		m.products[it.ProductID].Stock -= it.Quantity
		m.products[it.ProductID].Version++
	}
	return nil
}

func (m *memLedger) SetStockVersioned(ctx context.Context, productID string, newStock, version int, rec domain.StockHistory) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adjustConflicts > 0 {
		m.adjustConflicts--
		return false, nil
	}
	p, ok := m.products[productID]
	if !ok || p.Version != version {
		return false, nil
	}
	p.Stock = newStock
	p.Version++
	m.history = append(m.history, rec)
	return true, nil
}

func (m *memLedger) ListStockHistory(ctx context.Context, productID string) ([]domain.StockHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StockHistory
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ProductID == productID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memLedger) CreateReservation(ctx context.Context, r domain.Reservation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reservations {
		if existing.ProductID == r.ProductID &&
			existing.Status == domain.ReservationStatusActive &&
			existing.ExpiresAt.After(r.ReservedAt) {
			return false, nil
		}
	}
	cp := r
	m.reservations[r.ID] = &cp
	return true, nil
}

func (m *memLedger) ActiveReservations(ctx context.Context, productID string) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, r := range m.reservations {
		if r.ProductID == productID && r.Status == domain.ReservationStatusActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReservedAt.Equal(out[j].ReservedAt) {
			return out[i].ReservedAt.After(out[j].ReservedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memLedger) TransitionReservation(ctx context.Context, reservationID string, from, to domain.ReservationStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[reservationID]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	return true, nil
}

func (m *memLedger) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.reservations {
		if r.Status == domain.ReservationStatusActive && !r.ExpiresAt.After(now) {
			r.Status = domain.ReservationStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *memLedger) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createOrderErr != nil {
		return m.createOrderErr
	}
	cp := order
	m.orders[order.ID] = &cp
	return nil
}

func (m *memLedger) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memLedger) CancelOrderAndRestock(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	if o.Restocked {
		return false, nil
	}
	o.Status = domain.OrderStatusCancelled
	o.Restocked = true
	for _, it := range o.Items {
		if p, ok := m.products[it.ProductID]; ok {
			p.Stock += it.Quantity
			p.Version++
		}
	}
	return true, nil
}

type holdEntry struct {
	holder  string
	expires time.Time
}

type memCache struct {
	mu         sync.Mutex
	holds      map[string]holdEntry
	idem       map[string]bool
	acquireErr error
}

func newMemCache() *memCache {
	return &memCache{
		holds: make(map[string]holdEntry),
		idem:  make(map[string]bool),
	}
}

func (c *memCache) AcquireHold(ctx context.Context, productID, holderID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acquireErr != nil {
		return false, c.acquireErr
	}
	h, ok := c.holds[productID]
	if ok && h.expires.After(time.Now()) && h.holder != holderID {
		return false, nil
	}
	c.holds[productID] = holdEntry{holder: holderID, expires: time.Now().Add(ttl)}
	return true, nil
}

func (c *memCache) ReleaseHold(ctx context.Context, productID, holderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.holds[productID]; ok && h.holder == holderID {
		delete(c.holds, productID)
	}
	return nil
}

func (c *memCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idem[key] {
		return false, nil
	}
	c.idem[key] = true
	return true, nil
}

type memPublisher struct {
	placed    chan domain.Order
	cancelled chan string
}

func newMemPublisher() *memPublisher {
	return &memPublisher{
		placed:    make(chan domain.Order, 8),
		cancelled: make(chan string, 8),
	}
}

func (p *memPublisher) OrderPlaced(ctx context.Context, order domain.Order) error {
	p.placed <- order
	return nil
}

func (p *memPublisher) OrderCancelled(ctx context.Context, orderID string) error {
	p.cancelled <- orderID
	return nil
}
