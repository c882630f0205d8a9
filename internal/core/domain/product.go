package domain

import "time"

type Product struct {
	ID        string
	Name      string
	Price     string // decimal string, e.g. "19.99"
	Stock     int
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

type StockStatus string

const (
	StockStatusNormal       StockStatus = "normal"
	StockStatusOutOfStock   StockStatus = "out_of_stock"
	StockStatusInsufficient StockStatus = "insufficient"
)

// StatusOf classifies a raw stock count. Negative stock is reachable through
// manual adjustments, never through checkout decrements.
func StatusOf(stock int) StockStatus {
	switch {
	case stock == 0:
		return StockStatusOutOfStock
	case stock < 0:
		return StockStatusInsufficient
	default:
		return StockStatusNormal
	}
}

// StockHistory is one append-only audit row per manual stock adjustment.
type StockHistory struct {
	ID            int64
	ProductID     string
	PreviousStock int
	NewStock      int
	Quantity      int
	Reason        string
	CreatedBy     string
	CreatedAt     time.Time
}
