package domain

import "time"

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   string
	LineTotal   string
}

type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	TotalAmount     string
	Status          OrderStatus
	ShippingAddress string
	PaymentMethod   string
	Restocked       bool // compensating restock already applied
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
