package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPlaced   Status = "placed"
	StatusCanceled Status = "canceled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrAlreadyPaid is the benign race outcome: the order reached paid in
	// another verification attempt. Callers treat it as idempotent success.
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrAmountMismatch means the stored total disagrees with the amount
	// being confirmed by the gateway beyond the accepted epsilon.
	ErrAmountMismatch = errors.New("order amount mismatch")
)

type Order struct {
	ID            string
	UserID        string
	Status        Status
	PaymentStatus PaymentStatus
	// Authority is the gateway token issued for this order's payment.
	Authority     string
	Items         []Item
	SubtotalRials int64
	ShippingRials int64
	TotalRials    int64
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is a frozen snapshot of a validated cart line. Prices here never
// track the live catalog again.
type Item struct {
	VariantID  string
	Quantity   int
	PriceRials int64
	TotalRials int64
}

func NewOrder(id, userID string, items []Item, shippingRials int64) Order {
	var subtotal int64
	for i := range items {
		items[i].TotalRials = int64(items[i].Quantity) * items[i].PriceRials
		subtotal += items[i].TotalRials
	}
	now := time.Now().UTC()
	return Order{
		ID:            id,
		UserID:        userID,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Items:         items,
		SubtotalRials: subtotal,
		ShippingRials: shippingRials,
		TotalRials:    subtotal + shippingRials,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
