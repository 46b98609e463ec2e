package domain

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/shopyar/checkout-service/pkg/money"
)

// ErrInsufficientStock aborts a paid transition when any line of the order
// exceeds live stock. The whole transaction rolls back; no partial
// decrement survives.
var ErrInsufficientStock = errors.New("insufficient stock")

// Variant is the sellable unit. Quantity is live stock and never goes
// negative; every decrement is conditioned on availability.
type Variant struct {
	ID          string
	ProductID   string
	PriceRials  int64
	DiscountPct decimal.Decimal
	Quantity    int
	Deleted     bool
}

// SalePriceRials is the live price with the current discount applied.
func (v Variant) SalePriceRials() int64 {
	return money.Discounted(v.PriceRials, v.DiscountPct)
}
