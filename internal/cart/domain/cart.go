package domain

import "time"

type Cart struct {
	ID            string
	UserID        string
	Items         []Item
	SubtotalRials int64
	UpdatedAt     time.Time
}

// Item snapshots price at add-time; validation compares it against the
// live catalog before checkout.
type Item struct {
	VariantID  string
	Quantity   int
	PriceRials int64
}

// Subtotal recomputes the cart subtotal from its lines.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, it := range c.Items {
		total += int64(it.Quantity) * it.PriceRials
	}
	return total
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type IssueCode string

const (
	IssueVariantRemoved  IssueCode = "variant_removed"
	IssueOutOfStock      IssueCode = "out_of_stock"
	IssueQuantityClamped IssueCode = "quantity_clamped"
	IssuePriceChanged    IssueCode = "price_changed"
)

// Issue is one validation finding for a cart line. Errors block checkout;
// warnings are fixable by AutoFix.
type Issue struct {
	VariantID string    `json:"variant_id"`
	Severity  Severity  `json:"severity"`
	Code      IssueCode `json:"code"`
	// Available carries live stock for quantity issues.
	Available int `json:"available,omitempty"`
	// PriceRials carries the live price for price-drift issues.
	PriceRials int64 `json:"price_rials,omitempty"`
}

// Blocking reports whether any issue has error severity.
func Blocking(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
