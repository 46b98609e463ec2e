package domain

// OrderPaid is published through the outbox when the paid transition
// commits.
type OrderPaid struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	AmountRials int64  `json:"amount_rials"`
	RefID       int64  `json:"ref_id"`
}
