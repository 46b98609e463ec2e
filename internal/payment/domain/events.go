package domain

// PaymentFailed is published through the outbox when a callback reports a
// canceled or failed payment.
type PaymentFailed struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
