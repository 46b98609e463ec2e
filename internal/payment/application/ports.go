package application

import (
	"context"

	orderdomain "github.com/shopyar/checkout-service/internal/order/domain"
	"github.com/shopyar/checkout-service/internal/payment/domain"
)

type OrderStore interface {
	Get(ctx context.Context, id string) (orderdomain.Order, error)
	// MarkPaid runs the paid transition atomically: payment-status
	// re-check, amount integrity, inventory decrement, receipt and outbox
	// event. It returns orderdomain.ErrAlreadyPaid when another attempt
	// committed first.
	MarkPaid(ctx context.Context, orderID string, confirmedRials, refID int64, authority string, eventPayload []byte, traceparent string) error
	MarkPaymentFailed(ctx context.Context, orderID string, eventPayload []byte, traceparent string) error
}

type AttemptLedger interface {
	// ValidateAttempt admits the attempt and records it pending, or
	// returns false when the authority was already consumed.
	ValidateAttempt(ctx context.Context, orderID, authority string, amountRials int64) (bool, error)
	MarkAttempt(ctx context.Context, orderID, authority string, status domain.AttemptStatus) error
}

type Gateway interface {
	Verify(ctx context.Context, amountRials int64, authority string) (domain.Receipt, error)
}
