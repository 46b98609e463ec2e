package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	orderdomain "github.com/shopyar/checkout-service/internal/order/domain"
	"github.com/shopyar/checkout-service/internal/payment/domain"
	"github.com/shopyar/checkout-service/pkg/paylock"
	"github.com/shopyar/checkout-service/pkg/tracing"
)

// Callback status values delivered by the gateway.
const (
	CallbackOK  = "OK"
	CallbackNOK = "NOK"
)

type Service struct {
	log     *slog.Logger
	locker  paylock.Locker
	ledger  AttemptLedger
	orders  OrderStore
	gateway Gateway
}

func NewService(log *slog.Logger, locker paylock.Locker, ledger AttemptLedger, orders OrderStore, gateway Gateway) *Service {
	return &Service{log: log, locker: locker, ledger: ledger, orders: orders, gateway: gateway}
}

// Approve finalizes an order from a gateway callback. The per-order lock
// keeps concurrent deliveries from duplicating verify calls; the attempt
// ledger rejects sequential replay of a consumed authority; the paid
// transition itself is a single transaction, so the order reaches paid and
// inventory is decremented at most once even without the lock.
func (s *Service) Approve(ctx context.Context, orderID, authority, callbackStatus string) (domain.Approval, error) {
	if callbackStatus != CallbackOK {
		return domain.Approval{}, s.cancel(ctx, orderID, authority)
	}

	acquired, err := s.locker.Acquire(ctx, orderID, authority)
	if err != nil {
		return domain.Approval{}, fmt.Errorf("acquire payment lock: %w", err)
	}
	if !acquired {
		return domain.Approval{}, domain.ErrVerificationInProgress
	}
	defer func() {
		// Release must not be skipped by ctx cancellation; an expired
		// lock would otherwise block retries for the full TTL.
		if err := s.locker.Release(context.WithoutCancel(ctx), orderID); err != nil {
			s.log.Warn("payment lock release failed", "order_id", orderID, "err", err)
		}
	}()

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Approval{}, err
	}

	ok, err := s.ledger.ValidateAttempt(ctx, orderID, authority, order.TotalRials)
	if err != nil {
		return domain.Approval{}, fmt.Errorf("validate payment attempt: %w", err)
	}
	if !ok {
		return domain.Approval{}, domain.ErrReplayRejected
	}

	if order.PaymentStatus == orderdomain.PaymentPaid {
		s.markAttempt(ctx, orderID, authority, domain.AttemptUsed)
		return domain.Approval{OrderID: orderID, AlreadyPaid: true}, nil
	}

	receipt, err := s.gateway.Verify(ctx, order.TotalRials, authority)
	if err != nil {
		s.markAttempt(ctx, orderID, authority, domain.AttemptFailed)
		return domain.Approval{}, fmt.Errorf("gateway verify: %w", err)
	}
	if receipt.AlreadyVerified {
		s.log.Info("authority verified in an earlier delivery", "order_id", orderID)
	}

	payload, _ := json.Marshal(orderdomain.OrderPaid{
		OrderID:     orderID,
		UserID:      order.UserID,
		AmountRials: order.TotalRials,
		RefID:       receipt.RefID,
	})
	err = s.orders.MarkPaid(ctx, orderID, order.TotalRials, receipt.RefID, authority, payload, tracing.Traceparent(ctx))
	switch {
	case errors.Is(err, orderdomain.ErrAlreadyPaid):
		s.markAttempt(ctx, orderID, authority, domain.AttemptUsed)
		return domain.Approval{OrderID: orderID, RefID: receipt.RefID, AlreadyPaid: true}, nil
	case err != nil:
		s.markAttempt(ctx, orderID, authority, domain.AttemptFailed)
		return domain.Approval{}, err
	}

	s.markAttempt(ctx, orderID, authority, domain.AttemptSuccess)
	s.log.Info("order paid", "order_id", orderID, "ref_id", receipt.RefID)
	return domain.Approval{OrderID: orderID, RefID: receipt.RefID}, nil
}

func (s *Service) cancel(ctx context.Context, orderID, authority string) error {
	payload, _ := json.Marshal(domain.PaymentFailed{
		OrderID: orderID,
		Reason:  "canceled by user or gateway",
	})
	if err := s.orders.MarkPaymentFailed(ctx, orderID, payload, tracing.Traceparent(ctx)); err != nil {
		return err
	}
	if authority != "" {
		s.markAttempt(ctx, orderID, authority, domain.AttemptFailed)
	}
	s.log.Info("payment canceled", "order_id", orderID)
	return domain.ErrPaymentCanceled
}

// markAttempt is best effort; the ledger row not reaching its terminal
// status only costs an extra verify on a later replay.
func (s *Service) markAttempt(ctx context.Context, orderID, authority string, status domain.AttemptStatus) {
	if err := s.ledger.MarkAttempt(ctx, orderID, authority, status); err != nil {
		s.log.Warn("mark payment attempt failed", "order_id", orderID, "status", status, "err", err)
	}
}
