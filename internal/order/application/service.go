package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cartdomain "github.com/shopyar/checkout-service/internal/cart/domain"
	"github.com/shopyar/checkout-service/internal/order/domain"
)

var ErrCartEmpty = errors.New("cart is empty")

// CartInvalidError aborts checkout when validation finds blocking issues;
// it carries them for the client to render.
type CartInvalidError struct {
	Issues []cartdomain.Issue
}

func (e *CartInvalidError) Error() string {
	return fmt.Sprintf("cart has %d blocking issues", len(e.Issues))
}

type Service struct {
	log          *slog.Logger
	repo         OrderRepository
	carts        CartChecker
	gateway      PaymentRequester
	callbackBase string
}

func NewService(log *slog.Logger, repo OrderRepository, carts CartChecker, gateway PaymentRequester, callbackBase string) *Service {
	return &Service{log: log, repo: repo, carts: carts, gateway: gateway, callbackBase: callbackBase}
}

// PlaceOrder validates the user's cart, snapshots it into a pending order,
// and opens a payment at the gateway. Error-severity issues abort;
// warning-severity corrections (clamped quantity, drifted price) are
// applied to the snapshot, so the order always freezes live validated
// prices.
func (s *Service) PlaceOrder(ctx context.Context, userID, mobile string, shippingRials int64) (domain.Order, string, error) {
	cart, issues, err := s.carts.Validate(ctx, userID)
	if err != nil {
		return domain.Order{}, "", err
	}
	if len(cart.Items) == 0 {
		return domain.Order{}, "", ErrCartEmpty
	}
	if cartdomain.Blocking(issues) {
		return domain.Order{}, "", &CartInvalidError{Issues: issues}
	}

	items := snapshotItems(cart, issues)
	o := domain.NewOrder(uuid.NewString(), userID, items, shippingRials)
	if err := s.repo.CreateFromCart(ctx, o, cart.ID); err != nil {
		return domain.Order{}, "", err
	}

	callbackURL := fmt.Sprintf("%s/api/payment/callback?orderId=%s", s.callbackBase, o.ID)
	authority, payURL, err := s.gateway.Request(ctx, o.TotalRials, callbackURL, "order "+o.ID, mobile)
	if err != nil {
		return domain.Order{}, "", fmt.Errorf("open payment: %w", err)
	}
	if err := s.repo.SetAuthority(ctx, o.ID, authority); err != nil {
		return domain.Order{}, "", err
	}
	o.Authority = authority

	s.log.Info("order placed", "order_id", o.ID, "user_id", userID, "total_rials", o.TotalRials)
	return o, payURL, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// RunSweeper cancels abandoned pending orders until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval, maxAge time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("order sweeper stopping")
			return nil
		case <-t.C:
			n, err := s.repo.CancelStale(ctx, maxAge)
			if err != nil {
				s.log.Error("stale order sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("stale orders canceled", "count", n)
			}
		}
	}
}

// snapshotItems freezes cart lines into order items, applying warning
// corrections reported by validation.
func snapshotItems(cart cartdomain.Cart, issues []cartdomain.Issue) []domain.Item {
	byVariant := map[string][]cartdomain.Issue{}
	for _, i := range issues {
		byVariant[i.VariantID] = append(byVariant[i.VariantID], i)
	}

	items := make([]domain.Item, 0, len(cart.Items))
	for _, line := range cart.Items {
		item := domain.Item{
			VariantID:  line.VariantID,
			Quantity:   line.Quantity,
			PriceRials: line.PriceRials,
		}
		for _, issue := range byVariant[line.VariantID] {
			switch issue.Code {
			case cartdomain.IssueQuantityClamped:
				item.Quantity = issue.Available
			case cartdomain.IssuePriceChanged:
				item.PriceRials = issue.PriceRials
			}
		}
		items = append(items, item)
	}
	return items
}
