package application

import (
	"context"
	"log/slog"

	"github.com/shopyar/checkout-service/internal/cart/domain"
	invdomain "github.com/shopyar/checkout-service/internal/inventory/domain"
)

type Service struct {
	log      *slog.Logger
	carts    CartRepository
	variants VariantStore
}

func NewService(log *slog.Logger, carts CartRepository, variants VariantStore) *Service {
	return &Service{log: log, carts: carts, variants: variants}
}

// Validate re-reads every cart line against the live catalog and reports
// issues without mutating anything.
func (s *Service) Validate(ctx context.Context, userID string) (domain.Cart, []domain.Issue, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, nil, err
	}
	if len(cart.Items) == 0 {
		return cart, nil, nil
	}

	live, err := s.liveVariants(ctx, cart)
	if err != nil {
		return domain.Cart{}, nil, err
	}

	var issues []domain.Issue
	for _, item := range cart.Items {
		v, ok := live[item.VariantID]
		switch {
		case !ok || v.Deleted:
			issues = append(issues, domain.Issue{
				VariantID: item.VariantID,
				Severity:  domain.SeverityError,
				Code:      domain.IssueVariantRemoved,
			})
			continue
		case v.Quantity == 0:
			issues = append(issues, domain.Issue{
				VariantID: item.VariantID,
				Severity:  domain.SeverityError,
				Code:      domain.IssueOutOfStock,
			})
			continue
		case v.Quantity < item.Quantity:
			issues = append(issues, domain.Issue{
				VariantID: item.VariantID,
				Severity:  domain.SeverityWarning,
				Code:      domain.IssueQuantityClamped,
				Available: v.Quantity,
			})
		}
		if price := v.SalePriceRials(); price != item.PriceRials {
			issues = append(issues, domain.Issue{
				VariantID:  item.VariantID,
				Severity:   domain.SeverityWarning,
				Code:       domain.IssuePriceChanged,
				PriceRials: price,
			})
		}
	}
	return cart, issues, nil
}

// AutoFix drops dead lines, clamps over-requested quantities, refreshes
// prices and recomputes the subtotal, all persisted in one transaction.
func (s *Service) AutoFix(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if len(cart.Items) == 0 {
		return cart, nil
	}

	live, err := s.liveVariants(ctx, cart)
	if err != nil {
		return domain.Cart{}, err
	}

	fixed := cart
	fixed.Items = nil
	var removed []string
	for _, item := range cart.Items {
		v, ok := live[item.VariantID]
		if !ok || v.Deleted || v.Quantity == 0 {
			removed = append(removed, item.VariantID)
			continue
		}
		if v.Quantity < item.Quantity {
			item.Quantity = v.Quantity
		}
		item.PriceRials = v.SalePriceRials()
		fixed.Items = append(fixed.Items, item)
	}
	fixed.SubtotalRials = fixed.Subtotal()

	if err := s.carts.ApplyFixes(ctx, fixed, removed); err != nil {
		return domain.Cart{}, err
	}
	if len(removed) > 0 {
		s.log.Info("cart lines removed during fix", "user_id", userID, "removed", len(removed))
	}
	return fixed, nil
}

func (s *Service) liveVariants(ctx context.Context, cart domain.Cart) (map[string]invdomain.Variant, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.VariantID)
	}
	return s.variants.Variants(ctx, ids)
}
