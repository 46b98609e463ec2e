package application

import (
	"context"

	"github.com/shopyar/checkout-service/internal/cart/domain"
	invdomain "github.com/shopyar/checkout-service/internal/inventory/domain"
)

type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	// ApplyFixes persists a corrected cart in one transaction: removed
	// lines are deleted, remaining lines updated, subtotal rewritten.
	// Nothing partial may survive a failure.
	ApplyFixes(ctx context.Context, cart domain.Cart, removed []string) error
}

type VariantStore interface {
	Variants(ctx context.Context, ids []string) (map[string]invdomain.Variant, error)
}
