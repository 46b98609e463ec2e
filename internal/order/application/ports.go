package application

import (
	"context"
	"time"

	cartdomain "github.com/shopyar/checkout-service/internal/cart/domain"
	"github.com/shopyar/checkout-service/internal/order/domain"
)

type OrderRepository interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	// CreateFromCart persists the order with its item snapshots and
	// deletes the source cart in one transaction.
	CreateFromCart(ctx context.Context, o domain.Order, cartID string) error
	SetAuthority(ctx context.Context, id, authority string) error
	CancelStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type CartChecker interface {
	Validate(ctx context.Context, userID string) (cartdomain.Cart, []cartdomain.Issue, error)
}

type PaymentRequester interface {
	// Request opens a payment at the gateway, returning the authority
	// token and the redirect URL.
	Request(ctx context.Context, amountRials int64, callbackURL, description, mobile string) (string, string, error)
}
