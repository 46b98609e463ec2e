package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopyar/checkout-service/internal/cart/domain"
	invdomain "github.com/shopyar/checkout-service/internal/inventory/domain"
)

type fakeCarts struct {
	cart     domain.Cart
	getErr   error
	fixErr   error
	fixed    *domain.Cart
	removed  []string
	fixCalls int
}

func (f *fakeCarts) Get(context.Context, string) (domain.Cart, error) {
	return f.cart, f.getErr
}

func (f *fakeCarts) ApplyFixes(_ context.Context, cart domain.Cart, removed []string) error {
	f.fixCalls++
	if f.fixErr != nil {
		return f.fixErr
	}
	f.fixed = &cart
	f.removed = removed
	return nil
}

type fakeVariants struct {
	variants map[string]invdomain.Variant
	err      error
}

func (f *fakeVariants) Variants(context.Context, []string) (map[string]invdomain.Variant, error) {
	return f.variants, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCart() domain.Cart {
	return domain.Cart{
		ID:     "c1",
		UserID: "u1",
		Items: []domain.Item{
			{VariantID: "ok", Quantity: 2, PriceRials: 100_000},
			{VariantID: "gone", Quantity: 1, PriceRials: 50_000},
			{VariantID: "empty", Quantity: 1, PriceRials: 30_000},
			{VariantID: "short", Quantity: 5, PriceRials: 20_000},
			{VariantID: "repriced", Quantity: 1, PriceRials: 80_000},
		},
	}
}

func testVariants() map[string]invdomain.Variant {
	return map[string]invdomain.Variant{
		"ok":       {ID: "ok", PriceRials: 100_000, Quantity: 10},
		"empty":    {ID: "empty", PriceRials: 30_000, Quantity: 0},
		"short":    {ID: "short", PriceRials: 20_000, Quantity: 3},
		"repriced": {ID: "repriced", PriceRials: 100_000, DiscountPct: decimal.NewFromInt(10), Quantity: 4},
	}
}

func TestValidateReportsIssuesWithoutMutation(t *testing.T) {
	carts := &fakeCarts{cart: testCart()}
	svc := NewService(testLogger(), carts, &fakeVariants{variants: testVariants()})

	cart, issues, err := svc.Validate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 5, "validation never mutates the cart")
	assert.Zero(t, carts.fixCalls)

	byVariant := map[string]domain.Issue{}
	for _, i := range issues {
		byVariant[i.VariantID] = i
	}
	require.Len(t, issues, 4)

	assert.Equal(t, domain.SeverityError, byVariant["gone"].Severity)
	assert.Equal(t, domain.IssueVariantRemoved, byVariant["gone"].Code)

	assert.Equal(t, domain.SeverityError, byVariant["empty"].Severity)
	assert.Equal(t, domain.IssueOutOfStock, byVariant["empty"].Code)

	assert.Equal(t, domain.SeverityWarning, byVariant["short"].Severity)
	assert.Equal(t, domain.IssueQuantityClamped, byVariant["short"].Code)
	assert.Equal(t, 3, byVariant["short"].Available)

	// 10% off 100,000 = 90,000 vs snapshot 80,000.
	assert.Equal(t, domain.SeverityWarning, byVariant["repriced"].Severity)
	assert.Equal(t, domain.IssuePriceChanged, byVariant["repriced"].Code)
	assert.Equal(t, int64(90_000), byVariant["repriced"].PriceRials)

	assert.True(t, domain.Blocking(issues))
}

func TestValidateEmptyCart(t *testing.T) {
	svc := NewService(testLogger(), &fakeCarts{cart: domain.Cart{ID: "c1"}}, &fakeVariants{})
	_, issues, err := svc.Validate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestAutoFixClampsAndRemoves(t *testing.T) {
	carts := &fakeCarts{cart: testCart()}
	svc := NewService(testLogger(), carts, &fakeVariants{variants: testVariants()})

	fixed, err := svc.AutoFix(context.Background(), "u1")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"gone", "empty"}, carts.removed)
	require.Len(t, fixed.Items, 3)

	byVariant := map[string]domain.Item{}
	for _, it := range fixed.Items {
		byVariant[it.VariantID] = it
	}
	assert.Equal(t, 2, byVariant["ok"].Quantity)
	assert.Equal(t, 3, byVariant["short"].Quantity, "over-requested quantity clamped to stock")
	assert.Equal(t, int64(90_000), byVariant["repriced"].PriceRials, "price refreshed to live discount")

	want := int64(2*100_000 + 3*20_000 + 1*90_000)
	assert.Equal(t, want, fixed.SubtotalRials)
	require.NotNil(t, carts.fixed)
	assert.Equal(t, want, carts.fixed.SubtotalRials)
}

func TestAutoFixPersistFailureSurfaces(t *testing.T) {
	carts := &fakeCarts{cart: testCart(), fixErr: errors.New("db down")}
	svc := NewService(testLogger(), carts, &fakeVariants{variants: testVariants()})

	_, err := svc.AutoFix(context.Background(), "u1")
	assert.Error(t, err)
}
