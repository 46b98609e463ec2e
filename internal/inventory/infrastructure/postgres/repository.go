package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopyar/checkout-service/internal/inventory/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Variants reads live variant rows, including deleted ones so the cart
// validator can distinguish removed from missing.
func (r *Repository) Variants(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, price_rials, discount_pct, quantity, deleted
		FROM product_variants
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := make(map[string]domain.Variant, len(ids))
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.PriceRials, &v.DiscountPct, &v.Quantity, &v.Deleted); err != nil {
			return nil, err
		}
		variants[v.ID] = v
	}
	return variants, rows.Err()
}

// StockForUpdate reads live stock for the given variants with row locks
// held until the surrounding transaction ends.
func StockForUpdate(ctx context.Context, tx pgx.Tx, ids []string) (map[string]int, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, quantity FROM product_variants
		WHERE id = ANY($1) AND NOT deleted
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stock := make(map[string]int, len(ids))
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		stock[id] = qty
	}
	return stock, rows.Err()
}

// DecrementStock decrements a variant's stock and bumps its sales counter,
// conditioned on availability. Returns false when stock would go negative;
// the caller must roll back the whole transaction.
func DecrementStock(ctx context.Context, tx pgx.Tx, variantID string, qty int) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE product_variants
		SET quantity = quantity - $2, sales = sales + $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
	`, variantID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
