package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopyar/checkout-service/internal/cart/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Get returns the user's cart, or an empty cart when none exists.
func (r *Repository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	var c domain.Cart
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, subtotal_rials, updated_at FROM carts WHERE user_id=$1
	`, userID).Scan(&c.ID, &c.UserID, &c.SubtotalRials, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{UserID: userID}, nil
	}
	if err != nil {
		return domain.Cart{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT variant_id, quantity, price_rials FROM cart_items WHERE cart_id=$1
	`, c.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.VariantID, &it.Quantity, &it.PriceRials); err != nil {
			return domain.Cart{}, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (r *Repository) ApplyFixes(ctx context.Context, cart domain.Cart, removed []string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if len(removed) > 0 {
		_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND variant_id = ANY($2)`, cart.ID, removed)
		if err != nil {
			return err
		}
	}

	batch := &pgx.Batch{}
	for _, it := range cart.Items {
		batch.Queue(`
			UPDATE cart_items SET quantity=$3, price_rials=$4
			WHERE cart_id=$1 AND variant_id=$2
		`, cart.ID, it.VariantID, it.Quantity, it.PriceRials)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `UPDATE carts SET subtotal_rials=$2, updated_at=now() WHERE id=$1`,
		cart.ID, cart.SubtotalRials)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
