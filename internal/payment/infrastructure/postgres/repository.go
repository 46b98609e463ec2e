package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopyar/checkout-service/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// ValidateAttempt admits a verification attempt for (orderID, authority).
// A single conditioned upsert both records the pending attempt and rejects
// replay: the conflict branch refuses to touch a consumed row, so zero
// rows affected means the authority was already used.
func (r *Repository) ValidateAttempt(ctx context.Context, orderID, authority string, amountRials int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO payment_attempts (order_id, authority, status, amount_rials)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, authority) DO UPDATE
			SET status=$3, amount_rials=$4, updated_at=now()
			WHERE payment_attempts.status NOT IN ('success', 'used')
	`, orderID, authority, domain.AttemptPending, amountRials)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkAttempt records the terminal status of a verification attempt.
func (r *Repository) MarkAttempt(ctx context.Context, orderID, authority string, status domain.AttemptStatus) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payment_attempts SET status=$3, updated_at=now()
		WHERE order_id=$1 AND authority=$2
	`, orderID, authority, status)
	return err
}

// Attempt returns the ledger row for (orderID, authority), if any.
func (r *Repository) Attempt(ctx context.Context, orderID, authority string) (domain.Attempt, bool, error) {
	var a domain.Attempt
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, authority, status, amount_rials, created_at, updated_at
		FROM payment_attempts WHERE order_id=$1 AND authority=$2
	`, orderID, authority).Scan(&a.OrderID, &a.Authority, &a.Status, &a.AmountRials, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, err
	}
	return a, true, nil
}
