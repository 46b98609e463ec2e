package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	invdomain "github.com/shopyar/checkout-service/internal/inventory/domain"
	invpg "github.com/shopyar/checkout-service/internal/inventory/infrastructure/postgres"
	"github.com/shopyar/checkout-service/internal/order/domain"
	"github.com/shopyar/checkout-service/pkg/money"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, status, payment_status, COALESCE(authority,''),
		       subtotal_rials, shipping_rials, total_rials, paid_at, created_at, updated_at
		FROM orders WHERE id=$1
	`, id).Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.Authority,
		&o.SubtotalRials, &o.ShippingRials, &o.TotalRials, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT variant_id, quantity, price_rials, total_rials FROM order_items WHERE order_id=$1
	`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.VariantID, &it.Quantity, &it.PriceRials, &it.TotalRials); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// CreateFromCart persists a new pending order with its item snapshots and
// deletes the source cart, all in one transaction.
func (r *Repository) CreateFromCart(ctx context.Context, o domain.Order, cartID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, payment_status, subtotal_rials,
		                    shipping_rials, total_rials, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, o.ID, o.UserID, o.Status, o.PaymentStatus, o.SubtotalRials,
		o.ShippingRials, o.TotalRials, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, variant_id, quantity, price_rials, total_rials)
			VALUES ($1,$2,$3,$4,$5)
		`, o.ID, it.VariantID, it.Quantity, it.PriceRials, it.TotalRials)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if cartID != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id=$1`, cartID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SetAuthority records the gateway token issued for the order's payment.
func (r *Repository) SetAuthority(ctx context.Context, id, authority string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders SET authority=$2, updated_at=now() WHERE id=$1
	`, id, authority)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// MarkPaid runs the paid transition as one transaction: re-check payment
// status under a row lock, verify the confirmed amount against the stored
// total, check and decrement stock for every item, write the receipt and
// the OrderPaid outbox event. Any error rolls back everything; this
// transaction, not the advisory lock, is what makes the transition
// at-most-once.
func (r *Repository) MarkPaid(ctx context.Context, orderID string, confirmedRials int64, refID int64, authority string, eventPayload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var paymentStatus domain.PaymentStatus
	var total int64
	err = tx.QueryRow(ctx, `
		SELECT payment_status, total_rials FROM orders WHERE id=$1 FOR UPDATE
	`, orderID).Scan(&paymentStatus, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return err
	}

	// Re-check under the row lock: the gateway may call back twice even
	// when the advisory lock held (expiry, retries).
	if paymentStatus == domain.PaymentPaid {
		return domain.ErrAlreadyPaid
	}
	if !money.Same(total, confirmedRials) {
		return domain.ErrAmountMismatch
	}

	items, err := r.itemsForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.VariantID)
	}
	stock, err := invpg.StockForUpdate(ctx, tx, ids)
	if err != nil {
		return err
	}
	for _, it := range items {
		available, ok := stock[it.VariantID]
		if !ok || available < it.Quantity {
			return invdomain.ErrInsufficientStock
		}
	}

	// Conditioned decrement is a second guard behind the loop check above;
	// the condition, not the loop, is load-bearing.
	for _, it := range items {
		ok, err := invpg.DecrementStock(ctx, tx, it.VariantID, it.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return invdomain.ErrInsufficientStock
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET payment_status=$2, status=$3, paid_at=now(), updated_at=now() WHERE id=$1
	`, orderID, domain.PaymentPaid, domain.StatusPlaced)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payment_receipts (order_id, authority, ref_id, amount_rials)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id) DO UPDATE SET authority=$2, ref_id=$3, amount_rials=$4
	`, orderID, authority, refID, confirmedRials)
	if err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, orderID, "OrderPaid", eventPayload, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkPaymentFailed records a failed or canceled payment. A paid order is
// never demoted; the update is conditioned on the pending status.
func (r *Repository) MarkPaymentFailed(ctx context.Context, orderID string, eventPayload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET payment_status=$2, updated_at=now()
		WHERE id=$1 AND payment_status=$3
	`, orderID, domain.PaymentFailed, domain.PaymentPending)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Already paid or already failed; nothing to record.
		return tx.Commit(ctx)
	}

	if err := insertOutbox(ctx, tx, orderID, "PaymentFailed", eventPayload, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CancelStale closes abandoned pending orders older than the given age.
// Stock is only decremented at payment, so there is nothing to release.
func (r *Repository) CancelStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders SET status=$1, updated_at=now()
		WHERE payment_status=$2 AND status=$3 AND created_at < now() - make_interval(secs => $4)
	`, domain.StatusCanceled, domain.PaymentPending, domain.StatusPending, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *Repository) itemsForUpdate(ctx context.Context, tx pgx.Tx, orderID string) ([]domain.Item, error) {
	rows, err := tx.Query(ctx, `
		SELECT variant_id, quantity FROM order_items WHERE order_id=$1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.VariantID, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func insertOutbox(ctx context.Context, tx pgx.Tx, orderID, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('order', $1, $2, $3, $4, 'pending')
	`, orderID, eventType, payload, traceparent)
	return err
}
