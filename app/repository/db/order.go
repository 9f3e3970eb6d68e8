package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"flashsale-service/app/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type orderRepository struct {
	conn *sql.DB
}

func NewOrderRepository(db *sql.DB) domain.OrderRepository {
	return &orderRepository{db}
}

const orderColumns = `id, user_id, activity_id, product_name, sell_price, quantity, total_amount,
	status, payment_deadline, paid_at, cancelled_at, cancel_reason, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }, order *domain.Order) error {
	return row.Scan(&order.ID, &order.UserID, &order.ActivityID,
		&order.ProductName, &order.SellPrice, &order.Quantity, &order.TotalAmount,
		&order.Status, &order.PaymentDeadline, &order.PaidAt,
		&order.CancelledAt, &order.CancelReason,
		&order.CreatedAt, &order.UpdatedAt)
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order, tx *sql.Tx) error {
	query := `INSERT INTO orders
	(user_id, activity_id, product_name, sell_price, quantity, total_amount, status, payment_deadline)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		order.UserID, order.ActivityID, order.ProductName,
		order.SellPrice, order.Quantity, order.TotalAmount,
		order.Status, order.PaymentDeadline).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			slog.WarnContext(ctx, "[orderRepository] Create", "uniqueViolation", err)
			return domain.ErrAlreadyReserved
		}
		slog.ErrorContext(ctx, "[orderRepository] Create", "queryRowContext", err)
		return err
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var order domain.Order
	err := scanOrder(r.conn.QueryRowContext(ctx, query, id), &order)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] GetByID", "queryRowContext", err)
		if err == sql.ErrNoRows {
			return order, domain.ErrNotFound
		}
		return order, err
	}

	return order, nil
}

// GetByUserAndActivity returns the live order for the pair. Cancelled
// orders are excluded; the pair may reserve again after a cancel.
func (r *orderRepository) GetByUserAndActivity(ctx context.Context, userID, activityID int64) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	WHERE user_id = $1 AND activity_id = $2 AND status <> 'cancelled'`

	var order domain.Order
	err := scanOrder(r.conn.QueryRowContext(ctx, query, userID, activityID), &order)
	if err != nil {
		if err == sql.ErrNoRows {
			return order, domain.ErrNotFound
		}
		slog.ErrorContext(ctx, "[orderRepository] GetByUserAndActivity", "queryRowContext", err)
		return order, err
	}

	return order, nil
}

func (r *orderRepository) LockForUpdate(ctx context.Context, id int64, tx *sql.Tx) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	var order domain.Order
	err := scanOrder(tx.QueryRowContext(ctx, query, id), &order)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] LockForUpdate", "queryRowContext", err)
		if err == sql.ErrNoRows {
			return order, domain.ErrNotFound
		}
		return order, err
	}

	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.conn.QueryContext(ctx, query, userID)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] ListByUser", "queryContext", err)
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			slog.ErrorContext(ctx, "[orderRepository] ListByUser", "scan", err)
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[orderRepository] ListByUser", "rowError", err)
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int64) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	WHERE status = $1 AND payment_deadline < $2
	ORDER BY payment_deadline ASC
	LIMIT $3`

	rows, err := r.conn.QueryContext(ctx, query, domain.OrderStatusPendingPayment, cutoff, limit)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] ListExpiredPending", "queryContext", err)
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			slog.ErrorContext(ctx, "[orderRepository] ListExpiredPending", "scan", err)
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[orderRepository] ListExpiredPending", "rowError", err)
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time, tx *sql.Tx) error {
	query := `UPDATE orders
	SET status = $1, paid_at = $2, payment_deadline = NULL, updated_at = NOW()
	WHERE id = $3`

	_, err := tx.ExecContext(ctx, query, domain.OrderStatusPaid, paidAt, id)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] MarkPaid", "execContext", err)
		return err
	}

	return nil
}

func (r *orderRepository) MarkCancelled(ctx context.Context, id int64, cancelledAt time.Time, reason string, tx *sql.Tx) error {
	query := `UPDATE orders
	SET status = $1, cancelled_at = $2, cancel_reason = $3, updated_at = NOW()
	WHERE id = $4`

	_, err := tx.ExecContext(ctx, query, domain.OrderStatusCancelled, cancelledAt, reason, id)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] MarkCancelled", "execContext", err)
		return err
	}

	return nil
}

func (r *orderRepository) SumQuantityByActivityAndStatus(ctx context.Context, activityID int64, status domain.OrderStatus) (int64, error) {
	query := `SELECT COALESCE(SUM(quantity), 0) FROM orders WHERE activity_id = $1 AND status = $2`

	var total int64
	err := r.conn.QueryRowContext(ctx, query, activityID, status).Scan(&total)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] SumQuantityByActivityAndStatus", "queryRowContext", err)
		return 0, err
	}

	return total, nil
}

func (r *orderRepository) GetStats(ctx context.Context, now time.Time, expiringWindow time.Duration) (domain.OrderStats, error) {
	query := `SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE payment_deadline < $2),
	COUNT(*) FILTER (WHERE payment_deadline >= $2 AND payment_deadline < $3)
	FROM orders WHERE status = $1`

	var stats domain.OrderStats
	err := r.conn.QueryRowContext(ctx, query,
		domain.OrderStatusPendingPayment, now, now.Add(expiringWindow)).
		Scan(&stats.PendingTotal, &stats.PendingExpired, &stats.PendingExpiringSoon)
	if err != nil {
		slog.ErrorContext(ctx, "[orderRepository] GetStats", "queryRowContext", err)
		return stats, err
	}

	return stats, nil
}
