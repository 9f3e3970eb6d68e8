package domain

import (
	"context"
	"database/sql"
	"time"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// Order is one accepted reservation. ProductName and SellPrice are a
// snapshot taken at creation time and never follow later activity edits.
type Order struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	ActivityID      int64       `json:"activity_id"`
	ProductName     string      `json:"product_name"`
	SellPrice       int64       `json:"sell_price"` // cents
	Quantity        int64       `json:"quantity"`
	TotalAmount     int64       `json:"total_amount"` // cents
	Status          OrderStatus `json:"status"`
	PaymentDeadline *time.Time  `json:"payment_deadline"`
	PaidAt          *time.Time  `json:"paid_at,omitempty"`
	CancelledAt     *time.Time  `json:"cancelled_at,omitempty"`
	CancelReason    string      `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (o *Order) CanPay(now time.Time) bool {
	return o.Status == OrderStatusPendingPayment &&
		o.PaymentDeadline != nil &&
		now.Before(*o.PaymentDeadline)
}

func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPendingPayment
}

func (o *Order) IsExpired(now time.Time) bool {
	return o.Status == OrderStatusPendingPayment &&
		o.PaymentDeadline != nil &&
		now.After(*o.PaymentDeadline)
}

// RemainingSeconds returns the seconds left to pay, zero when expired
// or not payable.
func (o *Order) RemainingSeconds(now time.Time) int64 {
	if o.Status != OrderStatusPendingPayment || o.PaymentDeadline == nil {
		return 0
	}
	remaining := int64(o.PaymentDeadline.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

type ReserveRequest struct {
	ActivityID int64 `json:"activity_id" validate:"required"`
	Quantity   int64 `json:"quantity" validate:"required,min=1"`
}

type ReservationResult struct {
	OrderID         int64     `json:"order_id"`
	TotalAmount     int64     `json:"total_amount"`
	PaymentDeadline time.Time `json:"payment_deadline"`
}

// CancelOutcome reports what a deadline-driven cancellation did with an
// order. Skips are not errors; the order was already handled elsewhere.
type CancelOutcome string

const (
	CancelOutcomeCancelled     CancelOutcome = "cancelled"
	CancelOutcomeSkippedStatus CancelOutcome = "skipped_status"
	CancelOutcomeNotExpired    CancelOutcome = "not_expired"
)

// OrderStats is the timeout-monitoring snapshot over pending orders.
type OrderStats struct {
	PendingTotal        int64 `json:"pending_total"`
	PendingExpired      int64 `json:"pending_expired"`
	PendingExpiringSoon int64 `json:"pending_expiring_soon"`
}

// DeadlineScheduler arms a one-shot cancellation for an order. Firing is
// best effort at least once; the fired action re-checks order state.
type DeadlineScheduler interface {
	Schedule(orderID int64, fireAt time.Time)
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order, tx *sql.Tx) error
	GetByID(ctx context.Context, id int64) (Order, error)
	GetByUserAndActivity(ctx context.Context, userID, activityID int64) (Order, error)
	LockForUpdate(ctx context.Context, id int64, tx *sql.Tx) (Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int64) ([]Order, error)
	MarkPaid(ctx context.Context, id int64, paidAt time.Time, tx *sql.Tx) error
	MarkCancelled(ctx context.Context, id int64, cancelledAt time.Time, reason string, tx *sql.Tx) error
	SumQuantityByActivityAndStatus(ctx context.Context, activityID int64, status OrderStatus) (int64, error)
	GetStats(ctx context.Context, now time.Time, expiringWindow time.Duration) (OrderStats, error)
}

type ReservationUsecase interface {
	Reserve(ctx context.Context, userID int64, req ReserveRequest) (ReservationResult, error)
	Rollback(ctx context.Context, activityID, quantity int64, reason string) (int64, error)
}

type OrderUsecase interface {
	MarkPaid(ctx context.Context, orderID int64) error
	Cancel(ctx context.Context, orderID int64, userID *int64, reason string) error
	CancelExpired(ctx context.Context, orderID int64) (CancelOutcome, error)
	GetByID(ctx context.Context, orderID, userID int64) (Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	Stats(ctx context.Context) (OrderStats, error)
}
