package usecase

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"flashsale-service/app/domain"
	"flashsale-service/config"
)

const expiringSoonWindow = 5 * time.Minute

const timeoutCancelReason = "payment timeout"

type orderUsecase struct {
	orderRepo    domain.OrderRepository
	activityRepo domain.ActivityRepository
	publisher    domain.BrokerPublisher
	cfg          *config.Config
	now          func() time.Time
}

func NewOrderUsecase(
	orderRepo domain.OrderRepository,
	activityRepo domain.ActivityRepository,
	publisher domain.BrokerPublisher,
	cfg *config.Config) domain.OrderUsecase {
	return &orderUsecase{
		orderRepo:    orderRepo,
		activityRepo: activityRepo,
		publisher:    publisher,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (u *orderUsecase) MarkPaid(ctx context.Context, orderID int64) error {
	err := u.activityRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		order, err := u.orderRepo.LockForUpdate(ctx, orderID, tx)
		if err != nil {
			return err
		}

		if !order.CanPay(u.now()) {
			return domain.ErrInvalidStateTransition
		}

		return u.orderRepo.MarkPaid(ctx, orderID, u.now(), tx)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidStateTransition) && !errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "[orderUsecase] MarkPaid", "transaction", err)
		}
		return err
	}

	slog.InfoContext(ctx, "[orderUsecase] MarkPaid", "orderID", orderID)
	return nil
}

// Cancel moves a pending order to cancelled and restores its stock in
// the same transaction, holding both the order and the activity row
// locks. The restore is clamped at TotalStock. A non-nil userID makes
// it an owner-scoped call; orders of other users read as not found.
func (u *orderUsecase) Cancel(ctx context.Context, orderID int64, userID *int64, reason string) error {
	var cancelled domain.Order
	err := u.activityRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		order, err := u.orderRepo.LockForUpdate(ctx, orderID, tx)
		if err != nil {
			return err
		}

		if userID != nil && order.UserID != *userID {
			return domain.ErrNotFound
		}

		if !order.CanCancel() {
			return domain.ErrInvalidStateTransition
		}

		if err := u.orderRepo.MarkCancelled(ctx, orderID, u.now(), reason, tx); err != nil {
			return err
		}

		activity, err := u.activityRepo.LockForUpdate(ctx, order.ActivityID, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[orderUsecase] Cancel", "lockActivity", err)
			return err
		}

		newStock := activity.AvailableStock + order.Quantity
		if newStock > activity.TotalStock {
			newStock = activity.TotalStock
		}
		if err := u.activityRepo.UpdateAvailableStock(ctx, activity.ID, newStock, tx); err != nil {
			return err
		}

		cancelled = order
		return nil
	})
	if err != nil {
		return err
	}

	if err := u.publisher.PublishOrderCancelled(ctx, domain.OrderEvent{
		OrderID:     cancelled.ID,
		UserID:      cancelled.UserID,
		ActivityID:  cancelled.ActivityID,
		Quantity:    cancelled.Quantity,
		TotalAmount: cancelled.TotalAmount,
		Status:      domain.OrderStatusCancelled,
		Timestamp:   u.now(),
	}); err != nil {
		slog.WarnContext(ctx, "[orderUsecase] Cancel", "publishOrderCancelled", err)
	}

	slog.InfoContext(ctx, "[orderUsecase] Cancel", "orderID", orderID, "reason", reason)
	return nil
}

// CancelExpired is the deadline-fired path. State and expiry are
// re-checked under the lock at fire time, so duplicate or early fires
// are reported as skips, never as errors.
func (u *orderUsecase) CancelExpired(ctx context.Context, orderID int64) (domain.CancelOutcome, error) {
	order, err := u.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}

	if order.Status != domain.OrderStatusPendingPayment {
		slog.InfoContext(ctx, "[orderUsecase] CancelExpired", "skippedStatus", order.Status, "orderID", orderID)
		return domain.CancelOutcomeSkippedStatus, nil
	}
	if !order.IsExpired(u.now()) {
		slog.InfoContext(ctx, "[orderUsecase] CancelExpired", "notExpired", orderID)
		return domain.CancelOutcomeNotExpired, nil
	}

	if err := u.Cancel(ctx, orderID, nil, timeoutCancelReason); err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			// lost a race against a payment or another cancel
			return domain.CancelOutcomeSkippedStatus, nil
		}
		return "", err
	}

	return domain.CancelOutcomeCancelled, nil
}

func (u *orderUsecase) GetByID(ctx context.Context, orderID, userID int64) (domain.Order, error) {
	order, err := u.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if order.UserID != userID {
		return domain.Order{}, domain.ErrNotFound
	}

	return order, nil
}

func (u *orderUsecase) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := u.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "[orderUsecase] ListByUser", "listOrders", err)
		return nil, err
	}
	return orders, nil
}

func (u *orderUsecase) Stats(ctx context.Context) (domain.OrderStats, error) {
	stats, err := u.orderRepo.GetStats(ctx, u.now(), expiringSoonWindow)
	if err != nil {
		slog.ErrorContext(ctx, "[orderUsecase] Stats", "getStats", err)
		return stats, err
	}
	return stats, nil
}
