package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"flashsale-service/app/domain"
	"flashsale-service/config"
)

type reservationUsecase struct {
	activityRepo domain.ActivityRepository
	orderRepo    domain.OrderRepository
	scheduler    domain.DeadlineScheduler
	publisher    domain.BrokerPublisher
	cfg          *config.Config
	now          func() time.Time
	sleep        func(time.Duration)
}

func NewReservationUsecase(
	activityRepo domain.ActivityRepository,
	orderRepo domain.OrderRepository,
	scheduler domain.DeadlineScheduler,
	publisher domain.BrokerPublisher,
	cfg *config.Config) domain.ReservationUsecase {
	return &reservationUsecase{
		activityRepo: activityRepo,
		orderRepo:    orderRepo,
		scheduler:    scheduler,
		publisher:    publisher,
		cfg:          cfg,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Reserve validates the activity, decrements its stock and creates the
// order in one transaction holding the activity row lock. The (user,
// activity) unique index is the authoritative duplicate guard; on a
// duplicate the existing order id is returned with ErrAlreadyReserved.
func (u *reservationUsecase) Reserve(ctx context.Context, userID int64, req domain.ReserveRequest) (domain.ReservationResult, error) {
	var result domain.ReservationResult

	if req.Quantity < 1 {
		return result, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	if existing, err := u.orderRepo.GetByUserAndActivity(ctx, userID, req.ActivityID); err == nil {
		slog.InfoContext(ctx, "[reservationUsecase] Reserve", "duplicateReservation", existing.ID)
		result.OrderID = existing.ID
		return result, domain.ErrAlreadyReserved
	} else if !errors.Is(err, domain.ErrNotFound) {
		slog.ErrorContext(ctx, "[reservationUsecase] Reserve", "getExistingOrder", err)
		return result, err
	}

	var order domain.Order
	err := u.activityRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		activity, err := u.activityRepo.LockForUpdate(ctx, req.ActivityID, tx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrActivityNotFound
			}
			slog.ErrorContext(ctx, "[reservationUsecase] Reserve", "lockActivity", err)
			return err
		}

		now := u.now()
		if !activity.IsSellable(now) {
			return domain.ErrActivityNotActive
		}

		if req.Quantity > activity.MaxPerUser {
			return fmt.Errorf("%w: quantity exceeds per-user limit", domain.ErrValidation)
		}

		if activity.AvailableStock < req.Quantity {
			return domain.ErrInsufficientStock
		}

		err = u.activityRepo.UpdateAvailableStock(ctx, activity.ID, activity.AvailableStock-req.Quantity, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] Reserve", "updateAvailableStock", err)
			return err
		}

		deadline := now.Add(time.Duration(u.cfg.Order.PaymentWindowMinutes) * time.Minute)
		order = domain.Order{
			UserID:          userID,
			ActivityID:      activity.ID,
			ProductName:     activity.Name,
			SellPrice:       activity.SellPrice,
			Quantity:        req.Quantity,
			TotalAmount:     activity.SellPrice * req.Quantity,
			Status:          domain.OrderStatusPendingPayment,
			PaymentDeadline: &deadline,
		}
		if err := u.orderRepo.Create(ctx, &order, tx); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyReserved) {
			// lost a concurrent race on the unique index
			if existing, getErr := u.orderRepo.GetByUserAndActivity(ctx, userID, req.ActivityID); getErr == nil {
				result.OrderID = existing.ID
			}
			return result, domain.ErrAlreadyReserved
		}
		return result, err
	}

	u.scheduler.Schedule(order.ID, *order.PaymentDeadline)

	if err := u.publisher.PublishOrderCreated(ctx, domain.OrderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		ActivityID:  order.ActivityID,
		Quantity:    order.Quantity,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
		Timestamp:   u.now(),
	}); err != nil {
		slog.WarnContext(ctx, "[reservationUsecase] Reserve", "publishOrderCreated", err)
	}

	slog.InfoContext(ctx, "[reservationUsecase] Reserve",
		"orderID", order.ID, "activityID", order.ActivityID, "quantity", order.Quantity)

	return domain.ReservationResult{
		OrderID:         order.ID,
		TotalAmount:     order.TotalAmount,
		PaymentDeadline: *order.PaymentDeadline,
	}, nil
}

// Rollback returns quantity units to the activity ledger, clamped at
// TotalStock so repeated delivery of the same compensation can never
// push the counter past the ceiling. Transient failures are retried
// with increasing delay; the residual is left to the auditor.
func (u *reservationUsecase) Rollback(ctx context.Context, activityID, quantity int64, reason string) (int64, error) {
	if activityID <= 0 || quantity <= 0 {
		return 0, fmt.Errorf("%w: invalid rollback arguments", domain.ErrValidation)
	}

	var restoredTo int64
	var lastErr error

	for attempt := 1; attempt <= u.cfg.Order.RollbackMaxAttempts; attempt++ {
		lastErr = u.activityRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
			activity, err := u.activityRepo.LockForUpdate(ctx, activityID, tx)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.ErrActivityNotFound
				}
				return err
			}

			newStock := activity.AvailableStock + quantity
			if newStock > activity.TotalStock {
				slog.WarnContext(ctx, "[reservationUsecase] Rollback", "clampedToTotalStock", activity.TotalStock,
					"requested", newStock)
				newStock = activity.TotalStock
			}

			if err := u.activityRepo.UpdateAvailableStock(ctx, activityID, newStock, tx); err != nil {
				return err
			}

			restoredTo = newStock
			return nil
		})
		if lastErr == nil {
			slog.InfoContext(ctx, "[reservationUsecase] Rollback",
				"activityID", activityID, "quantity", quantity, "reason", reason, "restoredTo", restoredTo)
			return restoredTo, nil
		}
		if errors.Is(lastErr, domain.ErrActivityNotFound) {
			return 0, lastErr
		}

		if attempt < u.cfg.Order.RollbackMaxAttempts {
			delay := time.Duration(attempt*u.cfg.Order.RollbackBaseDelaySec) * time.Second
			slog.WarnContext(ctx, "[reservationUsecase] Rollback", "retry", attempt, "delay", delay, "error", lastErr)
			u.sleep(delay)
		}
	}

	slog.ErrorContext(ctx, "[reservationUsecase] Rollback", "retryBudgetExhausted", lastErr,
		"activityID", activityID, "quantity", quantity)
	return 0, lastErr
}
