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

type auditUsecase struct {
	activityRepo domain.ActivityRepository
	orderRepo    domain.OrderRepository
	cfg          *config.Config
	now          func() time.Time
}

func NewAuditUsecase(
	activityRepo domain.ActivityRepository,
	orderRepo domain.OrderRepository,
	cfg *config.Config) domain.AuditUsecase {
	return &auditUsecase{
		activityRepo: activityRepo,
		orderRepo:    orderRepo,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (u *auditUsecase) buildReport(ctx context.Context, activity domain.Activity) (*domain.AuditReport, error) {
	sold, err := u.orderRepo.SumQuantityByActivityAndStatus(ctx, activity.ID, domain.OrderStatusPaid)
	if err != nil {
		return nil, err
	}

	pending, err := u.orderRepo.SumQuantityByActivityAndStatus(ctx, activity.ID, domain.OrderStatusPendingPayment)
	if err != nil {
		return nil, err
	}

	theoretical := activity.TotalStock - sold - pending
	return &domain.AuditReport{
		ActivityID:       activity.ID,
		ActivityName:     activity.Name,
		TotalStock:       activity.TotalStock,
		SoldQuantity:     sold,
		PendingQuantity:  pending,
		TheoreticalStock: theoretical,
		ActualStock:      activity.AvailableStock,
		Difference:       activity.AvailableStock - theoretical,
	}, nil
}

// CheckActivity returns nil when the ledger matches the stock implied
// by the activity's order history.
func (u *auditUsecase) CheckActivity(ctx context.Context, activityID int64) (*domain.AuditReport, error) {
	activity, err := u.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrActivityNotFound
		}
		return nil, err
	}

	report, err := u.buildReport(ctx, activity)
	if err != nil {
		slog.ErrorContext(ctx, "[auditUsecase] CheckActivity", "buildReport", err)
		return nil, err
	}

	if report.Difference == 0 {
		return nil, nil
	}

	slog.WarnContext(ctx, "[auditUsecase] CheckActivity", "inconsistentActivity", activityID,
		"theoretical", report.TheoreticalStock, "actual", report.ActualStock, "difference", report.Difference)
	return report, nil
}

func (u *auditUsecase) CheckAll(ctx context.Context) (domain.AuditSummary, error) {
	summary := domain.AuditSummary{CheckedAt: u.now()}

	activities, err := u.activityRepo.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "[auditUsecase] CheckAll", "listActivities", err)
		return summary, err
	}

	for _, activity := range activities {
		if activity.Status == domain.ActivityStatusCancelled {
			continue
		}
		summary.TotalChecked++

		report, err := u.buildReport(ctx, activity)
		if err != nil {
			slog.ErrorContext(ctx, "[auditUsecase] CheckAll", "buildReport", err, "activityID", activity.ID)
			return summary, err
		}

		if report.Difference != 0 {
			summary.Inconsistent = append(summary.Inconsistent, *report)
			slog.WarnContext(ctx, "[auditUsecase] CheckAll", "inconsistentActivity", activity.ID,
				"difference", report.Difference)
		}
	}

	summary.InconsistentCount = int64(len(summary.Inconsistent))
	slog.InfoContext(ctx, "[auditUsecase] CheckAll",
		"totalChecked", summary.TotalChecked, "inconsistentCount", summary.InconsistentCount)

	return summary, nil
}

// Fix sets the ledger to the recomputed theoretical stock under the
// activity row lock. Orders only mutate while holding that same lock,
// so the sums read here cannot move during the rewrite.
func (u *auditUsecase) Fix(ctx context.Context, activityID int64) (domain.AuditFixResult, error) {
	var result domain.AuditFixResult

	err := u.activityRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		activity, err := u.activityRepo.LockForUpdate(ctx, activityID, tx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrActivityNotFound
			}
			return err
		}

		report, err := u.buildReport(ctx, activity)
		if err != nil {
			return err
		}

		result = domain.AuditFixResult{
			ActivityID:    activityID,
			PreviousStock: activity.AvailableStock,
			FixedStock:    report.TheoreticalStock,
		}

		if report.Difference == 0 {
			return nil
		}

		return u.activityRepo.UpdateAvailableStock(ctx, activityID, report.TheoreticalStock, tx)
	})
	if err != nil {
		slog.ErrorContext(ctx, "[auditUsecase] Fix", "transaction", err, "activityID", activityID)
		return result, err
	}

	slog.InfoContext(ctx, "[auditUsecase] Fix", "activityID", activityID,
		"previousStock", result.PreviousStock, "fixedStock", result.FixedStock)
	return result, nil
}
