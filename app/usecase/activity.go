package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"flashsale-service/app/domain"
	"flashsale-service/config"
)

type activityUsecase struct {
	activityRepo domain.ActivityRepository
	cfg          *config.Config
	now          func() time.Time
}

func NewActivityUsecase(activityRepo domain.ActivityRepository, cfg *config.Config) domain.ActivityUsecase {
	return &activityUsecase{
		activityRepo: activityRepo,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (u *activityUsecase) Create(ctx context.Context, req domain.ActivityCreateRequest) (*domain.Activity, error) {
	activity := &domain.Activity{
		Name:           req.Name,
		TotalStock:     req.TotalStock,
		AvailableStock: req.TotalStock,
		SellPrice:      req.SellPrice,
		OriginalPrice:  req.OriginalPrice,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		MaxPerUser:     req.MaxPerUser,
	}
	activity.Status = activity.DeriveStatus(u.now())

	if err := u.activityRepo.Create(ctx, activity); err != nil {
		slog.ErrorContext(ctx, "[activityUsecase] Create", "createActivity", err)
		return nil, err
	}

	slog.InfoContext(ctx, "[activityUsecase] Create", "activityID", activity.ID, "totalStock", activity.TotalStock)
	return activity, nil
}

// GetByID recomputes status from time and stock on every load; the
// stored value is only authoritative for cancelled.
func (u *activityUsecase) GetByID(ctx context.Context, id int64) (domain.Activity, error) {
	activity, err := u.activityRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return activity, domain.ErrActivityNotFound
		}
		return activity, err
	}

	activity.Status = activity.DeriveStatus(u.now())
	return activity, nil
}

func (u *activityUsecase) List(ctx context.Context) ([]domain.Activity, error) {
	activities, err := u.activityRepo.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "[activityUsecase] List", "listActivities", err)
		return nil, err
	}

	now := u.now()
	for i := range activities {
		activities[i].Status = activities[i].DeriveStatus(now)
	}

	return activities, nil
}

// Cancel retires an activity; cancelled is sticky and never overwritten
// by the status derivation. Existing orders are left to run their own
// lifecycle.
func (u *activityUsecase) Cancel(ctx context.Context, id int64) error {
	err := u.activityRepo.UpdateStatus(ctx, id, domain.ActivityStatusCancelled)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrActivityNotFound
		}
		slog.ErrorContext(ctx, "[activityUsecase] Cancel", "updateStatus", err)
		return err
	}

	slog.InfoContext(ctx, "[activityUsecase] Cancel", "activityID", id)
	return nil
}
