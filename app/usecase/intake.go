package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"flashsale-service/app/domain"
	"flashsale-service/config"
)

type intakeUsecase struct {
	reservation domain.ReservationUsecase
	userRepo    domain.UserRepository
	cfg         *config.Config
}

func NewIntakeUsecase(
	reservation domain.ReservationUsecase,
	userRepo domain.UserRepository,
	cfg *config.Config) domain.IntakeUsecase {
	return &intakeUsecase{
		reservation: reservation,
		userRepo:    userRepo,
		cfg:         cfg,
	}
}

// Process applies one external reservation-request message. A message
// is a trigger, not a price authority: the reservation runs on the
// activity's own price. Redeliveries resolve to the existing order and
// report Duplicate instead of failing. Errors wrapping ErrValidation,
// ErrNotFound or a business rule are permanent; anything else is
// transient and worth a redelivery.
func (u *intakeUsecase) Process(ctx context.Context, msg domain.ReservationMessage) (domain.IntakeResult, error) {
	var result domain.IntakeResult

	if msg.ExternalOrderID == "" || msg.UserID <= 0 || msg.ActivityID <= 0 || msg.Quantity <= 0 {
		slog.ErrorContext(ctx, "[intakeUsecase] Process", "malformedMessage", msg.ExternalOrderID)
		return result, fmt.Errorf("%w: malformed reservation message", domain.ErrValidation)
	}

	if _, err := u.userRepo.GetByID(ctx, msg.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "[intakeUsecase] Process", "unknownUser", msg.UserID,
				"externalOrderID", msg.ExternalOrderID)
			return result, fmt.Errorf("%w: user %d", domain.ErrNotFound, msg.UserID)
		}
		return result, err
	}

	res, err := u.reservation.Reserve(ctx, msg.UserID, domain.ReserveRequest{
		ActivityID: msg.ActivityID,
		Quantity:   msg.Quantity,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyReserved) {
			slog.InfoContext(ctx, "[intakeUsecase] Process", "duplicateDelivery", msg.ExternalOrderID,
				"orderID", res.OrderID)
			result.OrderID = res.OrderID
			result.Duplicate = true
			return result, nil
		}
		return result, err
	}

	slog.InfoContext(ctx, "[intakeUsecase] Process", "orderCreated", res.OrderID,
		"externalOrderID", msg.ExternalOrderID)
	result.OrderID = res.OrderID
	return result, nil
}
