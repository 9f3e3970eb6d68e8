package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"flashsale-service/app/domain"

	"github.com/stretchr/testify/require"
)

type stubReservation struct {
	result domain.ReservationResult
	err    error
}

func (s *stubReservation) Reserve(ctx context.Context, userID int64, req domain.ReserveRequest) (domain.ReservationResult, error) {
	return s.result, s.err
}

func (s *stubReservation) Rollback(ctx context.Context, activityID, quantity int64, reason string) (int64, error) {
	return 0, s.err
}

func TestIntakeUsecase_Process(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	users := &fakeUserRepo{users: map[int64]domain.User{
		7: {ID: 7, Username: "alice", Active: true},
	}}

	validMessage := domain.ReservationMessage{
		ExternalOrderID: "ext-1001",
		UserID:          7,
		ActivityID:      1,
		Quantity:        1,
		Price:           50000,
		CreatedAt:       now,
	}

	t.Run("creates an order from a valid message", func(t *testing.T) {
		activityRepo := newFakeActivityRepo(testActivity(now))
		orderRepo := newFakeOrderRepo()
		reservation := newTestReservation(activityRepo, orderRepo, newFakeScheduler(), &fakePublisher{}, now)
		u := NewIntakeUsecase(reservation, users, testConfig())

		result, err := u.Process(ctx, validMessage)
		require.NoError(t, err)
		require.False(t, result.Duplicate)
		require.NotZero(t, result.OrderID)

		// the message price is ignored in favor of the activity's own
		order, err := orderRepo.GetByID(ctx, result.OrderID)
		require.NoError(t, err)
		require.Equal(t, int64(99900), order.SellPrice)
	})

	t.Run("redelivery resolves to the existing order", func(t *testing.T) {
		activityRepo := newFakeActivityRepo(testActivity(now))
		orderRepo := newFakeOrderRepo()
		reservation := newTestReservation(activityRepo, orderRepo, newFakeScheduler(), &fakePublisher{}, now)
		u := NewIntakeUsecase(reservation, users, testConfig())

		first, err := u.Process(ctx, validMessage)
		require.NoError(t, err)

		second, err := u.Process(ctx, validMessage)
		require.NoError(t, err)
		require.True(t, second.Duplicate)
		require.Equal(t, first.OrderID, second.OrderID)

		activity, err := activityRepo.GetByID(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, int64(9), activity.AvailableStock)
	})

	t.Run("malformed message", func(t *testing.T) {
		u := NewIntakeUsecase(&stubReservation{}, users, testConfig())

		for _, msg := range []domain.ReservationMessage{
			{UserID: 7, ActivityID: 1, Quantity: 1},
			{ExternalOrderID: "ext-1", ActivityID: 1, Quantity: 1},
			{ExternalOrderID: "ext-1", UserID: 7, Quantity: 1},
			{ExternalOrderID: "ext-1", UserID: 7, ActivityID: 1, Quantity: 0},
		} {
			_, err := u.Process(ctx, msg)
			require.ErrorIs(t, err, domain.ErrValidation)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		u := NewIntakeUsecase(&stubReservation{}, users, testConfig())

		msg := validMessage
		msg.UserID = 404
		_, err := u.Process(ctx, msg)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("business rule errors pass through", func(t *testing.T) {
		u := NewIntakeUsecase(&stubReservation{err: domain.ErrInsufficientStock}, users, testConfig())

		_, err := u.Process(ctx, validMessage)
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
	})

	t.Run("transient errors pass through", func(t *testing.T) {
		transient := errors.New("database is starting up")
		u := NewIntakeUsecase(&stubReservation{err: transient}, users, testConfig())

		_, err := u.Process(ctx, validMessage)
		require.ErrorIs(t, err, transient)
	})
}
