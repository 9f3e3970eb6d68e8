package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"flashsale-service/app/domain"

	"github.com/stretchr/testify/require"
)

func testActivity(now time.Time) domain.Activity {
	return domain.Activity{
		ID:             1,
		Name:           "iphone 17 flash sale",
		TotalStock:     10,
		AvailableStock: 10,
		SellPrice:      99900,
		OriginalPrice:  129900,
		StartTime:      now.Add(-time.Hour),
		EndTime:        now.Add(time.Hour),
		MaxPerUser:     2,
		Status:         domain.ActivityStatusActive,
	}
}

func newTestReservation(activityRepo *fakeActivityRepo, orderRepo *fakeOrderRepo,
	scheduler *fakeScheduler, publisher *fakePublisher, now time.Time) *reservationUsecase {
	u := NewReservationUsecase(activityRepo, orderRepo, scheduler, publisher, testConfig()).(*reservationUsecase)
	u.now = func() time.Time { return now }
	u.sleep = func(time.Duration) {}
	return u
}

func TestReservationUsecase_Reserve(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("creates order and decrements stock", func(t *testing.T) {
		activityRepo := newFakeActivityRepo(testActivity(now))
		orderRepo := newFakeOrderRepo()
		scheduler := newFakeScheduler()
		publisher := &fakePublisher{}
		u := newTestReservation(activityRepo, orderRepo, scheduler, publisher, now)

		result, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 2})
		require.NoError(t, err)
		require.Equal(t, int64(2*99900), result.TotalAmount)
		require.Equal(t, now.Add(30*time.Minute), result.PaymentDeadline)

		activity, err := activityRepo.GetByID(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, int64(8), activity.AvailableStock)

		order, err := orderRepo.GetByID(ctx, result.OrderID)
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusPendingPayment, order.Status)
		require.Equal(t, "iphone 17 flash sale", order.ProductName)
		require.Equal(t, int64(99900), order.SellPrice)
		require.NotNil(t, order.PaymentDeadline)

		require.Contains(t, scheduler.scheduled, result.OrderID)
		require.Len(t, publisher.created, 1)
	})

	t.Run("duplicate returns existing order id", func(t *testing.T) {
		activityRepo := newFakeActivityRepo(testActivity(now))
		orderRepo := newFakeOrderRepo()
		u := newTestReservation(activityRepo, orderRepo, newFakeScheduler(), &fakePublisher{}, now)

		first, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 1})
		require.NoError(t, err)

		second, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 1})
		require.ErrorIs(t, err, domain.ErrAlreadyReserved)
		require.Equal(t, first.OrderID, second.OrderID)

		activity, err := activityRepo.GetByID(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, int64(9), activity.AvailableStock)
	})

	t.Run("cancelled order frees the slot", func(t *testing.T) {
		activityRepo := newFakeActivityRepo(testActivity(now))
		orderRepo := newFakeOrderRepo()
		u := newTestReservation(activityRepo, orderRepo, newFakeScheduler(), &fakePublisher{}, now)

		first, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 1})
		require.NoError(t, err)

		require.NoError(t, orderRepo.MarkCancelled(ctx, first.OrderID, now, "cancelled by user", nil))

		second, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 1})
		require.NoError(t, err)
		require.NotEqual(t, first.OrderID, second.OrderID)
	})

	t.Run("unknown activity", func(t *testing.T) {
		u := newTestReservation(newFakeActivityRepo(), newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		_, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 99, Quantity: 1})
		require.ErrorIs(t, err, domain.ErrActivityNotFound)
	})

	t.Run("outside sale window", func(t *testing.T) {
		activity := testActivity(now)
		activity.StartTime = now.Add(time.Hour)
		activity.EndTime = now.Add(2 * time.Hour)
		u := newTestReservation(newFakeActivityRepo(activity), newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		_, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 1})
		require.ErrorIs(t, err, domain.ErrActivityNotActive)
	})

	t.Run("cancelled activity", func(t *testing.T) {
		activity := testActivity(now)
		activity.Status = domain.ActivityStatusCancelled
		u := newTestReservation(newFakeActivityRepo(activity), newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		_, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 1})
		require.ErrorIs(t, err, domain.ErrActivityNotActive)
	})

	t.Run("quantity over per-user limit", func(t *testing.T) {
		activityRepo := newFakeActivityRepo(testActivity(now))
		u := newTestReservation(activityRepo, newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		_, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 3})
		require.ErrorIs(t, err, domain.ErrValidation)

		activity, err := activityRepo.GetByID(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, int64(10), activity.AvailableStock)
	})

	t.Run("insufficient stock inside window", func(t *testing.T) {
		activity := testActivity(now)
		activity.AvailableStock = 1
		u := newTestReservation(newFakeActivityRepo(activity), newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		_, err := u.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 2})
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
	})

	t.Run("concurrent reservations never oversell", func(t *testing.T) {
		activity := testActivity(now)
		activity.AvailableStock = 1
		activityRepo := newFakeActivityRepo(activity)
		orderRepo := newFakeOrderRepo()
		u := newTestReservation(activityRepo, orderRepo, newFakeScheduler(), &fakePublisher{}, now)

		const buyers = 8
		errs := make([]error, buyers)
		var wg sync.WaitGroup
		for i := 0; i < buyers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = u.Reserve(ctx, int64(100+i), domain.ReserveRequest{ActivityID: 1, Quantity: 1})
			}(i)
		}
		wg.Wait()

		var won, lost int
		for _, err := range errs {
			switch {
			case err == nil:
				won++
			default:
				require.ErrorIs(t, err, domain.ErrInsufficientStock)
				lost++
			}
		}
		require.Equal(t, 1, won)
		require.Equal(t, buyers-1, lost)

		final, err := activityRepo.GetByID(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, int64(0), final.AvailableStock)
	})
}

func TestReservationUsecase_Rollback(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("restores stock", func(t *testing.T) {
		activity := testActivity(now)
		activity.AvailableStock = 5
		activityRepo := newFakeActivityRepo(activity)
		u := newTestReservation(activityRepo, newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		restoredTo, err := u.Rollback(ctx, 1, 3, "payment failed")
		require.NoError(t, err)
		require.Equal(t, int64(8), restoredTo)
	})

	t.Run("clamps at total stock", func(t *testing.T) {
		activity := testActivity(now)
		activity.AvailableStock = 9
		activityRepo := newFakeActivityRepo(activity)
		u := newTestReservation(activityRepo, newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		restoredTo, err := u.Rollback(ctx, 1, 5, "duplicate compensation")
		require.NoError(t, err)
		require.Equal(t, int64(10), restoredTo)

		// redelivery of the same compensation is a harmless no-op
		restoredTo, err = u.Rollback(ctx, 1, 5, "duplicate compensation")
		require.NoError(t, err)
		require.Equal(t, int64(10), restoredTo)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		u := newTestReservation(newFakeActivityRepo(), newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		_, err := u.Rollback(ctx, 1, 0, "nothing")
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown activity is not retried", func(t *testing.T) {
		activityRepo := newFakeActivityRepo()
		u := newTestReservation(activityRepo, newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		var slept []time.Duration
		u.sleep = func(d time.Duration) { slept = append(slept, d) }

		_, err := u.Rollback(ctx, 42, 1, "payment failed")
		require.ErrorIs(t, err, domain.ErrActivityNotFound)
		require.Empty(t, slept)
	})

	t.Run("transient failures retried with increasing delay", func(t *testing.T) {
		activity := testActivity(now)
		activity.AvailableStock = 5
		activityRepo := newFakeActivityRepo(activity)
		activityRepo.failUpdates = 2
		u := newTestReservation(activityRepo, newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		var slept []time.Duration
		u.sleep = func(d time.Duration) { slept = append(slept, d) }

		restoredTo, err := u.Rollback(ctx, 1, 3, "payment failed")
		require.NoError(t, err)
		require.Equal(t, int64(8), restoredTo)
		require.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, slept)
	})

	t.Run("retry budget exhausted", func(t *testing.T) {
		activity := testActivity(now)
		activityRepo := newFakeActivityRepo(activity)
		activityRepo.failUpdates = 3
		u := newTestReservation(activityRepo, newFakeOrderRepo(), newFakeScheduler(), &fakePublisher{}, now)

		_, err := u.Rollback(ctx, 1, 3, "payment failed")
		require.Error(t, err)
		require.NotErrorIs(t, err, domain.ErrActivityNotFound)
	})
}
