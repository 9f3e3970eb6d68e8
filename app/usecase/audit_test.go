package usecase

import (
	"context"
	"testing"
	"time"

	"flashsale-service/app/domain"

	"github.com/stretchr/testify/require"
)

func newTestAudit(activityRepo *fakeActivityRepo, orderRepo *fakeOrderRepo, now time.Time) *auditUsecase {
	u := NewAuditUsecase(activityRepo, orderRepo, testConfig()).(*auditUsecase)
	u.now = func() time.Time { return now }
	return u
}

func TestAuditUsecase_CheckActivity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("consistent ledger reports nothing", func(t *testing.T) {
		activityRepo := newFakeActivityRepo(testActivity(now))
		orderRepo := newFakeOrderRepo()
		reservation := newTestReservation(activityRepo, orderRepo, newFakeScheduler(), &fakePublisher{}, now)
		orders := newTestOrder(activityRepo, orderRepo, &fakePublisher{}, now)

		first, err := reservation.Reserve(ctx, 7, domain.ReserveRequest{ActivityID: 1, Quantity: 2})
		require.NoError(t, err)
		second, err := reservation.Reserve(ctx, 8, domain.ReserveRequest{ActivityID: 1, Quantity: 1})
		require.NoError(t, err)
		require.NoError(t, orders.MarkPaid(ctx, first.OrderID))
		require.NoError(t, orders.Cancel(ctx, second.OrderID, nil, "payment timeout"))

		u := newTestAudit(activityRepo, orderRepo, now)
		report, err := u.CheckActivity(ctx, 1)
		require.NoError(t, err)
		require.Nil(t, report)
	})

	t.Run("drifted ledger is reported with full counts", func(t *testing.T) {
		activity := testActivity(now)
		activity.AvailableStock = 5 // theoretical is 7 with 2 paid and 1 pending
		activityRepo := newFakeActivityRepo(activity)
		orderRepo := newFakeOrderRepo()
		paid := seedPendingOrder(t, orderRepo, 7, 1, 2, now.Add(10*time.Minute))
		require.NoError(t, orderRepo.MarkPaid(ctx, paid.ID, now, nil))
		seedPendingOrder(t, orderRepo, 8, 1, 1, now.Add(10*time.Minute))

		u := newTestAudit(activityRepo, orderRepo, now)
		report, err := u.CheckActivity(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, report)
		require.Equal(t, int64(2), report.SoldQuantity)
		require.Equal(t, int64(1), report.PendingQuantity)
		require.Equal(t, int64(7), report.TheoreticalStock)
		require.Equal(t, int64(5), report.ActualStock)
		require.Equal(t, int64(-2), report.Difference)
	})

	t.Run("unknown activity", func(t *testing.T) {
		u := newTestAudit(newFakeActivityRepo(), newFakeOrderRepo(), now)
		_, err := u.CheckActivity(ctx, 99)
		require.ErrorIs(t, err, domain.ErrActivityNotFound)
	})
}

func TestAuditUsecase_CheckAll(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	consistent := testActivity(now)

	drifted := testActivity(now)
	drifted.ID = 2
	drifted.AvailableStock = 7

	cancelled := testActivity(now)
	cancelled.ID = 3
	cancelled.Status = domain.ActivityStatusCancelled
	cancelled.AvailableStock = 4

	activityRepo := newFakeActivityRepo(consistent, drifted, cancelled)
	u := newTestAudit(activityRepo, newFakeOrderRepo(), now)

	summary, err := u.CheckAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), summary.TotalChecked)
	require.Equal(t, int64(1), summary.InconsistentCount)
	require.Len(t, summary.Inconsistent, 1)
	require.Equal(t, int64(2), summary.Inconsistent[0].ActivityID)
	require.Equal(t, now, summary.CheckedAt)
}

func TestAuditUsecase_Fix(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	activity := testActivity(now)
	activity.AvailableStock = 5
	activityRepo := newFakeActivityRepo(activity)
	orderRepo := newFakeOrderRepo()
	paid := seedPendingOrder(t, orderRepo, 7, 1, 2, now.Add(10*time.Minute))
	require.NoError(t, orderRepo.MarkPaid(ctx, paid.ID, now, nil))

	u := newTestAudit(activityRepo, orderRepo, now)

	result, err := u.Fix(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), result.PreviousStock)
	require.Equal(t, int64(8), result.FixedStock)

	fixed, err := activityRepo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(8), fixed.AvailableStock)

	// a second fix finds nothing to rewrite
	result, err = u.Fix(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(8), result.PreviousStock)
	require.Equal(t, int64(8), result.FixedStock)

	_, err = u.Fix(ctx, 99)
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
}
