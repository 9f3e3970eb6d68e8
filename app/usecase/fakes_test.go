package usecase

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"flashsale-service/app/domain"
	"flashsale-service/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Order: config.OrderConfig{
			PaymentWindowMinutes: 30,
			SweepIntervalSeconds: 60,
			SweepBatchSize:       100,
			RollbackMaxAttempts:  3,
			RollbackBaseDelaySec: 1,
		},
	}
}

type fakeActivityRepo struct {
	mu         sync.Mutex
	txMu       sync.Mutex
	activities map[int64]*domain.Activity
	nextID     int64

	// number of UpdateAvailableStock calls to fail before succeeding
	failUpdates int
}

func newFakeActivityRepo(activities ...domain.Activity) *fakeActivityRepo {
	r := &fakeActivityRepo{activities: make(map[int64]*domain.Activity)}
	for _, a := range activities {
		a := a
		if a.ID == 0 {
			r.nextID++
			a.ID = r.nextID
		} else if a.ID > r.nextID {
			r.nextID = a.ID
		}
		r.activities[a.ID] = &a
	}
	return r
}

func (r *fakeActivityRepo) Create(ctx context.Context, activity *domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	activity.ID = r.nextID
	activity.CreatedAt = time.Now()
	activity.UpdatedAt = activity.CreatedAt
	cp := *activity
	r.activities[cp.ID] = &cp
	return nil
}

func (r *fakeActivityRepo) GetByID(ctx context.Context, id int64) (domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[id]
	if !ok {
		return domain.Activity{}, domain.ErrNotFound
	}
	return *a, nil
}

func (r *fakeActivityRepo) List(ctx context.Context) ([]domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Activity, 0, len(r.activities))
	for _, a := range r.activities {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeActivityRepo) LockForUpdate(ctx context.Context, id int64, tx *sql.Tx) (domain.Activity, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeActivityRepo) UpdateAvailableStock(ctx context.Context, id, availableStock int64, tx *sql.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates > 0 {
		r.failUpdates--
		return errors.New("connection reset by peer")
	}
	a, ok := r.activities[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.AvailableStock = availableStock
	a.UpdatedAt = time.Now()
	return nil
}

func (r *fakeActivityRepo) UpdateStatus(ctx context.Context, id int64, status domain.ActivityStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	return nil
}

// WithTransaction serializes callers the way the activity row lock does.
func (r *fakeActivityRepo) WithTransaction(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(ctx, nil)
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*domain.Order
	nextID int64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*domain.Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *domain.Order, tx *sql.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.UserID == order.UserID && o.ActivityID == order.ActivityID &&
			o.Status != domain.OrderStatusCancelled {
			return domain.ErrAlreadyReserved
		}
	}
	r.nextID++
	order.ID = r.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	r.orders[cp.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return *o, nil
}

func (r *fakeOrderRepo) GetByUserAndActivity(ctx context.Context, userID, activityID int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.UserID == userID && o.ActivityID == activityID &&
			o.Status != domain.OrderStatusCancelled {
			return *o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (r *fakeOrderRepo) LockForUpdate(ctx context.Context, id int64, tx *sql.Tx) (domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeOrderRepo) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int64) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusPendingPayment &&
			o.PaymentDeadline != nil && o.PaymentDeadline.Before(cutoff) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOrderRepo) MarkPaid(ctx context.Context, id int64, paidAt time.Time, tx *sql.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = domain.OrderStatusPaid
	o.PaidAt = &paidAt
	o.PaymentDeadline = nil
	return nil
}

func (r *fakeOrderRepo) MarkCancelled(ctx context.Context, id int64, cancelledAt time.Time, reason string, tx *sql.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = domain.OrderStatusCancelled
	o.CancelledAt = &cancelledAt
	o.CancelReason = reason
	return nil
}

func (r *fakeOrderRepo) SumQuantityByActivityAndStatus(ctx context.Context, activityID int64, status domain.OrderStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, o := range r.orders {
		if o.ActivityID == activityID && o.Status == status {
			sum += o.Quantity
		}
	}
	return sum, nil
}

func (r *fakeOrderRepo) GetStats(ctx context.Context, now time.Time, expiringWindow time.Duration) (domain.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats domain.OrderStats
	for _, o := range r.orders {
		if o.Status != domain.OrderStatusPendingPayment || o.PaymentDeadline == nil {
			continue
		}
		stats.PendingTotal++
		if o.PaymentDeadline.Before(now) {
			stats.PendingExpired++
		} else if o.PaymentDeadline.Before(now.Add(expiringWindow)) {
			stats.PendingExpiringSoon++
		}
	}
	return stats, nil
}

type fakeUserRepo struct {
	users map[int64]domain.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[int64]time.Time
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[int64]time.Time)}
}

func (s *fakeScheduler) Schedule(orderID int64, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[orderID] = fireAt
}

type fakePublisher struct {
	mu        sync.Mutex
	created   []domain.OrderEvent
	cancelled []domain.OrderEvent
	err       error
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.created = append(p.created, event)
	return nil
}

func (p *fakePublisher) PublishOrderCancelled(ctx context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cancelled = append(p.cancelled, event)
	return nil
}
