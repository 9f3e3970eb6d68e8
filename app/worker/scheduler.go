package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"flashsale-service/app/domain"
)

// Scheduler arms an in-process one-shot cancellation timer per order.
// Timers are best effort: they do not survive a restart, which is why
// the Sweeper independently scans for deadline-passed orders.
type Scheduler struct {
	orderUsecase domain.OrderUsecase

	mu     sync.Mutex
	timers map[int64]*time.Timer
}

func NewScheduler(orderUsecase domain.OrderUsecase) *Scheduler {
	return &Scheduler{
		orderUsecase: orderUsecase,
		timers:       make(map[int64]*time.Timer),
	}
}

// Schedule arms a cancellation to run no earlier than fireAt. Re-arming
// an already-armed order is a no-op; the fired action re-checks order
// state anyway.
func (s *Scheduler) Schedule(orderID int64, fireAt time.Time) {
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[orderID]; ok {
		return
	}
	s.timers[orderID] = time.AfterFunc(delay, func() {
		s.fire(orderID)
	})
}

func (s *Scheduler) fire(orderID int64) {
	s.mu.Lock()
	delete(s.timers, orderID)
	s.mu.Unlock()

	ctx := context.Background()
	outcome, err := s.orderUsecase.CancelExpired(ctx, orderID)
	if err != nil {
		// the sweeper will find the order again
		slog.ErrorContext(ctx, "[Scheduler] fire", "cancelExpired", err, "orderID", orderID)
		return
	}

	slog.InfoContext(ctx, "[Scheduler] fire", "orderID", orderID, "outcome", outcome)
}

// Stop drops all armed timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for orderID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, orderID)
	}
}
