package worker

import (
	"context"
	"log/slog"
	"time"

	"flashsale-service/app/domain"
	"flashsale-service/config"
)

// Sweeper periodically cancels deadline-passed pending orders in
// batches. It is the recovery path for timers lost to a restart and the
// backstop for timers that fired into a transient failure.
type Sweeper struct {
	orderRepo    domain.OrderRepository
	orderUsecase domain.OrderUsecase
	cfg          *config.Config
	now          func() time.Time
}

type SweepResult struct {
	Found     int64 `json:"found"`
	Cancelled int64 `json:"cancelled"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

func NewSweeper(orderRepo domain.OrderRepository, orderUsecase domain.OrderUsecase, cfg *config.Config) *Sweeper {
	return &Sweeper{
		orderRepo:    orderRepo,
		orderUsecase: orderUsecase,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Start runs sweep rounds until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	interval := time.Duration(s.cfg.Order.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "[Sweeper] Start", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "[Sweeper] Start", "stopped", ctx.Err())
			return
		case <-ticker.C:
			result, err := s.Run(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "[Sweeper] Start", "run", err)
				continue
			}
			if result.Found > 0 {
				slog.InfoContext(ctx, "[Sweeper] Start",
					"found", result.Found, "cancelled", result.Cancelled,
					"skipped", result.Skipped, "failed", result.Failed)
			}
		}
	}
}

// Run executes one sweep round over a single batch of expired orders.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	expired, err := s.orderRepo.ListExpiredPending(ctx, s.now(), s.cfg.Order.SweepBatchSize)
	if err != nil {
		return result, err
	}
	result.Found = int64(len(expired))

	for _, order := range expired {
		outcome, err := s.orderUsecase.CancelExpired(ctx, order.ID)
		if err != nil {
			result.Failed++
			slog.ErrorContext(ctx, "[Sweeper] Run", "cancelExpired", err, "orderID", order.ID)
			continue
		}

		switch outcome {
		case domain.CancelOutcomeCancelled:
			result.Cancelled++
		default:
			result.Skipped++
		}
	}

	return result, nil
}
