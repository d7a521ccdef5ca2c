package service

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront/order-intake/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepLimit    = 50
)

// Sweeper periodically re-attempts unsent orders whose backoff window has
// elapsed. Each candidate is attempted independently; one failure never
// halts the pass.
type Sweeper struct {
	orders     repository.OrderRepository
	delivery   *DeliveryService
	logger     *zap.Logger
	interval   time.Duration
	limit      int
	maxRetries int
}

func NewSweeper(
	orders repository.OrderRepository,
	delivery *DeliveryService,
	interval time.Duration,
	limit int,
	maxRetries int,
	logger *zap.Logger,
) (*Sweeper, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if delivery == nil {
		return nil, fmt.Errorf("delivery service is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		orders:     orders,
		delivery:   delivery,
		logger:     logger,
		interval:   interval,
		limit:      limit,
		maxRetries: maxRetries,
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial pass so already-due retries do not wait for the first
	// ticker edge.
	if err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce runs a single retry pass over eligible candidates.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	candidates, err := s.orders.SelectRetryCandidates(ctx, s.maxRetries, s.limit)
	if err != nil {
		return fmt.Errorf("failed to select retry candidates: %w", err)
	}

	for i := range candidates {
		order := candidates[i]

		result, attemptErr := s.delivery.Attempt(ctx, &order)
		if attemptErr != nil {
			s.logger.Warn("sweep attempt not run",
				zap.String("orderId", order.ID),
				zap.Error(attemptErr),
			)
			continue
		}

		if !result.Sent {
			s.logger.Info("sweep attempt failed, rescheduled",
				zap.String("orderId", order.ID),
				zap.Int("retryCount", result.RetryCount),
			)
		}
	}

	return nil
}
