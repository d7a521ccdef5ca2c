package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/storefront/order-intake/internal/domain"
	"github.com/storefront/order-intake/internal/lease"
	"github.com/storefront/order-intake/internal/mailer"
	"github.com/storefront/order-intake/internal/observability"
	"github.com/storefront/order-intake/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries      = 5
	defaultSendTimeout     = 15 * time.Second
	defaultBulkRetryLimit  = 50
	failureReasonTransport = "transport_error"
)

// AttemptResult is the outcome of one delivery attempt as it was persisted
// (or would have been, if the status write failed).
type AttemptResult struct {
	Sent        bool
	Error       *string
	RetryCount  int
	NextRetryAt *time.Time
}

// RetrySummary tallies a manual bulk retry.
type RetrySummary struct {
	Sent   int
	Failed int
}

// DeliveryService is the delivery attempt executor: compose, send, persist
// the outcome. It is driven by the detached checkout hand-off, the sweep,
// and the admin retry entry points.
type DeliveryService struct {
	orders      repository.OrderRepository
	transport   mailer.Transport
	composer    *mailer.Composer
	locker      lease.Locker
	logger      *zap.Logger
	metrics     *observability.Metrics
	sendTimeout time.Duration
	now         func() time.Time
}

func NewDeliveryService(
	orders repository.OrderRepository,
	transport mailer.Transport,
	composer *mailer.Composer,
	locker lease.Locker,
	sendTimeout time.Duration,
	logger *zap.Logger,
) (*DeliveryService, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("mail transport is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer is required")
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryService{
		orders:      orders,
		transport:   transport,
		composer:    composer,
		locker:      locker,
		logger:      logger,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}, nil
}

func (s *DeliveryService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Attempt runs one compose→send→update cycle for the given order. A send
// failure is a completed attempt, reported in the result with a nil error;
// the returned error is reserved for not-attempted conditions (lost lease,
// terminal state races).
func (s *DeliveryService) Attempt(ctx context.Context, order *domain.Order) (AttemptResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if order == nil {
		return AttemptResult{}, fmt.Errorf("%w: order is required", domain.ErrValidation)
	}

	// email_sent=true is terminal; nothing to do.
	if order.EmailSent {
		return AttemptResult{Sent: true}, nil
	}

	if s.locker != nil {
		token, ok, err := s.locker.Acquire(ctx, order.ID)
		if err != nil {
			return AttemptResult{}, fmt.Errorf("failed to acquire delivery lease: %w", err)
		}
		if !ok {
			return AttemptResult{}, fmt.Errorf("%w: delivery already in progress for order %s", domain.ErrConflict, order.ID)
		}
		defer func() {
			if releaseErr := s.locker.Release(ctx, order.ID, token); releaseErr != nil {
				s.logger.Warn("failed to release delivery lease",
					zap.String("orderId", order.ID),
					zap.Error(releaseErr),
				)
			}
		}()
	}

	msg := s.composer.Compose(*order)

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	sendStart := s.now()
	sendErr := s.transport.Send(sendCtx, msg)
	cancel()
	if s.metrics != nil {
		s.metrics.ObserveEmailSendDuration(s.now().Sub(sendStart))
	}

	if sendErr == nil {
		return s.recordSuccess(ctx, order), nil
	}
	return s.recordFailure(ctx, order, sendErr), nil
}

func (s *DeliveryService) recordSuccess(ctx context.Context, order *domain.Order) AttemptResult {
	upd := repository.DeliveryStatusUpdate{
		Sent:        true,
		Error:       nil,
		RetryCount:  0,
		NextRetryAt: nil,
	}

	if err := s.orders.UpdateDeliveryStatus(ctx, order.ID, order.EmailRetryCount, upd); err != nil {
		// The mail went out; the stale row will be corrected by the next
		// trigger, so the outcome is still reported to the caller.
		s.logger.Error("failed to persist successful delivery",
			zap.String("orderId", order.ID),
			zap.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.IncEmailSent()
	}
	s.logger.Info("order notification sent", zap.String("orderId", order.ID))

	return AttemptResult{Sent: true}
}

func (s *DeliveryService) recordFailure(ctx context.Context, order *domain.Order, sendErr error) AttemptResult {
	newRetryCount := order.EmailRetryCount + 1
	nextRetryAt := s.now().Add(backoffDelay(newRetryCount))
	errMsg := strings.TrimSpace(sendErr.Error())

	upd := repository.DeliveryStatusUpdate{
		Sent:        false,
		Error:       &errMsg,
		RetryCount:  newRetryCount,
		NextRetryAt: &nextRetryAt,
	}

	if err := s.orders.UpdateDeliveryStatus(ctx, order.ID, order.EmailRetryCount, upd); err != nil {
		s.logger.Error("failed to persist delivery failure",
			zap.String("orderId", order.ID),
			zap.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.IncEmailFailed(failureReasonTransport)
		s.metrics.IncRetryScheduled()
	}
	s.logger.Warn("order notification failed",
		zap.String("orderId", order.ID),
		zap.Int("retryCount", newRetryCount),
		zap.Time("nextRetryAt", nextRetryAt),
		zap.Error(sendErr),
	)

	return AttemptResult{
		Sent:        false,
		Error:       &errMsg,
		RetryCount:  newRetryCount,
		NextRetryAt: &nextRetryAt,
	}
}

// RetryOne loads an order, runs one attempt, and returns the refreshed row
// so the admin surface can display the outcome immediately.
func (s *DeliveryService) RetryOne(ctx context.Context, orderID string) (AttemptResult, *domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return AttemptResult{}, nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return AttemptResult{}, nil, err
	}

	result, err := s.Attempt(ctx, order)
	if err != nil {
		return AttemptResult{}, nil, err
	}

	refreshed, getErr := s.orders.GetByID(ctx, orderID)
	if getErr != nil {
		s.logger.Warn("failed to reload order after manual retry",
			zap.String("orderId", orderID),
			zap.Error(getErr),
		)
		return result, order, nil
	}

	return result, refreshed, nil
}

// RetryFailed attempts up to maxOrders currently-failed orders. Eligibility
// deliberately ignores the backoff window: a manual trigger is an operator
// override.
func (s *DeliveryService) RetryFailed(ctx context.Context, maxOrders int) (RetrySummary, error) {
	if maxOrders <= 0 {
		maxOrders = defaultBulkRetryLimit
	}

	candidates, err := s.orders.SelectFailed(ctx, maxOrders)
	if err != nil {
		return RetrySummary{}, fmt.Errorf("failed to select failed orders: %w", err)
	}

	var summary RetrySummary
	for i := range candidates {
		order := candidates[i]

		result, attemptErr := s.Attempt(ctx, &order)
		if attemptErr != nil {
			summary.Failed++
			s.logger.Warn("bulk retry attempt not run",
				zap.String("orderId", order.ID),
				zap.Error(attemptErr),
			)
			continue
		}

		if result.Sent {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	return summary, nil
}
