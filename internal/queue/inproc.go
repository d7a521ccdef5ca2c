package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultAttemptTimeout = 30 * time.Second

// InProcPublisher runs delivery hand-offs on a detached goroutine inside the
// same process. Publish returns immediately; the handler runs under a fresh
// timeout-bounded context so mail-provider latency never reaches the
// checkout response, and a cancelled request context never aborts an
// attempt already handed off.
type InProcPublisher struct {
	handler MessageHandler
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInProcPublisher(handler MessageHandler, timeout time.Duration, logger *zap.Logger) (*InProcPublisher, error) {
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InProcPublisher{
		handler: handler,
		logger:  logger,
		timeout: timeout,
	}, nil
}

func (p *InProcPublisher) Publish(_ context.Context, queueName string, msg DeliveryMessage) error {
	if p == nil || p.handler == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queueName == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid delivery message: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.handler(ctx, msg); err != nil {
			p.logger.Error("detached delivery handler failed",
				zap.String("orderId", msg.OrderID),
				zap.Error(err),
			)
		}
	}()

	return nil
}

// Close waits for in-flight hand-offs to finish, so a clean shutdown lets
// accepted checkouts complete their first attempt.
func (p *InProcPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.wg.Wait()
	return nil
}
