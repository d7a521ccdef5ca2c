package service

import (
	"context"

	"github.com/storefront/order-intake/internal/domain"
	"github.com/storefront/order-intake/internal/mailer"
	"github.com/storefront/order-intake/internal/queue"
	"github.com/storefront/order-intake/internal/repository"
)

type fakeOrderRepo struct {
	createFn                func(ctx context.Context, o *domain.Order) error
	getByIDFn               func(ctx context.Context, id string) (*domain.Order, error)
	listFn                  func(ctx context.Context, params repository.ListParams) ([]domain.Order, int64, error)
	updateDeliveryStatusFn  func(ctx context.Context, id string, observedRetryCount int, upd repository.DeliveryStatusUpdate) error
	selectRetryCandidatesFn func(ctx context.Context, maxRetries, limit int) ([]domain.Order, error)
	selectFailedFn          func(ctx context.Context, limit int) ([]domain.Order, error)
}

func (f *fakeOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if f.createFn != nil {
		return f.createFn(ctx, o)
	}
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOrderRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Order, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeOrderRepo) UpdateDeliveryStatus(
	ctx context.Context,
	id string,
	observedRetryCount int,
	upd repository.DeliveryStatusUpdate,
) error {
	if f.updateDeliveryStatusFn != nil {
		return f.updateDeliveryStatusFn(ctx, id, observedRetryCount, upd)
	}
	return nil
}

func (f *fakeOrderRepo) SelectRetryCandidates(ctx context.Context, maxRetries, limit int) ([]domain.Order, error) {
	if f.selectRetryCandidatesFn != nil {
		return f.selectRetryCandidatesFn(ctx, maxRetries, limit)
	}
	return nil, nil
}

func (f *fakeOrderRepo) SelectFailed(ctx context.Context, limit int) ([]domain.Order, error) {
	if f.selectFailedFn != nil {
		return f.selectFailedFn(ctx, limit)
	}
	return nil, nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeTransport struct {
	sendFn func(ctx context.Context, msg mailer.Message) error
}

func (f *fakeTransport) Send(ctx context.Context, msg mailer.Message) error {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return nil
}

type fakeLocker struct {
	acquireFn func(ctx context.Context, orderID string) (string, bool, error)
	releaseFn func(ctx context.Context, orderID string, token string) error
}

func (f *fakeLocker) Acquire(ctx context.Context, orderID string) (string, bool, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, orderID)
	}
	return "token", true, nil
}

func (f *fakeLocker) Release(ctx context.Context, orderID string, token string) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, orderID, token)
	}
	return nil
}
