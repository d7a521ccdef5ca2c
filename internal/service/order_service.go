package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/order-intake/internal/domain"
	"github.com/storefront/order-intake/internal/observability"
	"github.com/storefront/order-intake/internal/queue"
	"github.com/storefront/order-intake/internal/repository"
	"go.uber.org/zap"
)

// OrderService is the synchronous order-creation entry point. The checkout
// response depends only on the insert; delivery is handed off detached.
type OrderService struct {
	orders    repository.OrderRepository
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewOrderService(
	orders repository.OrderRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*OrderService, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("dispatch publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OrderService{
		orders:    orders,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (s *OrderService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SubmitOrder validates and durably stores the order, then hands delivery
// off without waiting for it. Once the insert commits the checkout has
// succeeded; a failed hand-off is logged and left to the sweep.
func (s *OrderService) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := prepareOrderForCreate(order); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncOrderCreated()
	}

	msg := queue.DeliveryMessage{
		OrderID:       order.ID,
		CorrelationID: correlationID(ctx),
	}
	if err := s.publisher.Publish(ctx, queue.EmailQueue, msg); err != nil {
		observability.WithContextLogger(s.logger, ctx).Error("failed to hand off order notification; sweep will pick it up",
			zap.String("orderId", order.ID),
			zap.Error(err),
		)
	}

	return order, nil
}

func (s *OrderService) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) List(ctx context.Context, params repository.ListParams) ([]domain.Order, int64, error) {
	return s.orders.List(ctx, params)
}

func prepareOrderForCreate(o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("%w: order is required", domain.ErrValidation)
	}

	o.Product.Slug = strings.TrimSpace(o.Product.Slug)
	o.Product.Title = strings.TrimSpace(o.Product.Title)
	o.Customer.Name = strings.TrimSpace(o.Customer.Name)
	o.Customer.Email = strings.TrimSpace(o.Customer.Email)
	o.Customer.Phone = normalizeOptionalString(o.Customer.Phone)
	o.Shipping.Address = strings.TrimSpace(o.Shipping.Address)
	o.Shipping.City = strings.TrimSpace(o.Shipping.City)
	o.Shipping.State = strings.TrimSpace(o.Shipping.State)
	o.Shipping.Zip = strings.TrimSpace(o.Shipping.Zip)

	o.ID = strings.TrimSpace(o.ID)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	o.EmailSent = false
	o.EmailError = nil
	o.EmailRetryCount = 0
	o.NextRetryAt = nil

	return o.Validate()
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func correlationID(ctx context.Context) string {
	if id, ok := observability.CorrelationIDFromContext(ctx); ok {
		return id
	}
	return ""
}
