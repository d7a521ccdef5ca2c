package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/order-intake/internal/domain"
	"github.com/storefront/order-intake/internal/queue"
)

func checkoutOrder() *domain.Order {
	return &domain.Order{
		Product: domain.ProductSnapshot{
			Slug:  "walnut-desk",
			Title: "Walnut Standing Desk",
			Price: decimal.NewFromInt(499),
		},
		Customer: domain.CustomerSnapshot{Name: "Ada Buyer", Email: "ada@example.com"},
		Shipping: domain.ShippingSnapshot{Address: "1 Main St", City: "Springfield", State: "IL", Zip: "62701"},
	}
}

func TestSubmitOrderHappyPath(t *testing.T) {
	t.Parallel()

	created := false
	repo := &fakeOrderRepo{
		createFn: func(ctx context.Context, o *domain.Order) error {
			if o.ID == "" {
				t.Fatal("order id should be generated before insert")
			}
			if o.EmailSent || o.EmailError != nil || o.EmailRetryCount != 0 || o.NextRetryAt != nil {
				t.Fatalf("delivery state should start clean, got %+v", o)
			}
			created = true
			o.CreatedAt = time.Now().UTC()
			o.UpdatedAt = o.CreatedAt
			return nil
		},
	}

	published := false
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
			if !created {
				t.Fatal("the row must exist before any delivery hand-off")
			}
			if queueName != queue.EmailQueue {
				t.Fatalf("queue = %q, want %q", queueName, queue.EmailQueue)
			}
			if msg.OrderID == "" {
				t.Fatal("hand-off should carry the order id")
			}
			published = true
			return nil
		},
	}

	svc, err := NewOrderService(repo, publisher, nil)
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}

	result, err := svc.SubmitOrder(context.Background(), checkoutOrder())
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if result.ID == "" {
		t.Fatal("result should carry the generated order id")
	}
	if !published {
		t.Fatal("expected delivery hand-off")
	}
}

func TestSubmitOrderValidationRejectsBeforeInsert(t *testing.T) {
	t.Parallel()

	repo := &fakeOrderRepo{
		createFn: func(ctx context.Context, o *domain.Order) error {
			t.Fatal("no row may be created for invalid input")
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
			t.Fatal("no hand-off for invalid input")
			return nil
		},
	}

	svc, err := NewOrderService(repo, publisher, nil)
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}

	order := checkoutOrder()
	order.Customer.Name = ""

	_, err = svc.SubmitOrder(context.Background(), order)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("SubmitOrder() error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "customerName") {
		t.Fatalf("error = %q, want it to name customerName", err.Error())
	}
}

func TestSubmitOrderInsertFailureSurfaces(t *testing.T) {
	t.Parallel()

	repo := &fakeOrderRepo{
		createFn: func(ctx context.Context, o *domain.Order) error {
			return errors.New("connection refused")
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
			t.Fatal("no hand-off when the insert failed")
			return nil
		},
	}

	svc, err := NewOrderService(repo, publisher, nil)
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}

	if _, err := svc.SubmitOrder(context.Background(), checkoutOrder()); err == nil {
		t.Fatal("SubmitOrder() expected insert error to surface")
	}
}

func TestSubmitOrderSucceedsWhenHandOffFails(t *testing.T) {
	t.Parallel()

	repo := &fakeOrderRepo{}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
			return errors.New("broker unavailable")
		},
	}

	svc, err := NewOrderService(repo, publisher, nil)
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}

	result, err := svc.SubmitOrder(context.Background(), checkoutOrder())
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v, checkout must not fail on a delivery hand-off error", err)
	}
	if result == nil || result.ID == "" {
		t.Fatal("order should still be accepted")
	}
}

func TestSubmitOrderDoesNotWaitForDelivery(t *testing.T) {
	t.Parallel()

	// Slow transport behind a detached in-process hand-off: SubmitOrder's
	// latency must be independent of the attempt duration.
	release := make(chan struct{})
	attemptDone := make(chan struct{})

	handler := func(ctx context.Context, msg queue.DeliveryMessage) error {
		<-release
		close(attemptDone)
		return nil
	}

	publisher, err := queue.NewInProcPublisher(handler, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewInProcPublisher() error = %v", err)
	}

	svc, err := NewOrderService(&fakeOrderRepo{}, publisher, nil)
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}

	begin := time.Now()
	if _, err := svc.SubmitOrder(context.Background(), checkoutOrder()); err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("SubmitOrder() took %v while the attempt was parked; want detachment", elapsed)
	}

	close(release)
	select {
	case <-attemptDone:
	case <-time.After(2 * time.Second):
		t.Fatal("detached attempt never ran")
	}
}

func TestSubmitOrderTrimsFields(t *testing.T) {
	t.Parallel()

	var got *domain.Order
	repo := &fakeOrderRepo{
		createFn: func(ctx context.Context, o *domain.Order) error {
			got = o
			return nil
		},
	}

	svc, err := NewOrderService(repo, &fakePublisher{}, nil)
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}

	order := checkoutOrder()
	order.Customer.Name = "  Ada Buyer  "
	phone := "   "
	order.Customer.Phone = &phone

	if _, err := svc.SubmitOrder(context.Background(), order); err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if got.Customer.Name != "Ada Buyer" {
		t.Fatalf("customer name = %q, want trimmed", got.Customer.Name)
	}
	if got.Customer.Phone != nil {
		t.Fatal("blank phone should normalize to nil")
	}
}

func TestGetByIDRequiresID(t *testing.T) {
	t.Parallel()

	svc, err := NewOrderService(&fakeOrderRepo{}, &fakePublisher{}, nil)
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}

	if _, err := svc.GetByID(context.Background(), "   "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("GetByID() error = %v, want ErrValidation", err)
	}
}
