package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDeliveryCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncOrderCreated()
	metrics.IncEmailSent()
	metrics.IncEmailFailed("transport_error")
	metrics.IncEmailFailed("  ")
	metrics.ObserveEmailSendDuration(120 * time.Millisecond)
	metrics.IncRetryScheduled()

	if got := testutil.ToFloat64(metrics.ordersCreatedTotal); got != 1 {
		t.Fatalf("orders_created_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.emailsSentTotal); got != 1 {
		t.Fatalf("order_emails_sent_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.emailsFailedTotal.WithLabelValues("transport_error")); got != 1 {
		t.Fatalf("order_emails_failed_total{transport_error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.emailsFailedTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("order_emails_failed_total{unknown} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.retryScheduledTotal); got != 1 {
		t.Fatalf("email_retries_scheduled_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncOrderCreated()
	metrics.IncEmailSent()
	metrics.IncEmailFailed("x")
	metrics.ObserveEmailSendDuration(time.Second)
	metrics.IncRetryScheduled()
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
