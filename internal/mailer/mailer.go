package mailer

import (
	"context"
	"fmt"
	"strings"
)

// Message is a composed business-notification email.
type Message struct {
	To       string
	Subject  string
	BodyHTML string
}

// Transport is the outbound mail delivery port. One call is one delivery
// attempt; implementations are stateless and injected, never global.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// TransportError carries the provider failure detail that is persisted as
// the order's emailError. Every transport failure is treated as retryable;
// no permanent/transient distinction is made.
type TransportError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "mail transport error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
