package queue

import (
	"fmt"
	"strings"
)

// DeliveryMessage is the hand-off payload: just enough to reload the order
// and run one delivery attempt.
type DeliveryMessage struct {
	OrderID       string `json:"orderId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m DeliveryMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return fmt.Errorf("orderId is required")
	}
	return nil
}
