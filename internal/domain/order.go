package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is the product as it was at checkout time. Later catalog
// edits never alter it.
type ProductSnapshot struct {
	Slug  string
	Title string
	Price decimal.Decimal
}

// CustomerSnapshot holds the buyer contact details captured at checkout.
type CustomerSnapshot struct {
	Name  string
	Email string
	Phone *string
}

// ShippingSnapshot holds the destination captured at checkout.
type ShippingSnapshot struct {
	Address string
	City    string
	State   string
	Zip     string
}

// Order is a denormalized record of one completed checkout plus the state of
// its business-notification email. The row is created before any delivery
// attempt and is mutated only through delivery status updates.
type Order struct {
	ID       string
	Product  ProductSnapshot
	Customer CustomerSnapshot
	Shipping ShippingSnapshot

	// RawContext is an opaque client-context blob forwarded read-only into
	// the composed message. It is never inspected for control flow.
	RawContext json.RawMessage

	// EmailSent=true is terminal and implies EmailError==nil.
	EmailSent       bool
	EmailError      *string
	EmailRetryCount int
	NextRetryAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the required checkout fields. The first missing field is
// named in the error so the checkout caller can surface it.
func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: order is required", ErrValidation)
	}

	required := []struct {
		field string
		value string
	}{
		{"productSlug", o.Product.Slug},
		{"productTitle", o.Product.Title},
		{"customerName", o.Customer.Name},
		{"customerEmail", o.Customer.Email},
		{"shippingAddress", o.Shipping.Address},
		{"shippingCity", o.Shipping.City},
		{"shippingState", o.Shipping.State},
		{"shippingZip", o.Shipping.Zip},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, r.field)
		}
	}

	if o.Product.Price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: productPrice must be positive", ErrValidation)
	}

	return nil
}
