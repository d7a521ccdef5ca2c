package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/order-intake/internal/domain"
)

// OrderModel is the persistence model for the orders table. Snapshots are
// flattened into columns; raw client context is stored as jsonb.
type OrderModel struct {
	ID string `gorm:"type:uuid;primaryKey"`

	ProductSlug  string          `gorm:"type:varchar(255);not null"`
	ProductTitle string          `gorm:"type:varchar(255);not null"`
	ProductPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`

	CustomerName  string  `gorm:"type:varchar(255);not null"`
	CustomerEmail string  `gorm:"type:varchar(255);not null"`
	CustomerPhone *string `gorm:"type:varchar(64)"`

	ShippingAddress string `gorm:"type:varchar(512);not null"`
	ShippingCity    string `gorm:"type:varchar(128);not null"`
	ShippingState   string `gorm:"type:varchar(64);not null"`
	ShippingZip     string `gorm:"type:varchar(32);not null"`

	RawContext []byte `gorm:"type:jsonb"`

	EmailSent       bool    `gorm:"not null;default:false"`
	EmailError      *string `gorm:"type:text"`
	EmailRetryCount int     `gorm:"not null;default:0"`
	NextRetryAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

func orderModelFromDomain(o *domain.Order) *OrderModel {
	if o == nil {
		return nil
	}

	return &OrderModel{
		ID:              o.ID,
		ProductSlug:     o.Product.Slug,
		ProductTitle:    o.Product.Title,
		ProductPrice:    o.Product.Price,
		CustomerName:    o.Customer.Name,
		CustomerEmail:   o.Customer.Email,
		CustomerPhone:   o.Customer.Phone,
		ShippingAddress: o.Shipping.Address,
		ShippingCity:    o.Shipping.City,
		ShippingState:   o.Shipping.State,
		ShippingZip:     o.Shipping.Zip,
		RawContext:      o.RawContext,
		EmailSent:       o.EmailSent,
		EmailError:      o.EmailError,
		EmailRetryCount: o.EmailRetryCount,
		NextRetryAt:     o.NextRetryAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func orderModelToDomain(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}

	return &domain.Order{
		ID: m.ID,
		Product: domain.ProductSnapshot{
			Slug:  m.ProductSlug,
			Title: m.ProductTitle,
			Price: m.ProductPrice,
		},
		Customer: domain.CustomerSnapshot{
			Name:  m.CustomerName,
			Email: m.CustomerEmail,
			Phone: m.CustomerPhone,
		},
		Shipping: domain.ShippingSnapshot{
			Address: m.ShippingAddress,
			City:    m.ShippingCity,
			State:   m.ShippingState,
			Zip:     m.ShippingZip,
		},
		RawContext:      m.RawContext,
		EmailSent:       m.EmailSent,
		EmailError:      m.EmailError,
		EmailRetryCount: m.EmailRetryCount,
		NextRetryAt:     m.NextRetryAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
