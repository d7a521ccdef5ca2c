package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/storefront/order-intake/internal/domain"
	"github.com/storefront/order-intake/internal/observability"
	"github.com/storefront/order-intake/internal/repository"
	"github.com/storefront/order-intake/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type OrderService interface {
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Order, int64, error)
}

type RetryService interface {
	RetryOne(ctx context.Context, orderID string) (service.AttemptResult, *domain.Order, error)
	RetryFailed(ctx context.Context, maxOrders int) (service.RetrySummary, error)
}

type OrderHandler struct {
	orders  OrderService
	retries RetryService
}

func NewOrderHandler(orders OrderService, retries RetryService) (*OrderHandler, error) {
	if orders == nil {
		return nil, fmt.Errorf("order service is required")
	}
	if retries == nil {
		return nil, fmt.Errorf("retry service is required")
	}
	return &OrderHandler{orders: orders, retries: retries}, nil
}

func RegisterOrderRoutes(router fiber.Router, orders OrderService, retries RetryService) error {
	h, err := NewOrderHandler(orders, retries)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/orders", h.CreateOrder)
	v1.Get("/orders/:id", h.GetOrder)
	v1.Get("/orders", h.ListOrders)
	v1.Post("/orders/:id/retry", h.RetryOrderEmail)
	v1.Post("/orders/retry-failed", h.RetryFailedEmails)

	return nil
}

type createOrderRequest struct {
	Product    productPayload  `json:"product"`
	Customer   customerPayload `json:"customer"`
	Shipping   shippingPayload `json:"shipping"`
	RawContext json.RawMessage `json:"rawContext,omitempty"`
}

type productPayload struct {
	Slug  string          `json:"slug"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

type customerPayload struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

type shippingPayload struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

type createOrderResponse struct {
	OrderID  string `json:"orderId"`
	Accepted bool   `json:"accepted"`
}

type orderResponse struct {
	ID              string          `json:"id"`
	Product         productPayload  `json:"product"`
	Customer        customerPayload `json:"customer"`
	Shipping        shippingPayload `json:"shipping"`
	RawContext      json.RawMessage `json:"rawContext,omitempty"`
	EmailSent       bool            `json:"emailSent"`
	EmailError      *string         `json:"emailError,omitempty"`
	EmailRetryCount int             `json:"emailRetryCount"`
	NextRetryAt     *time.Time      `json:"nextRetryAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type listOrdersResponse struct {
	Data []orderResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type retryOrderResponse struct {
	Success bool          `json:"success"`
	Order   orderResponse `json:"order"`
}

type retryFailedRequest struct {
	Limit int `json:"limit"`
}

type retryFailedResponse struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order := requestToDomainOrder(req)
	ctx := observability.WithCorrelationID(c.Context(), requestCorrelationID(c))

	created, err := h.orders.SubmitOrder(ctx, &order)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(createOrderResponse{
		OrderID:  created.ID,
		Accepted: true,
	})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	order, err := h.orders.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	orders, total, err := h.orders.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listOrdersResponse{
		Data: toOrderResponses(orders),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *OrderHandler) RetryOrderEmail(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	result, order, err := h.retries.RetryOne(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(retryOrderResponse{
		Success: result.Sent,
		Order:   toOrderResponse(order),
	})
}

func (h *OrderHandler) RetryFailedEmails(c *fiber.Ctx) error {
	var req retryFailedRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	summary, err := h.retries.RetryFailed(c.Context(), req.Limit)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(retryFailedResponse{
		Sent:   summary.Sent,
		Failed: summary.Failed,
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if raw := strings.TrimSpace(c.Query("emailSent")); raw != "" {
		switch strings.ToLower(raw) {
		case "true":
			v := true
			params.EmailSent = &v
		case "false":
			v := false
			params.EmailSent = &v
		default:
			return repository.ListParams{}, fmt.Errorf("%w: emailSent must be true or false", domain.ErrValidation)
		}
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func requestToDomainOrder(req createOrderRequest) domain.Order {
	return domain.Order{
		Product: domain.ProductSnapshot{
			Slug:  req.Product.Slug,
			Title: req.Product.Title,
			Price: req.Product.Price,
		},
		Customer: domain.CustomerSnapshot{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Shipping: domain.ShippingSnapshot{
			Address: req.Shipping.Address,
			City:    req.Shipping.City,
			State:   req.Shipping.State,
			Zip:     req.Shipping.Zip,
		},
		RawContext: req.RawContext,
	}
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	responses := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		o := order
		responses = append(responses, toOrderResponse(&o))
	}
	return responses
}

func toOrderResponse(o *domain.Order) orderResponse {
	if o == nil {
		return orderResponse{}
	}

	return orderResponse{
		ID: o.ID,
		Product: productPayload{
			Slug:  o.Product.Slug,
			Title: o.Product.Title,
			Price: o.Product.Price,
		},
		Customer: customerPayload{
			Name:  o.Customer.Name,
			Email: o.Customer.Email,
			Phone: o.Customer.Phone,
		},
		Shipping: shippingPayload{
			Address: o.Shipping.Address,
			City:    o.Shipping.City,
			State:   o.Shipping.State,
			Zip:     o.Shipping.Zip,
		},
		RawContext:      o.RawContext,
		EmailSent:       o.EmailSent,
		EmailError:      o.EmailError,
		EmailRetryCount: o.EmailRetryCount,
		NextRetryAt:     o.NextRetryAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
