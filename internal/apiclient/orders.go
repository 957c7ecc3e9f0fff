package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/model"
)

const ProviderFake = "FAKE"

type CreateOrderRequest struct {
	Items             []model.OrderLine `json:"items"`
	ShippingAddressID int64             `json:"shippingAddressId"`
	CartUUID          string            `json:"cartUuid,omitempty"`
}

type PaymentRequest struct {
	OrderID  int64           `json:"orderId"`
	Provider string          `json:"provider"`
	Amount   decimal.Decimal `json:"amount"`
}

type VerifyPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	Success   bool   `json:"success"`
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	var out model.Order
	if err := c.call(ctx, http.MethodPost, apiPrefix+"/orders", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	out := []model.Order{}
	if err := c.call(ctx, http.MethodGet, apiPrefix+"/orders", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	var out model.Order
	if err := c.call(ctx, http.MethodGet, apiPrefix+"/orders/"+url.PathEscape(orderNumber), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InitiatePayment(ctx context.Context, req PaymentRequest) (*model.Payment, error) {
	var out model.Payment
	if err := c.call(ctx, http.MethodPost, apiPrefix+"/payments/initiate", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*model.Payment, error) {
	var out model.Payment
	if err := c.call(ctx, http.MethodPost, apiPrefix+"/payments/verify", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}
