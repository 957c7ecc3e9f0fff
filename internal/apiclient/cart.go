package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/model"
)

type AddItemRequest struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	CartUUID  string          `json:"cartUuid,omitempty"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func cartQuery(cartUUID string) *Options {
	if cartUUID == "" {
		return nil
	}
	return &Options{Query: url.Values{"cart_uuid": {cartUUID}}}
}

// GetCart returns the current cart. A missing cart is a 404 APIError.
func (c *Client) GetCart(ctx context.Context, cartUUID string) (*model.Cart, error) {
	var out model.Cart
	if err := c.call(ctx, http.MethodGet, apiPrefix+"/cart", nil, &out, cartQuery(cartUUID)); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCartItem returns the server's line for the product, already merged
func (c *Client) AddCartItem(ctx context.Context, req AddItemRequest) (*model.CartLine, error) {
	var out model.CartLine
	if err := c.call(ctx, http.MethodPost, apiPrefix+"/cart/items", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCartItem(ctx context.Context, lineID int64, quantity int) (*model.CartLine, error) {
	var out model.CartLine
	path := idPath(apiPrefix+"/cart/items", lineID)
	if err := c.call(ctx, http.MethodPut, path, updateItemRequest{Quantity: quantity}, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveCartItem(ctx context.Context, lineID int64) error {
	_, err := c.Send(ctx, http.MethodDelete, idPath(apiPrefix+"/cart/items", lineID), nil, nil)
	return err
}

func (c *Client) ClearCart(ctx context.Context, cartUUID string) error {
	_, err := c.Send(ctx, http.MethodDelete, apiPrefix+"/cart", nil, cartQuery(cartUUID))
	return err
}
