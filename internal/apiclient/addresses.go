package apiclient

import (
	"context"
	"net/http"

	"github.com/example/ec-storefront/internal/model"
)

func (c *Client) Addresses(ctx context.Context) ([]model.Address, error) {
	out := []model.Address{}
	if err := c.call(ctx, http.MethodGet, apiPrefix+"/shipping-addresses", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAddress(ctx context.Context, addr model.Address) (*model.Address, error) {
	var out model.Address
	if err := c.call(ctx, http.MethodPost, apiPrefix+"/shipping-addresses", addr, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	_, err := c.Send(ctx, http.MethodDelete, idPath(apiPrefix+"/shipping-addresses", id), nil, nil)
	return err
}
