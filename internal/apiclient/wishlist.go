package apiclient

import (
	"context"
	"net/http"

	"github.com/example/ec-storefront/internal/model"
)

type wishlistAddRequest struct {
	ProductID int64 `json:"productId"`
}

func (c *Client) Wishlist(ctx context.Context) ([]model.WishlistEntry, error) {
	resp, err := c.Send(ctx, http.MethodGet, apiPrefix+"/wishlist", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeWishlist(resp.Body)
}

func (c *Client) AddWishlist(ctx context.Context, productID int64) error {
	_, err := c.Send(ctx, http.MethodPost, apiPrefix+"/wishlist", wishlistAddRequest{ProductID: productID}, nil)
	return err
}

func (c *Client) RemoveWishlist(ctx context.Context, productID int64) error {
	_, err := c.Send(ctx, http.MethodDelete, idPath(apiPrefix+"/wishlist", productID), nil, nil)
	return err
}
