package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/ec-storefront/internal/model"
)

type ReviewRequest struct {
	Rating int    `json:"rating"`
	Title  string `json:"reviewTitle"`
	Text   string `json:"reviewText"`
}

func filterQuery(f model.ProductFilters) *Options {
	q := url.Values{}
	if f.CategoryID != nil {
		q.Set("categoryId", strconv.FormatInt(*f.CategoryID, 10))
	}
	if f.BrandID != nil {
		q.Set("brandId", strconv.FormatInt(*f.BrandID, 10))
	}
	if f.MinPrice != nil {
		q.Set("minPrice", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", f.MaxPrice.String())
	}
	if f.Keyword != "" {
		q.Set("keyword", f.Keyword)
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
	}
	q.Set("page", strconv.Itoa(f.Page))
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return &Options{Query: q}
}

func (c *Client) ListProducts(ctx context.Context, filters model.ProductFilters) (*model.ProductPage, error) {
	resp, err := c.Send(ctx, http.MethodGet, apiPrefix+"/products", nil, filterQuery(filters))
	if err != nil {
		return nil, err
	}
	return decodeProductPage(resp.Body)
}

func (c *Client) SearchProducts(ctx context.Context, filters model.ProductFilters) (*model.ProductPage, error) {
	resp, err := c.Send(ctx, http.MethodGet, apiPrefix+"/products/search", nil, filterQuery(filters))
	if err != nil {
		return nil, err
	}
	return decodeProductPage(resp.Body)
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	resp, err := c.Send(ctx, http.MethodGet, idPath(apiPrefix+"/products", id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeProduct(resp.Body)
}

func (c *Client) ProductReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	out := []model.Review{}
	if err := c.call(ctx, http.MethodGet, idPath(apiPrefix+"/products", productID)+"/reviews", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// PostReview submits a review on behalf of userID
func (c *Client) PostReview(ctx context.Context, productID, userID int64, req ReviewRequest) (*model.Review, error) {
	opts := &Options{Header: http.Header{"X-User-Id": {strconv.FormatInt(userID, 10)}}}
	var out model.Review
	if err := c.call(ctx, http.MethodPost, idPath(apiPrefix+"/products", productID)+"/reviews", req, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	out := []model.Category{}
	if err := c.call(ctx, http.MethodGet, apiPrefix+"/products/categories", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Brands(ctx context.Context) ([]model.Brand, error) {
	out := []model.Brand{}
	if err := c.call(ctx, http.MethodGet, apiPrefix+"/products/brands", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}
