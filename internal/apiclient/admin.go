package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/model"
)

const adminProducts = apiPrefix + "/products/admin"

// ProductInput is the admin create/update payload
type ProductInput struct {
	SKU               string          `json:"sku"`
	Name              string          `json:"productName"`
	ShortDescription  string          `json:"shortDescription,omitempty"`
	Description       string          `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Available         bool            `json:"available"`
	CategoryID        int64           `json:"categoryId,omitempty"`
	BrandID           int64           `json:"brandId,omitempty"`
	AvailableQuantity int             `json:"availableQuantity"`
}

type ImageInput struct {
	ImageURL string `json:"imageUrl"`
	AltText  string `json:"altText,omitempty"`
}

type stockInput struct {
	AvailableQuantity int `json:"availableQuantity"`
}

type categoryInput struct {
	Name string `json:"categoryName"`
}

type brandInput struct {
	Name string `json:"brandName"`
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	resp, err := c.Send(ctx, http.MethodPost, adminProducts, in, nil)
	if err != nil {
		return nil, err
	}
	return decodeProduct(resp.Body)
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*model.Product, error) {
	resp, err := c.Send(ctx, http.MethodPut, idPath(adminProducts, id), in, nil)
	if err != nil {
		return nil, err
	}
	return decodeProduct(resp.Body)
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	_, err := c.Send(ctx, http.MethodDelete, idPath(adminProducts, id), nil, nil)
	return err
}

// AddProductImage registers image metadata; the upload itself happens elsewhere
func (c *Client) AddProductImage(ctx context.Context, productID int64, in ImageInput) (*model.ProductImage, error) {
	var out model.ProductImage
	if err := c.call(ctx, http.MethodPost, idPath(adminProducts, productID)+"/images", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProductImage(ctx context.Context, productID, imageID int64) error {
	_, err := c.Send(ctx, http.MethodDelete, idPath(idPath(adminProducts, productID)+"/images", imageID), nil, nil)
	return err
}

func (c *Client) UpdateStock(ctx context.Context, productID int64, quantity int) (*model.Product, error) {
	resp, err := c.Send(ctx, http.MethodPut, idPath(adminProducts, productID)+"/stock", stockInput{AvailableQuantity: quantity}, nil)
	if err != nil {
		return nil, err
	}
	return decodeProduct(resp.Body)
}

func (c *Client) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	var out model.Category
	if err := c.call(ctx, http.MethodPost, adminProducts+"/categories", categoryInput{Name: name}, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBrand(ctx context.Context, name string) (*model.Brand, error) {
	var out model.Brand
	if err := c.call(ctx, http.MethodPost, adminProducts+"/brands", brandInput{Name: name}, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrderStatus lives outside the /api/v1 prefix
func (c *Client) UpdateOrderStatus(ctx context.Context, orderNumber, status string) (*model.Order, error) {
	var out model.Order
	opts := &Options{Query: url.Values{"status": {status}}}
	path := "/admin" + apiPrefix + "/orders/" + url.PathEscape(orderNumber) + "/status"
	if err := c.call(ctx, http.MethodPut, path, nil, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}
