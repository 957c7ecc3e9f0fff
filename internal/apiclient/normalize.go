package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/model"
)

// The API is inconsistent about product and wishlist field names. These
// wire types accept every known variant and map onto the model once.

type wireProduct struct {
	ID                int64                `json:"id"`
	SKU               string               `json:"sku"`
	ProductName       string               `json:"productName"`
	Name              string               `json:"name"`
	ShortDescription  string               `json:"shortDescription"`
	Description       string               `json:"description"`
	Price             decimal.Decimal      `json:"price"`
	Available         *bool                `json:"available"`
	IsAvailable       *bool                `json:"isAvailable"`
	IsAvailableSnake  *bool                `json:"is_available"`
	CategoryID        int64                `json:"categoryId"`
	BrandID           int64                `json:"brandId"`
	AvailableQuantity int                  `json:"availableQuantity"`
	Images            []model.ProductImage `json:"images"`
}

func (w wireProduct) canonical() model.Product {
	p := model.Product{
		ID:               w.ID,
		SKU:              w.SKU,
		Name:             firstNonEmpty(w.ProductName, w.Name),
		ShortDescription: w.ShortDescription,
		Description:      w.Description,
		Price:            w.Price,
		Available:        true,
		CategoryID:       w.CategoryID,
		BrandID:          w.BrandID,
		Stock:            w.AvailableQuantity,
		Images:           w.Images,
	}
	switch {
	case w.IsAvailableSnake != nil:
		p.Available = *w.IsAvailableSnake
	case w.IsAvailable != nil:
		p.Available = *w.IsAvailable
	case w.Available != nil:
		p.Available = *w.Available
	}
	if p.Images == nil {
		p.Images = []model.ProductImage{}
	}
	return p
}

type wireProductPage struct {
	Content       []wireProduct `json:"content"`
	TotalPages    int           `json:"totalPages"`
	TotalElements int           `json:"totalElements"`
}

// decodeProductPage accepts a paged object or a bare array
func decodeProductPage(body []byte) (*model.ProductPage, error) {
	var wire wireProductPage
	if isJSONArray(body) {
		if err := json.Unmarshal(body, &wire.Content); err != nil {
			return nil, fmt.Errorf("failed to decode products: %w", err)
		}
	} else if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &wire); err != nil {
			return nil, fmt.Errorf("failed to decode product page: %w", err)
		}
	}

	page := &model.ProductPage{
		Items:      make([]model.Product, 0, len(wire.Content)),
		TotalPages: wire.TotalPages,
		TotalItems: wire.TotalElements,
	}
	for _, p := range wire.Content {
		page.Items = append(page.Items, p.canonical())
	}
	if page.TotalPages == 0 {
		page.TotalPages = 1
	}
	if page.TotalItems == 0 {
		page.TotalItems = len(page.Items)
	}
	return page, nil
}

func decodeProduct(body []byte) (*model.Product, error) {
	var wire wireProduct
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	p := wire.canonical()
	return &p, nil
}

type wireWishlistEntry struct {
	ProductID   *int64               `json:"productId"`
	ID          int64                `json:"id"`
	ProductName string               `json:"productName"`
	Name        string               `json:"name"`
	Price       decimal.Decimal      `json:"price"`
	ImageURL    string               `json:"imageUrl"`
	Images      []model.ProductImage `json:"images"`
}

func (w wireWishlistEntry) canonical() model.WishlistEntry {
	e := model.WishlistEntry{
		ProductID: w.ID,
		Name:      firstNonEmpty(w.ProductName, w.Name),
		Price:     w.Price,
		ImageURL:  w.ImageURL,
	}
	if w.ProductID != nil {
		e.ProductID = *w.ProductID
	}
	if e.ImageURL == "" && len(w.Images) > 0 {
		e.ImageURL = w.Images[0].ImageURL
	}
	return e
}

func decodeWishlist(body []byte) ([]model.WishlistEntry, error) {
	var wire []wireWishlistEntry
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &wire); err != nil {
			return nil, fmt.Errorf("failed to decode wishlist: %w", err)
		}
	}
	entries := make([]model.WishlistEntry, 0, len(wire))
	for _, w := range wire {
		entries = append(entries, w.canonical())
	}
	return entries, nil
}

// WishlistEntryFromProduct builds the entry stored when a product is saved
func WishlistEntryFromProduct(p model.Product) model.WishlistEntry {
	e := model.WishlistEntry{ProductID: p.ID, Name: p.Name, Price: p.Price}
	if len(p.Images) > 0 {
		e.ImageURL = p.Images[0].ImageURL
	}
	return e
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
