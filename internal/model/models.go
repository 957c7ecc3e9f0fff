package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleCustomer = "ROLE_CUSTOMER"
	RoleAdmin    = "ROLE_ADMIN"
)

// User is the authenticated account as returned by the profile endpoints
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	FullName     string `json:"fullName,omitempty"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	Active       bool   `json:"isActive,omitempty"`
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ProductImage is image metadata attached to a product
type ProductImage struct {
	ID        int64  `json:"id"`
	ImageURL  string `json:"imageUrl"`
	AltText   string `json:"altText,omitempty"`
	IsPrimary bool   `json:"isPrimary,omitempty"`
}

// Product is the canonical product shape after boundary normalization
type Product struct {
	ID               int64           `json:"id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"productName"`
	ShortDescription string          `json:"shortDescription,omitempty"`
	Description      string          `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Available        bool            `json:"available"`
	CategoryID       int64           `json:"categoryId,omitempty"`
	BrandID          int64           `json:"brandId,omitempty"`
	Stock            int             `json:"availableQuantity,omitempty"`
	Images           []ProductImage  `json:"images"`
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Items      []Product `json:"items"`
	TotalPages int       `json:"totalPages"`
	TotalItems int       `json:"totalItems"`
}

// ProductFilters are the listing query parameters. Nil pointers are unset.
type ProductFilters struct {
	CategoryID *int64           `json:"categoryId,omitempty"`
	BrandID    *int64           `json:"brandId,omitempty"`
	MinPrice   *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice   *decimal.Decimal `json:"maxPrice,omitempty"`
	Keyword    string           `json:"keyword,omitempty"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	SortBy     string           `json:"sortBy,omitempty"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"categoryName"`
}

type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"brandName"`
}

// Review is a product review
type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"productId"`
	UserID    int64     `json:"userId"`
	Rating    int       `json:"rating"`
	Title     string    `json:"reviewTitle"`
	Text      string    `json:"reviewText"`
	CreatedAt time.Time `json:"createdAt"`
}

// Address is a shipping address
type Address struct {
	ID           int64  `json:"id"`
	FullName     string `json:"fullName"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	AddressLine  string `json:"addressLine"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	Pincode      string `json:"pincode,omitempty"`
	Country      string `json:"country,omitempty"`
}

// OrderLine is an item in an order
type OrderLine struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Order is a placed order
type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"orderNumber"`
	Status            string          `json:"status"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	ShippingAddressID int64           `json:"shippingAddressId,omitempty"`
	Items             []OrderLine     `json:"items"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Payment is the result of a payment initiation or verification
type Payment struct {
	ID       string          `json:"paymentId"`
	OrderID  int64           `json:"orderId"`
	Provider string          `json:"provider"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status"`
}

// WishlistEntry is a product saved for later
type WishlistEntry struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"productName,omitempty"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl,omitempty"`
}
