package model

import "github.com/shopspring/decimal"

// CartLine is one server-tracked row of the cart
type CartLine struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	ProductName string          `json:"productName,omitempty"`
}

// Cart is the local mirror of the server cart. ID 0 means no server cart exists.
type Cart struct {
	ID          int64           `json:"id,omitempty"`
	CartUUID    string          `json:"cartUuid,omitempty"`
	UserID      int64           `json:"userId,omitempty"`
	Items       []CartLine      `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Totals computes item count and amount from the lines.
// It is the only place cart totals are derived.
func Totals(items []CartLine) (int, decimal.Decimal) {
	totalItems := 0
	totalAmount := decimal.Zero
	for _, item := range items {
		totalItems += item.Quantity
		totalAmount = totalAmount.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return totalItems, totalAmount
}

// Recompute refreshes the derived totals from Items
func (c *Cart) Recompute() {
	c.TotalItems, c.TotalAmount = Totals(c.Items)
}

// Clone returns a deep copy safe to hand to readers
func (c Cart) Clone() Cart {
	items := make([]CartLine, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// LineByProduct returns the index of the line for productID, or -1
func (c *Cart) LineByProduct(productID int64) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// LineByID returns the index of the line with the given id, or -1
func (c *Cart) LineByID(lineID int64) int {
	for i, item := range c.Items {
		if item.ID == lineID {
			return i
		}
	}
	return -1
}
