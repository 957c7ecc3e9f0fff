package devapi

import (
	"fmt"

	"github.com/example/ec-storefront/internal/model"
)

// CartOwner identifies the cart a request addresses: the user's own cart
// when authenticated, otherwise the guest cart named by its uuid
type CartOwner struct {
	UserID int64
	UUID   string
}

func (o CartOwner) guest() bool { return o.UserID == 0 }

func (s *Store) cartLocked(o CartOwner) (*model.Cart, bool) {
	var id int64
	var ok bool
	if o.guest() {
		id, ok = s.uuidCarts[o.UUID]
	} else {
		id, ok = s.userCarts[o.UserID]
	}
	if !ok {
		return nil, false
	}
	return s.carts[id], true
}

func (s *Store) createCartLocked(o CartOwner) *model.Cart {
	c := &model.Cart{ID: s.id(), UserID: o.UserID, CartUUID: o.UUID, Items: []model.CartLine{}}
	s.carts[c.ID] = c
	if o.guest() {
		s.uuidCarts[o.UUID] = c.ID
	} else {
		s.userCarts[o.UserID] = c.ID
	}
	return c
}

// Cart returns the owner's cart; an owner who never added anything has none
func (s *Store) Cart(o CartOwner) (model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.guest() && o.UUID == "" {
		return model.Cart{}, notFound("Cart")
	}
	c, ok := s.cartLocked(o)
	if !ok {
		return model.Cart{}, notFound("Cart")
	}
	return c.Clone(), nil
}

// AddCartItem merges quantity into the existing line for the product and
// returns the merged line
func (s *Store) AddCartItem(o CartOwner, productID int64, quantity int) (model.CartLine, error) {
	if quantity < 1 {
		return model.CartLine{}, fmt.Errorf("%w: Quantity must be at least 1", ErrInvalid)
	}
	if o.guest() && o.UUID == "" {
		return model.CartLine{}, fmt.Errorf("%w: cart_uuid is required for guest carts", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return model.CartLine{}, notFound("Product")
	}
	if !p.Available {
		return model.CartLine{}, fmt.Errorf("%w: Product is not available", ErrInvalid)
	}

	c, ok := s.cartLocked(o)
	if !ok {
		c = s.createCartLocked(o)
	}
	idx := c.LineByProduct(productID)
	merged := quantity
	if idx >= 0 {
		merged += c.Items[idx].Quantity
	}
	if merged > p.Stock {
		return model.CartLine{}, fmt.Errorf("%w: Insufficient stock for %s", ErrInsufficientStock, p.Name)
	}

	if idx < 0 {
		c.Items = append(c.Items, model.CartLine{ID: s.id(), ProductID: productID})
		idx = len(c.Items) - 1
	}
	line := &c.Items[idx]
	line.Quantity = merged
	line.UnitPrice = p.Price
	line.ProductName = p.Name
	c.Recompute()
	return *line, nil
}

// findLineLocked locates a line the owner may change. Guests can reach
// lines of any guest cart since line updates carry no cart uuid.
func (s *Store) findLineLocked(o CartOwner, lineID int64) (*model.Cart, int, bool) {
	if !o.guest() {
		c, ok := s.cartLocked(o)
		if !ok {
			return nil, -1, false
		}
		idx := c.LineByID(lineID)
		return c, idx, idx >= 0
	}
	for _, c := range s.carts {
		if c.UserID != 0 {
			continue
		}
		if idx := c.LineByID(lineID); idx >= 0 {
			return c, idx, true
		}
	}
	return nil, -1, false
}

func (s *Store) UpdateCartItem(o CartOwner, lineID int64, quantity int) (model.CartLine, error) {
	if quantity < 1 {
		return model.CartLine{}, fmt.Errorf("%w: Quantity must be at least 1", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, idx, ok := s.findLineLocked(o, lineID)
	if !ok {
		return model.CartLine{}, notFound("Cart item")
	}
	line := &c.Items[idx]
	if p, ok := s.products[line.ProductID]; ok && quantity > p.Stock {
		return model.CartLine{}, fmt.Errorf("%w: Insufficient stock for %s", ErrInsufficientStock, p.Name)
	}
	line.Quantity = quantity
	c.Recompute()
	return *line, nil
}

func (s *Store) RemoveCartItem(o CartOwner, lineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, idx, ok := s.findLineLocked(o, lineID)
	if !ok {
		return notFound("Cart item")
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.Recompute()
	return nil
}

// ClearCart empties the owner's cart. Clearing a missing cart succeeds.
func (s *Store) ClearCart(o CartOwner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cartLocked(o); ok {
		c.Items = []model.CartLine{}
		c.Recompute()
	}
}
