// Package cart mirrors the server cart. Every mutation is confirm-then-apply:
// the request goes out first and only the server's answer changes local
// state. Totals are always recomputed from the lines.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/storage"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidProduct  = errors.New("product id must be positive")
	ErrInvalidPrice    = errors.New("unit price must not be negative")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrStaleResponse   = errors.New("cart was reset while the request was in flight")
)

// API is the subset of the REST client the cart uses
type API interface {
	GetCart(ctx context.Context, cartUUID string) (*model.Cart, error)
	AddCartItem(ctx context.Context, req apiclient.AddItemRequest) (*model.CartLine, error)
	UpdateCartItem(ctx context.Context, lineID int64, quantity int) (*model.CartLine, error)
	RemoveCartItem(ctx context.Context, lineID int64) error
	ClearCart(ctx context.Context, cartUUID string) error
}

// SessionView tells the cart whether a user is logged in
type SessionView interface {
	Authenticated() bool
}

type Store struct {
	api     API
	store   storage.Storage
	bus     *events.Bus
	session SessionView

	mu        sync.RWMutex
	cart      model.Cart
	gen       uint64 // bumped by Reset
	err       error
	listeners map[int]func(model.Cart)
	nextID    int
}

// NewStore creates an empty cart. session may be nil, meaning anonymous.
func NewStore(api API, store storage.Storage, bus *events.Bus, session SessionView) *Store {
	return &Store{
		api:       api,
		store:     store,
		bus:       bus,
		session:   session,
		cart:      model.Cart{Items: []model.CartLine{}},
		listeners: make(map[int]func(model.Cart)),
	}
}

// Snapshot returns a copy of the cart
func (s *Store) Snapshot() model.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Err returns the error of the most recent failed operation
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Subscribe registers fn to receive the cart after every applied change
func (s *Store) Subscribe(fn func(model.Cart)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// FetchCart loads the authoritative cart. A missing cart is an empty cart.
func (s *Store) FetchCart(ctx context.Context) (model.Cart, error) {
	gen := s.generation()
	cartUUID := s.storedCartUUID(ctx)

	server, err := s.api.GetCart(ctx, cartUUID)
	if err != nil && !apiclient.IsNotFound(err) {
		return s.Snapshot(), s.fail(err)
	}

	var next model.Cart
	if err == nil && server != nil {
		next = *server
	}
	next.Items = collapseByProduct(next.Items)
	if next.CartUUID == "" {
		next.CartUUID = cartUUID
	}

	applied, err := s.apply(gen, "fetch", func(c *model.Cart) error {
		*c = next
		return nil
	})
	if err != nil {
		return applied, err
	}
	if server != nil && server.CartUUID != "" && server.CartUUID != cartUUID && !s.authenticated() {
		s.saveCartUUID(ctx, server.CartUUID)
	}
	return applied, nil
}

// AddItem asks the server to add quantity of productID. The returned line
// already holds the server's merged quantity and replaces any local line
// for the product.
func (s *Store) AddItem(ctx context.Context, productID int64, quantity int, unitPrice decimal.Decimal) (model.Cart, error) {
	if productID <= 0 {
		return s.Snapshot(), s.fail(ErrInvalidProduct)
	}
	if quantity <= 0 {
		return s.Snapshot(), s.fail(ErrInvalidQuantity)
	}
	if unitPrice.IsNegative() {
		return s.Snapshot(), s.fail(ErrInvalidPrice)
	}

	gen := s.generation()
	req := apiclient.AddItemRequest{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice}
	if !s.authenticated() {
		cartUUID, err := s.ensureCartUUID(ctx)
		if err != nil {
			return s.Snapshot(), s.fail(err)
		}
		req.CartUUID = cartUUID
	}

	line, err := s.api.AddCartItem(ctx, req)
	if err != nil {
		return s.Snapshot(), s.fail(err)
	}
	if line.ProductID == 0 {
		line.ProductID = productID
	}

	return s.apply(gen, "add", func(c *model.Cart) error {
		if req.CartUUID != "" && c.CartUUID == "" {
			c.CartUUID = req.CartUUID
		}
		upsertByProduct(c, *line)
		return nil
	})
}

// UpdateItem sets the quantity of a line. A line the server returns but
// the mirror no longer holds is appended rather than dropped.
func (s *Store) UpdateItem(ctx context.Context, lineID int64, quantity int) (model.Cart, error) {
	if quantity <= 0 {
		return s.Snapshot(), s.fail(ErrInvalidQuantity)
	}

	gen := s.generation()
	line, err := s.api.UpdateCartItem(ctx, lineID, quantity)
	if err != nil {
		return s.Snapshot(), s.fail(err)
	}
	if line.ID == 0 {
		line.ID = lineID
	}

	return s.apply(gen, "update", func(c *model.Cart) error {
		if i := c.LineByID(line.ID); i >= 0 {
			if line.ProductID == 0 {
				line.ProductID = c.Items[i].ProductID
			}
			if line.Quantity <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
			c.Items[i] = *line
			dedupeProduct(c, i)
			return nil
		}
		upsertByProduct(c, *line)
		return nil
	})
}

// RemoveItem deletes a line. A 404 means the server no longer has the
// line, so it is dropped locally as well.
func (s *Store) RemoveItem(ctx context.Context, lineID int64) (model.Cart, error) {
	gen := s.generation()
	err := s.api.RemoveCartItem(ctx, lineID)
	if err != nil && !apiclient.IsNotFound(err) {
		return s.Snapshot(), s.fail(err)
	}
	if err != nil {
		log.Printf("[Cart] Line %d already gone on the server", lineID)
	}

	return s.apply(gen, "remove", func(c *model.Cart) error {
		if i := c.LineByID(lineID); i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		return nil
	})
}

// Increment adds one unit to a line
func (s *Store) Increment(ctx context.Context, lineID int64) (model.Cart, error) {
	line, err := s.line(lineID)
	if err != nil {
		return s.Snapshot(), s.fail(err)
	}
	return s.UpdateItem(ctx, lineID, line.Quantity+1)
}

// Decrement removes one unit from a line; the last unit removes the line
func (s *Store) Decrement(ctx context.Context, lineID int64) (model.Cart, error) {
	line, err := s.line(lineID)
	if err != nil {
		return s.Snapshot(), s.fail(err)
	}
	if line.Quantity <= 1 {
		return s.RemoveItem(ctx, lineID)
	}
	return s.UpdateItem(ctx, lineID, line.Quantity-1)
}

// SetQuantity is the UI entry point for quantity edits: zero removes the line
func (s *Store) SetQuantity(ctx context.Context, lineID int64, quantity int) (model.Cart, error) {
	if quantity == 0 {
		return s.RemoveItem(ctx, lineID)
	}
	return s.UpdateItem(ctx, lineID, quantity)
}

// ClearCart empties the server cart and then the mirror, regardless of
// other mutations in flight
func (s *Store) ClearCart(ctx context.Context) (model.Cart, error) {
	gen := s.generation()
	if err := s.api.ClearCart(ctx, s.storedCartUUID(ctx)); err != nil {
		return s.Snapshot(), s.fail(err)
	}
	return s.apply(gen, "clear", func(c *model.Cart) error {
		c.Items = []model.CartLine{}
		return nil
	})
}

// Reset empties the mirror without calling the server. Responses to
// requests issued before the reset are discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.gen++
	s.cart = model.Cart{Items: []model.CartLine{}}
	s.err = nil
	s.mu.Unlock()

	s.notify()
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// apply runs mutate on the cart if no reset happened since gen, then
// recomputes totals and notifies
func (s *Store) apply(gen uint64, op string, mutate func(c *model.Cart) error) (model.Cart, error) {
	s.mu.Lock()
	if s.gen != gen {
		snap := s.cart.Clone()
		s.mu.Unlock()
		log.Printf("[Cart] Discarding %s response: cart was reset", op)
		return snap, ErrStaleResponse
	}
	next := s.cart.Clone()
	if err := mutate(&next); err != nil {
		s.err = err
		snap := s.cart.Clone()
		s.mu.Unlock()
		return snap, err
	}
	next.Recompute()
	s.cart = next
	s.err = nil
	snap := next.Clone()
	s.mu.Unlock()

	s.notify()
	return snap, nil
}

func (s *Store) notify() {
	s.mu.RLock()
	snap := s.cart.Clone()
	fns := make([]func(model.Cart), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
	if s.bus != nil {
		s.bus.Emit(events.CartChanged, "cart")
	}
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	log.Printf("[Cart] %v", err)
	return err
}

func (s *Store) line(lineID int64) (model.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.cart.LineByID(lineID)
	if i < 0 {
		return model.CartLine{}, fmt.Errorf("%w: %d", ErrLineNotFound, lineID)
	}
	return s.cart.Items[i], nil
}

func (s *Store) authenticated() bool {
	return s.session != nil && s.session.Authenticated()
}

func (s *Store) storedCartUUID(ctx context.Context) string {
	if s.store == nil {
		return ""
	}
	v, ok, err := s.store.Get(ctx, storage.KeyCartUUID)
	if err != nil {
		log.Printf("[Cart] Failed to read cart uuid: %v", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// ensureCartUUID returns the anonymous cart key, creating one on first use
func (s *Store) ensureCartUUID(ctx context.Context) (string, error) {
	if v := s.storedCartUUID(ctx); v != "" {
		return v, nil
	}
	v := uuid.New().String()
	if s.store != nil {
		if err := s.store.Set(ctx, storage.KeyCartUUID, v); err != nil {
			return "", fmt.Errorf("failed to persist cart uuid: %w", err)
		}
	}
	return v, nil
}

func (s *Store) saveCartUUID(ctx context.Context, v string) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, storage.KeyCartUUID, v); err != nil {
		log.Printf("[Cart] Failed to persist cart uuid: %v", err)
	}
}

// upsertByProduct replaces the line for line.ProductID or appends it. A
// non-positive quantity from the server removes the line.
func upsertByProduct(c *model.Cart, line model.CartLine) {
	i := c.LineByProduct(line.ProductID)
	if line.Quantity <= 0 {
		if i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		return
	}
	if i >= 0 {
		c.Items[i] = line
		return
	}
	c.Items = append(c.Items, line)
}

// collapseByProduct keeps one line per product. A later duplicate wins
// and takes the position of the first.
func collapseByProduct(items []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, 0, len(items))
	seen := make(map[int64]int, len(items))
	for _, item := range items {
		if i, ok := seen[item.ProductID]; ok {
			out[i] = item
			continue
		}
		seen[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}

// dedupeProduct drops any other line holding the product of Items[keep]
func dedupeProduct(c *model.Cart, keep int) {
	productID := c.Items[keep].ProductID
	out := c.Items[:0]
	for i, item := range c.Items {
		if i != keep && item.ProductID == productID {
			continue
		}
		out = append(out, item)
	}
	c.Items = out
}
