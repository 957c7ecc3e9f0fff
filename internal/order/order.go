// Package order mirrors the user's orders and runs checkout.
package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/mirror"
	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/storage"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNoAddress        = errors.New("a shipping address is required")
	ErrPaymentFailed    = errors.New("order created but payment could not be initiated")
	ErrCartNotCleared   = errors.New("order placed but the cart could not be cleared")
	ErrStaleResponse    = errors.New("orders were reset while the request was in flight")
	ErrEmptyOrderNumber = errors.New("order number is required")
)

type API interface {
	CreateOrder(ctx context.Context, req apiclient.CreateOrderRequest) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, orderNumber string) (*model.Order, error)
	InitiatePayment(ctx context.Context, req apiclient.PaymentRequest) (*model.Payment, error)
	VerifyPayment(ctx context.Context, req apiclient.VerifyPaymentRequest) (*model.Payment, error)
}

// Cart is the cart surface checkout reads and clears
type Cart interface {
	Snapshot() model.Cart
	ClearCart(ctx context.Context) (model.Cart, error)
}

type Store struct {
	api   API
	cart  Cart
	store storage.Storage
	list  *mirror.List[model.Order]

	mu      sync.RWMutex
	current *model.Order
}

func NewStore(api API, cart Cart, store storage.Storage) *Store {
	return &Store{
		api:   api,
		cart:  cart,
		store: store,
		list:  mirror.NewList(func(o model.Order) int64 { return o.ID }),
	}
}

func (s *Store) Items() []model.Order { return s.list.Items() }

func (s *Store) Err() error { return s.list.Err() }

func (s *Store) Subscribe(fn func([]model.Order)) func() { return s.list.Subscribe(fn) }

// Current returns the order last loaded by Get
func (s *Store) Current() *model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	o := *s.current
	return &o
}

func (s *Store) Reset() {
	s.list.Reset()
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func (s *Store) Fetch(ctx context.Context) ([]model.Order, error) {
	gen := s.list.Generation()
	orders, err := s.api.ListOrders(ctx)
	if err != nil {
		return s.list.Items(), s.list.Fail(err)
	}
	if !s.list.Replace(gen, orders) {
		return s.list.Items(), ErrStaleResponse
	}
	return s.list.Items(), nil
}

// Get loads one order by its number and makes it current
func (s *Store) Get(ctx context.Context, orderNumber string) (*model.Order, error) {
	if orderNumber == "" {
		return nil, s.list.Fail(ErrEmptyOrderNumber)
	}
	gen := s.list.Generation()
	o, err := s.api.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, s.list.Fail(err)
	}
	if gen != s.list.Generation() {
		return nil, ErrStaleResponse
	}
	s.mu.Lock()
	current := *o
	s.current = &current
	s.mu.Unlock()
	return o, nil
}

// CheckoutResult holds whatever checkout managed to create
type CheckoutResult struct {
	Order   *model.Order
	Payment *model.Payment
}

// Checkout places an order for the current cart, initiates a FAKE payment
// for it and clears the cart. The steps are independent: a failure after
// the order exists is returned together with the created order.
func (s *Store) Checkout(ctx context.Context, addressID int64) (*CheckoutResult, error) {
	snapshot := s.cart.Snapshot()
	if len(snapshot.Items) == 0 {
		return nil, s.list.Fail(ErrEmptyCart)
	}
	if addressID <= 0 {
		return nil, s.list.Fail(ErrNoAddress)
	}

	req := apiclient.CreateOrderRequest{
		Items:             make([]model.OrderLine, 0, len(snapshot.Items)),
		ShippingAddressID: addressID,
		CartUUID:          s.cartUUID(ctx, snapshot),
	}
	for _, line := range snapshot.Items {
		name := line.ProductName
		if name == "" {
			name = fmt.Sprintf("Product #%d", line.ProductID)
		}
		req.Items = append(req.Items, model.OrderLine{
			ProductID:   line.ProductID,
			ProductName: name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	gen := s.list.Generation()
	created, err := s.api.CreateOrder(ctx, req)
	if err != nil {
		return nil, s.list.Fail(err)
	}
	s.list.Append(gen, *created)
	result := &CheckoutResult{Order: created}
	log.Printf("[Order] Created order %s", created.OrderNumber)

	payment, err := s.api.InitiatePayment(ctx, apiclient.PaymentRequest{
		OrderID:  created.ID,
		Provider: apiclient.ProviderFake,
		Amount:   created.TotalAmount,
	})
	if err != nil {
		return result, s.list.Fail(fmt.Errorf("%w: %w", ErrPaymentFailed, err))
	}
	result.Payment = payment

	if _, err := s.cart.ClearCart(ctx); err != nil {
		return result, s.list.Fail(fmt.Errorf("%w: %w", ErrCartNotCleared, err))
	}
	return result, nil
}

// VerifyPayment confirms or rejects a FAKE payment
func (s *Store) VerifyPayment(ctx context.Context, paymentID string, success bool) (*model.Payment, error) {
	p, err := s.api.VerifyPayment(ctx, apiclient.VerifyPaymentRequest{PaymentID: paymentID, Success: success})
	if err != nil {
		return nil, s.list.Fail(err)
	}
	return p, nil
}

func (s *Store) cartUUID(ctx context.Context, c model.Cart) string {
	if c.CartUUID != "" {
		return c.CartUUID
	}
	if s.store == nil {
		return ""
	}
	v, _, err := s.store.Get(ctx, storage.KeyCartUUID)
	if err != nil {
		log.Printf("[Order] Failed to read cart uuid: %v", err)
	}
	return v
}
