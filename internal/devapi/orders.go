package devapi

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/model"
)

const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"

	PaymentInitiated = "INITIATED"
	PaymentSuccess   = "SUCCESS"
	PaymentFailed    = "FAILED"
)

var validTransitions = map[string][]string{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

func canTransition(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type storedOrder struct {
	order  model.Order
	userID int64
}

type storedPayment struct {
	payment model.Payment
	userID  int64
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// CreateOrder prices the lines from the catalog and reserves stock
func (s *Store) CreateOrder(userID int64, lines []model.OrderLine, addressID int64) (model.Order, error) {
	if len(lines) == 0 {
		return model.Order{}, fmt.Errorf("%w: Order must have at least one item", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasAddressLocked(userID, addressID) {
		return model.Order{}, notFound("Shipping address")
	}

	wanted := make(map[int64]int)
	for _, l := range lines {
		if l.Quantity < 1 {
			return model.Order{}, fmt.Errorf("%w: Quantity must be at least 1", ErrInvalid)
		}
		p, ok := s.products[l.ProductID]
		if !ok {
			return model.Order{}, notFound(fmt.Sprintf("Product %d", l.ProductID))
		}
		if !p.Available {
			return model.Order{}, fmt.Errorf("%w: %s is not available", ErrInvalid, p.Name)
		}
		wanted[l.ProductID] += l.Quantity
		if wanted[l.ProductID] > p.Stock {
			return model.Order{}, fmt.Errorf("%w: Insufficient stock for %s", ErrInsufficientStock, p.Name)
		}
	}

	o := model.Order{
		ID:                s.id(),
		OrderNumber:       newOrderNumber(),
		Status:            StatusPending,
		ShippingAddressID: addressID,
		TotalAmount:       decimal.Zero,
		CreatedAt:         time.Now().UTC(),
	}
	for _, l := range lines {
		p := s.products[l.ProductID]
		p.Stock -= l.Quantity
		o.Items = append(o.Items, model.OrderLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   p.Price,
		})
		o.TotalAmount = o.TotalAmount.Add(lineTotal(p.Price, l.Quantity))
	}
	s.orders[o.OrderNumber] = &storedOrder{order: o, userID: userID}
	return o, nil
}

func (s *Store) Orders(userID int64) []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Order{}
	for _, so := range s.orders {
		if so.userID == userID {
			out = append(out, so.order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Order returns an order visible to the caller; other users' orders are
// reported as missing unless the caller is an admin
func (s *Store) Order(userID int64, number string, admin bool) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	so, ok := s.orders[number]
	if !ok || (!admin && so.userID != userID) {
		return model.Order{}, notFound("Order")
	}
	return so.order, nil
}

func (s *Store) orderByIDLocked(id int64) (*storedOrder, bool) {
	for _, so := range s.orders {
		if so.order.ID == id {
			return so, true
		}
	}
	return nil, false
}

func (s *Store) InitiatePayment(userID, orderID int64, provider string, amount decimal.Decimal) (model.Payment, error) {
	if provider == "" {
		return model.Payment{}, fmt.Errorf("%w: Payment provider is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	so, ok := s.orderByIDLocked(orderID)
	if !ok || so.userID != userID {
		return model.Payment{}, notFound("Order")
	}
	if so.order.Status != StatusPending {
		return model.Payment{}, fmt.Errorf("%w: Order %s is not awaiting payment", ErrConflict, so.order.OrderNumber)
	}
	if !amount.Equal(so.order.TotalAmount) {
		return model.Payment{}, fmt.Errorf("%w: Payment amount %s does not match order total %s", ErrInvalid, amount, so.order.TotalAmount)
	}
	p := model.Payment{
		ID:       uuid.NewString(),
		OrderID:  orderID,
		Provider: provider,
		Amount:   amount,
		Status:   PaymentInitiated,
	}
	s.payments[p.ID] = &storedPayment{payment: p, userID: userID}
	return p, nil
}

// VerifyPayment settles an initiated payment; success marks the order paid
func (s *Store) VerifyPayment(userID int64, paymentID string, success bool) (model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.payments[paymentID]
	if !ok || sp.userID != userID {
		return model.Payment{}, notFound("Payment")
	}
	if sp.payment.Status != PaymentInitiated {
		return model.Payment{}, fmt.Errorf("%w: Payment already %s", ErrConflict, strings.ToLower(sp.payment.Status))
	}
	if !success {
		sp.payment.Status = PaymentFailed
		return sp.payment, nil
	}
	so, ok := s.orderByIDLocked(sp.payment.OrderID)
	if !ok {
		return model.Payment{}, notFound("Order")
	}
	if !canTransition(so.order.Status, StatusPaid) {
		return model.Payment{}, fmt.Errorf("%w: Order %s cannot be paid in status %s", ErrConflict, so.order.OrderNumber, so.order.Status)
	}
	so.order.Status = StatusPaid
	sp.payment.Status = PaymentSuccess
	return sp.payment, nil
}

// SetOrderStatus applies an admin status change along the allowed transitions
func (s *Store) SetOrderStatus(number, status string) (model.Order, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if _, known := validTransitions[status]; !known {
		return model.Order{}, fmt.Errorf("%w: Unknown order status %q", ErrInvalid, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	so, ok := s.orders[number]
	if !ok {
		return model.Order{}, notFound("Order")
	}
	if !canTransition(so.order.Status, status) {
		return model.Order{}, fmt.Errorf("%w: cannot change order from %s to %s", ErrInvalid, so.order.Status, status)
	}
	so.order.Status = status
	return so.order, nil
}
