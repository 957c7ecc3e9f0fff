package devapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/model"
)

type harness struct {
	server *Server
	client *apiclient.Client
	token  string
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig("devapi-test-secret")
	cfg.BcryptCost = bcrypt.MinCost
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	h := &harness{server: srv}
	h.client = apiclient.New(apiclient.Config{BaseURL: ts.URL}, nil, nil)
	h.client.SetTokenSource(apiclient.TokenFunc(func() string { return h.token }))
	return h
}

func (h *harness) login(t *testing.T, email, password string) *apiclient.LoginResponse {
	t.Helper()
	resp, err := h.client.Login(context.Background(), apiclient.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	h.token = resp.BearerToken()
	return resp
}

func status(err error) int {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func productBySKU(t *testing.T, h *harness, sku string) model.Product {
	t.Helper()
	page, err := h.client.ListProducts(context.Background(), model.ProductFilters{Limit: 100})
	require.NoError(t, err)
	for _, p := range page.Items {
		if p.SKU == sku {
			return p
		}
	}
	t.Fatalf("product %s not seeded", sku)
	return model.Product{}
}

// ============================================
// Auth
// ============================================

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	resp := h.login(t, SeedCustomerEmail, SeedCustomerPassword)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, SeedCustomerEmail, resp.Email)
	assert.Equal(t, model.RoleCustomer, resp.Role)

	_, err := h.client.Login(context.Background(), apiclient.LoginRequest{Email: SeedCustomerEmail, Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status(err))
	assert.Equal(t, "Invalid email or password", apiclient.Message(err))
}

func TestLogin_Minimal(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MinimalLogin = true })
	resp := h.login(t, SeedAdminEmail, SeedAdminPassword)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Zero(t, resp.UserID)
	assert.Empty(t, resp.Role)
}

func TestLogin_RateLimited(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.LoginLimit = 2 })
	ctx := context.Background()
	req := apiclient.LoginRequest{Email: SeedCustomerEmail, Password: "wrong-password"}

	for i := 0; i < 2; i++ {
		_, err := h.client.Login(ctx, req)
		assert.Equal(t, http.StatusUnauthorized, status(err))
	}
	_, err := h.client.Login(ctx, req)
	assert.Equal(t, http.StatusTooManyRequests, status(err))
}

func TestRegisterAndProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.client.Register(ctx, apiclient.RegisterRequest{FullName: "Ada", Email: "ADA@example.com", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, model.RoleCustomer, u.Role)

	_, err = h.client.Register(ctx, apiclient.RegisterRequest{FullName: "Ada", Email: "ada@example.com", Password: "long-enough"})
	assert.Equal(t, http.StatusConflict, status(err))
	assert.Equal(t, "Email already registered", apiclient.Message(err))

	_, err = h.client.Register(ctx, apiclient.RegisterRequest{FullName: "Bob", Email: "bob@example.com", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, status(err))

	h.login(t, "ada@example.com", "long-enough")
	profile, err := h.client.UpdateProfile(ctx, apiclient.ProfileUpdate{MobileNumber: "555-0100"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.FullName)
	assert.Equal(t, "555-0100", profile.MobileNumber)

	err = h.client.ChangePassword(ctx, apiclient.PasswordChange{OldPassword: "nope-nope", NewPassword: "another-one"})
	assert.Equal(t, "Current password is incorrect", apiclient.Message(err))
	require.NoError(t, h.client.ChangePassword(ctx, apiclient.PasswordChange{OldPassword: "long-enough", NewPassword: "another-one"}))
	h.login(t, "ada@example.com", "another-one")
}

func TestRevokeTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, SeedCustomerEmail, SeedCustomerPassword)

	_, err := h.client.Profile(ctx)
	require.NoError(t, err)

	h.server.RevokeTokens()
	_, err = h.client.Profile(ctx)
	assert.True(t, apiclient.IsUnauthorized(err))

	// optional-auth routes still reject a dead token
	_, err = h.client.GetCart(ctx, "")
	assert.True(t, apiclient.IsUnauthorized(err))
}

// ============================================
// Catalog
// ============================================

func TestProducts_FiltersAndPaging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	page, err := h.client.ListProducts(ctx, model.ProductFilters{Limit: 4})
	require.NoError(t, err)
	assert.Len(t, page.Items, 4)
	assert.Equal(t, len(seedProducts), page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)

	maxPrice := decimal.NewFromInt(30)
	page, err = h.client.ListProducts(ctx, model.ProductFilters{MaxPrice: &maxPrice, SortBy: "price_desc", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)
	for _, p := range page.Items {
		assert.True(t, p.Price.LessThanOrEqual(maxPrice))
	}
	assert.Equal(t, "BK-002", page.Items[0].SKU)

	page, err = h.client.SearchProducts(ctx, model.ProductFilters{Keyword: "keyboard", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Mechanical Keyboard", page.Items[0].Name)
	assert.NotEmpty(t, page.Items[0].Images)

	unavailable := productBySKU(t, h, "BK-002")
	assert.False(t, unavailable.Available)
}

func TestReviews(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lamp := productBySKU(t, h, "LAMP-001")

	_, err := h.client.PostReview(ctx, lamp.ID, 2, apiclient.ReviewRequest{Rating: 5})
	assert.True(t, apiclient.IsUnauthorized(err))

	resp := h.login(t, SeedCustomerEmail, SeedCustomerPassword)
	_, err = h.client.PostReview(ctx, lamp.ID, resp.UserID+100, apiclient.ReviewRequest{Rating: 5})
	assert.Equal(t, http.StatusForbidden, status(err))

	_, err = h.client.PostReview(ctx, lamp.ID, resp.UserID, apiclient.ReviewRequest{Rating: 9})
	assert.Equal(t, http.StatusBadRequest, status(err))

	review, err := h.client.PostReview(ctx, lamp.ID, resp.UserID, apiclient.ReviewRequest{Rating: 4, Title: "Review", Text: "bright"})
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, review.UserID)

	reviews, err := h.client.ProductReviews(ctx, lamp.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestAdminProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := apiclient.ProductInput{SKU: "NEW-1", Name: "Notebook", Price: decimal.RequireFromString("3.50"), Available: true, AvailableQuantity: 5}

	h.login(t, SeedCustomerEmail, SeedCustomerPassword)
	_, err := h.client.CreateProduct(ctx, in)
	assert.Equal(t, http.StatusForbidden, status(err))

	h.login(t, SeedAdminEmail, SeedAdminPassword)
	p, err := h.client.CreateProduct(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Notebook", p.Name)

	_, err = h.client.CreateProduct(ctx, in)
	assert.Equal(t, http.StatusConflict, status(err))
	assert.Equal(t, "Product with SKU NEW-1 already exists", apiclient.Message(err))

	img, err := h.client.AddProductImage(ctx, p.ID, apiclient.ImageInput{ImageURL: "https://img/x.jpg"})
	require.NoError(t, err)
	assert.True(t, img.IsPrimary)
	require.NoError(t, h.client.DeleteProductImage(ctx, p.ID, img.ID))

	p, err = h.client.UpdateStock(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, p.Stock)

	c, err := h.client.CreateCategory(ctx, "Stationery")
	require.NoError(t, err)
	in.CategoryID = c.ID
	p, err = h.client.UpdateProduct(ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, c.ID, p.CategoryID)

	_, err = h.client.CreateBrand(ctx, "")
	assert.Equal(t, http.StatusBadRequest, status(err))

	require.NoError(t, h.client.DeleteProduct(ctx, p.ID))
	_, err = h.client.GetProduct(ctx, p.ID)
	assert.True(t, apiclient.IsNotFound(err))
}

// ============================================
// Cart
// ============================================

func TestCart_MergeAndStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, SeedCustomerEmail, SeedCustomerPassword)
	headphones := productBySKU(t, h, "HP-001")

	_, err := h.client.GetCart(ctx, "")
	assert.True(t, apiclient.IsNotFound(err), "no cart before the first add")

	first, err := h.client.AddCartItem(ctx, apiclient.AddItemRequest{ProductID: headphones.ID, Quantity: 2})
	require.NoError(t, err)
	merged, err := h.client.AddCartItem(ctx, apiclient.AddItemRequest{ProductID: headphones.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 5, merged.Quantity)

	_, err = h.client.AddCartItem(ctx, apiclient.AddItemRequest{ProductID: headphones.ID, Quantity: 4})
	assert.Equal(t, http.StatusBadRequest, status(err))
	assert.Equal(t, "Insufficient stock for Wireless Headphones", apiclient.Message(err))

	cart, err := h.client.GetCart(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 5, cart.TotalItems)
	assert.True(t, headphones.Price.Mul(decimal.NewFromInt(5)).Equal(cart.TotalAmount))

	updated, err := h.client.UpdateCartItem(ctx, merged.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Quantity)

	require.NoError(t, h.client.RemoveCartItem(ctx, merged.ID))
	err = h.client.RemoveCartItem(ctx, merged.ID)
	assert.True(t, apiclient.IsNotFound(err))
}

func TestCart_Guest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mug := productBySKU(t, h, "MUG-001")

	_, err := h.client.AddCartItem(ctx, apiclient.AddItemRequest{ProductID: mug.ID, Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, status(err), "guests need a cart uuid")

	_, err = h.client.AddCartItem(ctx, apiclient.AddItemRequest{ProductID: mug.ID, Quantity: 2, CartUUID: "guest-1"})
	require.NoError(t, err)

	cart, err := h.client.GetCart(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, "guest-1", cart.CartUUID)
	assert.Equal(t, 2, cart.TotalItems)

	_, err = h.client.GetCart(ctx, "guest-2")
	assert.True(t, apiclient.IsNotFound(err))

	require.NoError(t, h.client.ClearCart(ctx, "guest-1"))
	cart, err = h.client.GetCart(ctx, "guest-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCart_UnavailableProduct(t *testing.T) {
	h := newHarness(t)
	h.login(t, SeedCustomerEmail, SeedCustomerPassword)
	book := productBySKU(t, h, "BK-002")

	_, err := h.client.AddCartItem(context.Background(), apiclient.AddItemRequest{ProductID: book.ID, Quantity: 1})
	assert.Equal(t, "Product is not available", apiclient.Message(err))
}

// ============================================
// Orders and payments
// ============================================

func TestOrderLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, SeedCustomerEmail, SeedCustomerPassword)
	lamp := productBySKU(t, h, "LAMP-001")

	_, err := h.client.CreateOrder(ctx, apiclient.CreateOrderRequest{
		Items:             []model.OrderLine{{ProductID: lamp.ID, Quantity: 1}},
		ShippingAddressID: 999,
	})
	assert.True(t, apiclient.IsNotFound(err))

	addr, err := h.client.CreateAddress(ctx, model.Address{FullName: "Demo", AddressLine: "1 Main St", City: "Springfield"})
	require.NoError(t, err)

	order, err := h.client.CreateOrder(ctx, apiclient.CreateOrderRequest{
		Items:             []model.OrderLine{{ProductID: lamp.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(1)}},
		ShippingAddressID: addr.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
	assert.True(t, lamp.Price.Mul(decimal.NewFromInt(2)).Equal(order.TotalAmount), "server prices from the catalog")

	after, err := h.client.GetProduct(ctx, lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, lamp.Stock-2, after.Stock)

	_, err = h.client.InitiatePayment(ctx, apiclient.PaymentRequest{OrderID: order.ID, Provider: apiclient.ProviderFake, Amount: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusBadRequest, status(err))

	payment, err := h.client.InitiatePayment(ctx, apiclient.PaymentRequest{OrderID: order.ID, Provider: apiclient.ProviderFake, Amount: order.TotalAmount})
	require.NoError(t, err)
	assert.Equal(t, PaymentInitiated, payment.Status)

	payment, err = h.client.VerifyPayment(ctx, apiclient.VerifyPaymentRequest{PaymentID: payment.ID, Success: true})
	require.NoError(t, err)
	assert.Equal(t, PaymentSuccess, payment.Status)

	got, err := h.client.GetOrder(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)

	orders, err := h.client.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = h.client.UpdateOrderStatus(ctx, order.OrderNumber, StatusShipped)
	assert.Equal(t, http.StatusForbidden, status(err))

	h.login(t, SeedAdminEmail, SeedAdminPassword)
	shipped, err := h.client.UpdateOrderStatus(ctx, order.OrderNumber, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, shipped.Status)

	_, err = h.client.UpdateOrderStatus(ctx, order.OrderNumber, StatusPending)
	assert.Equal(t, http.StatusBadRequest, status(err))
}

func TestOrder_OtherUsersOrdersAreHidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, SeedCustomerEmail, SeedCustomerPassword)
	mug := productBySKU(t, h, "MUG-001")
	addr, err := h.client.CreateAddress(ctx, model.Address{FullName: "Demo", AddressLine: "1 Main St", City: "Springfield"})
	require.NoError(t, err)
	order, err := h.client.CreateOrder(ctx, apiclient.CreateOrderRequest{
		Items:             []model.OrderLine{{ProductID: mug.ID, Quantity: 1}},
		ShippingAddressID: addr.ID,
	})
	require.NoError(t, err)

	_, err = h.client.Register(ctx, apiclient.RegisterRequest{FullName: "Eve", Email: "eve@example.com", Password: "password-eve"})
	require.NoError(t, err)
	h.login(t, "eve@example.com", "password-eve")

	_, err = h.client.GetOrder(ctx, order.OrderNumber)
	assert.True(t, apiclient.IsNotFound(err))
}

// ============================================
// Addresses and wishlist
// ============================================

func TestAddresses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, SeedCustomerEmail, SeedCustomerPassword)

	_, err := h.client.CreateAddress(ctx, model.Address{FullName: "Demo"})
	assert.Equal(t, http.StatusBadRequest, status(err))

	addr, err := h.client.CreateAddress(ctx, model.Address{FullName: "Demo", AddressLine: "1 Main St", City: "Springfield"})
	require.NoError(t, err)
	list, err := h.client.Addresses(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.client.DeleteAddress(ctx, addr.ID))
	assert.True(t, apiclient.IsNotFound(h.client.DeleteAddress(ctx, addr.ID)))
}

func TestWishlist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, SeedCustomerEmail, SeedCustomerPassword)
	kb := productBySKU(t, h, "KB-001")

	require.NoError(t, h.client.AddWishlist(ctx, kb.ID))
	require.NoError(t, h.client.AddWishlist(ctx, kb.ID))
	assert.True(t, apiclient.IsNotFound(h.client.AddWishlist(ctx, 424242)))

	list, err := h.client.Wishlist(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kb.ID, list[0].ProductID)
	assert.Equal(t, "https://img.storefront.local/keyboard.jpg", list[0].ImageURL)

	require.NoError(t, h.client.RemoveWishlist(ctx, kb.ID))
	list, err = h.client.Wishlist(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
