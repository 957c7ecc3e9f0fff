package storefront

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/ec-storefront/internal/clock"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/devapi"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/expiry"
	"github.com/example/ec-storefront/internal/guard"
	"github.com/example/ec-storefront/internal/idle"
	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/storage"
)

const idleWindow = 15 * time.Minute

type recordingWriter struct {
	mu     sync.Mutex
	topics []string
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		w.topics = append(w.topics, string(m.Key))
	}
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) Topics() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.topics...)
}

type fixture struct {
	api      *devapi.Server
	sf       *Storefront
	store    *storage.Memory
	clock    *clock.Manual
	activity *idle.Channel
	kafka    *recordingWriter

	mu        sync.Mutex
	navigated []string
}

func newFixture(t *testing.T, store *storage.Memory) *fixture {
	t.Helper()
	cfg := devapi.DefaultConfig("storefront-test-secret")
	cfg.BcryptCost = bcrypt.MinCost
	api, err := devapi.New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)

	if store == nil {
		store = storage.NewMemory()
	}
	f := &fixture{
		api:      api,
		store:    store,
		clock:    clock.NewManual(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		activity: idle.NewChannel(idle.DefaultEvents...),
		kafka:    &recordingWriter{},
	}
	sf, err := New(context.Background(), Options{
		Config:   config.Config{APIURL: ts.URL, IdleWindow: idleWindow},
		Storage:  store,
		Activity: f.activity,
		Clock:    f.clock,
		Kafka:    f.kafka,
		Navigate: func(path string) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.navigated = append(f.navigated, path)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { sf.Close() })
	f.sf = sf
	return f
}

func (f *fixture) login(t *testing.T) *model.User {
	t.Helper()
	u, err := f.sf.Session.Login(context.Background(), devapi.SeedCustomerEmail, devapi.SeedCustomerPassword)
	require.NoError(t, err)
	return u
}

func (f *fixture) product(t *testing.T, sku string) model.Product {
	t.Helper()
	page, err := f.sf.Client.ListProducts(context.Background(), model.ProductFilters{Limit: 100})
	require.NoError(t, err)
	for _, p := range page.Items {
		if p.SKU == sku {
			return p
		}
	}
	t.Fatalf("missing product %s", sku)
	return model.Product{}
}

func (f *fixture) Navigated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigated...)
}

// ============================================
// Wiring
// ============================================

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Options{Config: config.Config{IdleWindow: -time.Second}, Storage: storage.NewMemory()})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLogin_StartsIdleMonitorAndPersists(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	assert.False(t, f.sf.Idle.Running())

	u := f.login(t)
	assert.Equal(t, devapi.SeedCustomerEmail, u.Email)
	assert.True(t, f.sf.Idle.Running())
	assert.Equal(t, len(idle.DefaultEvents), f.activity.Listeners())

	token, ok, err := f.store.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, f.sf.Session.Token(), token)

	assert.True(t, f.sf.Authorize(ctx, "/cart").Allow)
	assert.Equal(t, guard.HomePath, f.sf.Authorize(ctx, "/admin/products").Redirect)
	assert.Contains(t, f.kafka.Topics(), events.SessionLogin)
}

func TestHydrate_RestoresSession(t *testing.T) {
	store := storage.NewMemory()
	first := newFixture(t, store)
	user := first.login(t)
	require.NoError(t, first.sf.Close())
	assert.True(t, first.kafka.closed)

	// a second process sharing durable storage and the same API
	sf, err := New(context.Background(), Options{
		Config:  config.Config{APIURL: first.sf.Client.BaseURL(), IdleWindow: idleWindow},
		Storage: store,
		Clock:   clock.NewManual(time.Now()),
	})
	require.NoError(t, err)
	defer sf.Close()

	snap := sf.Session.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, user.ID, snap.User.ID)
	assert.True(t, sf.Idle.Running())
}

// ============================================
// Cart and checkout
// ============================================

func TestCart_ServerMergeMirrored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.login(t)
	lamp := f.product(t, "LAMP-001")

	_, err := f.sf.Cart.AddItem(ctx, lamp.ID, 1, lamp.Price)
	require.NoError(t, err)
	cart, err := f.sf.Cart.AddItem(ctx, lamp.ID, 2, lamp.Price)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 3, cart.TotalItems)

	fetched, err := f.sf.Cart.FetchCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, cart.Items, fetched.Items)
	assert.True(t, cart.TotalAmount.Equal(fetched.TotalAmount))
}

func TestCheckout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.login(t)
	mug := f.product(t, "MUG-001")

	_, err := f.sf.Cart.AddItem(ctx, mug.ID, 2, mug.Price)
	require.NoError(t, err)
	addr, err := f.sf.Addresses.Add(ctx, model.Address{FullName: "Demo", AddressLine: "1 Main St", City: "Springfield"})
	require.NoError(t, err)

	result, err := f.sf.Orders.Checkout(ctx, addr.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.Equal(t, devapi.PaymentInitiated, result.Payment.Status)
	assert.Empty(t, f.sf.Cart.Snapshot().Items)

	payment, err := f.sf.Orders.VerifyPayment(ctx, result.Payment.ID, true)
	require.NoError(t, err)
	assert.Equal(t, devapi.PaymentSuccess, payment.Status)

	order, err := f.sf.Orders.Get(ctx, result.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, devapi.StatusPaid, order.Status)
}

func TestLogout_EmptiesPerSessionCaches(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.login(t)
	lamp := f.product(t, "LAMP-001")

	_, err := f.sf.Cart.AddItem(ctx, lamp.ID, 2, lamp.Price)
	require.NoError(t, err)
	_, err = f.sf.Addresses.Add(ctx, model.Address{FullName: "Demo", AddressLine: "1 Main St", City: "Springfield"})
	require.NoError(t, err)
	require.NoError(t, f.sf.Wishlist.Add(ctx, lamp))

	require.NoError(t, f.sf.Session.Logout(ctx))

	c := f.sf.Cart.Snapshot()
	assert.Empty(t, c.Items)
	assert.Zero(t, c.TotalItems)
	assert.True(t, c.TotalAmount.IsZero())
	assert.Empty(t, f.sf.Addresses.Items())
	assert.Empty(t, f.sf.Orders.Items())
	assert.True(t, f.sf.Wishlist.Contains(lamp.ID), "wishlist survives an explicit logout")
	assert.Equal(t, expiry.Normal, f.sf.Coordinator.State())
}

// ============================================
// Expiry
// ============================================

func TestExpiry_ServerRevocation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.login(t)
	lamp := f.product(t, "LAMP-001")
	_, err := f.sf.Cart.AddItem(ctx, lamp.ID, 1, lamp.Price)
	require.NoError(t, err)

	f.api.RevokeTokens()
	_, err = f.sf.Cart.FetchCart(ctx)
	require.Error(t, err)

	assert.Equal(t, expiry.ExpiredPendingAck, f.sf.Coordinator.State())
	assert.Equal(t, "http", f.sf.Coordinator.Source())
	assert.False(t, f.sf.Idle.Running())
	assert.Equal(t, 1, len(f.sf.Cart.Snapshot().Items), "state is kept until acknowledged")

	require.NoError(t, f.sf.Coordinator.Acknowledge(ctx))

	assert.Equal(t, expiry.Normal, f.sf.Coordinator.State())
	assert.False(t, f.sf.Session.Authenticated())
	assert.Empty(t, f.sf.Cart.Snapshot().Items)
	assert.Zero(t, f.store.Len())
	assert.Equal(t, []string{expiry.LoginPath}, f.Navigated())
	assert.False(t, f.sf.Authorize(ctx, "/cart").Allow)
}

func TestExpiry_Idle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.login(t)

	f.clock.Advance(idleWindow - time.Minute)
	f.activity.Emit("keydown")
	f.clock.Advance(idleWindow - time.Minute)
	assert.Equal(t, expiry.Normal, f.sf.Coordinator.State(), "activity re-armed the window")

	f.clock.Advance(time.Minute)
	assert.Equal(t, expiry.ExpiredPendingAck, f.sf.Coordinator.State())
	assert.Equal(t, "idle", f.sf.Coordinator.Source())

	require.NoError(t, f.sf.Coordinator.Acknowledge(ctx))
	assert.False(t, f.sf.Session.Authenticated())
	assert.Zero(t, f.activity.Listeners(), "listeners are released with the session")
	assert.Contains(t, f.kafka.Topics(), events.SessionIdle)
	assert.Contains(t, f.kafka.Topics(), events.SessionLogout)
}

func TestFailedLogin_DoesNotExpire(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.sf.Session.Login(context.Background(), devapi.SeedCustomerEmail, "wrong-password")
	require.Error(t, err)
	assert.Equal(t, expiry.Normal, f.sf.Coordinator.State())
}

func TestClose_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sf.Close())
	require.NoError(t, f.sf.Close())
	assert.True(t, f.kafka.closed)
}
