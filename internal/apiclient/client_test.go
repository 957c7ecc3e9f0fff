package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// testServer answers every request with status/body and records what it saw
type testServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func newTestServer(t *testing.T, status int, body string) *testServer {
	t.Helper()
	ts := &testServer{status: status, body: body}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(data),
		})
		status, body := ts.status, ts.body
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) last(t *testing.T) recordedRequest {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NotEmpty(t, ts.requests)
	return ts.requests[len(ts.requests)-1]
}

func countTopic(bus *events.Bus, topic string) *atomic.Int32 {
	var n atomic.Int32
	bus.Subscribe(topic, func(events.Event) { n.Add(1) })
	return &n
}

// ============================================
// Send Tests
// ============================================

func TestSend_AttachesTokenFromSource(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{}`)
	client := New(Config{BaseURL: srv.URL}, nil, nil)
	client.SetTokenSource(TokenFunc(func() string { return "live-token" }))

	_, err := client.Send(context.Background(), http.MethodPost, "/x", map[string]int{"a": 1}, nil)
	require.NoError(t, err)

	req := srv.last(t)
	assert.Equal(t, "Bearer live-token", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"a":1}`, req.Body)
}

func TestSend_FallsBackToStoredToken(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, http.StatusOK, `{}`)
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "stored-token"))

	client := New(Config{BaseURL: srv.URL}, store, nil)
	client.SetTokenSource(TokenFunc(func() string { return "" }))

	_, err := client.Send(ctx, http.MethodGet, "/x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer stored-token", srv.last(t).Header.Get("Authorization"))
}

func TestSend_NoTokenNoHeader(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{}`)
	client := New(Config{BaseURL: srv.URL}, storage.NewMemory(), nil)

	_, err := client.Send(context.Background(), http.MethodGet, "/x", nil, nil)
	require.NoError(t, err)

	req := srv.last(t)
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("Content-Type"))
}

func TestSend_UnauthorizedBroadcastsOncePerResponse(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized, `{"message":"token expired"}`)
	bus := events.NewBus()
	expired := countTopic(bus, events.SessionExpired)
	client := New(Config{BaseURL: srv.URL}, nil, bus)

	_, err := client.Send(context.Background(), http.MethodGet, "/x", nil, nil)

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "token expired", Message(err))
	assert.Equal(t, int32(1), expired.Load())
}

func TestSend_ConcurrentUnauthorizedEachBroadcast(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized, ``)
	bus := events.NewBus()
	expired := countTopic(bus, events.SessionExpired)
	client := New(Config{BaseURL: srv.URL}, nil, bus)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Send(context.Background(), http.MethodGet, "/x", nil, nil); IsUnauthorized(err) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), failures.Load())
	assert.Equal(t, int32(8), expired.Load())
}

func TestSend_UnauthorizedTruncatedBodyStillBroadcasts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// declared length exceeds what is written, so the client's body read fails
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"mess`)
	}))
	defer srv.Close()
	bus := events.NewBus()
	expired := countTopic(bus, events.SessionExpired)
	client := New(Config{BaseURL: srv.URL}, nil, bus)

	_, err := client.Send(context.Background(), http.MethodGet, "/x", nil, nil)

	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, int32(1), expired.Load())
}

func TestSend_OtherErrorsDoNotBroadcast(t *testing.T) {
	srv := newTestServer(t, http.StatusForbidden, `{"error":"forbidden"}`)
	bus := events.NewBus()
	expired := countTopic(bus, events.SessionExpired)
	client := New(Config{BaseURL: srv.URL}, nil, bus)

	_, err := client.Send(context.Background(), http.MethodGet, "/x", nil, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, int32(0), expired.Load())
}

func TestSend_TransportError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	client := New(Config{BaseURL: url}, nil, nil)
	_, err := client.Send(context.Background(), http.MethodGet, "/x", nil, nil)

	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.False(t, IsUnauthorized(err))
	assert.Equal(t, "Network error", Message(err))
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil, nil)
	_, err := client.Send(context.Background(), http.MethodGet, "/slow", nil, nil)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout)
	assert.Equal(t, "Request timed out", Message(err))
}

// ============================================
// Error Message Extraction Tests
// ============================================

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"empty body", http.StatusNotFound, ``, "Not Found"},
		{"json string", http.StatusBadRequest, `"Insufficient stock"`, "Insufficient stock"},
		{"plain text", http.StatusBadRequest, `Duplicate SKU`, "Duplicate SKU"},
		{"message field", http.StatusConflict, `{"message":"Duplicate SKU","error":"Conflict"}`, "Duplicate SKU"},
		{"error field", http.StatusBadRequest, `{"error":"Bad Request"}`, "Bad Request"},
		{"status field", http.StatusInternalServerError, `{"status":500}`, "Error 500"},
		{"unknown object", http.StatusBadGateway, `{"detail":"x"}`, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMessage(tt.status, []byte(tt.body)))
		})
	}
}

// ============================================
// Normalization Tests
// ============================================

func TestDecodeProductPage(t *testing.T) {
	t.Run("paged object", func(t *testing.T) {
		page, err := decodeProductPage([]byte(`{
			"content": [{"id": 1, "productName": "Lamp", "price": 19.99, "available": false}],
			"totalPages": 3,
			"totalElements": 41
		}`))
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Lamp", page.Items[0].Name)
		assert.False(t, page.Items[0].Available)
		assert.True(t, decimal.RequireFromString("19.99").Equal(page.Items[0].Price))
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 41, page.TotalItems)
	})

	t.Run("bare array", func(t *testing.T) {
		page, err := decodeProductPage([]byte(`[{"id": 1, "name": "Desk"}, {"id": 2, "productName": "Chair", "is_available": false}]`))
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "Desk", page.Items[0].Name)
		assert.True(t, page.Items[0].Available)
		assert.False(t, page.Items[1].Available)
		assert.Equal(t, 1, page.TotalPages)
		assert.Equal(t, 2, page.TotalItems)
		assert.NotNil(t, page.Items[0].Images)
	})

	t.Run("empty body", func(t *testing.T) {
		page, err := decodeProductPage(nil)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})
}

func TestWireProduct_AvailabilityPrecedence(t *testing.T) {
	var w wireProduct
	require.NoError(t, json.Unmarshal([]byte(`{"is_available": true, "isAvailable": false, "available": false}`), &w))
	assert.True(t, w.canonical().Available)

	w = wireProduct{}
	require.NoError(t, json.Unmarshal([]byte(`{"isAvailable": false, "available": true}`), &w))
	assert.False(t, w.canonical().Available)
}

func TestDecodeWishlist(t *testing.T) {
	entries, err := decodeWishlist([]byte(`[
		{"productId": 7, "productName": "Mug", "price": "4.50"},
		{"id": 9, "name": "Cup", "images": [{"id": 1, "imageUrl": "https://img/cup.png"}]}
	]`))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(7), entries[0].ProductID)
	assert.Equal(t, "Mug", entries[0].Name)
	assert.Equal(t, int64(9), entries[1].ProductID)
	assert.Equal(t, "Cup", entries[1].Name)
	assert.Equal(t, "https://img/cup.png", entries[1].ImageURL)
}

// ============================================
// Endpoint Wrapper Tests
// ============================================

func TestGetCart_SendsCartUUID(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"id": 3, "items": [{"id": 1, "productId": 5, "quantity": 2, "unitPrice": 100}]}`)
	client := New(Config{BaseURL: srv.URL}, nil, nil)

	cart, err := client.GetCart(context.Background(), "abc-123")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/cart", srv.last(t).Path)
	assert.Equal(t, "cart_uuid=abc-123", srv.last(t).Query)
	assert.Equal(t, int64(3), cart.ID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestGetCart_NotFound(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound, ``)
	client := New(Config{BaseURL: srv.URL}, nil, nil)

	_, err := client.GetCart(context.Background(), "")
	assert.True(t, IsNotFound(err))
	assert.Empty(t, srv.last(t).Query)
}

func TestPostReview_SendsUserHeader(t *testing.T) {
	srv := newTestServer(t, http.StatusCreated, `{"id": 4, "rating": 5, "reviewTitle": "Review", "reviewText": "great"}`)
	client := New(Config{BaseURL: srv.URL}, nil, nil)

	review, err := client.PostReview(context.Background(), 12, 42, ReviewRequest{Rating: 5, Title: "Review", Text: "great"})
	require.NoError(t, err)

	req := srv.last(t)
	assert.Equal(t, "/api/v1/products/12/reviews", req.Path)
	assert.Equal(t, "42", req.Header.Get("X-USER-ID"))
	assert.Equal(t, "great", review.Text)
}

func TestListProducts_FilterQuery(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[]`)
	client := New(Config{BaseURL: srv.URL}, nil, nil)

	category := int64(2)
	minPrice := decimal.NewFromInt(10)
	_, err := client.ListProducts(context.Background(), model.ProductFilters{
		CategoryID: &category,
		MinPrice:   &minPrice,
		Page:       1,
		Limit:      20,
	})
	require.NoError(t, err)

	assert.Equal(t, "categoryId=2&limit=20&minPrice=10&page=1", srv.last(t).Query)
}

func TestUpdateOrderStatus_AdminPath(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"orderNumber": "ORD-1", "status": "SHIPPED"}`)
	client := New(Config{BaseURL: srv.URL}, nil, nil)

	order, err := client.UpdateOrderStatus(context.Background(), "ORD-1", "SHIPPED")
	require.NoError(t, err)

	req := srv.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/admin/api/v1/orders/ORD-1/status", req.Path)
	assert.Equal(t, "status=SHIPPED", req.Query)
	assert.Equal(t, "SHIPPED", order.Status)
}

func TestLoginResponse_BearerToken(t *testing.T) {
	assert.Equal(t, "a", (&LoginResponse{AccessToken: "a", Token: "b"}).BearerToken())
	assert.Equal(t, "b", (&LoginResponse{Token: "b"}).BearerToken())
}
