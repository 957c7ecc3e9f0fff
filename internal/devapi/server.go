// Package devapi is an in-memory implementation of the storefront REST API,
// used for local runs and as the backend of integration tests.
package devapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/devapi/middleware"
	"github.com/example/ec-storefront/internal/model"
)

const (
	DefaultTokenTTL    = time.Hour
	DefaultLoginLimit  = 20
	DefaultLoginWindow = time.Minute
)

type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	// BcryptCost below bcrypt.MinCost falls back to the default cost
	BcryptCost int
	// LoginLimit is login attempts per window per IP; non-positive disables it
	LoginLimit  int
	LoginWindow time.Duration
	// MinimalLogin omits the user fields from the login response so that
	// clients must read them from the token
	MinimalLogin bool
	LogRequests  bool
	Seed         bool
}

// DefaultConfig returns a seeded configuration signed with secret
func DefaultConfig(secret string) Config {
	return Config{
		JWTSecret:   secret,
		TokenTTL:    DefaultTokenTTL,
		LoginLimit:  DefaultLoginLimit,
		LoginWindow: DefaultLoginWindow,
		Seed:        true,
	}
}

type Server struct {
	cfg    Config
	jwt    *auth.JWTService
	hasher auth.Hasher
	data   *Store
}

var ErrMissingSecret = errors.New("JWT secret is required")

func New(cfg Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = DefaultLoginWindow
	}
	s := &Server{
		cfg:    cfg,
		jwt:    auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL),
		hasher: auth.NewHasher(cfg.BcryptCost),
		data:   NewStore(),
	}
	if cfg.Seed {
		if err := s.seed(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) Data() *Store { return s.data }

// ValidateAccessToken accepts only tokens that were issued by this server
// and not revoked since
func (s *Server) ValidateAccessToken(token string) (*auth.Claims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	if !s.data.TokenActive(token) {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

// RevokeTokens ends every session; the next authenticated request of any
// client fails with 401
func (s *Server) RevokeTokens() {
	n := s.data.RevokeTokens()
	log.Printf("[DevAPI] Revoked %d tokens", n)
}

// IssueToken logs a user in without a password, for tests and tooling
func (s *Server) IssueToken(userID int64) (string, error) {
	u, _, err := s.data.User(userID)
	if err != nil {
		return "", err
	}
	token, _, err := s.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return "", err
	}
	s.data.AddToken(token, u.ID)
	return token, nil
}

// Handler returns the full route tree
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	if s.cfg.LogRequests {
		r.Use(chimiddleware.Logger)
	}

	authRequired := middleware.Auth(s)
	admin := middleware.RequireRole(model.RoleAdmin)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(s.cfg.LoginLimit, s.cfg.LoginWindow)).Post("/login", s.login)
			r.Post("/register", s.register)
			r.Group(func(r chi.Router) {
				r.Use(authRequired)
				r.Get("/profile", s.profile)
				r.Put("/profile", s.updateProfile)
				r.Put("/profile/password", s.changePassword)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.listProducts)
			r.Get("/search", s.searchProducts)
			r.Get("/categories", s.listCategories)
			r.Get("/brands", s.listBrands)
			r.Get("/{id}", s.getProduct)
			r.Get("/{id}/reviews", s.listReviews)
			r.With(authRequired).Post("/{id}/reviews", s.postReview)

			r.Route("/admin", func(r chi.Router) {
				r.Use(authRequired, admin)
				r.Post("/", s.createProduct)
				r.Post("/categories", s.createCategory)
				r.Post("/brands", s.createBrand)
				r.Put("/{id}", s.updateProduct)
				r.Delete("/{id}", s.deleteProduct)
				r.Put("/{id}/stock", s.updateStock)
				r.Post("/{id}/images", s.addImage)
				r.Delete("/{id}/images/{imageID}", s.deleteImage)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(s))
			r.Get("/cart", s.getCart)
			r.Delete("/cart", s.clearCart)
			r.Post("/cart/items", s.addCartItem)
			r.Put("/cart/items/{id}", s.updateCartItem)
			r.Delete("/cart/items/{id}", s.removeCartItem)
		})

		r.Group(func(r chi.Router) {
			r.Use(authRequired)
			r.Post("/orders", s.createOrder)
			r.Get("/orders", s.listOrders)
			r.Get("/orders/{number}", s.getOrder)
			r.Post("/payments/initiate", s.initiatePayment)
			r.Post("/payments/verify", s.verifyPayment)

			r.Get("/shipping-addresses", s.listAddresses)
			r.Post("/shipping-addresses", s.createAddress)
			r.Delete("/shipping-addresses/{id}", s.deleteAddress)

			r.Get("/wishlist", s.getWishlist)
			r.Post("/wishlist", s.addWishlist)
			r.Delete("/wishlist/{id}", s.removeWishlist)
		})
	})

	r.With(authRequired, admin).Put("/admin/api/v1/orders/{number}/status", s.updateOrderStatus)

	return r
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondErr maps store errors onto status codes
func respondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrInsufficientStock), errors.Is(err, auth.ErrPasswordTooShort):
		status = http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		log.Printf("[DevAPI] Internal error: %v", err)
	}
	middleware.RespondError(w, status, publicMessage(err))
}

// publicMessage strips the sentinel prefix so clients see only the detail
func publicMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrNotFound, ErrInvalid, ErrConflict, ErrForbidden, ErrInsufficientStock} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func isAdmin(r *http.Request) bool {
	claims, ok := middleware.GetUserFromContext(r.Context())
	return ok && claims.Role == model.RoleAdmin
}
