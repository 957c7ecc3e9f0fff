// Package catalog holds product browsing state: the current filters and
// listing page, the selected product with its reviews, and the category
// and brand lists.
package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/session"
)

const (
	DefaultLimit = 20
	reviewTitle  = "Review"
)

var (
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrNotAuthenticated = errors.New("log in to post a review")
	ErrSuperseded       = errors.New("a newer listing request replaced this one")
)

type API interface {
	ListProducts(ctx context.Context, filters model.ProductFilters) (*model.ProductPage, error)
	SearchProducts(ctx context.Context, filters model.ProductFilters) (*model.ProductPage, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ProductReviews(ctx context.Context, productID int64) ([]model.Review, error)
	PostReview(ctx context.Context, productID, userID int64, req apiclient.ReviewRequest) (*model.Review, error)
	Categories(ctx context.Context) ([]model.Category, error)
	Brands(ctx context.Context) ([]model.Brand, error)
}

// Users exposes the logged-in user for review attribution
type Users interface {
	Snapshot() session.Snapshot
}

// FilterOption changes one filter field
type FilterOption func(*model.ProductFilters)

func WithCategory(id int64) FilterOption {
	return func(f *model.ProductFilters) { f.CategoryID = &id }
}

func WithBrand(id int64) FilterOption {
	return func(f *model.ProductFilters) { f.BrandID = &id }
}

func WithPriceRange(minPrice, maxPrice *decimal.Decimal) FilterOption {
	return func(f *model.ProductFilters) {
		f.MinPrice = minPrice
		f.MaxPrice = maxPrice
	}
}

func WithKeyword(keyword string) FilterOption {
	return func(f *model.ProductFilters) { f.Keyword = keyword }
}

func WithPage(page int) FilterOption {
	return func(f *model.ProductFilters) {
		if page >= 0 {
			f.Page = page
		}
	}
}

func WithLimit(limit int) FilterOption {
	return func(f *model.ProductFilters) {
		if limit > 0 {
			f.Limit = limit
		}
	}
}

func WithSort(sortBy string) FilterOption {
	return func(f *model.ProductFilters) { f.SortBy = sortBy }
}

// ClearCategory and ClearBrand unset a selection
func ClearCategory() FilterOption {
	return func(f *model.ProductFilters) { f.CategoryID = nil }
}

func ClearBrand() FilterOption {
	return func(f *model.ProductFilters) { f.BrandID = nil }
}

func DefaultFilters() model.ProductFilters {
	return model.ProductFilters{Page: 0, Limit: DefaultLimit}
}

type Store struct {
	api   API
	users Users

	mu         sync.RWMutex
	filters    model.ProductFilters
	page       model.ProductPage
	seq        uint64
	selected   *model.Product
	reviews    []model.Review
	categories []model.Category
	brands     []model.Brand
	err        error
}

func NewStore(api API, users Users) *Store {
	return &Store{
		api:     api,
		users:   users,
		filters: DefaultFilters(),
		page:    model.ProductPage{Items: []model.Product{}},
	}
}

func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

// SetFilters merges opts into the current filters
func (s *Store) SetFilters(opts ...FilterOption) model.ProductFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range opts {
		opt(&s.filters)
	}
	return s.filters
}

func (s *Store) ResetFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = DefaultFilters()
}

func (s *Store) Filters() model.ProductFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// Page returns the last applied listing
func (s *Store) Page() model.ProductPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := s.page
	page.Items = append([]model.Product(nil), s.page.Items...)
	return page
}

// LoadProducts lists products for the current filters, using search when
// a keyword is set. Only the most recently issued request is applied.
func (s *Store) LoadProducts(ctx context.Context) (model.ProductPage, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	filters := s.filters
	s.mu.Unlock()

	load := s.api.ListProducts
	if filters.Keyword != "" {
		load = s.api.SearchProducts
	}
	page, err := load(ctx, filters)
	if err != nil {
		return s.Page(), s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return s.page, ErrSuperseded
	}
	s.page = *page
	s.err = nil
	return *page, nil
}

// LoadProduct fetches one product and selects it
func (s *Store) LoadProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	selected := *p
	s.selected = &selected
	s.reviews = nil
	s.err = nil
	s.mu.Unlock()
	return p, nil
}

func (s *Store) Selected() *model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	p := *s.selected
	return &p
}

func (s *Store) ClearSelected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.reviews = nil
}

// Reviews fetches the reviews of a product
func (s *Store) Reviews(ctx context.Context, productID int64) ([]model.Review, error) {
	reviews, err := s.api.ProductReviews(ctx, productID)
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	if s.selected != nil && s.selected.ID == productID {
		s.reviews = append([]model.Review(nil), reviews...)
	}
	s.err = nil
	s.mu.Unlock()
	return reviews, nil
}

// SelectedReviews returns the reviews loaded for the selected product
func (s *Store) SelectedReviews() []model.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Review(nil), s.reviews...)
}

// PostReview submits a review as the logged-in user
func (s *Store) PostReview(ctx context.Context, productID int64, rating int, text string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, s.fail(ErrInvalidRating)
	}
	snap := s.users.Snapshot()
	if !snap.Authenticated() {
		return nil, s.fail(ErrNotAuthenticated)
	}

	review, err := s.api.PostReview(ctx, productID, snap.User.ID, apiclient.ReviewRequest{
		Rating: rating,
		Title:  reviewTitle,
		Text:   text,
	})
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	if s.selected != nil && s.selected.ID == productID {
		s.reviews = append(s.reviews, *review)
	}
	s.err = nil
	s.mu.Unlock()
	return review, nil
}

func (s *Store) LoadCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.api.Categories(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	s.categories = categories
	s.err = nil
	s.mu.Unlock()
	return categories, nil
}

func (s *Store) LoadBrands(ctx context.Context) ([]model.Brand, error) {
	brands, err := s.api.Brands(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	s.brands = brands
	s.err = nil
	s.mu.Unlock()
	return brands, nil
}

func (s *Store) Categories() []model.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Category(nil), s.categories...)
}

func (s *Store) Brands() []model.Brand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Brand(nil), s.brands...)
}
