package devapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid request")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type account struct {
	user         model.User
	passwordHash string
}

// Store is the API's in-memory dataset. Every method takes the lock, so
// handlers never touch the maps directly.
type Store struct {
	mu     sync.Mutex
	nextID int64

	users  map[int64]*account
	emails map[string]int64
	tokens map[string]int64

	categories map[int64]model.Category
	brands     map[int64]model.Brand
	products   map[int64]*model.Product
	reviews    map[int64][]model.Review

	carts     map[int64]*model.Cart
	userCarts map[int64]int64
	uuidCarts map[string]int64

	addresses map[int64][]model.Address
	orders    map[string]*storedOrder
	payments  map[string]*storedPayment
	wishlists map[int64][]int64
}

func NewStore() *Store {
	return &Store{
		users:      make(map[int64]*account),
		emails:     make(map[string]int64),
		tokens:     make(map[string]int64),
		categories: make(map[int64]model.Category),
		brands:     make(map[int64]model.Brand),
		products:   make(map[int64]*model.Product),
		reviews:    make(map[int64][]model.Review),
		carts:      make(map[int64]*model.Cart),
		userCarts:  make(map[int64]int64),
		uuidCarts:  make(map[string]int64),
		addresses:  make(map[int64][]model.Address),
		orders:     make(map[string]*storedOrder),
		payments:   make(map[string]*storedPayment),
		wishlists:  make(map[int64][]int64),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s not found", ErrNotFound, what)
}

// ==== Accounts ====

func (s *Store) CreateUser(u model.User, passwordHash string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, taken := s.emails[email]; taken {
		return model.User{}, fmt.Errorf("%w: Email already registered", ErrConflict)
	}
	u.ID = s.id()
	u.Email = email
	u.Active = true
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	s.users[u.ID] = &account{user: u, passwordHash: passwordHash}
	s.emails[email] = u.ID
	return u, nil
}

// Credentials returns the user and password hash for email
func (s *Store) Credentials(email string) (model.User, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.User{}, "", false
	}
	acc := s.users[id]
	return acc.user, acc.passwordHash, true
}

func (s *Store) User(id int64) (model.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.users[id]
	if !ok {
		return model.User{}, "", notFound("User")
	}
	return acc.user, acc.passwordHash, nil
}

func (s *Store) UpdateUser(id int64, fn func(u *model.User)) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.users[id]
	if !ok {
		return model.User{}, notFound("User")
	}
	fn(&acc.user)
	return acc.user, nil
}

func (s *Store) SetPasswordHash(id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.users[id]
	if !ok {
		return notFound("User")
	}
	acc.passwordHash = hash
	return nil
}

// ==== Tokens ====

func (s *Store) AddToken(token string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
}

func (s *Store) TokenActive(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok
}

// RevokeTokens invalidates every issued token and returns how many there were
func (s *Store) RevokeTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.tokens)
	s.tokens = make(map[string]int64)
	return n
}

// ==== Catalog ====

func (s *Store) CreateCategory(name string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, fmt.Errorf("%w: Category name is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			return model.Category{}, fmt.Errorf("%w: Category %s already exists", ErrConflict, name)
		}
	}
	c := model.Category{ID: s.id(), Name: name}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) CreateBrand(name string) (model.Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Brand{}, fmt.Errorf("%w: Brand name is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.brands {
		if strings.EqualFold(b.Name, name) {
			return model.Brand{}, fmt.Errorf("%w: Brand %s already exists", ErrConflict, name)
		}
	}
	b := model.Brand{ID: s.id(), Name: name}
	s.brands[b.ID] = b
	return b, nil
}

func (s *Store) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Brands() []model.Brand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Brand, 0, len(s.brands))
	for _, b := range s.brands {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) validateProductLocked(p model.Product, selfID int64) error {
	switch {
	case strings.TrimSpace(p.SKU) == "":
		return fmt.Errorf("%w: SKU is required", ErrInvalid)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: Product name is required", ErrInvalid)
	case !p.Price.IsPositive():
		return fmt.Errorf("%w: Price must be positive", ErrInvalid)
	case p.Stock < 0:
		return fmt.Errorf("%w: Stock cannot be negative", ErrInvalid)
	}
	if _, ok := s.categories[p.CategoryID]; p.CategoryID != 0 && !ok {
		return fmt.Errorf("%w: Unknown category %d", ErrInvalid, p.CategoryID)
	}
	if _, ok := s.brands[p.BrandID]; p.BrandID != 0 && !ok {
		return fmt.Errorf("%w: Unknown brand %d", ErrInvalid, p.BrandID)
	}
	for _, other := range s.products {
		if other.ID != selfID && strings.EqualFold(other.SKU, p.SKU) {
			return fmt.Errorf("%w: Product with SKU %s already exists", ErrConflict, p.SKU)
		}
	}
	return nil
}

func (s *Store) CreateProduct(p model.Product) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateProductLocked(p, 0); err != nil {
		return model.Product{}, err
	}
	p.ID = s.id()
	if p.Images == nil {
		p.Images = []model.ProductImage{}
	}
	stored := p
	s.products[p.ID] = &stored
	return p, nil
}

func (s *Store) UpdateProduct(id int64, p model.Product) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[id]
	if !ok {
		return model.Product{}, notFound("Product")
	}
	if err := s.validateProductLocked(p, id); err != nil {
		return model.Product{}, err
	}
	p.ID = id
	p.Images = existing.Images
	*existing = p
	return cloneProduct(*existing), nil
}

func (s *Store) DeleteProduct(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return notFound("Product")
	}
	delete(s.products, id)
	delete(s.reviews, id)
	return nil
}

func (s *Store) Product(id int64) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, notFound("Product")
	}
	return cloneProduct(*p), nil
}

func (s *Store) SetStock(id int64, quantity int) (model.Product, error) {
	if quantity < 0 {
		return model.Product{}, fmt.Errorf("%w: Stock cannot be negative", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, notFound("Product")
	}
	p.Stock = quantity
	return cloneProduct(*p), nil
}

func (s *Store) AddImage(productID int64, img model.ProductImage) (model.ProductImage, error) {
	if strings.TrimSpace(img.ImageURL) == "" {
		return model.ProductImage{}, fmt.Errorf("%w: Image URL is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return model.ProductImage{}, notFound("Product")
	}
	img.ID = s.id()
	img.IsPrimary = len(p.Images) == 0
	p.Images = append(p.Images, img)
	return img, nil
}

func (s *Store) DeleteImage(productID, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return notFound("Product")
	}
	for i, img := range p.Images {
		if img.ID == imageID {
			p.Images = append(p.Images[:i], p.Images[i+1:]...)
			return nil
		}
	}
	return notFound("Image")
}

// Products returns the products matching f, in f's sort order, and the
// total number of matches before paging
func (s *Store) Products(f model.ProductFilters) ([]model.Product, int) {
	s.mu.Lock()
	matches := make([]model.Product, 0, len(s.products))
	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))
	for _, p := range s.products {
		if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
			continue
		}
		if f.BrandID != nil && p.BrandID != *f.BrandID {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.ShortDescription+" "+p.Description), keyword) {
			continue
		}
		matches = append(matches, cloneProduct(*p))
	}
	s.mu.Unlock()

	sortProducts(matches, f.SortBy)
	total := len(matches)
	start := f.Page * f.Limit
	if start >= total {
		return []model.Product{}, total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matches[start:end], total
}

func sortProducts(items []model.Product, sortBy string) {
	var less func(a, b model.Product) bool
	switch sortBy {
	case "price_asc":
		less = func(a, b model.Product) bool { return a.Price.LessThan(b.Price) }
	case "price_desc":
		less = func(a, b model.Product) bool { return a.Price.GreaterThan(b.Price) }
	case "name":
		less = func(a, b model.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	default:
		less = func(a, b model.Product) bool { return a.ID < b.ID }
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

func cloneProduct(p model.Product) model.Product {
	p.Images = append([]model.ProductImage{}, p.Images...)
	return p
}

func (s *Store) AddReview(r model.Review) (model.Review, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return model.Review{}, fmt.Errorf("%w: Rating must be between 1 and 5", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[r.ProductID]; !ok {
		return model.Review{}, notFound("Product")
	}
	r.ID = s.id()
	s.reviews[r.ProductID] = append(s.reviews[r.ProductID], r)
	return r, nil
}

func (s *Store) Reviews(productID int64) ([]model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return nil, notFound("Product")
	}
	return append([]model.Review{}, s.reviews[productID]...), nil
}

// ==== Addresses ====

func (s *Store) Addresses(userID int64) []model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Address{}, s.addresses[userID]...)
}

func (s *Store) AddAddress(userID int64, a model.Address) (model.Address, error) {
	if strings.TrimSpace(a.FullName) == "" || strings.TrimSpace(a.AddressLine) == "" || strings.TrimSpace(a.City) == "" {
		return model.Address{}, fmt.Errorf("%w: Full name, address line and city are required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.addresses[userID] = append(s.addresses[userID], a)
	return a, nil
}

func (s *Store) DeleteAddress(userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.addresses[userID]
	for i, a := range list {
		if a.ID == id {
			s.addresses[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return notFound("Shipping address")
}

func (s *Store) hasAddressLocked(userID, id int64) bool {
	for _, a := range s.addresses[userID] {
		if a.ID == id {
			return true
		}
	}
	return false
}

// ==== Wishlist ====

func (s *Store) Wishlist(userID int64) []model.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.WishlistEntry{}
	for _, productID := range s.wishlists[userID] {
		if p, ok := s.products[productID]; ok {
			out = append(out, wishlistEntry(*p))
		}
	}
	return out
}

// AddWishlist is idempotent
func (s *Store) AddWishlist(userID, productID int64) (model.WishlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return model.WishlistEntry{}, notFound("Product")
	}
	for _, id := range s.wishlists[userID] {
		if id == productID {
			return wishlistEntry(*p), nil
		}
	}
	s.wishlists[userID] = append(s.wishlists[userID], productID)
	return wishlistEntry(*p), nil
}

func (s *Store) RemoveWishlist(userID, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.wishlists[userID]
	for i, id := range list {
		if id == productID {
			s.wishlists[userID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func wishlistEntry(p model.Product) model.WishlistEntry {
	e := model.WishlistEntry{ProductID: p.ID, Name: p.Name, Price: p.Price}
	if len(p.Images) > 0 {
		e.ImageURL = p.Images[0].ImageURL
	}
	return e
}

func lineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}
