// Package wishlist mirrors the saved-product list. The list is persisted so
// it is available before the first fetch returns.
package wishlist

import (
	"context"
	"errors"
	"log"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/mirror"
	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/storage"
)

var (
	ErrInvalidProduct = errors.New("product id must be positive")
	ErrStaleResponse  = errors.New("wishlist was reset while the request was in flight")
)

type API interface {
	Wishlist(ctx context.Context) ([]model.WishlistEntry, error)
	AddWishlist(ctx context.Context, productID int64) error
	RemoveWishlist(ctx context.Context, productID int64) error
}

type Store struct {
	api   API
	store storage.Storage
	list  *mirror.List[model.WishlistEntry]
}

func NewStore(api API, store storage.Storage) *Store {
	return &Store{
		api:   api,
		store: store,
		list:  mirror.NewList(func(e model.WishlistEntry) int64 { return e.ProductID }),
	}
}

func (s *Store) Items() []model.WishlistEntry { return s.list.Items() }

func (s *Store) Err() error { return s.list.Err() }

func (s *Store) Subscribe(fn func([]model.WishlistEntry)) func() { return s.list.Subscribe(fn) }

func (s *Store) Contains(productID int64) bool {
	_, ok := s.list.Find(productID)
	return ok
}

// Hydrate loads the persisted list. Unreadable data is dropped.
func (s *Store) Hydrate(ctx context.Context) error {
	var entries []model.WishlistEntry
	ok, err := storage.GetJSON(ctx, s.store, storage.KeyWishlist, &entries)
	if err != nil {
		log.Printf("[Wishlist] Dropping unreadable stored wishlist: %v", err)
		return s.store.Remove(ctx, storage.KeyWishlist)
	}
	if !ok {
		return nil
	}
	s.list.Replace(s.list.Generation(), entries)
	return nil
}

// Fetch replaces the list with the server's. Server entries missing
// display fields borrow them from the persisted entry for the same product.
func (s *Store) Fetch(ctx context.Context) ([]model.WishlistEntry, error) {
	gen := s.list.Generation()
	fetched, err := s.api.Wishlist(ctx)
	if err != nil {
		return s.list.Items(), s.list.Fail(err)
	}

	ok := s.list.Update(gen, func(current []model.WishlistEntry) []model.WishlistEntry {
		return Reconcile(current, fetched)
	})
	if !ok {
		return s.list.Items(), ErrStaleResponse
	}
	s.persist(ctx)
	return s.list.Items(), nil
}

// Add saves a product. A product already on the list is not duplicated.
func (s *Store) Add(ctx context.Context, product model.Product) error {
	if product.ID <= 0 {
		return s.list.Fail(ErrInvalidProduct)
	}
	gen := s.list.Generation()
	if err := s.api.AddWishlist(ctx, product.ID); err != nil {
		return s.list.Fail(err)
	}
	entry := apiclient.WishlistEntryFromProduct(product)
	if !s.list.Append(gen, entry) {
		return ErrStaleResponse
	}
	s.persist(ctx)
	return nil
}

func (s *Store) Remove(ctx context.Context, productID int64) error {
	gen := s.list.Generation()
	if err := s.api.RemoveWishlist(ctx, productID); err != nil {
		return s.list.Fail(err)
	}
	if !s.list.Remove(gen, productID) {
		return ErrStaleResponse
	}
	s.persist(ctx)
	return nil
}

// Toggle adds the product if absent and removes it otherwise
func (s *Store) Toggle(ctx context.Context, product model.Product) (bool, error) {
	if s.Contains(product.ID) {
		return false, s.Remove(ctx, product.ID)
	}
	return true, s.Add(ctx, product)
}

// Clear empties the local list and its persisted copy without a server call
func (s *Store) Clear(ctx context.Context) error {
	s.list.Reset()
	return s.store.Remove(ctx, storage.KeyWishlist)
}

// Reset empties the in-memory list. Durable storage is cleared separately
// on session expiry.
func (s *Store) Reset() {
	s.list.Reset()
}

func (s *Store) persist(ctx context.Context) {
	if err := storage.SetJSON(ctx, s.store, storage.KeyWishlist, s.list.Items()); err != nil {
		log.Printf("[Wishlist] Failed to persist wishlist: %v", err)
	}
}

// Reconcile returns fetched, with empty display fields filled from the
// matching entry in current. Membership and order come from fetched.
func Reconcile(current, fetched []model.WishlistEntry) []model.WishlistEntry {
	known := make(map[int64]model.WishlistEntry, len(current))
	for _, e := range current {
		known[e.ProductID] = e
	}

	out := make([]model.WishlistEntry, 0, len(fetched))
	seen := make(map[int64]bool, len(fetched))
	for _, e := range fetched {
		if seen[e.ProductID] {
			continue
		}
		seen[e.ProductID] = true
		if prev, ok := known[e.ProductID]; ok {
			if e.Name == "" {
				e.Name = prev.Name
			}
			if e.Price.IsZero() {
				e.Price = prev.Price
			}
			if e.ImageURL == "" {
				e.ImageURL = prev.ImageURL
			}
		}
		out = append(out, e)
	}
	return out
}
