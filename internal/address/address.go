// Package address mirrors the user's shipping addresses.
package address

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/example/ec-storefront/internal/mirror"
	"github.com/example/ec-storefront/internal/model"
)

var (
	ErrMissingField  = errors.New("full name, address line and city are required")
	ErrStaleResponse = errors.New("addresses were reset while the request was in flight")
)

type API interface {
	Addresses(ctx context.Context) ([]model.Address, error)
	CreateAddress(ctx context.Context, addr model.Address) (*model.Address, error)
	DeleteAddress(ctx context.Context, id int64) error
}

type Store struct {
	api  API
	list *mirror.List[model.Address]
}

func NewStore(api API) *Store {
	return &Store{
		api:  api,
		list: mirror.NewList(func(a model.Address) int64 { return a.ID }),
	}
}

func (s *Store) Items() []model.Address { return s.list.Items() }

func (s *Store) Err() error { return s.list.Err() }

func (s *Store) Reset() { s.list.Reset() }

func (s *Store) Subscribe(fn func([]model.Address)) func() { return s.list.Subscribe(fn) }

func (s *Store) Fetch(ctx context.Context) ([]model.Address, error) {
	gen := s.list.Generation()
	addrs, err := s.api.Addresses(ctx)
	if err != nil {
		return s.list.Items(), s.list.Fail(err)
	}
	if !s.list.Replace(gen, addrs) {
		return s.list.Items(), ErrStaleResponse
	}
	return s.list.Items(), nil
}

// Add validates locally, creates the address and appends the server's copy
func (s *Store) Add(ctx context.Context, addr model.Address) (*model.Address, error) {
	if err := Validate(addr); err != nil {
		return nil, s.list.Fail(err)
	}

	gen := s.list.Generation()
	created, err := s.api.CreateAddress(ctx, addr)
	if err != nil {
		return nil, s.list.Fail(err)
	}
	if !s.list.Append(gen, *created) {
		return nil, ErrStaleResponse
	}
	log.Printf("[Address] Added address %d", created.ID)
	return created, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	gen := s.list.Generation()
	if err := s.api.DeleteAddress(ctx, id); err != nil {
		return s.list.Fail(err)
	}
	if !s.list.Remove(gen, id) {
		return ErrStaleResponse
	}
	return nil
}

// Validate checks the fields the server requires
func Validate(addr model.Address) error {
	var missing []string
	if strings.TrimSpace(addr.FullName) == "" {
		missing = append(missing, "fullName")
	}
	if strings.TrimSpace(addr.AddressLine) == "" {
		missing = append(missing, "addressLine")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
