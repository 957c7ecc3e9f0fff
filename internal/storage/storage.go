// Package storage holds the durable client-side key/value state that survives
// process restarts: the session token and user, the wishlist and the
// anonymous cart correlation key.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Well-known keys
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyWishlist = "wishlist"
	KeyCartUUID = "cart_uuid"
)

const DefaultNamespace = "storefront"

var (
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrMissingSetting = errors.New("storage backend setting missing")
)

// Storage is a namespaced string key/value store
type Storage interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Clear removes every key of this store's namespace
	Clear(ctx context.Context) error
}

// Options selects and configures a backend for Open
type Options struct {
	Backend        string // memory, file, postgres, dynamodb
	Namespace      string
	Path           string
	DatabaseURL    string
	DynamoTable    string
	DynamoEndpoint string
}

// Open builds the backend named in opts. The returned close func releases
// backend resources and is never nil.
func Open(ctx context.Context, opts Options) (Storage, func() error, error) {
	noop := func() error { return nil }
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}

	switch strings.ToLower(opts.Backend) {
	case "", "memory":
		return NewMemory(), noop, nil
	case "file":
		if opts.Path == "" {
			return nil, noop, fmt.Errorf("%w: file backend needs a path", ErrMissingSetting)
		}
		return NewFile(opts.Path, opts.Namespace), noop, nil
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("%w: postgres backend needs DATABASE_URL", ErrMissingSetting)
		}
		db, err := ConnectPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := Migrate(db); err != nil {
			db.Close()
			return nil, noop, err
		}
		return NewPostgres(db, opts.Namespace), db.Close, nil
	case "dynamodb":
		if opts.DynamoTable == "" {
			return nil, noop, fmt.Errorf("%w: dynamodb backend needs a table", ErrMissingSetting)
		}
		client, err := NewDynamoClient(ctx, opts.DynamoEndpoint)
		if err != nil {
			return nil, noop, err
		}
		return NewDynamo(client, opts.DynamoTable, opts.Namespace), noop, nil
	}
	return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
}

// GetJSON decodes the value stored at key into v
func GetJSON(ctx context.Context, s Storage, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v encoded as JSON at key
func SetJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
