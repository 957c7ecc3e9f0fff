package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/session"
	"github.com/example/ec-storefront/internal/storage"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		auth Auth
		role string
		want Decision
	}{
		{"no token", Auth{}, "", Decision{Redirect: LoginPath}},
		{"no token admin page", Auth{Role: model.RoleAdmin}, model.RoleAdmin, Decision{Redirect: LoginPath}},
		{"customer on admin page", Auth{Token: "t", Role: model.RoleCustomer}, model.RoleAdmin, Decision{Redirect: HomePath}},
		{"admin on admin page", Auth{Token: "t", Role: model.RoleAdmin}, model.RoleAdmin, Decision{Allow: true}},
		{"any user on protected page", Auth{Token: "t"}, "", Decision{Allow: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.auth, tt.role))
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("session wins", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, storage.KeyToken, "stored"))
		snap := session.Snapshot{Token: "live", User: &model.User{Role: model.RoleAdmin}}

		assert.Equal(t, Auth{Token: "live", Role: model.RoleAdmin}, Resolve(ctx, snap, store))
	})

	t.Run("falls back to storage", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, storage.KeyToken, "stored"))
		require.NoError(t, storage.SetJSON(ctx, store, storage.KeyUser, model.User{Role: model.RoleCustomer}))

		assert.Equal(t, Auth{Token: "stored", Role: model.RoleCustomer}, Resolve(ctx, session.Snapshot{}, store))
	})

	t.Run("nothing anywhere", func(t *testing.T) {
		assert.Equal(t, Auth{}, Resolve(ctx, session.Snapshot{}, storage.NewMemory()))
	})
}

func TestCheckPath(t *testing.T) {
	customer := Auth{Token: "t", Role: model.RoleCustomer}

	assert.Equal(t, Decision{Allow: true}, CheckPath(Auth{}, DefaultRules, "/products/5"))
	assert.Equal(t, Decision{Redirect: LoginPath}, CheckPath(Auth{}, DefaultRules, "/cart"))
	assert.Equal(t, Decision{Allow: true}, CheckPath(customer, DefaultRules, "/orders/ORD-1"))
	assert.Equal(t, Decision{Redirect: HomePath}, CheckPath(customer, DefaultRules, "/admin/products"))
	assert.Equal(t, Decision{Allow: true}, CheckPath(Auth{}, DefaultRules, "/cartography"))
}
