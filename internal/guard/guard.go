// Package guard decides whether a protected page may be shown.
package guard

import (
	"context"
	"log"
	"strings"

	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/session"
	"github.com/example/ec-storefront/internal/storage"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Auth is the credential state a decision is based on
type Auth struct {
	Token string
	Role  string
}

// Decision is either Allow or a redirect target
type Decision struct {
	Allow    bool
	Redirect string
}

// Check redirects to the login page without a token, to the home page
// when requiredRole is set and not held, and allows otherwise.
func Check(auth Auth, requiredRole string) Decision {
	if auth.Token == "" {
		return Decision{Redirect: LoginPath}
	}
	if requiredRole != "" && auth.Role != requiredRole {
		return Decision{Redirect: HomePath}
	}
	return Decision{Allow: true}
}

// Resolve reads auth from the session, falling back to durable storage
// for whichever part the session does not have yet
func Resolve(ctx context.Context, snap session.Snapshot, store storage.Storage) Auth {
	auth := Auth{Token: snap.Token}
	if snap.User != nil {
		auth.Role = snap.User.Role
	}
	if store == nil || (auth.Token != "" && snap.User != nil) {
		return auth
	}

	if auth.Token == "" {
		token, ok, err := store.Get(ctx, storage.KeyToken)
		if err != nil {
			log.Printf("[Guard] Failed to read stored token: %v", err)
		} else if ok {
			auth.Token = token
		}
	}
	if snap.User == nil {
		var user model.User
		if ok, err := storage.GetJSON(ctx, store, storage.KeyUser, &user); err != nil {
			log.Printf("[Guard] Failed to read stored user: %v", err)
		} else if ok {
			auth.Role = user.Role
		}
	}
	return auth
}

// Rule protects every path under Prefix
type Rule struct {
	Prefix string
	Role   string
}

// DefaultRules mirror the storefront's protected pages
var DefaultRules = []Rule{
	{Prefix: "/cart"},
	{Prefix: "/checkout"},
	{Prefix: "/profile"},
	{Prefix: "/orders"},
	{Prefix: "/admin", Role: model.RoleAdmin},
}

// CheckPath applies the longest matching rule; unmatched paths are public
func CheckPath(auth Auth, rules []Rule, path string) Decision {
	var match *Rule
	for i, r := range rules {
		if path != r.Prefix && !strings.HasPrefix(path, r.Prefix+"/") {
			continue
		}
		if match == nil || len(r.Prefix) > len(match.Prefix) {
			match = &rules[i]
		}
	}
	if match == nil {
		return Decision{Allow: true}
	}
	return Check(auth, match.Role)
}
