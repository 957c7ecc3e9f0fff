// Package session holds the authenticated session: the bearer token and
// the user it belongs to. A token is present exactly when a user is.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/storage"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrStaleResponse    = errors.New("response arrived for a session that no longer exists")
	ErrMissingToken     = errors.New("login response carried no token")
	ErrInvalidInput     = errors.New("email and password are required")
)

// API is the subset of the REST client the session uses
type API interface {
	Login(ctx context.Context, req apiclient.LoginRequest) (*apiclient.LoginResponse, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*model.User, error)
	Profile(ctx context.Context) (*model.User, error)
	UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) (*model.User, error)
	ChangePassword(ctx context.Context, change apiclient.PasswordChange) error
}

// Snapshot is a read-only copy of the session
type Snapshot struct {
	Token string
	User  *model.User
	Epoch uint64
}

func (s Snapshot) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Store owns the session. Every transition keeps token and user paired,
// in memory and in durable storage.
type Store struct {
	api   API
	store storage.Storage
	bus   *events.Bus

	// applyMu serializes transitions, including their storage writes
	applyMu sync.Mutex

	mu          sync.RWMutex
	token       string
	user        *model.User
	epoch       uint64 // bumped on every login and logout
	loggedOutAt uint64 // epoch right after the latest logout
	err         error
	listeners   map[int]func(Snapshot)
	nextID      int
}

func NewStore(api API, store storage.Storage, bus *events.Bus) *Store {
	return &Store{
		api:       api,
		store:     store,
		bus:       bus,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Token implements apiclient.TokenSource
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Token: s.token, Epoch: s.epoch}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) Authenticated() bool {
	return s.Snapshot().Authenticated()
}

// Err returns the error of the most recent failed operation
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Subscribe registers fn to receive a snapshot after every transition
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) setErr(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

// Hydrate restores the session persisted by a previous run. A token
// without a user, or the reverse, is discarded and storage cleaned.
func (s *Store) Hydrate(ctx context.Context) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	token, hasToken, err := s.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return fmt.Errorf("failed to read stored token: %w", err)
	}
	var user model.User
	hasUser, err := storage.GetJSON(ctx, s.store, storage.KeyUser, &user)
	if err != nil {
		log.Printf("[Session] Discarding unreadable stored user: %v", err)
		hasUser = false
	}

	if !hasToken || token == "" || !hasUser {
		if hasToken || hasUser || err != nil {
			log.Printf("[Session] Discarding incomplete stored session")
			s.removeStored(ctx)
		}
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.epoch++
	s.mu.Unlock()

	log.Printf("[Session] Restored session for %s", user.Email)
	s.notify()
	return nil
}

// Login authenticates and stores the token with its user. A logout that
// completes while the call is in flight wins.
func (s *Store) Login(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, s.setErr(ErrInvalidInput)
	}
	startEpoch := s.Snapshot().Epoch

	resp, err := s.api.Login(ctx, apiclient.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, s.setErr(err)
	}
	token := resp.BearerToken()
	if token == "" {
		return nil, s.setErr(ErrMissingToken)
	}
	user := userFromLogin(resp, token)

	s.applyMu.Lock()
	s.mu.RLock()
	stale := s.loggedOutAt > startEpoch
	s.mu.RUnlock()
	if stale {
		s.applyMu.Unlock()
		log.Printf("[Session] Discarding login for %s: logged out meanwhile", user.Email)
		return nil, ErrStaleResponse
	}

	if err := s.persist(ctx, token, &user); err != nil {
		s.applyMu.Unlock()
		return nil, s.setErr(err)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.epoch++
	s.err = nil
	s.mu.Unlock()
	s.applyMu.Unlock()

	log.Printf("[Session] Logged in as %s", user.Email)
	s.notify()
	if s.bus != nil {
		s.bus.Emit(events.SessionLogin, "session")
	}
	out := user
	return &out, nil
}

// Register creates an account without logging in
func (s *Store) Register(ctx context.Context, req apiclient.RegisterRequest) (*model.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, s.setErr(ErrInvalidInput)
	}
	user, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, s.setErr(err)
	}
	s.setErr(nil)
	return user, nil
}

// LoadProfile replaces the cached user with the server's copy
func (s *Store) LoadProfile(ctx context.Context) (*model.User, error) {
	return s.refreshUser(ctx, "profile load", func() (*model.User, error) {
		return s.api.Profile(ctx)
	})
}

// UpdateProfile sends patch and replaces the cached user with the result
func (s *Store) UpdateProfile(ctx context.Context, patch apiclient.ProfileUpdate) (*model.User, error) {
	return s.refreshUser(ctx, "profile update", func() (*model.User, error) {
		return s.api.UpdateProfile(ctx, patch)
	})
}

// refreshUser applies a server user only if the session that issued the
// request is still the current one
func (s *Store) refreshUser(ctx context.Context, op string, fetch func() (*model.User, error)) (*model.User, error) {
	snap := s.Snapshot()
	if !snap.Authenticated() {
		return nil, s.setErr(ErrNotAuthenticated)
	}

	fresh, err := fetch()
	if err != nil {
		return nil, s.setErr(err)
	}

	s.applyMu.Lock()
	s.mu.RLock()
	current := s.token != "" && s.epoch == snap.Epoch
	s.mu.RUnlock()
	if !current {
		s.applyMu.Unlock()
		log.Printf("[Session] Discarding %s response: session changed", op)
		return nil, ErrStaleResponse
	}

	user := *fresh
	if err := storage.SetJSON(ctx, s.store, storage.KeyUser, user); err != nil {
		s.applyMu.Unlock()
		return nil, s.setErr(fmt.Errorf("failed to persist user: %w", err))
	}

	s.mu.Lock()
	s.user = &user
	s.err = nil
	s.mu.Unlock()
	s.applyMu.Unlock()

	s.notify()
	out := user
	return &out, nil
}

func (s *Store) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if !s.Authenticated() {
		return s.setErr(ErrNotAuthenticated)
	}
	err := s.api.ChangePassword(ctx, apiclient.PasswordChange{OldPassword: oldPassword, NewPassword: newPassword})
	return s.setErr(err)
}

// Logout clears the session in memory and in durable storage. There is no
// server call. Calling it without a session is a no-op apart from cleanup.
func (s *Store) Logout(ctx context.Context) error {
	s.applyMu.Lock()

	s.mu.Lock()
	wasAuthenticated := s.token != ""
	s.token = ""
	s.user = nil
	s.epoch++
	s.loggedOutAt = s.epoch
	s.err = nil
	s.mu.Unlock()

	err := s.removeStored(ctx)
	s.applyMu.Unlock()

	if wasAuthenticated {
		log.Printf("[Session] Logged out")
	}
	s.notify()
	if s.bus != nil && wasAuthenticated {
		s.bus.Emit(events.SessionLogout, "session")
	}
	return err
}

func (s *Store) persist(ctx context.Context, token string, user *model.User) error {
	if err := storage.SetJSON(ctx, s.store, storage.KeyUser, user); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	if err := s.store.Set(ctx, storage.KeyToken, token); err != nil {
		s.store.Remove(ctx, storage.KeyUser)
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

func (s *Store) removeStored(ctx context.Context) error {
	var errs []error
	if err := s.store.Remove(ctx, storage.KeyToken); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Remove(ctx, storage.KeyUser); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear stored session: %w", errors.Join(errs...))
	}
	return nil
}
