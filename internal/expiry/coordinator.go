// Package expiry funnels the two session-expiry triggers, an idle timeout
// and a 401 response, into one state machine that only the user can leave.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/session"
	"github.com/example/ec-storefront/internal/storage"
)

// LoginPath is where the user is sent after acknowledging expiry
const LoginPath = "/login"

var (
	ErrNotExpired         = errors.New("session is not expired")
	ErrAcknowledgeRunning = errors.New("acknowledgement already in progress")
)

type State int

const (
	Normal State = iota
	ExpiredPendingAck
)

func (s State) String() string {
	switch s {
	case Normal:
		return "Normal"
	case ExpiredPendingAck:
		return "ExpiredPendingAck"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SessionStore is the session surface the coordinator needs
type SessionStore interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) func()
	Logout(ctx context.Context) error
}

// IdleMonitor is attached while a session exists
type IdleMonitor interface {
	Start() error
	Stop()
}

// Resetter is a per-session cache emptied on acknowledgement
type Resetter interface {
	Reset()
}

type Coordinator struct {
	bus      *events.Bus
	session  SessionStore
	store    storage.Storage
	idle     IdleMonitor
	navigate func(path string)

	mu        sync.Mutex
	state     State
	source    string
	acking    bool
	started   bool
	resetters []Resetter
	unsubs    []func()
	listeners map[int]func(State)
	nextID    int
}

// New builds a coordinator. idle and navigate may be nil.
func New(bus *events.Bus, sess SessionStore, store storage.Storage, idle IdleMonitor, navigate func(path string)) *Coordinator {
	if navigate == nil {
		navigate = func(string) {}
	}
	return &Coordinator{
		bus:       bus,
		session:   sess,
		store:     store,
		idle:      idle,
		navigate:  navigate,
		listeners: make(map[int]func(State)),
	}
}

// Register adds caches to reset on acknowledgement, in registration order
func (c *Coordinator) Register(resetters ...Resetter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetters = append(c.resetters, resetters...)
}

// Start subscribes to the expiry signals and to session changes. The idle
// monitor runs exactly while a session exists and nothing has expired.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	onSignal := func(e events.Event) { c.Expire(e.Source) }
	unsubs := []func(){
		c.bus.Subscribe(events.SessionExpired, onSignal),
		c.bus.Subscribe(events.SessionIdle, onSignal),
		c.session.Subscribe(c.onSession),
	}

	c.mu.Lock()
	c.unsubs = unsubs
	c.mu.Unlock()

	c.onSession(c.session.Snapshot())
}

// Stop unsubscribes everything and detaches the idle monitor
func (c *Coordinator) Stop() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.started = false
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if c.idle != nil {
		c.idle.Stop()
	}
}

func (c *Coordinator) onSession(snap session.Snapshot) {
	if c.idle == nil {
		return
	}
	c.mu.Lock()
	attach := snap.Authenticated() && c.state == Normal && c.started
	c.mu.Unlock()

	if !attach {
		c.idle.Stop()
		return
	}
	if err := c.idle.Start(); err != nil {
		log.Printf("[Expiry] Failed to start idle monitor: %v", err)
	}
}

// Expire moves Normal to ExpiredPendingAck and reports whether it did.
// Repeated signals, and signals while no session exists, are no-ops.
func (c *Coordinator) Expire(source string) bool {
	if !c.session.Snapshot().Authenticated() {
		log.Printf("[Expiry] Ignoring %s expiry signal: no session", source)
		return false
	}

	c.mu.Lock()
	if c.state != Normal {
		c.mu.Unlock()
		return false
	}
	c.state = ExpiredPendingAck
	c.source = source
	c.mu.Unlock()

	log.Printf("[Expiry] Session expired (%s)", source)
	if c.idle != nil {
		c.idle.Stop()
	}
	c.notify(ExpiredPendingAck)
	return true
}

// Acknowledge ends an expired session: logout, clear durable storage,
// reset every registered cache, then navigate to the login page. Every
// step runs even if an earlier one fails.
func (c *Coordinator) Acknowledge(ctx context.Context) error {
	c.mu.Lock()
	if c.state != ExpiredPendingAck {
		c.mu.Unlock()
		return ErrNotExpired
	}
	if c.acking {
		c.mu.Unlock()
		return ErrAcknowledgeRunning
	}
	c.acking = true
	resetters := append([]Resetter(nil), c.resetters...)
	c.mu.Unlock()

	var errs []error
	if err := c.session.Logout(ctx); err != nil {
		errs = append(errs, fmt.Errorf("logout: %w", err))
	}
	if err := c.store.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear storage: %w", err))
	}
	for _, r := range resetters {
		r.Reset()
	}

	c.mu.Lock()
	c.state = Normal
	c.source = ""
	c.acking = false
	c.mu.Unlock()

	c.navigate(LoginPath)
	log.Printf("[Expiry] Acknowledged, redirected to %s", LoginPath)
	c.notify(Normal)
	return errors.Join(errs...)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Source names the trigger of the current expiry ("http" or "idle")
func (c *Coordinator) Source() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// OnChange registers fn to receive every state transition
func (c *Coordinator) OnChange(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Coordinator) notify(s State) {
	c.mu.Lock()
	fns := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
