// Package idle detects prolonged user inactivity. A Monitor re-arms its
// deadline on every recognized activity event and publishes session.idle
// once when the deadline passes.
package idle

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/ec-storefront/internal/clock"
	"github.com/example/ec-storefront/internal/events"
)

var (
	ErrNotRunning    = errors.New("idle monitor is not running")
	ErrInvalidWindow = errors.New("idle window must be positive")
	ErrNoEvents      = errors.New("at least one activity event type is required")
)

// DefaultEvents are the activity types recognized when none are configured
var DefaultEvents = []string{"mousemove", "keydown", "click", "scroll"}

// ActivitySource delivers user activity. Listen registers fn for one event
// type and returns the func that unregisters it.
type ActivitySource interface {
	Listen(eventType string, fn func()) (remove func(), err error)
}

type Config struct {
	Window time.Duration
	Events []string
}

func (c Config) Validate() error {
	if c.Window <= 0 {
		return ErrInvalidWindow
	}
	if len(c.Events) == 0 {
		return ErrNoEvents
	}
	return nil
}

type Monitor struct {
	cfg    Config
	source ActivitySource
	clock  clock.Clock
	bus    *events.Bus

	// lifeMu serializes Start and Stop, which call into the source
	lifeMu sync.Mutex

	mu       sync.Mutex
	running  bool
	removers []func()
	timer    clock.Timer
	gen      uint64
	deadline time.Time
	armed    bool
	fired    bool
}

func NewMonitor(cfg Config, source ActivitySource, clk clock.Clock, bus *events.Bus) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Monitor{cfg: cfg, source: source, clock: clk, bus: bus}, nil
}

// Start registers one listener per configured event type and arms the
// deadline. If any registration fails, every listener registered so far
// is removed. Starting a running monitor is a no-op.
func (m *Monitor) Start() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if running {
		return nil
	}

	removers := make([]func(), 0, len(m.cfg.Events))
	for _, eventType := range m.cfg.Events {
		remove, err := m.source.Listen(eventType, m.Activity)
		if err != nil {
			for _, r := range removers {
				r()
			}
			return fmt.Errorf("failed to listen for %s: %w", eventType, err)
		}
		removers = append(removers, remove)
	}

	m.mu.Lock()
	m.running = true
	m.removers = removers
	m.armLocked()
	m.mu.Unlock()

	log.Printf("[Idle] Monitoring %d event types, window %s", len(removers), m.cfg.Window)
	return nil
}

// Stop removes every listener and the pending timer. It is idempotent.
func (m *Monitor) Stop() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.disarmLocked()
	removers := m.removers
	m.removers = nil
	m.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	log.Printf("[Idle] Stopped")
}

// Activity pushes the deadline to now + window. It has no effect once the
// monitor has fired, until Rearm is called.
func (m *Monitor) Activity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || !m.armed {
		return
	}
	m.armLocked()
}

// Rearm clears a fired state and starts a fresh window
func (m *Monitor) Rearm() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrNotRunning
	}
	m.armLocked()
	return nil
}

func (m *Monitor) armLocked() {
	m.disarmLocked()
	m.gen++
	gen := m.gen
	m.deadline = m.clock.Now().Add(m.cfg.Window)
	m.armed = true
	m.fired = false
	m.timer = m.clock.AfterFunc(m.cfg.Window, func() { m.fire(gen) })
}

func (m *Monitor) disarmLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
	m.armed = false
}

// fire ignores callbacks from superseded timers
func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.armed {
		m.mu.Unlock()
		return
	}
	m.armed = false
	m.fired = true
	m.timer = nil
	m.mu.Unlock()

	log.Printf("[Idle] No activity for %s", m.cfg.Window)
	if m.bus != nil {
		m.bus.Emit(events.SessionIdle, "idle")
	}
}

func (m *Monitor) Deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

func (m *Monitor) Fired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fired
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) Window() time.Duration {
	return m.cfg.Window
}
