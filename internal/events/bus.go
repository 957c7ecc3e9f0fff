// Package events is the process-wide publish/subscribe channel for
// session and cart notifications.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topics
const (
	SessionExpired = "session.expired"
	SessionIdle    = "session.idle"
	SessionLogin   = "session.login"
	SessionLogout  = "session.logout"
	CartChanged    = "cart.changed"
)

// Event is a payload-free notification. Source names the emitter
// ("http", "idle", "session", "cart") and is informational only.
type Event struct {
	ID     string    `json:"id"`
	Topic  string    `json:"topic"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// NewEvent stamps a new event for topic
func NewEvent(topic, source string) Event {
	return Event{
		ID:     uuid.New().String(),
		Topic:  topic,
		Source: source,
		At:     time.Now(),
	}
}

type Handler func(Event)

type subscription struct {
	id      uint64
	topic   string // empty matches every topic
	handler Handler
}

// Bus delivers each published event synchronously to every matching
// subscriber registered at publish time. Handlers may publish or
// unsubscribe re-entrantly. Delivery is at-least-once per Publish, so
// handlers must be idempotent.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for topic and returns its unsubscribe func
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, topic: topic, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// SubscribeAll registers handler for every topic
func (b *Bus) SubscribeAll(handler Handler) func() {
	return b.Subscribe("", handler)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to the current subscribers of its topic
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == "" || s.topic == e.Topic {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(e)
	}
}

// Emit is shorthand for Publish(NewEvent(topic, source))
func (b *Bus) Emit(topic, source string) {
	b.Publish(NewEvent(topic, source))
}

// Subscribers returns the number of active subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
