package idle

import (
	"errors"
	"fmt"
	"sync"
)

var ErrUnsupportedEvent = errors.New("unsupported activity event")

// Channel is an in-process ActivitySource. Front ends call Emit for each
// user interaction.
type Channel struct {
	mu        sync.Mutex
	supported map[string]bool
	listeners map[string]map[int]func()
	nextID    int
}

// NewChannel accepts listeners for the given event types, or any type when
// none are given
func NewChannel(eventTypes ...string) *Channel {
	c := &Channel{listeners: make(map[string]map[int]func())}
	if len(eventTypes) > 0 {
		c.supported = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			c.supported[t] = true
		}
	}
	return c
}

func (c *Channel) Listen(eventType string, fn func()) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if eventType == "" || (c.supported != nil && !c.supported[eventType]) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
	if c.listeners[eventType] == nil {
		c.listeners[eventType] = make(map[int]func())
	}
	c.nextID++
	id := c.nextID
	c.listeners[eventType][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners[eventType], id)
		})
	}, nil
}

// Emit calls every listener of eventType
func (c *Channel) Emit(eventType string) {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners[eventType]))
	for _, fn := range c.listeners[eventType] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Listeners returns the number of registered listeners across all types
func (c *Channel) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, fns := range c.listeners {
		n += len(fns)
	}
	return n
}
