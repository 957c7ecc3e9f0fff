// Package mirror provides the confirm-then-apply list container shared by
// the address, order and wishlist stores.
package mirror

import "sync"

// List mirrors a server-side list keyed by an int64 id. Writes carry the
// generation observed when their request started; a Reset in between
// makes them no-ops.
type List[T any] struct {
	id func(T) int64

	mu        sync.RWMutex
	items     []T
	gen       uint64
	err       error
	listeners map[int]func([]T)
	nextID    int
}

func NewList[T any](id func(T) int64) *List[T] {
	return &List[T]{id: id, items: []T{}, listeners: make(map[int]func([]T))}
}

// Generation is passed back to the write methods
func (l *List[T]) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}

// Items returns a copy of the list
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyLocked()
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Find returns the item with id
func (l *List[T]) Find(id int64) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if l.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Replace swaps in a freshly fetched list
func (l *List[T]) Replace(gen uint64, items []T) bool {
	next := make([]T, len(items))
	copy(next, items)
	return l.apply(gen, func([]T) []T { return next })
}

// Append adds item, replacing an existing item with the same id
func (l *List[T]) Append(gen uint64, item T) bool {
	return l.apply(gen, func(items []T) []T {
		for i, existing := range items {
			if l.id(existing) == l.id(item) {
				items[i] = item
				return items
			}
		}
		return append(items, item)
	})
}

// Remove drops the item with id
func (l *List[T]) Remove(gen uint64, id int64) bool {
	return l.apply(gen, func(items []T) []T {
		out := items[:0]
		for _, item := range items {
			if l.id(item) != id {
				out = append(out, item)
			}
		}
		return out
	})
}

// Update rewrites the list with fn
func (l *List[T]) Update(gen uint64, fn func(items []T) []T) bool {
	return l.apply(gen, fn)
}

// Reset empties the list and invalidates every in-flight write
func (l *List[T]) Reset() {
	l.mu.Lock()
	l.gen++
	l.items = []T{}
	l.err = nil
	l.mu.Unlock()
	l.notify()
}

// Err returns the error recorded by the most recent failed operation
func (l *List[T]) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Fail records err and returns it
func (l *List[T]) Fail(err error) error {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	return err
}

// Subscribe registers fn to receive the list after every change
func (l *List[T]) Subscribe(fn func([]T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.listeners[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

func (l *List[T]) apply(gen uint64, fn func(items []T) []T) bool {
	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		return false
	}
	l.items = fn(l.copyLocked())
	if l.items == nil {
		l.items = []T{}
	}
	l.err = nil
	l.mu.Unlock()
	l.notify()
	return true
}

func (l *List[T]) copyLocked() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List[T]) notify() {
	l.mu.RLock()
	items := l.copyLocked()
	fns := make([]func([]T), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(items)
	}
}
