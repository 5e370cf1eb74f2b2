// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package identity

import (
	"slices"
	"sync"
)

// Event is a list of listeners notified when the user state changes.
type Event struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]func()
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the listener. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Subscribe registers fn until the returned subscription is released.
func (e *Event) Subscribe(fn func()) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[uint64]func())
	}
	id := e.next
	e.next++
	e.listeners[id] = fn
	return &Subscription{cancel: func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}}
}

// Len returns the number of registered listeners.
func (e *Event) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Raise calls every listener in registration order. Listeners run without
// the lock held and may unsubscribe themselves.
func (e *Event) Raise() {
	e.mu.Lock()
	ids := make([]uint64, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	fns := make(map[uint64]func(), len(ids))
	for _, id := range ids {
		fns[id] = e.listeners[id]
	}
	e.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id]()
	}
}
