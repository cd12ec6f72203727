/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"sync"

	"github.com/suparena/itemstore/storagemodels"
)

// Broadcaster fans adapter events out to subscribed listeners. The zero value is
// ready to use and may be embedded into adapters to implement Notifier.
type Broadcaster struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]storagemodels.Listener
}

// Subscribe registers fn and returns a function removing it again.
func (b *Broadcaster) Subscribe(fn storagemodels.Listener) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listeners == nil {
		b.listeners = make(map[int]storagemodels.Listener)
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers ev to every listener synchronously.
func (b *Broadcaster) Emit(ev storagemodels.Event) {
	b.mu.RLock()
	fns := make([]storagemodels.Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// EmitChange is a shorthand for emitting a change event.
func (b *Broadcaster) EmitChange(key string, rec storagemodels.Record) {
	b.Emit(storagemodels.Event{Kind: storagemodels.EventChange, Key: key, Record: rec})
}

// EmitDelete is a shorthand for emitting a delete event.
func (b *Broadcaster) EmitDelete(key string) {
	b.Emit(storagemodels.Event{Kind: storagemodels.EventDelete, Key: key})
}

// Listeners reports the number of active subscriptions.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
