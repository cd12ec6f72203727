/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package file

import "sync"

// keyLocks serializes access per record path while letting distinct paths proceed.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// Lock blocks until path is free and returns the matching unlock function.
func (k *keyLocks) Lock(path string) func() {
	k.mu.Lock()
	l, ok := k.locks[path]
	if !ok {
		l = &keyLock{}
		k.locks[path] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, path)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
