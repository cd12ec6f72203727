/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"sync"

	"github.com/suparena/itemstore/index"
)

// IndexFactory creates an empty index handler.
type IndexFactory func() index.Handler

var (
	indexRegistry = make(map[string]IndexFactory)
	indexMu       sync.RWMutex
)

// RegisterIndexKind associates an index kind (like "eq") with a factory.
// It panics when the kind is registered already.
func RegisterIndexKind(kind string, factory IndexFactory) {
	indexMu.Lock()
	defer indexMu.Unlock()

	if _, exists := indexRegistry[kind]; exists {
		panic(fmt.Sprintf("index registry: kind %q already registered", kind))
	}
	indexRegistry[kind] = factory
}

// NewIndex creates a fresh handler of the given kind.
func NewIndex(kind string) (index.Handler, error) {
	indexMu.RLock()
	factory, ok := indexRegistry[kind]
	indexMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("index registry: no index kind %q", kind)
	}
	return factory(), nil
}

// HasIndexKind reports whether kind is registered.
func HasIndexKind(kind string) bool {
	indexMu.RLock()
	defer indexMu.RUnlock()

	_, ok := indexRegistry[kind]
	return ok
}
