/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Serializer converts property values between their in-memory and record forms.
type Serializer interface {
	// Coerce normalizes a value assigned to a property in memory.
	Coerce(value any) (any, error)
	// Serialize converts an in-memory value for storing. binary tells whether the
	// adapter accepts raw byte slices.
	Serialize(value any, binary bool) (any, error)
	// Deserialize converts a stored value back into its in-memory form.
	Deserialize(raw any) (any, error)
}

// typeRegistry holds the mapping from a property type name (like "string", "date") to its serializer.
var (
	typeRegistry = make(map[string]Serializer)
	typeMu       sync.RWMutex
)

// RegisterType registers a serializer for a given property type name.
// If a type is already registered for the given name, it panics to prevent accidental overrides.
func RegisterType(name string, s Serializer) {
	typeMu.Lock()
	defer typeMu.Unlock()

	if _, exists := typeRegistry[name]; exists {
		panic(fmt.Sprintf("type registry: type %q already registered", name))
	}
	typeRegistry[name] = s
}

// GetSerializer returns the registered serializer for the given type name.
// If no serializer is registered, it returns an error.
func GetSerializer(name string) (Serializer, error) {
	typeMu.RLock()
	defer typeMu.RUnlock()

	s, ok := typeRegistry[name]
	if !ok {
		return nil, fmt.Errorf("type registry: no type registered as %q", name)
	}
	return s, nil
}

// Types lists all registered type names in lexical order.
func Types() []string {
	typeMu.RLock()
	defer typeMu.RUnlock()

	names := make([]string, 0, len(typeRegistry))
	for name := range typeRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
