/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package properties

import (
	"reflect"
)

// CoerceFunc normalizes a value assigned to the named property.
type CoerceFunc func(name string, value any) (any, error)

// Store holds the property values of one item together with the values they had
// at the last commit point. A Store is not safe for concurrent use.
type Store struct {
	values  map[string]any
	order   []string
	changed map[string]any
	relaxed bool
	coerce  CoerceFunc
}

// New creates a store whose properties are listed in the order of names. coerce
// may be nil.
func New(coerce CoerceFunc, names ...string) *Store {
	s := &Store{
		values:  make(map[string]any, len(names)),
		order:   make([]string, 0, len(names)),
		changed: make(map[string]any),
		coerce:  coerce,
	}
	for _, name := range names {
		s.values[name] = nil
		s.order = append(s.order, name)
	}
	return s
}

// Set assigns value to name. The first assignment after a commit point captures
// the previous value as baseline. Assigning the baseline again marks the
// property clean.
func (s *Store) Set(name string, value any) error {
	if s.coerce != nil {
		coerced, err := s.coerce(name, value)
		if err != nil {
			return err
		}
		value = coerced
	}

	current, known := s.values[name]
	if !known {
		s.order = append(s.order, name)
	} else if equal(current, value) {
		return nil
	}

	if baseline, dirty := s.changed[name]; dirty {
		if equal(baseline, value) {
			delete(s.changed, name)
		}
	} else {
		s.changed[name] = current
	}

	s.values[name] = value
	return nil
}

// Get returns the current value of name.
func (s *Store) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names lists all properties in order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Values returns a copy of all current values.
func (s *Store) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Baseline returns the value name had at the last commit point.
func (s *Store) Baseline(name string) any {
	if v, dirty := s.changed[name]; dirty {
		return v
	}
	return s.values[name]
}

// IsChanged reports whether name differs from its baseline.
func (s *Store) IsChanged(name string) bool {
	_, dirty := s.changed[name]
	return dirty
}

// Changed returns the baseline values of all changed properties.
func (s *Store) Changed() map[string]any {
	out := make(map[string]any, len(s.changed))
	for k, v := range s.changed {
		out[k] = v
	}
	return out
}

// HasChanged reports whether any property differs from its baseline.
func (s *Store) HasChanged() bool {
	return len(s.changed) > 0
}

// Commit accepts current values as the new baseline.
func (s *Store) Commit() {
	s.changed = make(map[string]any)
}

// RollBack restores all changed properties to their baseline.
func (s *Store) RollBack() {
	for name, baseline := range s.changed {
		s.values[name] = baseline
	}
	s.changed = make(map[string]any)
}

// Clone returns an independent copy including pending changes.
func (s *Store) Clone() *Store {
	c := &Store{
		values:  make(map[string]any, len(s.values)),
		order:   append([]string(nil), s.order...),
		changed: make(map[string]any, len(s.changed)),
		relaxed: s.relaxed,
		coerce:  s.coerce,
	}
	for k, v := range s.values {
		c.values[k] = v
	}
	for k, v := range s.changed {
		c.changed[k] = v
	}
	return c
}

// Replace discards all values and changes and installs values as committed state.
func (s *Store) Replace(values map[string]any) {
	for name := range s.values {
		s.values[name] = nil
	}
	for name, v := range values {
		if _, known := s.values[name]; !known {
			s.order = append(s.order, name)
		}
		s.values[name] = v
	}
	s.changed = make(map[string]any)
}

// Relax toggles suppression of the unsaved changes guard and returns the
// previous setting so callers can restore it.
func (s *Store) Relax(on bool) bool {
	prev := s.relaxed
	s.relaxed = on
	return prev
}

// Relaxed reports whether the unsaved changes guard is suppressed.
func (s *Store) Relaxed() bool {
	return s.relaxed
}

func equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
