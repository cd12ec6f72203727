/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package index

import (
	"github.com/google/uuid"
)

// UpdateOptions controls how Update locates the entry to relocate.
type UpdateOptions struct {
	// SearchExisting ignores the provided old value and looks the id up wherever
	// it is currently indexed.
	SearchExisting bool
	// AddIfMissing inserts the id under the new value when it is not indexed yet.
	AddIfMissing bool
}

// Handler is the contract between models and their index implementations.
type Handler interface {
	Add(id uuid.UUID, value any) error
	Update(id uuid.UUID, oldValue, newValue any, opts UpdateOptions) error
	// Remove drops id without knowing its value.
	Remove(id uuid.UUID) error
	// RemoveValue drops id known to be indexed under value.
	RemoveValue(id uuid.UUID, value any) error
	CheckIntegrity() error
}

// Ordered is implemented by handlers that can enumerate their entries in value order.
type Ordered interface {
	Handler

	// Find returns the ids indexed under value.
	Find(value any) []uuid.UUID
	// Walk visits every entry in value order until fn returns false.
	Walk(descending bool, fn func(id uuid.UUID, value any) bool)
	Len() int
}
