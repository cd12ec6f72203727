/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// KindEq names the equality index in registries.
const KindEq = "eq"

type bucket struct {
	value any
	ids   []uuid.UUID
}

// EqIndex keeps ids grouped by value in ascending value order. Ids sharing a value
// keep the order they were added in, for ascending and descending walks alike.
type EqIndex struct {
	mu      sync.RWMutex
	buckets []*bucket
}

var _ Ordered = (*EqIndex)(nil)

// NewEqIndex creates an empty equality index.
func NewEqIndex() *EqIndex {
	return &EqIndex{}
}

// search returns the position of value and whether a bucket for it exists.
func (x *EqIndex) search(value any) (int, bool) {
	i := sort.Search(len(x.buckets), func(i int) bool {
		return Compare(x.buckets[i].value, value) >= 0
	})
	return i, i < len(x.buckets) && Compare(x.buckets[i].value, value) == 0
}

// locate finds the bucket currently holding id.
func (x *EqIndex) locate(id uuid.UUID) (int, int, bool) {
	for b, bk := range x.buckets {
		for i, candidate := range bk.ids {
			if candidate == id {
				return b, i, true
			}
		}
	}
	return 0, 0, false
}

func (x *EqIndex) insert(id uuid.UUID, value any) {
	pos, found := x.search(value)
	if found {
		x.buckets[pos].ids = append(x.buckets[pos].ids, id)
		return
	}

	x.buckets = append(x.buckets, nil)
	copy(x.buckets[pos+1:], x.buckets[pos:])
	x.buckets[pos] = &bucket{value: value, ids: []uuid.UUID{id}}
}

func (x *EqIndex) drop(b, i int) {
	bk := x.buckets[b]
	bk.ids = append(bk.ids[:i], bk.ids[i+1:]...)
	if len(bk.ids) == 0 {
		x.buckets = append(x.buckets[:b], x.buckets[b+1:]...)
	}
}

// Add indexes id under value. Adding an id twice is rejected.
func (x *EqIndex) Add(id uuid.UUID, value any) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if b, _, found := x.locate(id); found {
		if Compare(x.buckets[b].value, value) == 0 {
			return nil
		}
		return fmt.Errorf("eq index: %s already indexed under %v", id, x.buckets[b].value)
	}

	x.insert(id, value)
	return nil
}

// Update moves id from oldValue to newValue.
func (x *EqIndex) Update(id uuid.UUID, oldValue, newValue any, opts UpdateOptions) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var (
		b, i  int
		found bool
	)
	if opts.SearchExisting {
		b, i, found = x.locate(id)
	} else if pos, ok := x.search(oldValue); ok {
		for j, candidate := range x.buckets[pos].ids {
			if candidate == id {
				b, i, found = pos, j, true
				break
			}
		}
	}

	if !found {
		if !opts.AddIfMissing {
			return fmt.Errorf("eq index: %s not indexed under %v", id, oldValue)
		}
		x.insert(id, newValue)
		return nil
	}

	if Compare(x.buckets[b].value, newValue) == 0 {
		return nil
	}

	x.drop(b, i)
	x.insert(id, newValue)
	return nil
}

// Remove drops id by scanning the whole index.
func (x *EqIndex) Remove(id uuid.UUID) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if b, i, found := x.locate(id); found {
		x.drop(b, i)
	}
	return nil
}

// RemoveValue drops id from the bucket of value, falling back to a full scan
// when id is not found there.
func (x *EqIndex) RemoveValue(id uuid.UUID, value any) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if pos, ok := x.search(value); ok {
		for i, candidate := range x.buckets[pos].ids {
			if candidate == id {
				x.drop(pos, i)
				return nil
			}
		}
	}

	if b, i, found := x.locate(id); found {
		x.drop(b, i)
	}
	return nil
}

// CheckIntegrity verifies that buckets are strictly ordered, non-empty and that
// no id is indexed twice.
func (x *EqIndex) CheckIntegrity() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	for b, bk := range x.buckets {
		if len(bk.ids) == 0 {
			return fmt.Errorf("eq index: empty bucket for %v", bk.value)
		}
		if b > 0 && Compare(x.buckets[b-1].value, bk.value) >= 0 {
			return fmt.Errorf("eq index: %v not ordered after %v", bk.value, x.buckets[b-1].value)
		}
		for _, id := range bk.ids {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("eq index: %s indexed more than once", id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// Find returns the ids indexed under value in insertion order.
func (x *EqIndex) Find(value any) []uuid.UUID {
	x.mu.RLock()
	defer x.mu.RUnlock()

	pos, ok := x.search(value)
	if !ok {
		return nil
	}
	return append([]uuid.UUID(nil), x.buckets[pos].ids...)
}

// Walk visits entries ordered by value. fn runs without the index lock held.
func (x *EqIndex) Walk(descending bool, fn func(id uuid.UUID, value any) bool) {
	type entry struct {
		id    uuid.UUID
		value any
	}

	x.mu.RLock()
	entries := make([]entry, 0, len(x.buckets))
	for n := range x.buckets {
		bk := x.buckets[n]
		if descending {
			bk = x.buckets[len(x.buckets)-1-n]
		}
		for _, id := range bk.ids {
			entries = append(entries, entry{id, bk.value})
		}
	}
	x.mu.RUnlock()

	for _, e := range entries {
		if !fn(e.id, e.value) {
			return
		}
	}
}

// Len returns the number of indexed ids.
func (x *EqIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := 0
	for _, bk := range x.buckets {
		n += len(bk.ids)
	}
	return n
}
