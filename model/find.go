/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/suparena/itemstore/index"
)

// Query selects a window of sorted matches.
type Query struct {
	Offset int
	// Limit caps the number of returned items. 0 means unlimited.
	Limit int
	// SortBy names a stored or computed property. Empty keeps the test's order.
	SortBy     string
	Descending bool
}

// Meta collects information about a Find beyond the returned window.
type Meta struct {
	// Count is the total number of matches before Offset and Limit.
	Count int
}

// FindOptions tunes Find
type FindOptions struct {
	// Meta receives the total match count. Supplying it makes Find consume every
	// match.
	Meta *Meta
	// SkipLoad returns unloaded items as they are.
	SkipLoad bool
}

// Result is a single element of a test sequence.
type Result struct {
	Item *Item
	Err  error
}

// Test produces the items matching a predicate. Sequences stop when ctx is
// cancelled and close their channel when done.
type Test interface {
	Sequence(ctx context.Context, m *Model) <-chan Result
}

// TestFunc adapts a function to Test.
type TestFunc func(ctx context.Context, m *Model) <-chan Result

// Sequence calls f.
func (f TestFunc) Sequence(ctx context.Context, m *Model) <-chan Result {
	return f(ctx, m)
}

// All matches every stored item. Items are not loaded.
func All() Test {
	return TestFunc(func(ctx context.Context, m *Model) <-chan Result {
		out := make(chan Result)
		go func() {
			defer close(out)
			for r := range m.UUIDStream(ctx) {
				res := Result{Err: r.Err}
				if r.Err == nil {
					res.Item = m.Item(r.ID)
				}
				if !send(ctx, out, res) || r.Err != nil {
					return
				}
			}
		}()
		return out
	})
}

// Equals matches items whose property name equals value. It is answered from an
// eq index when one is declared on name and by scanning loaded items otherwise.
func Equals(name string, value any) Test {
	return TestFunc(func(ctx context.Context, m *Model) <-chan Result {
		if _, stored := m.schema.Property(name); stored && value != nil {
			if coerced, err := m.schema.Coerce(name, value); err == nil {
				value = coerced
			}
		}

		var ordered index.Ordered
		if b := m.GetIndex(name, index.KindEq); b != nil {
			ordered, _ = b.Handler.(index.Ordered)
		}
		if ordered == nil {
			return scan(ctx, m, func(it *Item) bool {
				v, _ := it.Get(name)
				return index.Compare(v, value) == 0
			})
		}

		ids := ordered.Find(value)
		out := make(chan Result)
		go func() {
			defer close(out)
			for _, id := range ids {
				if !send(ctx, out, Result{Item: m.Item(id)}) {
					return
				}
			}
		}()
		return out
	})
}

// Where matches loaded items for which fn returns true.
func Where(fn func(*Item) bool) Test {
	return TestFunc(func(ctx context.Context, m *Model) <-chan Result {
		return scan(ctx, m, fn)
	})
}

// scan loads every stored item and yields the ones accepted by fn.
func scan(ctx context.Context, m *Model, fn func(*Item) bool) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		for r := range m.UUIDStream(ctx) {
			if r.Err != nil {
				send(ctx, out, Result{Err: r.Err})
				return
			}
			it := m.Item(r.ID)
			if err := it.Load(ctx); err != nil {
				send(ctx, out, Result{Err: err})
				return
			}
			if fn(it) && !send(ctx, out, Result{Item: it}) {
				return
			}
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// Find returns the items matching test, sorted and windowed by q. Unless
// opts.SkipLoad is set, all returned items are loaded.
func (m *Model) Find(ctx context.Context, test Test, q Query, opts FindOptions) ([]*Item, error) {
	if q.Offset < 0 || q.Limit < 0 {
		return nil, fmt.Errorf("find %s: negative offset or limit", m.name)
	}
	if _, err := m.IndexLoaded(ctx); err != nil {
		return nil, err
	}

	seqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	seq := test.Sequence(seqCtx, m)
	if q.SortBy != "" {
		seq = m.sorted(seqCtx, seq, q)
	}

	var (
		items   []*Item
		matched int
	)
	for r := range seq {
		if r.Err != nil {
			cancel()
			for range seq {
			}
			return nil, fmt.Errorf("find %s: %w", m.name, r.Err)
		}
		matched++
		if matched > q.Offset && (q.Limit == 0 || len(items) < q.Limit) {
			items = append(items, r.Item)
		}
		if q.Limit > 0 && len(items) == q.Limit && opts.Meta == nil {
			cancel()
			for range seq {
			}
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Meta != nil {
		opts.Meta.Count = matched
	}

	if !opts.SkipLoad {
		if err := m.loadAll(ctx, items); err != nil {
			return nil, fmt.Errorf("find %s: %w", m.name, err)
		}
	}
	return items, nil
}

// List returns all items windowed by q.
func (m *Model) List(ctx context.Context, q Query, opts FindOptions) ([]*Item, error) {
	return m.Find(ctx, All(), q, opts)
}

// FindByAttribute matches a single property. Only the "eq" operator is
// supported, "" selects it.
func (m *Model) FindByAttribute(ctx context.Context, name string, value any, op string, q Query, opts FindOptions) ([]*Item, error) {
	if op != "" && op != index.KindEq {
		return nil, fmt.Errorf("find %s: unsupported operator %q", m.name, op)
	}
	return m.Find(ctx, Equals(name, value), q, opts)
}

// loadAll loads the unloaded items concurrently.
func (m *Model) loadAll(ctx context.Context, items []*Item) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.loadConcurrency)
	for _, it := range items {
		if it.IsLoaded() {
			continue
		}
		g.Go(func() error {
			return it.Load(ctx)
		})
	}
	return g.Wait()
}

// sorted reorders seq by q.SortBy. An eq index on the property yields index
// order. Otherwise all matches are loaded and stably sorted by value.
func (m *Model) sorted(ctx context.Context, seq <-chan Result, q Query) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		var matches []*Item
		for r := range seq {
			if r.Err != nil {
				send(ctx, out, r)
				return
			}
			matches = append(matches, r.Item)
		}
		if ctx.Err() != nil {
			return
		}

		if b := m.GetIndex(q.SortBy, index.KindEq); b != nil {
			if ordered, ok := b.Handler.(index.Ordered); ok {
				m.walkSorted(ctx, out, ordered, matches, q.Descending)
				return
			}
		}

		if err := m.loadAll(ctx, matches); err != nil {
			send(ctx, out, Result{Err: err})
			return
		}

		keys := make([]any, len(matches))
		for i, it := range matches {
			keys[i], _ = it.Get(q.SortBy)
		}
		idx := make([]int, len(matches))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			c := index.Compare(keys[idx[a]], keys[idx[b]])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})

		for _, i := range idx {
			if !send(ctx, out, Result{Item: matches[i]}) {
				return
			}
		}
	}()

	return out
}

// walkSorted emits matches in index order. Matches missing from the index
// follow in their original order.
func (m *Model) walkSorted(ctx context.Context, out chan<- Result, ordered index.Ordered, matches []*Item, descending bool) {
	byID := make(map[uuid.UUID]*Item, len(matches))
	var unindexed []*Item
	for _, it := range matches {
		id := it.UUID()
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = it
	}

	ok := true
	ordered.Walk(descending, func(id uuid.UUID, _ any) bool {
		it, hit := byID[id]
		if !hit {
			return true
		}
		delete(byID, id)
		ok = send(ctx, out, Result{Item: it})
		return ok
	})
	if !ok {
		return
	}

	for _, it := range matches {
		if _, left := byID[it.UUID()]; left {
			unindexed = append(unindexed, it)
			delete(byID, it.UUID())
		}
	}
	for _, it := range unindexed {
		if !send(ctx, out, Result{Item: it}) {
			return
		}
	}
}
