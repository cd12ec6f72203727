/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/index"
	"github.com/suparena/itemstore/properties"
	"github.com/suparena/itemstore/schema"
)

// Item is a single persisted or persistable instance of a model.
//
// Methods are safe for concurrent use, but concurrent saves of the same item
// interleave their index updates unpredictably.
type Item struct {
	model     *Model
	onUnsaved OnUnsaved

	mu      sync.Mutex
	id      uuid.UUID
	dataKey string
	store   *properties.Store
	loaded  bool
	loading *loadCall
}

type loadCall struct {
	done chan struct{}
	err  error
}

func (m *Model) create(id uuid.UUID, opts ...ItemOption) *Item {
	co := CreateOptions{UUID: id, OnUnsaved: m.onUnsaved}
	for _, opt := range opts {
		opt(&co)
	}
	m.hooks.BeforeCreate(&co)

	it := &Item{
		model:     m,
		onUnsaved: co.OnUnsaved,
		store:     properties.New(m.schema.Coerce, m.schema.Names()...),
	}
	if co.UUID != uuid.Nil {
		it.id = co.UUID
		it.dataKey = m.UUIDToKey(co.UUID)
	}

	for name, v := range m.schema.Defaults() {
		if v != nil {
			// defaults have been coerced on compile
			_ = it.store.Set(name, v)
		}
	}
	it.store.Commit()

	prev := it.store.Relax(true)
	m.hooks.AfterCreate(it)
	it.store.Relax(prev)

	return it
}

// Model returns the model of the item.
func (it *Item) Model() *Model {
	return it.model
}

// UUID returns the item's uuid or uuid.Nil for new items.
func (it *Item) UUID() uuid.UUID {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.id
}

// SetUUID assigns the uuid of a new item. Assigning a different uuid to an item
// that has one already is rejected.
func (it *Item) SetUUID(id uuid.UUID) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.setUUIDLocked(id)
}

func (it *Item) setUUIDLocked(id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.NewIdentityError("cannot assign nil uuid")
	}
	if it.id != uuid.Nil {
		if it.id == id {
			return nil
		}
		return errors.NewIdentityError("uuid %s already assigned, rejecting %s", it.id, id)
	}
	it.id = id
	it.dataKey = it.model.UUIDToKey(id)
	return nil
}

// DataKey returns the key of the item's record or "" for new items.
func (it *Item) DataKey() string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.dataKey
}

// IsNew reports whether the item has not been persisted yet.
func (it *Item) IsNew() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.id == uuid.Nil
}

// IsLoaded reports whether the item's state is available. New items count as
// loaded.
func (it *Item) IsLoaded() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.id == uuid.Nil || it.loaded
}

// HasChanged reports whether there are unsaved changes.
func (it *Item) HasChanged() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.store.HasChanged()
}

// Get returns a stored or computed property value.
func (it *Item) Get(name string) (any, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.model.schema.NewView(it.store.Values()).Get(name)
}

// Set assigns a stored property.
func (it *Item) Set(name string, value any) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.store.Set(name, value)
}

// Relax suspends the unsaved changes guard of Load and returns the previous setting.
func (it *Item) Relax(on bool) bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.store.Relax(on)
}

// RollBack discards unsaved changes.
func (it *Item) RollBack() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.store.RollBack()
}

// view snapshots the current values.
func (it *Item) view() *schema.View {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.model.schema.NewView(it.store.Values())
}

// Load reads the item's record. Concurrent calls share a single read. Local
// changes are replaced according to the item's OnUnsaved policy.
func (it *Item) Load(ctx context.Context) error {
	it.mu.Lock()
	if it.id == uuid.Nil {
		it.mu.Unlock()
		return nil
	}
	if call := it.loading; call != nil {
		it.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	it.loading = call
	key := it.dataKey
	it.mu.Unlock()

	call.err = it.load(ctx, key)

	it.mu.Lock()
	it.loading = nil
	it.mu.Unlock()
	close(call.done)

	return call.err
}

func (it *Item) load(ctx context.Context, key string) error {
	m := it.model

	err := it.relaxed(func() error { return m.hooks.BeforeLoad(ctx, it) })
	if err != nil {
		return err
	}

	rec, err := m.adapter.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}

	err = it.relaxed(func() error {
		rec, err = m.hooks.AfterLoad(ctx, it, rec)
		return err
	})
	if err != nil {
		return err
	}

	values, err := m.schema.Deserialize(rec)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.store.HasChanged() && !it.store.Relaxed() {
		switch it.onUnsaved {
		case OnUnsavedIgnore:
		case OnUnsavedWarn:
			m.logger.Warn("replacing unsaved changes on load", zap.String("key", key))
		default:
			return errors.NewUnsafeOverwriteError("load", key)
		}
	}

	it.store.Replace(values)
	it.loaded = true
	return nil
}

// relaxed runs fn with the unsaved changes guard suspended.
func (it *Item) relaxed(fn func() error) error {
	prev := it.Relax(true)
	defer it.Relax(prev)
	return fn()
}

// Exists reports whether the item's record is stored.
func (it *Item) Exists(ctx context.Context) (bool, error) {
	key := it.DataKey()
	if key == "" {
		return false, nil
	}
	return it.model.adapter.Has(ctx, key)
}

// Validate runs property and custom validators and returns all failures as one
// error.
func (it *Item) Validate(ctx context.Context) error {
	m := it.model

	var errs []error
	err := it.relaxed(func() error {
		if err := m.hooks.BeforeValidate(ctx, it); err != nil {
			return err
		}
		errs = append(errs, m.schema.Validate(it.view())...)
		errs = append(errs, m.hooks.Validate(ctx, it)...)
		errs = m.hooks.AfterValidate(ctx, it, errs)
		return nil
	})
	if err != nil {
		return err
	}

	if len(errs) > 0 {
		return &errors.AggregateValidationError{Errors: errs}
	}
	return nil
}

type indexChange struct {
	binding  *schema.Binding
	old, new any
}

// Save persists local changes and updates all indices. New items are assigned a
// uuid. Saving changes of an item that was never loaded is rejected unless
// IgnoreUnloaded is given.
func (it *Item) Save(ctx context.Context, opts ...SaveOption) error {
	var so SaveOptions
	for _, opt := range opts {
		opt(&so)
	}
	m := it.model

	it.mu.Lock()
	isNew := it.id == uuid.Nil
	if !isNew && !it.store.HasChanged() {
		it.mu.Unlock()
		return nil
	}
	if !isNew && !it.loaded && !so.IgnoreUnloaded {
		key := it.dataKey
		it.mu.Unlock()
		return errors.NewUnsafeOverwriteError("save", key)
	}
	it.mu.Unlock()

	if _, err := m.IndexLoaded(ctx); err != nil {
		return err
	}

	prev := it.Relax(true)
	defer it.Relax(prev)

	if err := it.Validate(ctx); err != nil {
		return err
	}

	it.mu.Lock()
	values := it.store.Values()
	changed := it.store.Changed()
	prior := it.store.Clone()
	prior.RollBack()
	id, key, loaded := it.id, it.dataKey, it.loaded
	it.mu.Unlock()

	current := m.schema.NewView(values)
	before := m.schema.NewView(prior.Values())

	rec, err := m.schema.Serialize(values, m.adapter.SupportsBinary())
	if err != nil {
		return errors.NewValidationError("", err.Error())
	}

	if isNew {
		rec, err = m.hooks.BeforeSave(ctx, it, false, rec)
		if err != nil {
			return err
		}

		key, err = m.adapter.Create(ctx, m.UUIDToKey(uuid.Nil), rec)
		if err != nil {
			return fmt.Errorf("create %s: %w", m.name, err)
		}
		id, err = m.KeyToUUID(key)
		if err != nil {
			return err
		}

		it.mu.Lock()
		err = it.setUUIDLocked(id)
		it.loaded = true
		it.mu.Unlock()
		if err != nil {
			return err
		}

		// adopted change events may have indexed the new id already
		var indexErrs []error
		for _, b := range m.schema.Indices() {
			if err := b.Handler.Update(id, nil, b.Value(current), index.UpdateOptions{SearchExisting: true, AddIfMissing: true}); err != nil {
				indexErrs = append(indexErrs, fmt.Errorf("index %s(%s): %w", b.Property, b.Operator, err))
			}
		}

		it.commit()
		if err := m.hooks.AfterSave(ctx, it, false); err != nil {
			return err
		}
		return stderrors.Join(indexErrs...)
	}

	exists, err := m.adapter.Has(ctx, key)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	// Index changes are derived from the state before the write. Without a
	// known prior state, or when adopted change events can move entries
	// concurrently, the id is looked up wherever it is indexed.
	_, notified := m.adapter.(datastore.Notifier)
	search := !exists || !loaded || notified
	var changes []indexChange
	for _, b := range m.schema.Indices() {
		if _, dirty := changed[b.Property]; !dirty && b.Computed == nil && !search {
			continue
		}
		old, newValue := b.Value(before), b.Value(current)
		if search || index.Compare(old, newValue) != 0 {
			changes = append(changes, indexChange{binding: b, old: old, new: newValue})
		}
	}

	rec, err = m.hooks.BeforeSave(ctx, it, exists, rec)
	if err != nil {
		return err
	}

	if _, err := m.adapter.Write(ctx, key, rec); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	var indexErrs []error
	for _, c := range changes {
		opts := index.UpdateOptions{}
		if search {
			opts = index.UpdateOptions{SearchExisting: true, AddIfMissing: true}
		}
		if err := c.binding.Handler.Update(id, c.old, c.new, opts); err != nil {
			indexErrs = append(indexErrs, fmt.Errorf("index %s(%s): %w", c.binding.Property, c.binding.Operator, err))
		}
	}

	it.commit()
	if err := m.hooks.AfterSave(ctx, it, exists); err != nil {
		return err
	}
	return stderrors.Join(indexErrs...)
}

func (it *Item) commit() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.store.Commit()
	it.loaded = true
}

// Remove deletes the item's record and drops it from all indices. A loaded item
// is removed from each index by its last loaded or saved value, an unloaded one
// by uuid.
func (it *Item) Remove(ctx context.Context) error {
	m := it.model

	it.mu.Lock()
	id, key, loaded := it.id, it.dataKey, it.loaded
	it.mu.Unlock()
	if id == uuid.Nil {
		return nil
	}

	prev := it.Relax(true)
	defer it.Relax(prev)

	if err := m.hooks.BeforeRemove(ctx, it); err != nil {
		return err
	}

	bindings, err := m.IndexLoaded(ctx)
	if err != nil {
		return err
	}

	// indexed values are the committed ones
	it.mu.Lock()
	committed := it.store.Clone()
	it.mu.Unlock()
	committed.RollBack()
	view := m.schema.NewView(committed.Values())

	if _, err := m.adapter.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}

	var indexErrs []error
	for _, b := range bindings {
		var err error
		if loaded {
			err = b.Handler.RemoveValue(id, b.Value(view))
		} else {
			err = b.Handler.Remove(id)
		}
		if err != nil {
			indexErrs = append(indexErrs, fmt.Errorf("index %s(%s): %w", b.Property, b.Operator, err))
		}
	}

	if err := m.hooks.AfterRemove(ctx, it); err != nil {
		return err
	}
	return stderrors.Join(indexErrs...)
}

// ToObject returns the item's properties as plain data including its uuid.
func (it *Item) ToObject(opts ObjectOptions) (map[string]any, error) {
	it.mu.Lock()
	values := it.store.Values()
	id := it.id
	it.mu.Unlock()

	s := it.model.schema
	out := make(map[string]any, len(values)+1)
	if id != uuid.Nil {
		out["uuid"] = id.String()
	}

	for name, v := range values {
		if opts.Serialized {
			if p, ok := s.Property(name); ok {
				sv, err := p.Serializer.Serialize(v, false)
				if err != nil {
					return nil, fmt.Errorf("serialize %s: %w", name, err)
				}
				v = sv
			}
		}
		out[name] = v
	}

	if !opts.OmitComputed {
		view := s.NewView(values)
		for _, name := range s.ComputedNames() {
			c, _ := s.ComputedProperty(name)
			v := c.Derive(view)
			if opts.Serialized && c.Serializer != nil {
				sv, err := c.Serializer.Serialize(v, false)
				if err != nil {
					return nil, fmt.Errorf("serialize %s: %w", name, err)
				}
				v = sv
			}
			out[name] = v
		}
	}

	return out, nil
}

// FromObject assigns stored properties from plain data and commits them. Computed
// properties, the uuid and unknown fields are ignored.
func (it *Item) FromObject(data map[string]any, opts ObjectOptions) error {
	s := it.model.schema

	it.mu.Lock()
	defer it.mu.Unlock()

	for _, name := range s.Names() {
		v, ok := data[name]
		if !ok {
			continue
		}
		if opts.Serialized {
			p, _ := s.Property(name)
			dv, err := p.Serializer.Deserialize(v)
			if err != nil {
				return errors.NewValidationError(name, err.Error())
			}
			v = dv
		}
		if err := it.store.Set(name, v); err != nil {
			return err
		}
		it.store.Commit()
	}
	return nil
}
