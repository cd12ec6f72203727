/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/schema"
	"github.com/suparena/itemstore/storagemodels"
)

const (
	keyRoot  = "models"
	keyItems = "items"
)

// Model binds a compiled schema to an adapter and manages its items and indices.
type Model struct {
	name    string
	schema  *schema.Schema
	adapter datastore.Adapter
	hooks   Hooks
	logger  *zap.Logger

	mode            string
	onUnsaved       OnUnsaved
	progressStep    int
	loadConcurrency int

	barrierOnce sync.Once
	barrierDone chan struct{}
	barrierErr  error

	subMu       sync.Mutex
	unsubscribe func()
	closed      bool
}

// New compiles def and creates a model storing its items via adapter.
func New(def schema.Definition, adapter datastore.Adapter, opts ...Option) (*Model, error) {
	if adapter == nil {
		return nil, errors.NewValidationError("adapter", "adapter is required")
	}

	s, err := schema.Compile(def)
	if err != nil {
		return nil, fmt.Errorf("compile model %s: %w", def.Name, err)
	}

	m := &Model{
		name:            s.Name,
		schema:          s,
		adapter:         adapter,
		hooks:           NopHooks{},
		logger:          zap.NewNop(),
		onUnsaved:       OnUnsavedFail,
		progressStep:    100,
		loadConcurrency: 8,
		barrierDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("model").With(zap.String("model", m.name))

	return m, nil
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// Schema returns the compiled schema.
func (m *Model) Schema() *schema.Schema {
	return m.schema
}

// Adapter returns the adapter shared by all items.
func (m *Model) Adapter() datastore.Adapter {
	return m.adapter
}

func (m *Model) itemsPrefix() string {
	return keyRoot + "/" + m.name + "/" + keyItems
}

// UUIDToKey returns the data key of the item with id. For uuid.Nil it returns
// the template used to create new items.
func (m *Model) UUIDToKey(id uuid.UUID) string {
	if id == uuid.Nil {
		return m.itemsPrefix() + "/" + datastore.UUIDPlaceholder
	}
	return m.itemsPrefix() + "/" + id.String()
}

// KeyToUUID extracts the uuid from a data key of this model.
func (m *Model) KeyToUUID(key string) (uuid.UUID, error) {
	name, id, err := ParseItemKey(key)
	if err != nil {
		return uuid.Nil, err
	}
	if name != m.name {
		return uuid.Nil, errors.NewFormatError(key, "key belongs to model "+name)
	}
	return id, nil
}

// KeyToModelName returns the model name encoded in key or "" when key is not an
// item key.
func (m *Model) KeyToModelName(key string) string {
	return KeyToModelName(key)
}

// ParseItemKey splits a data key into model name and uuid.
func ParseItemKey(key string) (string, uuid.UUID, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != keyRoot || parts[1] == "" || parts[2] != keyItems {
		return "", uuid.Nil, errors.NewFormatError(key, "not an item key")
	}
	id, err := uuid.Parse(parts[3])
	if err != nil || len(parts[3]) != 36 {
		return "", uuid.Nil, errors.NewFormatError(key, "invalid uuid")
	}
	return parts[1], id, nil
}

// KeyToModelName returns the model name of an item key or "".
func KeyToModelName(key string) string {
	name, _, err := ParseItemKey(key)
	if err != nil {
		return ""
	}
	return name
}

// NewItem creates an item without uuid. It is persisted on first save.
func (m *Model) NewItem(opts ...ItemOption) *Item {
	return m.create(uuid.Nil, opts...)
}

// Item creates a handle for the existing item with id. It is not loaded.
func (m *Model) Item(id uuid.UUID, opts ...ItemOption) *Item {
	return m.create(id, opts...)
}

// FromObject creates an item from plain data. The uuid is taken from data["uuid"]
// unless it is missing.
func (m *Model) FromObject(data map[string]any, opts ObjectOptions) (*Item, error) {
	id := uuid.Nil
	if raw, ok := data["uuid"]; ok && raw != nil {
		parsed, err := uuid.Parse(fmt.Sprint(raw))
		if err != nil {
			return nil, errors.NewFormatError(fmt.Sprint(raw), "invalid uuid")
		}
		id = parsed
	}

	item := m.create(id)
	if err := item.FromObject(data, opts); err != nil {
		return nil, err
	}
	return item, nil
}

// GetIndex returns the handler indexing property with operator ("" means "eq").
func (m *Model) GetIndex(property, operator string) *schema.Binding {
	return m.schema.Index(property, operator)
}

// UUIDResult is a single element of a uuid stream.
type UUIDResult struct {
	ID  uuid.UUID
	Err error
}

// UUIDStream lazily yields the uuids of all stored items. Keys that do not
// denote an item are skipped.
func (m *Model) UUIDStream(ctx context.Context) <-chan UUIDResult {
	keys := m.adapter.KeyStream(ctx,
		storagemodels.WithPrefix(m.itemsPrefix()),
		storagemodels.WithMaxDepth(1),
	)
	out := make(chan UUIDResult)

	go func() {
		defer close(out)

		for r := range keys {
			var res UUIDResult
			if r.Error != nil {
				res.Err = fmt.Errorf("stream keys of %s: %w", m.name, r.Error)
			} else {
				id, err := m.KeyToUUID(r.Key)
				if err != nil {
					m.logger.Warn("skipping foreign key", zap.String("key", r.Key))
					continue
				}
				res.ID = id
			}

			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
			if res.Err != nil {
				return
			}
		}
	}()

	return out
}

// Close stops adopting remote changes.
func (m *Model) Close() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.closed = true
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}
