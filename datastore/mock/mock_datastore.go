/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory implementation of datastore.Adapter for
// tests and ephemeral data.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/storagemodels"
)

// DataStore is an in-memory datastore.Adapter. Local operations do not emit
// events; use Put and Drop to simulate changes made by another process.
type DataStore struct {
	datastore.Base
	datastore.Broadcaster

	mu   sync.RWMutex
	data map[string]storagemodels.Record

	createError error
	readError   error
	writeError  error
	removeError error
	readHook    func(ctx context.Context, key string)

	reads  atomic.Int64
	writes atomic.Int64
}

var (
	_ datastore.Adapter  = (*DataStore)(nil)
	_ datastore.Notifier = (*DataStore)(nil)
)

// New creates a new empty in-memory DataStore
func New() *DataStore {
	return &DataStore{
		data: make(map[string]storagemodels.Record),
	}
}

// WithCreateError makes Create operations return an error
func (m *DataStore) WithCreateError(err error) *DataStore {
	m.createError = err
	return m
}

// WithReadError makes Read operations return an error
func (m *DataStore) WithReadError(err error) *DataStore {
	m.readError = err
	return m
}

// WithWriteError makes Write operations return an error
func (m *DataStore) WithWriteError(err error) *DataStore {
	m.writeError = err
	return m
}

// WithRemoveError makes Remove operations return an error
func (m *DataStore) WithRemoveError(err error) *DataStore {
	m.removeError = err
	return m
}

// WithReadHook installs a function invoked at the start of every Read
func (m *DataStore) WithReadHook(fn func(ctx context.Context, key string)) *DataStore {
	m.readHook = fn
	return m
}

// Create stores rec under keyTemplate with its placeholder replaced by a new uuid
func (m *DataStore) Create(ctx context.Context, keyTemplate string, rec storagemodels.Record) (string, error) {
	if m.createError != nil {
		return "", m.createError
	}

	for {
		key, _, err := datastore.ExpandTemplate(keyTemplate)
		if err != nil {
			return "", err
		}

		m.mu.Lock()
		if _, exists := m.data[key]; exists {
			m.mu.Unlock()
			continue
		}
		m.data[key] = rec.Clone()
		m.mu.Unlock()

		m.writes.Add(1)
		return key, nil
	}
}

// Has reports whether a record exists at key
func (m *DataStore) Has(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.data[key]
	return exists, nil
}

// Read retrieves the record at key
func (m *DataStore) Read(ctx context.Context, key string, opts ...storagemodels.ReadOption) (storagemodels.Record, error) {
	if m.readHook != nil {
		m.readHook(ctx, key)
	}
	m.reads.Add(1)

	if m.readError != nil {
		return nil, m.readError
	}

	m.mu.RLock()
	rec, exists := m.data[key]
	m.mu.RUnlock()

	if exists {
		return rec.Clone(), nil
	}

	o := storagemodels.ApplyReadOptions(opts...)
	if o.HasFallback {
		return o.IfMissing, nil
	}
	return nil, errors.NewNotFoundError("record", key)
}

// Write stores rec at key
func (m *DataStore) Write(ctx context.Context, key string, rec storagemodels.Record) (storagemodels.Record, error) {
	if m.writeError != nil {
		return nil, m.writeError
	}

	m.mu.Lock()
	m.data[key] = rec.Clone()
	m.mu.Unlock()

	m.writes.Add(1)
	return rec, nil
}

// Remove deletes key and all keys nested below it
func (m *DataStore) Remove(ctx context.Context, key string) (string, error) {
	if m.removeError != nil {
		return "", m.removeError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(key)
	return key, nil
}

func (m *DataStore) removeLocked(key string) {
	delete(m.data, key)
	nested := key + "/"
	for k := range m.data {
		if strings.HasPrefix(k, nested) {
			delete(m.data, k)
		}
	}
}

// KeyStream streams the keys matching opts in lexical order
func (m *DataStore) KeyStream(ctx context.Context, opts ...storagemodels.KeyStreamOption) <-chan storagemodels.KeyResult {
	o := storagemodels.ApplyKeyStreamOptions(opts...)

	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if datastore.MatchKey(k, o) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	resultChan := make(chan storagemodels.KeyResult, o.BufferSize)

	go func() {
		defer close(resultChan)

		for i, k := range keys {
			select {
			case <-ctx.Done():
				return
			case resultChan <- storagemodels.KeyResult{
				Key: k,
				Meta: storagemodels.StreamMeta{
					Index:      int64(i),
					PageNumber: 1,
				},
			}:
			}
		}
	}()

	return resultChan
}

// Purge removes all data
func (m *DataStore) Purge(ctx context.Context) error {
	m.Clear()
	return nil
}

// SupportsBinary reports true as records are kept in memory as-is
func (m *DataStore) SupportsBinary() bool {
	return true
}

// Helper methods for testing

// Put stores rec at key and emits a change event as if another process wrote it
func (m *DataStore) Put(key string, rec storagemodels.Record) {
	m.mu.Lock()
	m.data[key] = rec.Clone()
	m.mu.Unlock()

	m.EmitChange(key, rec.Clone())
}

// Drop removes key and emits a delete event as if another process removed it
func (m *DataStore) Drop(key string) {
	m.mu.Lock()
	m.removeLocked(key)
	m.mu.Unlock()

	m.EmitDelete(key)
}

// SetData directly sets the internal data map (for testing)
func (m *DataStore) SetData(data map[string]storagemodels.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// GetData returns a copy of the internal data map (for testing)
func (m *DataStore) GetData() map[string]storagemodels.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]storagemodels.Record, len(m.data))
	for k, v := range m.data {
		result[k] = v.Clone()
	}
	return result
}

// Count returns the number of stored records
func (m *DataStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Reads returns the number of Read calls so far
func (m *DataStore) Reads() int64 {
	return m.reads.Load()
}

// Writes returns the number of successful Create and Write calls so far
func (m *DataStore) Writes() int64 {
	return m.writes.Load()
}

// Clear removes all data
func (m *DataStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]storagemodels.Record)
}
