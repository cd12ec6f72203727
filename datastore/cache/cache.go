/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cache

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/storagemodels"
)

// DefaultSize is the number of records kept when no positive size is given.
const DefaultSize = 1000

// Adapter is a read-through LRU cache in front of another adapter. Records are
// copied on the way in and out. When the wrapped adapter is a Notifier, foreign
// changes invalidate the cache and are passed on to subscribers of the cache.
type Adapter struct {
	datastore.Adapter
	datastore.Broadcaster

	cache *lru.Cache[string, storagemodels.Record]

	mu          sync.Mutex
	unsubscribe func()
}

var (
	_ datastore.Adapter  = (*Adapter)(nil)
	_ datastore.Notifier = (*Adapter)(nil)
)

// New wraps inner with a cache of size records.
func New(inner datastore.Adapter, size int) *Adapter {
	if size <= 0 {
		size = DefaultSize
	}
	cache, _ := lru.New[string, storagemodels.Record](size)

	a := &Adapter{
		Adapter: inner,
		cache:   cache,
	}
	if n, ok := inner.(datastore.Notifier); ok {
		a.unsubscribe = n.Subscribe(a.observe)
	}
	return a
}

// Inner returns the wrapped adapter.
func (a *Adapter) Inner() datastore.Adapter {
	return a.Adapter
}

// Len returns the number of cached records.
func (a *Adapter) Len() int {
	return a.cache.Len()
}

func (a *Adapter) observe(ev storagemodels.Event) {
	switch ev.Kind {
	case storagemodels.EventChange:
		a.cache.Remove(ev.Key)
	case storagemodels.EventDelete:
		a.invalidateTree(ev.Key)
	}
	a.Emit(ev)
}

func (a *Adapter) invalidateTree(key string) {
	if key == "" {
		a.cache.Purge()
		return
	}
	a.cache.Remove(key)
	prefix := key + "/"
	for _, k := range a.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			a.cache.Remove(k)
		}
	}
}

func (a *Adapter) Create(ctx context.Context, keyTemplate string, rec storagemodels.Record) (string, error) {
	key, err := a.Adapter.Create(ctx, keyTemplate, rec)
	if err != nil {
		return "", err
	}
	a.cache.Add(key, rec.Clone())
	return key, nil
}

func (a *Adapter) Has(ctx context.Context, key string) (bool, error) {
	if a.cache.Contains(key) {
		return true, nil
	}
	return a.Adapter.Has(ctx, key)
}

func (a *Adapter) Read(ctx context.Context, key string, opts ...storagemodels.ReadOption) (storagemodels.Record, error) {
	if rec, ok := a.cache.Get(key); ok {
		return rec.Clone(), nil
	}

	rec, err := a.Adapter.Read(ctx, key)
	if err != nil {
		o := storagemodels.ApplyReadOptions(opts...)
		if o.HasFallback && errors.IsNotFound(err) {
			return o.IfMissing, nil
		}
		return nil, err
	}

	a.cache.Add(key, rec.Clone())
	return rec, nil
}

func (a *Adapter) Write(ctx context.Context, key string, rec storagemodels.Record) (storagemodels.Record, error) {
	written, err := a.Adapter.Write(ctx, key, rec)
	if err != nil {
		a.cache.Remove(key)
		return nil, err
	}
	a.cache.Add(key, rec.Clone())
	return written, nil
}

func (a *Adapter) Remove(ctx context.Context, key string) (string, error) {
	removed, err := a.Adapter.Remove(ctx, key)
	a.invalidateTree(key)
	return removed, err
}

func (a *Adapter) Purge(ctx context.Context) error {
	err := a.Adapter.Purge(ctx)
	a.cache.Purge()
	return err
}

// Close stops observing the wrapped adapter.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}
