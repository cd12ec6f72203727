/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/suparena/itemstore/datastore/mock"
	"github.com/suparena/itemstore/datastore/testmodels"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/index"
	"github.com/suparena/itemstore/model"
	"github.com/suparena/itemstore/registry"
	"github.com/suparena/itemstore/schema"
	"github.com/suparena/itemstore/storagemodels"
)

// gatedStore blocks the first read until release is closed.
type gatedStore struct {
	*mock.DataStore
	entered chan struct{}
	release chan struct{}
}

func mockWithGate() *gatedStore {
	g := &gatedStore{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	var once sync.Once
	g.DataStore = mock.New().WithReadHook(func(ctx context.Context, key string) {
		once.Do(func() { close(g.entered) })
		<-g.release
	})
	return g
}

func newModelOn(t *testing.T, store *mock.DataStore, opts ...model.Option) *model.Model {
	t.Helper()

	m, err := model.New(testmodels.RatingSystem(), store, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestItemUUIDIsWriteOnce(t *testing.T) {
	m, _ := newRatingSystems(t)

	it := m.NewItem()
	assert.True(t, it.IsNew())
	assert.Equal(t, "", it.DataKey())

	id, other := uuid.New(), uuid.New()
	require.NoError(t, it.SetUUID(id))
	require.NoError(t, it.SetUUID(id))

	err := it.SetUUID(other)
	assert.True(t, errors.IsIdentity(err))
	assert.True(t, errors.IsIdentity(it.SetUUID(uuid.Nil)))

	assert.Equal(t, id, it.UUID())
	assert.Equal(t, m.UUIDToKey(id), it.DataKey())
}

func TestItemDefaults(t *testing.T) {
	m, _ := newRatingSystems(t)

	it := m.NewItem()
	level, _ := it.Get("level")
	assert.Equal(t, int64(1), level)
	assert.False(t, it.HasChanged())

	require.NoError(t, it.Set("level", 1))
	assert.False(t, it.HasChanged())

	require.NoError(t, it.Set("level", "7"))
	assert.True(t, it.HasChanged())
	require.NoError(t, it.Set("level", int64(1)))
	assert.False(t, it.HasChanged())

	assert.True(t, errors.IsValidationError(it.Set("level", "seven")))
	assert.True(t, errors.IsValidationError(it.Set("unknown", 1)))
}

func TestSaveNewItem(t *testing.T) {
	ctx := context.Background()
	m, store := newRatingSystems(t)

	it := m.NewItem()
	require.NoError(t, it.Set("name", "Elo Rating"))
	require.NoError(t, it.Save(ctx))

	require.NotEqual(t, uuid.Nil, it.UUID())
	assert.False(t, it.HasChanged())
	assert.True(t, it.IsLoaded())

	rec, ok := store.GetData()[it.DataKey()]
	require.True(t, ok)
	assert.Equal(t, "Elo Rating", rec["name"])
	assert.Equal(t, int64(1), rec["level"])
	assert.NotContains(t, rec, "slug")

	found, err := m.Find(ctx, model.Equals("name", "Elo Rating"), model.Query{}, model.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, it.UUID(), found[0].UUID())

	found, err = m.Find(ctx, model.Equals("slug", "elo-rating"), model.Query{}, model.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, it.UUID(), found[0].UUID())

	exists, err := it.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = m.NewItem().Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSaveWithoutChangesDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	m, store := newRatingSystems(t)

	it := m.NewItem()
	require.NoError(t, it.Set("name", "TrueSkill"))
	require.NoError(t, it.Save(ctx))
	assert.Equal(t, int64(1), store.Writes())

	require.NoError(t, it.Save(ctx))
	assert.Equal(t, int64(1), store.Writes())

	require.NoError(t, it.Set("level", 2))
	require.NoError(t, it.Save(ctx))
	assert.Equal(t, int64(2), store.Writes())
}

func TestSaveUpdatesIndices(t *testing.T) {
	ctx := context.Background()
	m, _ := newRatingSystems(t)

	it := m.NewItem()
	require.NoError(t, it.Set("name", "Old Name"))
	require.NoError(t, it.Save(ctx))

	require.NoError(t, it.Set("name", "New Name"))
	require.NoError(t, it.Save(ctx))

	for _, tc := range []struct {
		property string
		value    any
		want     int
	}{
		{"name", "Old Name", 0},
		{"name", "New Name", 1},
		{"slug", "old-name", 0},
		{"slug", "new-name", 1},
		{"level", 1, 1},
	} {
		found, err := m.Find(ctx, model.Equals(tc.property, tc.value), model.Query{}, model.FindOptions{SkipLoad: true})
		require.NoError(t, err)
		assert.Len(t, found, tc.want, "%s=%v", tc.property, tc.value)
	}
}

func TestSaveValidates(t *testing.T) {
	ctx := context.Background()
	m, store := newRatingSystems(t)

	it := m.NewItem()
	err := it.Save(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	var agg *errors.AggregateValidationError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 1)
	assert.Contains(t, agg.Errors[0].Error(), "name")

	assert.True(t, it.IsNew())
	assert.Equal(t, 0, store.Count())
}

func TestConcurrentLoadsShareOneRead(t *testing.T) {
	ctx := context.Background()
	store := mockWithGate()
	m := newModelOn(t, store.DataStore)
	ids := seed(store.DataStore, m, storagemodels.Record{"name": "Shared"})

	it := m.Item(ids[0])
	assert.False(t, it.IsLoaded())

	loadErr := make(chan error, 1)
	go func() { loadErr <- it.Load(ctx) }()
	<-store.entered

	// a second caller waits for the read in flight
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, it.Load(cancelled), context.Canceled)
	assert.Equal(t, int64(1), store.Reads())

	close(store.release)
	require.NoError(t, <-loadErr)
	assert.Equal(t, int64(1), store.Reads())

	assert.True(t, it.IsLoaded())
	name, _ := it.Get("name")
	assert.Equal(t, "Shared", name)
}

func TestLoadMissingRecord(t *testing.T) {
	m, _ := newRatingSystems(t)

	err := m.Item(uuid.New()).Load(context.Background())
	assert.True(t, errors.IsNotFound(err))
}

func TestLoadWithUnsavedChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("fail keeps local changes", func(t *testing.T) {
		m, store := newRatingSystems(t)
		ids := seed(store, m, storagemodels.Record{"name": "Remote"})

		it := m.Item(ids[0])
		require.NoError(t, it.Load(ctx))
		require.NoError(t, it.Set("name", "Local"))

		err := it.Load(ctx)
		assert.True(t, errors.IsUnsafeOverwrite(err))
		name, _ := it.Get("name")
		assert.Equal(t, "Local", name)
		assert.True(t, it.HasChanged())
	})

	t.Run("warn replaces and logs", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		m, store := newRatingSystems(t, model.WithLogger(zap.New(core)), model.WithOnUnsaved(model.OnUnsavedWarn))
		ids := seed(store, m, storagemodels.Record{"name": "Remote"})

		it := m.Item(ids[0])
		require.NoError(t, it.Set("name", "Local"))
		require.NoError(t, it.Load(ctx))

		name, _ := it.Get("name")
		assert.Equal(t, "Remote", name)
		assert.False(t, it.HasChanged())
		assert.Equal(t, 1, logs.FilterMessage("replacing unsaved changes on load").Len())
	})

	t.Run("ignore replaces silently", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		m, store := newRatingSystems(t, model.WithLogger(zap.New(core)))
		ids := seed(store, m, storagemodels.Record{"name": "Remote"})

		it := m.Item(ids[0], model.WithUnsavedPolicy(model.OnUnsavedIgnore))
		require.NoError(t, it.Set("name", "Local"))
		require.NoError(t, it.Load(ctx))

		name, _ := it.Get("name")
		assert.Equal(t, "Remote", name)
		assert.Equal(t, 0, logs.FilterMessage("replacing unsaved changes on load").Len())
	})

	t.Run("relaxed replaces despite fail", func(t *testing.T) {
		m, store := newRatingSystems(t)
		ids := seed(store, m, storagemodels.Record{"name": "Remote"})

		it := m.Item(ids[0])
		require.NoError(t, it.Set("name", "Local"))
		assert.False(t, it.Relax(true))
		require.NoError(t, it.Load(ctx))
		assert.True(t, it.Relax(false))

		name, _ := it.Get("name")
		assert.Equal(t, "Remote", name)
	})
}

func TestSaveUnloadedItem(t *testing.T) {
	ctx := context.Background()
	m, store := newRatingSystems(t)
	ids := seed(store, m, storagemodels.Record{"name": "Stored", "level": int64(2)})

	it := m.Item(ids[0])
	require.NoError(t, it.Set("name", "Blind"))

	err := it.Save(ctx)
	assert.True(t, errors.IsUnsafeOverwrite(err))
	assert.Equal(t, "Stored", store.GetData()[it.DataKey()]["name"])

	require.NoError(t, it.Save(ctx, model.IgnoreUnloaded()))
	rec := store.GetData()[it.DataKey()]
	assert.Equal(t, "Blind", rec["name"])
	assert.Equal(t, int64(1), rec["level"])

	for _, tc := range []struct {
		property string
		value    any
		want     int
	}{
		{"name", "Stored", 0},
		{"name", "Blind", 1},
		{"level", 2, 0},
		{"level", 1, 1},
	} {
		found, err := m.Find(ctx, model.Equals(tc.property, tc.value), model.Query{}, model.FindOptions{SkipLoad: true})
		require.NoError(t, err)
		assert.Len(t, found, tc.want, "%s=%v", tc.property, tc.value)
	}
}

func TestSaveRecreatesMissingRecord(t *testing.T) {
	ctx := context.Background()
	m, store := newRatingSystems(t)

	it := m.NewItem()
	require.NoError(t, it.Set("name", "Vanishing"))
	require.NoError(t, it.Save(ctx))

	store.Clear()

	require.NoError(t, it.Set("level", 3))
	require.NoError(t, it.Save(ctx))

	exists, err := it.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := m.Find(ctx, model.Equals("level", 3), model.Query{}, model.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, it.UUID(), found[0].UUID())

	ordered := m.GetIndex("level", "").Handler.(index.Ordered)
	assert.Equal(t, 1, ordered.Len())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	m, store := newRatingSystems(t)

	keep := m.NewItem()
	require.NoError(t, keep.Set("name", "Keep"))
	require.NoError(t, keep.Save(ctx))

	drop := m.NewItem()
	require.NoError(t, drop.Set("name", "Drop"))
	require.NoError(t, drop.Save(ctx))

	// unsaved changes do not hide the indexed value
	require.NoError(t, drop.Set("name", "Renamed"))
	require.NoError(t, drop.Remove(ctx))

	exists, err := drop.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1, store.Count())

	found, err := m.Find(ctx, model.Equals("name", "Drop"), model.Query{}, model.FindOptions{})
	require.NoError(t, err)
	assert.Empty(t, found)

	for _, b := range m.Schema().Indices() {
		assert.Equal(t, 1, b.Handler.(index.Ordered).Len(), b.Property)
	}

	// unloaded items are dropped by uuid
	require.NoError(t, m.Item(keep.UUID()).Remove(ctx))
	assert.Equal(t, 0, store.Count())
	for _, b := range m.Schema().Indices() {
		assert.Equal(t, 0, b.Handler.(index.Ordered).Len(), b.Property)
	}

	require.NoError(t, m.NewItem().Remove(ctx))
}

const kindRecording = "recording"

// recordingIndex is an eq index that remembers the values passed to RemoveValue.
type recordingIndex struct {
	*index.EqIndex

	mu      sync.Mutex
	removed []any
}

func (x *recordingIndex) RemoveValue(id uuid.UUID, value any) error {
	x.mu.Lock()
	x.removed = append(x.removed, value)
	x.mu.Unlock()
	return x.EqIndex.RemoveValue(id, value)
}

func init() {
	registry.RegisterIndexKind(kindRecording, func() index.Handler {
		return &recordingIndex{EqIndex: index.NewEqIndex()}
	})
}

func TestRemoveUsesCommittedValues(t *testing.T) {
	ctx := context.Background()
	def := testmodels.Plain()
	def.Indices = []schema.IndexDefinition{{Property: "title", Type: kindRecording}}

	m, err := model.New(def, mock.New())
	require.NoError(t, err)
	defer m.Close()

	it := m.NewItem()
	require.NoError(t, it.Set("title", "Draft"))
	require.NoError(t, it.Save(ctx))

	require.NoError(t, it.Set("title", "Final"))
	require.NoError(t, it.Remove(ctx))

	rec := m.GetIndex("title", kindRecording).Handler.(*recordingIndex)
	rec.mu.Lock()
	assert.Equal(t, []any{"Draft"}, rec.removed)
	rec.mu.Unlock()
	assert.Empty(t, rec.Find("Draft"))
	assert.Equal(t, 0, rec.Len())
}

func TestToObject(t *testing.T) {
	ctx := context.Background()
	m, _ := newRatingSystems(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	it := m.NewItem()
	require.NoError(t, it.Set("name", "Elo"))
	require.NoError(t, it.Set("createdAt", created))

	obj, err := it.ToObject(model.ObjectOptions{})
	require.NoError(t, err)
	assert.NotContains(t, obj, "uuid")
	assert.Equal(t, "elo", obj["slug"])
	assert.Equal(t, strfmt.DateTime(created), obj["createdAt"])

	require.NoError(t, it.Save(ctx))

	obj, err = it.ToObject(model.ObjectOptions{OmitComputed: true, Serialized: true})
	require.NoError(t, err)
	assert.Equal(t, it.UUID().String(), obj["uuid"])
	assert.NotContains(t, obj, "slug")
	assert.Equal(t, "2025-03-01T12:00:00.000Z", obj["createdAt"])

	copied, err := m.FromObject(obj, model.ObjectOptions{Serialized: true})
	require.NoError(t, err)
	assert.Equal(t, it.UUID(), copied.UUID())
	createdAt, _ := copied.Get("createdAt")
	assert.Equal(t, strfmt.DateTime(created).String(), createdAt.(strfmt.DateTime).String())
}
