/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/storagemodels"
)

func TestBaseRejectsEverything(t *testing.T) {
	ctx := context.Background()
	var b Base

	_, err := b.Create(ctx, "some/%u", storagemodels.Record{})
	assert.ErrorIs(t, err, errors.ErrAbstract)

	_, err = b.Has(ctx, "some/key")
	assert.ErrorIs(t, err, errors.ErrAbstract)

	_, err = b.Read(ctx, "some/key")
	assert.ErrorIs(t, err, errors.ErrAbstract)

	_, err = b.Write(ctx, "some/key", storagemodels.Record{})
	assert.ErrorIs(t, err, errors.ErrAbstract)

	_, err = b.Remove(ctx, "some/key")
	assert.ErrorIs(t, err, errors.ErrAbstract)

	assert.ErrorIs(t, b.Purge(ctx), errors.ErrAbstract)
	assert.ErrorIs(t, b.Begin(ctx), errors.ErrNoTransaction)
	assert.ErrorIs(t, b.RollBack(ctx), errors.ErrNoTransaction)
	assert.ErrorIs(t, b.Commit(ctx), errors.ErrNoTransaction)

	var results []storagemodels.KeyResult
	for r := range b.KeyStream(ctx) {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, errors.ErrAbstract)
	assert.False(t, b.SupportsBinary())
}

func TestBaseMapsKeysAsGiven(t *testing.T) {
	var b Base
	for _, key := range []string{
		"some/key",
		"models/User/items/12345678-1234-1234-1234-1234567890ab",
		"",
	} {
		path, err := b.KeyToPath(key)
		require.NoError(t, err)
		assert.Equal(t, key, path)

		back, err := b.PathToKey(path)
		require.NoError(t, err)
		assert.Equal(t, key, back)
	}
}

func TestMatchKey(t *testing.T) {
	keys := []string{
		"some/key/without/uuid-1",
		"some/key/without/uuid-2",
		"some/other/key/without/uuid-3",
	}

	tests := []struct {
		name     string
		opts     []storagemodels.KeyStreamOption
		expected []string
	}{
		{"all", nil, keys},
		{"prefix and depth", []storagemodels.KeyStreamOption{storagemodels.WithPrefix("some/key"), storagemodels.WithMaxDepth(2)}, keys[:2]},
		{"depth only", []storagemodels.KeyStreamOption{storagemodels.WithMaxDepth(4)}, keys[:2]},
		{"partial segment prefix", []storagemodels.KeyStreamOption{storagemodels.WithPrefix("some/key/wit")}, nil},
		{"prefix equals key", []storagemodels.KeyStreamOption{storagemodels.WithPrefix("some/key/without/uuid-1")}, keys[:1]},
		{"trailing separator", []storagemodels.KeyStreamOption{storagemodels.WithPrefix("some/other/")}, keys[2:]},
		{"depth disabled", []storagemodels.KeyStreamOption{storagemodels.WithMaxDepth(1), storagemodels.WithSeparator("")}, keys},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := storagemodels.ApplyKeyStreamOptions(tt.opts...)
			var got []string
			for _, k := range keys {
				if MatchKey(k, opts) {
					got = append(got, k)
				}
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBroadcaster(t *testing.T) {
	var b Broadcaster
	var got []storagemodels.Event

	cancel := b.Subscribe(func(ev storagemodels.Event) { got = append(got, ev) })
	assert.Equal(t, 1, b.Listeners())

	b.EmitChange("a", storagemodels.Record{"x": 1})
	b.EmitDelete("a")

	cancel()
	cancel()
	b.EmitDelete("b")

	require.Len(t, got, 2)
	assert.Equal(t, storagemodels.EventChange, got[0].Kind)
	assert.Equal(t, storagemodels.EventDelete, got[1].Kind)
	assert.Equal(t, 0, b.Listeners())
}
