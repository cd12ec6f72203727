/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package properties

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreTracksBaselineAcrossEdits(t *testing.T) {
	s := New(nil, "name", "age")
	require.NoError(t, s.Set("name", "a"))
	s.Commit()
	assert.False(t, s.HasChanged())

	require.NoError(t, s.Set("name", "b"))
	require.NoError(t, s.Set("name", "c"))

	assert.True(t, s.HasChanged())
	assert.True(t, s.IsChanged("name"))
	assert.False(t, s.IsChanged("age"))
	assert.Equal(t, map[string]any{"name": "a"}, s.Changed())
	assert.Equal(t, "a", s.Baseline("name"))

	v, _ := s.Get("name")
	assert.Equal(t, "c", v)
}

func TestStoreAssigningSameValueIsNoop(t *testing.T) {
	s := New(nil, "name")
	require.NoError(t, s.Set("name", "a"))
	s.Commit()

	require.NoError(t, s.Set("name", "a"))
	assert.False(t, s.HasChanged())

	require.NoError(t, s.Set("name", "b"))
	require.NoError(t, s.Set("name", "a"))
	assert.False(t, s.HasChanged(), "returning to baseline marks the property clean")
}

func TestStoreRollBack(t *testing.T) {
	s := New(nil, "name", "age")
	require.NoError(t, s.Set("name", "a"))
	require.NoError(t, s.Set("age", 3))
	s.Commit()

	require.NoError(t, s.Set("name", "b"))
	require.NoError(t, s.Set("extra", true))
	s.RollBack()

	assert.False(t, s.HasChanged())
	assert.Equal(t, map[string]any{"name": "a", "age": 3, "extra": nil}, s.Values())
}

func TestStoreCloneIsIndependent(t *testing.T) {
	s := New(nil, "name")
	require.NoError(t, s.Set("name", "a"))
	s.Commit()
	require.NoError(t, s.Set("name", "b"))

	snapshot := s.Clone()
	snapshot.RollBack()

	v, _ := snapshot.Get("name")
	assert.Equal(t, "a", v)

	v, _ = s.Get("name")
	assert.Equal(t, "b", v)
	assert.True(t, s.HasChanged())

	require.NoError(t, snapshot.Set("name", "z"))
	v, _ = s.Get("name")
	assert.Equal(t, "b", v)
}

func TestStoreReplace(t *testing.T) {
	s := New(nil, "name", "age")
	require.NoError(t, s.Set("name", "a"))
	require.NoError(t, s.Set("age", 1))

	s.Replace(map[string]any{"name": "x", "other": 2})

	assert.False(t, s.HasChanged())
	assert.Equal(t, map[string]any{"name": "x", "age": nil, "other": 2}, s.Values())
	assert.Equal(t, []string{"name", "age", "other"}, s.Names())
}

func TestStoreCoerce(t *testing.T) {
	s := New(func(name string, value any) (any, error) {
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string", name)
		}
		return strings.TrimSpace(str), nil
	}, "name")

	require.NoError(t, s.Set("name", "  padded "))
	v, _ := s.Get("name")
	assert.Equal(t, "padded", v)

	assert.Error(t, s.Set("name", 42))
	v, _ = s.Get("name")
	assert.Equal(t, "padded", v, "failed coercion leaves value untouched")
}

func TestStoreRelax(t *testing.T) {
	s := New(nil)
	assert.False(t, s.Relaxed())

	prev := s.Relax(true)
	assert.False(t, prev)
	assert.True(t, s.Relaxed())
	assert.True(t, s.Clone().Relaxed())

	s.Relax(prev)
	assert.False(t, s.Relaxed())
}
