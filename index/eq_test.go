/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package index

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func walk(x *EqIndex, descending bool) []uuid.UUID {
	var out []uuid.UUID
	x.Walk(descending, func(id uuid.UUID, _ any) bool {
		out = append(out, id)
		return true
	})
	return out
}

func TestEqIndexOrdering(t *testing.T) {
	id := ids(5)
	x := NewEqIndex()

	require.NoError(t, x.Add(id[0], "b"))
	require.NoError(t, x.Add(id[1], "a"))
	require.NoError(t, x.Add(id[2], "b"))
	require.NoError(t, x.Add(id[3], "c"))
	require.NoError(t, x.Add(id[4], "b"))

	t.Run("ascending keeps insertion order among equal values", func(t *testing.T) {
		want := []uuid.UUID{id[1], id[0], id[2], id[4], id[3]}
		if diff := cmp.Diff(want, walk(x, false)); diff != "" {
			t.Errorf("ascending walk mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("descending keeps insertion order among equal values", func(t *testing.T) {
		want := []uuid.UUID{id[3], id[0], id[2], id[4], id[1]}
		if diff := cmp.Diff(want, walk(x, true)); diff != "" {
			t.Errorf("descending walk mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("relocated ids go last in their new bucket", func(t *testing.T) {
		require.NoError(t, x.Update(id[0], "b", "c", UpdateOptions{}))
		assert.Equal(t, []uuid.UUID{id[3], id[0]}, x.Find("c"))
		assert.Equal(t, []uuid.UUID{id[2], id[4]}, x.Find("b"))
	})

	t.Run("walk stops early", func(t *testing.T) {
		n := 0
		x.Walk(false, func(uuid.UUID, any) bool {
			n++
			return n < 2
		})
		assert.Equal(t, 2, n)
	})

	assert.NoError(t, x.CheckIntegrity())
	assert.Equal(t, 5, x.Len())
}

func TestEqIndexAdd(t *testing.T) {
	id := ids(1)
	x := NewEqIndex()

	require.NoError(t, x.Add(id[0], "a"))
	assert.NoError(t, x.Add(id[0], "a"), "re-adding the same entry is a no-op")
	assert.Error(t, x.Add(id[0], "b"))
	assert.Equal(t, 1, x.Len())
}

func TestEqIndexUpdate(t *testing.T) {
	id := ids(2)

	t.Run("requires matching old value", func(t *testing.T) {
		x := NewEqIndex()
		require.NoError(t, x.Add(id[0], "a"))

		assert.Error(t, x.Update(id[0], "wrong", "b", UpdateOptions{}))
		assert.Equal(t, []uuid.UUID{id[0]}, x.Find("a"))
	})

	t.Run("searches existing entry", func(t *testing.T) {
		x := NewEqIndex()
		require.NoError(t, x.Add(id[0], "a"))

		require.NoError(t, x.Update(id[0], nil, "b", UpdateOptions{SearchExisting: true}))
		assert.Empty(t, x.Find("a"))
		assert.Equal(t, []uuid.UUID{id[0]}, x.Find("b"))
	})

	t.Run("adds missing entry", func(t *testing.T) {
		x := NewEqIndex()

		assert.Error(t, x.Update(id[1], nil, "b", UpdateOptions{SearchExisting: true}))
		require.NoError(t, x.Update(id[1], nil, "b", UpdateOptions{SearchExisting: true, AddIfMissing: true}))
		assert.Equal(t, []uuid.UUID{id[1]}, x.Find("b"))
	})

	t.Run("keeps position on equal value", func(t *testing.T) {
		x := NewEqIndex()
		require.NoError(t, x.Add(id[0], "a"))
		require.NoError(t, x.Add(id[1], "a"))

		require.NoError(t, x.Update(id[0], "a", "a", UpdateOptions{}))
		assert.Equal(t, []uuid.UUID{id[0], id[1]}, x.Find("a"))
	})
}

func TestEqIndexRemove(t *testing.T) {
	id := ids(3)
	x := NewEqIndex()
	require.NoError(t, x.Add(id[0], "a"))
	require.NoError(t, x.Add(id[1], "a"))
	require.NoError(t, x.Add(id[2], "b"))

	require.NoError(t, x.RemoveValue(id[0], "a"))
	assert.Equal(t, []uuid.UUID{id[1]}, x.Find("a"))

	// stale value falls back to a scan
	require.NoError(t, x.RemoveValue(id[2], "zzz"))
	assert.Empty(t, x.Find("b"))

	require.NoError(t, x.Remove(id[1]))
	require.NoError(t, x.Remove(id[1]))
	assert.Zero(t, x.Len())
	assert.NoError(t, x.CheckIntegrity())
}

func TestEqIndexIntegrity(t *testing.T) {
	id := ids(2)

	t.Run("duplicate id", func(t *testing.T) {
		x := NewEqIndex()
		x.buckets = []*bucket{
			{value: "a", ids: []uuid.UUID{id[0]}},
			{value: "b", ids: []uuid.UUID{id[0]}},
		}
		assert.Error(t, x.CheckIntegrity())
	})

	t.Run("unordered buckets", func(t *testing.T) {
		x := NewEqIndex()
		x.buckets = []*bucket{
			{value: "b", ids: []uuid.UUID{id[0]}},
			{value: "a", ids: []uuid.UUID{id[1]}},
		}
		assert.Error(t, x.CheckIntegrity())
	})

	t.Run("empty bucket", func(t *testing.T) {
		x := NewEqIndex()
		x.buckets = []*bucket{{value: "a"}}
		assert.Error(t, x.CheckIntegrity())
	})
}

func TestCompare(t *testing.T) {
	now := time.Now()
	id := uuid.MustParse("12345678-1234-1234-1234-1234567890ab")

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"nil equals nil", nil, nil, 0},
		{"nil before bool", nil, false, -1},
		{"false before true", false, true, -1},
		{"bool before number", true, 0, -1},
		{"ints", 2, 10, -1},
		{"mixed numbers", 2, 1.5, 1},
		{"json number", json.Number("42"), 42, 0},
		{"json float", json.Number("1.5"), 1.5, 0},
		{"number before string", 99, "1", -1},
		{"strings", "abc", "abd", -1},
		{"string before time", "z", now, -1},
		{"times", now, now.Add(time.Second), -1},
		{"strfmt date time", strfmt.DateTime(now), now, 0},
		{"time before uuid", now, id, -1},
		{"uuids", id, id, 0},
		{"pointer", func() *int { v := 3; return &v }(), 3, 0},
		{"nil pointer", (*int)(nil), nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}
