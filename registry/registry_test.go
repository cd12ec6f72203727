/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/itemstore/index"
)

type upperSerializer struct{}

func (upperSerializer) Coerce(v any) (any, error)            { return v, nil }
func (upperSerializer) Serialize(v any, _ bool) (any, error) { return v, nil }
func (upperSerializer) Deserialize(v any) (any, error)       { return v, nil }

func TestTypeRegistry(t *testing.T) {
	RegisterType("registry-test", upperSerializer{})

	s, err := GetSerializer("registry-test")
	require.NoError(t, err)
	assert.IsType(t, upperSerializer{}, s)
	assert.Contains(t, Types(), "registry-test")

	_, err = GetSerializer("registry-missing")
	assert.Error(t, err)

	assert.Panics(t, func() { RegisterType("registry-test", upperSerializer{}) })
}

func TestIndexRegistry(t *testing.T) {
	RegisterIndexKind("registry-test", func() index.Handler { return index.NewEqIndex() })
	assert.True(t, HasIndexKind("registry-test"))

	a, err := NewIndex("registry-test")
	require.NoError(t, err)
	b, err := NewIndex("registry-test")
	require.NoError(t, err)
	assert.NotSame(t, a, b, "every call creates a fresh handler")

	_, err = NewIndex("registry-missing")
	assert.Error(t, err)

	assert.Panics(t, func() {
		RegisterIndexKind("registry-test", func() index.Handler { return index.NewEqIndex() })
	})
}
