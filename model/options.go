/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModeProduction disables index integrity checks at barrier time.
const ModeProduction = "production"

// OnUnsaved selects what happens to local changes of an item being reloaded.
type OnUnsaved string

const (
	// OnUnsavedIgnore silently discards local changes.
	OnUnsavedIgnore OnUnsaved = "ignore"
	// OnUnsavedWarn logs and discards local changes.
	OnUnsavedWarn OnUnsaved = "warn"
	// OnUnsavedFail rejects the load and keeps local changes.
	OnUnsavedFail OnUnsaved = "fail"
)

// ParseOnUnsaved validates a policy name. The empty string selects OnUnsavedFail.
func ParseOnUnsaved(s string) (OnUnsaved, error) {
	switch OnUnsaved(s) {
	case "":
		return OnUnsavedFail, nil
	case OnUnsavedIgnore, OnUnsavedWarn, OnUnsavedFail:
		return OnUnsaved(s), nil
	}
	return "", fmt.Errorf("invalid onUnsaved policy %q", s)
}

// Option configures a Model
type Option func(*Model)

// WithLogger sets the logger of the model
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithMode sets the runtime mode. ModeProduction skips integrity checks.
func WithMode(mode string) Option {
	return func(m *Model) {
		m.mode = mode
	}
}

// WithOnUnsaved sets the default policy of items created by the model
func WithOnUnsaved(policy OnUnsaved) Option {
	return func(m *Model) {
		m.onUnsaved = policy
	}
}

// WithHooks installs lifecycle hooks
func WithHooks(hooks Hooks) Option {
	return func(m *Model) {
		m.hooks = hooks
	}
}

// WithProgressStep sets the initial number of records between progress lines
// while building indices
func WithProgressStep(step int) Option {
	return func(m *Model) {
		if step > 0 {
			m.progressStep = step
		}
	}
}

// WithLoadConcurrency limits parallel loads issued by Find
func WithLoadConcurrency(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.loadConcurrency = n
		}
	}
}

// CreateOptions is passed to Hooks.BeforeCreate and may be adjusted there.
type CreateOptions struct {
	UUID      uuid.UUID
	OnUnsaved OnUnsaved
}

// ItemOption adjusts the creation of a single item
type ItemOption func(*CreateOptions)

// WithUnsavedPolicy overrides the model's OnUnsaved policy for one item
func WithUnsavedPolicy(policy OnUnsaved) ItemOption {
	return func(o *CreateOptions) {
		o.OnUnsaved = policy
	}
}

// SaveOptions tunes Item.Save
type SaveOptions struct {
	IgnoreUnloaded bool
}

// SaveOption is a functional option for Item.Save
type SaveOption func(*SaveOptions)

// IgnoreUnloaded permits saving changes of an item that was never loaded,
// overwriting the stored record without merging.
func IgnoreUnloaded() SaveOption {
	return func(o *SaveOptions) {
		o.IgnoreUnloaded = true
	}
}

// ObjectOptions tunes ToObject and FromObject
type ObjectOptions struct {
	OmitComputed bool
	Serialized   bool
}
