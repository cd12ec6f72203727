/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/schema"
)

// IndexLoaded resolves once all declared indices have been built from the stored
// records. The build runs once per model. Its outcome, failure included, is shared
// by every caller for the lifetime of the model. Cancelling ctx stops waiting but
// not the build.
func (m *Model) IndexLoaded(ctx context.Context) ([]*schema.Binding, error) {
	m.barrierOnce.Do(func() {
		buildCtx := context.WithoutCancel(ctx)
		go func() {
			defer close(m.barrierDone)
			m.barrierErr = m.buildIndices(buildCtx)
		}()
	})

	select {
	case <-m.barrierDone:
		if m.barrierErr != nil {
			return nil, m.barrierErr
		}
		return m.schema.Indices(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Model) buildIndices(ctx context.Context) error {
	bindings := m.schema.Indices()
	if len(bindings) == 0 {
		return nil
	}

	m.logger.Debug("building indices", zap.Int("indices", len(bindings)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	step, lines, processed := m.progressStep, 0, 0
	for r := range m.UUIDStream(ctx) {
		if r.Err != nil {
			return fmt.Errorf("build indices of %s: %w", m.name, r.Err)
		}

		item := m.Item(r.ID)
		if err := item.Load(ctx); err != nil {
			return fmt.Errorf("build indices of %s: load %s: %w", m.name, r.ID, err)
		}

		view := item.view()
		for _, b := range bindings {
			if err := b.Handler.Add(r.ID, b.Value(view)); err != nil {
				return fmt.Errorf("build index %s(%s) of %s: %w", b.Property, b.Operator, m.name, err)
			}
		}

		processed++
		if processed%step == 0 {
			m.logger.Debug("indexing records", zap.Int("processed", processed))
			lines++
			if lines%10 == 0 {
				step *= 10
			}
		}
	}

	m.logger.Debug("indices built", zap.Int("records", processed))

	if m.mode != ModeProduction {
		var failures []errors.IndexFailure
		for _, b := range bindings {
			if err := b.Handler.CheckIntegrity(); err != nil {
				failures = append(failures, errors.IndexFailure{
					Property: b.Property,
					Operator: b.Operator,
					Type:     fmt.Sprintf("%T", b.Handler),
					Err:      err,
				})
			}
		}
		if len(failures) > 0 {
			err := &errors.IntegrityError{Model: m.name, Failures: failures}
			m.logger.Error("index integrity check failed", zap.Error(err))
			return err
		}
	}

	m.observe()
	return nil
}

// observe subscribes to remote changes once.
func (m *Model) observe() {
	notifier, ok := m.adapter.(datastore.Notifier)
	if !ok {
		return
	}

	m.subMu.Lock()
	defer m.subMu.Unlock()

	if !m.closed && m.unsubscribe == nil {
		m.unsubscribe = notifier.Subscribe(m.adopt)
	}
}
