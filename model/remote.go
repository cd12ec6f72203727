/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"go.uber.org/zap"

	"github.com/suparena/itemstore/index"
	"github.com/suparena/itemstore/storagemodels"
)

// adopt keeps indices in sync with records changed outside of this model. The
// previous value of a changed record is unknown, so indices look the item up
// wherever it currently is. Failures are logged only.
func (m *Model) adopt(ev storagemodels.Event) {
	if KeyToModelName(ev.Key) != m.name {
		return
	}
	id, err := m.KeyToUUID(ev.Key)
	if err != nil {
		return
	}

	log := m.logger.With(zap.String("key", ev.Key), zap.Stringer("event", ev.Kind))

	switch ev.Kind {
	case storagemodels.EventChange:
		values, err := m.schema.Deserialize(ev.Record)
		if err != nil {
			log.Error("failed to adopt remote change", zap.Error(err))
			return
		}
		view := m.schema.NewView(values)

		for _, b := range m.schema.Indices() {
			opts := index.UpdateOptions{SearchExisting: true, AddIfMissing: true}
			if err := b.Handler.Update(id, nil, b.Value(view), opts); err != nil {
				log.Error("failed to update index on remote change",
					zap.String("property", b.Property), zap.Error(err))
			}
		}

	case storagemodels.EventDelete:
		for _, b := range m.schema.Indices() {
			if err := b.Handler.Remove(id); err != nil {
				log.Error("failed to update index on remote delete",
					zap.String("property", b.Property), zap.Error(err))
			}
		}
	}

	log.Debug("adopted remote change")
}
