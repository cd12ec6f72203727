/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/storagemodels"
)

// Base is the abstract adapter. Every data operation fails with errors.ErrAbstract
// and every transaction operation with errors.ErrNoTransaction. Key mapping is the
// identity. Concrete adapters embed Base and override what they support.
type Base struct{}

var _ Adapter = Base{}

func (Base) Create(context.Context, string, storagemodels.Record) (string, error) {
	return "", errors.ErrAbstract
}

func (Base) Has(context.Context, string) (bool, error) {
	return false, errors.ErrAbstract
}

func (Base) Read(context.Context, string, ...storagemodels.ReadOption) (storagemodels.Record, error) {
	return nil, errors.ErrAbstract
}

func (Base) Write(context.Context, string, storagemodels.Record) (storagemodels.Record, error) {
	return nil, errors.ErrAbstract
}

func (Base) Remove(context.Context, string) (string, error) {
	return "", errors.ErrAbstract
}

func (Base) KeyStream(context.Context, ...storagemodels.KeyStreamOption) <-chan storagemodels.KeyResult {
	ch := make(chan storagemodels.KeyResult, 1)
	ch <- storagemodels.KeyResult{Error: errors.ErrAbstract}
	close(ch)
	return ch
}

func (Base) Begin(context.Context) error {
	return errors.ErrNoTransaction
}

func (Base) RollBack(context.Context) error {
	return errors.ErrNoTransaction
}

func (Base) Commit(context.Context) error {
	return errors.ErrNoTransaction
}

func (Base) Purge(context.Context) error {
	return errors.ErrAbstract
}

func (Base) KeyToPath(key string) (string, error) {
	return key, nil
}

func (Base) PathToKey(path string) (string, error) {
	return path, nil
}

func (Base) SupportsBinary() bool {
	return false
}
