/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"context"

	"github.com/suparena/itemstore/storagemodels"
)

// Hooks customizes the lifecycle of a model's items. Embed NopHooks to implement
// only the methods of interest. Hooks other than BeforeCreate run with the item's
// unsaved changes guard suspended.
type Hooks interface {
	// BeforeCreate may adjust the options of an item being constructed.
	BeforeCreate(opts *CreateOptions)
	// AfterCreate runs once the item has been constructed.
	AfterCreate(item *Item)

	BeforeLoad(ctx context.Context, item *Item) error
	// AfterLoad may replace the record read from the adapter.
	AfterLoad(ctx context.Context, item *Item, rec storagemodels.Record) (storagemodels.Record, error)

	BeforeValidate(ctx context.Context, item *Item) error
	// Validate returns custom validation failures.
	Validate(ctx context.Context, item *Item) []error
	// AfterValidate may filter or extend the collected failures.
	AfterValidate(ctx context.Context, item *Item, errs []error) []error

	// BeforeSave may replace the record about to be written.
	BeforeSave(ctx context.Context, item *Item, existsAlready bool, rec storagemodels.Record) (storagemodels.Record, error)
	AfterSave(ctx context.Context, item *Item, existsAlready bool) error

	BeforeRemove(ctx context.Context, item *Item) error
	AfterRemove(ctx context.Context, item *Item) error
}

// NopHooks implements Hooks without doing anything.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) BeforeCreate(*CreateOptions) {}
func (NopHooks) AfterCreate(*Item)           {}

func (NopHooks) BeforeLoad(context.Context, *Item) error { return nil }

func (NopHooks) AfterLoad(_ context.Context, _ *Item, rec storagemodels.Record) (storagemodels.Record, error) {
	return rec, nil
}

func (NopHooks) BeforeValidate(context.Context, *Item) error { return nil }
func (NopHooks) Validate(context.Context, *Item) []error     { return nil }

func (NopHooks) AfterValidate(_ context.Context, _ *Item, errs []error) []error {
	return errs
}

func (NopHooks) BeforeSave(_ context.Context, _ *Item, _ bool, rec storagemodels.Record) (storagemodels.Record, error) {
	return rec, nil
}

func (NopHooks) AfterSave(context.Context, *Item, bool) error { return nil }

func (NopHooks) BeforeRemove(context.Context, *Item) error { return nil }
func (NopHooks) AfterRemove(context.Context, *Item) error  { return nil }
