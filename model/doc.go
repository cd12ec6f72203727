/*
Package model binds a schema to an adapter and manages the lifecycle of its items.

A Model owns the indices declared by its schema. They are built once, lazily, by
IndexLoaded: every stored record is loaded and fed into every index, then the
indices check themselves (except in production mode). Save, Remove and Find wait
for that build before touching an index. Once built, changes announced by a
Notifier adapter are folded into the indices as well.

Items track their changes against the last load or save:

	it := m.NewItem()
	_ = it.Set("name", "Elo")
	if err := it.Save(ctx); err != nil {
	    return err
	}

	items, err := m.Find(ctx, model.Equals("name", "Elo"),
	    model.Query{SortBy: "level", Limit: 10},
	    model.FindOptions{})

Reloading an item with unsaved changes is governed by its OnUnsaved policy.
*/
package model
