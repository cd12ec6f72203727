/*
Package index provides the in-memory secondary indices of ItemStore models.

Every index implements Handler, the contract used by models to keep indices in
sync with persisted records:

	x := index.NewEqIndex()
	_ = x.Add(id, "alice")
	_ = x.Update(id, "alice", "bob", index.UpdateOptions{})
	_ = x.Update(id, nil, "carol", index.UpdateOptions{SearchExisting: true, AddIfMissing: true})
	_ = x.Remove(id)

Indices implementing Ordered additionally support lookups and ordered walks which
models use to answer equality tests and sorted searches without loading records.

Values are ordered by Compare. Ids sharing a value stay in insertion order.
*/
package index
