/*
Package datastore defines the storage boundary of ItemStore.

The main interface is Adapter, which every backend implements:

	type Adapter interface {
	    Create(ctx context.Context, keyTemplate string, rec storagemodels.Record) (string, error)
	    Has(ctx context.Context, key string) (bool, error)
	    Read(ctx context.Context, key string, opts ...storagemodels.ReadOption) (storagemodels.Record, error)
	    Write(ctx context.Context, key string, rec storagemodels.Record) (storagemodels.Record, error)
	    Remove(ctx context.Context, key string) (string, error)
	    KeyStream(ctx context.Context, opts ...storagemodels.KeyStreamOption) <-chan storagemodels.KeyResult
	    ...
	}

Base is the abstract adapter rejecting every operation; concrete adapters embed it.
Adapters able to observe their backend implement Notifier, usually by embedding a
Broadcaster.

Implementations:
  - mock: in-memory adapter for tests and ephemeral data
  - file: one JSON document per key below a data directory
  - sqlite: single table in a SQLite database
  - ddb: DynamoDB table keyed by the logical key
  - cache: LRU read-through decorator for any adapter
*/
package datastore
