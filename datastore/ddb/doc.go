/*
Package ddb provides a DynamoDB implementation of the datastore.Adapter interface.

Records live in a single table with a string hash key PK and a string range key
SK. Both hold the logical key of the record, following the single object key
layout:

	PK = "models/RatingSystem/items/6f1c..."
	SK = "models/RatingSystem/items/6f1c..."
	Data = {"name": "Elo", "level": 1}

Create relies on a conditional put so a colliding uuid is never overwritten.
Key streams scan the table with a begins_with filter and retry throttled pages:

	for r := range adapter.KeyStream(ctx,
	    storagemodels.WithPrefix("models/RatingSystem/items"),
	    storagemodels.WithPageSize(25),
	    storagemodels.WithMaxRetries(3),
	) {
	    ...
	}

Numbers are read back as float64. Transactions are not supported.
*/
package ddb
