/*
Package storagemodels defines the data structures shared by adapters and models.

Key Types:

Record:
A flat mapping of serialized property values:

	rec := Record{"name": "x", "age": 42}

KeyResult:
Results from key streaming with metadata:

	type KeyResult struct {
	    Key   string     // The logical key
	    Error error      // Stream error; the stream ends after an error
	    Meta  StreamMeta // Metadata about this key
	}

KeyStreamOptions:
Configuration for key streaming behavior:

	opts := []KeyStreamOption{
	    WithPrefix("models/User/items"),
	    WithMaxDepth(1),
	    WithBufferSize(100),
	    WithProgressHandler(progressFunc),
	}

Event:
Change and delete notifications pushed by adapters that observe their backend.

These types provide a consistent interface across different storage implementations.
*/
package storagemodels
