/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

// Record is a flat mapping of serialized property values as understood by an adapter.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ReadOptions configures a single adapter read.
type ReadOptions struct {
	// IfMissing is returned instead of a not-found error when HasFallback is set.
	IfMissing   Record
	HasFallback bool
}

// ReadOption is a functional option for configuring reads
type ReadOption func(*ReadOptions)

// WithIfMissing makes a read of a missing key return fallback instead of failing
func WithIfMissing(fallback Record) ReadOption {
	return func(opts *ReadOptions) {
		opts.IfMissing = fallback
		opts.HasFallback = true
	}
}

// ApplyReadOptions folds opts into a ReadOptions value.
func ApplyReadOptions(opts ...ReadOption) ReadOptions {
	var o ReadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EventKind distinguishes change from delete notifications.
type EventKind int

const (
	// EventChange signals that a record was created or overwritten.
	EventChange EventKind = iota
	// EventDelete signals that a record was removed.
	EventDelete
)

func (k EventKind) String() string {
	switch k {
	case EventChange:
		return "change"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a push notification emitted by an adapter.
type Event struct {
	Kind   EventKind
	Key    string
	Record Record // nil for deletes
}

// Listener receives adapter events.
type Listener func(Event)
