/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"
)

// KeyResult represents a single key in a key stream with metadata
type KeyResult struct {
	Key   string     // The logical key
	Error error      // Stream error; the stream ends after an error
	Meta  StreamMeta // Metadata about this key
}

// StreamMeta contains metadata about a streamed key
type StreamMeta struct {
	Index      int64     // Key index in stream (0-based)
	PageNumber int       // Backend page number (1-based)
	Timestamp  time.Time // When key was retrieved
}

// KeyStreamOptions configures key streaming behavior
type KeyStreamOptions struct {
	Prefix          string               // Only keys starting with Prefix are yielded
	MaxDepth        int                  // Logical segments below Prefix (0: unlimited)
	Separator       string               // Segment separator (default "/"; "" disables depth limits)
	BufferSize      int                  // Channel buffer size (default: 100)
	MaxRetries      int                  // Retry attempts for transient errors (default: 3)
	RetryBackoff    time.Duration        // Backoff between retries (default: 1s)
	PageSize        int32                // Keys per backend page (default: 100)
	ProgressHandler func(StreamProgress) // Optional progress callback
}

// StreamProgress tracks streaming progress
type StreamProgress struct {
	ItemsProcessed int64     // Total keys yielded
	PagesProcessed int       // Total pages processed
	Errors         []error   // Accumulated non-fatal errors
	StartTime      time.Time // When streaming started
	CurrentRate    float64   // Keys per second
}

// KeyStreamOption is a functional option for configuring key streams
type KeyStreamOption func(*KeyStreamOptions)

// DefaultKeyStreamOptions returns default key streaming options
func DefaultKeyStreamOptions() KeyStreamOptions {
	return KeyStreamOptions{
		Separator:    "/",
		BufferSize:   100,
		MaxRetries:   3,
		RetryBackoff: time.Second,
		PageSize:     100,
	}
}

// ApplyKeyStreamOptions folds opts over the defaults.
func ApplyKeyStreamOptions(opts ...KeyStreamOption) KeyStreamOptions {
	o := DefaultKeyStreamOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPrefix limits the stream to keys sharing prefix
func WithPrefix(prefix string) KeyStreamOption {
	return func(opts *KeyStreamOptions) {
		opts.Prefix = prefix
	}
}

// WithMaxDepth limits the stream to depth logical segments below the prefix
func WithMaxDepth(depth int) KeyStreamOption {
	return func(opts *KeyStreamOptions) {
		opts.MaxDepth = depth
	}
}

// WithSeparator sets the segment separator used for depth accounting
func WithSeparator(sep string) KeyStreamOption {
	return func(opts *KeyStreamOptions) {
		opts.Separator = sep
	}
}

// WithBufferSize sets the channel buffer size
func WithBufferSize(size int) KeyStreamOption {
	return func(opts *KeyStreamOptions) {
		opts.BufferSize = size
	}
}

// WithMaxRetries sets the maximum retry attempts
func WithMaxRetries(retries int) KeyStreamOption {
	return func(opts *KeyStreamOptions) {
		opts.MaxRetries = retries
	}
}

// WithRetryBackoff sets the retry backoff duration
func WithRetryBackoff(backoff time.Duration) KeyStreamOption {
	return func(opts *KeyStreamOptions) {
		opts.RetryBackoff = backoff
	}
}

// WithPageSize sets the backend page size
func WithPageSize(size int32) KeyStreamOption {
	return func(opts *KeyStreamOptions) {
		opts.PageSize = size
	}
}

// WithProgressHandler sets a progress callback
func WithProgressHandler(handler func(StreamProgress)) KeyStreamOption {
	return func(opts *KeyStreamOptions) {
		opts.ProgressHandler = handler
	}
}
