/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/storagemodels"
)

// UUIDPlaceholder marks the position in a key template receiving a freshly allocated uuid.
const UUIDPlaceholder = "%u"

// Adapter is the storage boundary shared by all items of a model.
type Adapter interface {
	// Create substitutes a new uuid for the placeholder in keyTemplate, persists
	// rec and returns the concrete key.
	Create(ctx context.Context, keyTemplate string, rec storagemodels.Record) (string, error)

	Has(ctx context.Context, key string) (bool, error)

	Read(ctx context.Context, key string, opts ...storagemodels.ReadOption) (storagemodels.Record, error)

	// Write creates or overwrites the record at key unconditionally.
	Write(ctx context.Context, key string, rec storagemodels.Record) (storagemodels.Record, error)

	// Remove deletes key and everything nested below it. Missing keys are not an error.
	Remove(ctx context.Context, key string) (string, error)

	// KeyStream yields matching keys lazily. Every call starts a new stream.
	KeyStream(ctx context.Context, opts ...storagemodels.KeyStreamOption) <-chan storagemodels.KeyResult

	Begin(ctx context.Context) error
	RollBack(ctx context.Context) error
	Commit(ctx context.Context) error

	// Purge drops all data of the adapter.
	Purge(ctx context.Context) error

	KeyToPath(key string) (string, error)
	PathToKey(path string) (string, error)

	SupportsBinary() bool
}

// Notifier is implemented by adapters able to push change and delete events.
type Notifier interface {
	Subscribe(fn storagemodels.Listener) (cancel func())
}

// MatchKey reports whether key is yielded by a key stream configured with opts.
// Prefixes match whole segments only and depth is counted relative to the prefix.
func MatchKey(key string, opts storagemodels.KeyStreamOptions) bool {
	rest, ok := TrimKeyPrefix(key, opts.Prefix, opts.Separator)
	if !ok {
		return false
	}
	if opts.MaxDepth <= 0 || opts.Separator == "" {
		return true
	}
	return KeyDepth(rest, opts.Separator) <= opts.MaxDepth
}

// TrimKeyPrefix strips prefix from key when prefix covers whole leading segments.
func TrimKeyPrefix(key, prefix, sep string) (string, bool) {
	if prefix == "" {
		return key, true
	}
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := key[len(prefix):]
	if rest == "" || sep == "" || strings.HasSuffix(prefix, sep) {
		return rest, true
	}
	if !strings.HasPrefix(rest, sep) {
		return "", false
	}
	return rest[len(sep):], true
}

// KeyDepth counts the non-empty segments of a relative key.
func KeyDepth(rel, sep string) int {
	depth := 0
	for _, seg := range strings.Split(rel, sep) {
		if seg != "" {
			depth++
		}
	}
	return depth
}

// ExpandTemplate replaces the uuid placeholder in template with a new random uuid.
func ExpandTemplate(template string) (string, uuid.UUID, error) {
	if !strings.Contains(template, UUIDPlaceholder) {
		return "", uuid.Nil, errors.NewFormatError(template, "key template lacks "+UUIDPlaceholder)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to allocate uuid: %w", err)
	}
	return strings.Replace(template, UUIDPlaceholder, id.String(), 1), id, nil
}
