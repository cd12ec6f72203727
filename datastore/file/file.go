/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package file

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
	"go.uber.org/zap"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/storagemodels"
)

const (
	// RecordFile is the name of the document holding a key's record inside its folder.
	RecordFile = "record.json"

	lockFile = ".lock"
)

// Adapter stores every record as a JSON document in a folder derived from its key.
type Adapter struct {
	datastore.Base
	datastore.Broadcaster

	root   string
	locks  *keyLocks
	flock  *flock.Flock
	logger *zap.Logger

	// createMu guards the in-process part of Create, flock the cross-process part.
	createMu sync.Mutex
}

var (
	_ datastore.Adapter  = (*Adapter)(nil)
	_ datastore.Notifier = (*Adapter)(nil)
)

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the logger used by the adapter
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an adapter rooted at dataSource, creating the folder if required.
func New(dataSource string, opts ...Option) (*Adapter, error) {
	root, err := filepath.Abs(dataSource)
	if err != nil {
		return nil, fmt.Errorf("resolve data source: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data source %s: %w", root, err)
	}

	a := &Adapter{
		root:   root,
		locks:  newKeyLocks(),
		flock:  flock.New(filepath.Join(root, lockFile)),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("datastore.file")

	return a, nil
}

// Root returns the absolute data folder of the adapter.
func (a *Adapter) Root() string {
	return a.root
}

func (a *Adapter) KeyToPath(key string) (string, error) {
	return KeyToPath(key)
}

func (a *Adapter) PathToKey(path string) (string, error) {
	return PathToKey(path)
}

func (a *Adapter) folder(key string) (string, error) {
	path, err := KeyToPath(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(a.root, filepath.FromSlash(path)), nil
}

func (a *Adapter) recordPath(key string) (string, error) {
	dir, err := a.folder(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, RecordFile), nil
}

// Create allocates a uuid for keyTemplate and writes rec to the resulting key.
func (a *Adapter) Create(ctx context.Context, keyTemplate string, rec storagemodels.Record) (string, error) {
	a.createMu.Lock()
	defer a.createMu.Unlock()

	if err := a.flock.Lock(); err != nil {
		return "", fmt.Errorf("failed to acquire data source lock: %w", err)
	}
	defer func() {
		if err := a.flock.Unlock(); err != nil {
			a.logger.Warn("failed to release data source lock", zap.Error(err))
		}
	}()

	for {
		key, _, err := datastore.ExpandTemplate(keyTemplate)
		if err != nil {
			return "", err
		}

		exists, err := a.Has(ctx, key)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}

		if _, err := a.Write(ctx, key, rec); err != nil {
			return "", err
		}
		return key, nil
	}
}

func (a *Adapter) Has(ctx context.Context, key string) (bool, error) {
	path, err := a.recordPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check record %s: %w", key, err)
	}
}

func (a *Adapter) Read(ctx context.Context, key string, opts ...storagemodels.ReadOption) (storagemodels.Record, error) {
	path, err := a.recordPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			o := storagemodels.ApplyReadOptions(opts...)
			if o.HasFallback {
				return o.IfMissing, nil
			}
			return nil, errors.NewNotFoundError("record", key)
		}
		return nil, fmt.Errorf("failed to read record %s: %w", key, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return rec, nil
}

// Write replaces the record at key atomically. Concurrent writes to the same key
// are serialized.
func (a *Adapter) Write(ctx context.Context, key string, rec storagemodels.Record) (storagemodels.Record, error) {
	path, err := a.recordPath(key)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", key, err)
	}

	unlock := a.locks.Lock(path)
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create folder for %s: %w", key, err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write record %s: %w", key, err)
	}

	return rec, nil
}

// Remove deletes the folder of key including all nested keys and prunes
// parent folders left empty.
func (a *Adapter) Remove(ctx context.Context, key string) (string, error) {
	if key == "" {
		return key, a.clear()
	}

	dir, err := a.folder(key)
	if err != nil {
		return "", err
	}
	unlock := a.locks.Lock(filepath.Join(dir, RecordFile))
	defer unlock()

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", key, err)
	}
	a.prune(filepath.Dir(dir))

	return key, nil
}

func (a *Adapter) prune(dir string) {
	for dir != a.root && strings.HasPrefix(dir, a.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Purge removes every record of the data source.
func (a *Adapter) Purge(ctx context.Context) error {
	if err := a.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire data source lock: %w", err)
	}
	defer a.flock.Unlock()

	return a.clear()
}

func (a *Adapter) clear() error {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return fmt.Errorf("failed to list data source: %w", err)
	}
	for _, entry := range entries {
		if entry.Name() == lockFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(a.root, entry.Name())); err != nil {
			return fmt.Errorf("failed to purge %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// KeyStream walks the folders below the prefix and yields the keys of all
// folders holding a record. Depth is counted in key segments, so a uuid split
// into three folders counts as one level.
func (a *Adapter) KeyStream(ctx context.Context, opts ...storagemodels.KeyStreamOption) <-chan storagemodels.KeyResult {
	o := storagemodels.ApplyKeyStreamOptions(opts...)
	resultChan := make(chan storagemodels.KeyResult, o.BufferSize)

	go func() {
		defer close(resultChan)

		start := a.root
		if o.Separator == "/" {
			dir, err := a.folder(strings.TrimSuffix(o.Prefix, "/"))
			if err != nil {
				resultChan <- storagemodels.KeyResult{Error: err}
				return
			}
			start = dir
		}
		if _, err := os.Stat(start); err != nil {
			if !stderrors.Is(err, fs.ErrNotExist) {
				resultChan <- storagemodels.KeyResult{Error: fmt.Errorf("failed to access %s: %w", start, err)}
			}
			return
		}

		progress := storagemodels.StreamProgress{StartTime: time.Now()}
		report := func() {
			if o.ProgressHandler == nil {
				return
			}
			if elapsed := time.Since(progress.StartTime).Seconds(); elapsed > 0 {
				progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
			}
			o.ProgressHandler(progress)
		}

		err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if path == start || o.MaxDepth <= 0 || o.Separator == "" {
					return nil
				}
				rel, _ := filepath.Rel(start, path)
				if logicalDepth(strings.Split(filepath.ToSlash(rel), "/")) > o.MaxDepth {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Name() != RecordFile {
				return nil
			}

			rel, err := filepath.Rel(a.root, filepath.Dir(path))
			if err != nil || rel == "." {
				return nil
			}
			key, err := PathToKey(filepath.ToSlash(rel))
			if err != nil {
				a.logger.Debug("skipping foreign folder", zap.String("path", rel), zap.Error(err))
				return nil
			}
			if !datastore.MatchKey(key, o) {
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case resultChan <- storagemodels.KeyResult{
				Key: key,
				Meta: storagemodels.StreamMeta{
					Index:      progress.ItemsProcessed,
					PageNumber: progress.PagesProcessed + 1,
					Timestamp:  time.Now(),
				},
			}:
			}

			progress.ItemsProcessed++
			if o.PageSize > 0 && progress.ItemsProcessed%int64(o.PageSize) == 0 {
				progress.PagesProcessed++
				report()
			}
			return nil
		})

		if err != nil && ctx.Err() == nil {
			select {
			case resultChan <- storagemodels.KeyResult{Error: fmt.Errorf("failed to walk data source: %w", err)}:
			case <-ctx.Done():
			}
			return
		}
		report()
	}()

	return resultChan
}

func decodeRecord(data []byte) (storagemodels.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec storagemodels.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = storagemodels.Record{}
	}
	return rec, nil
}
