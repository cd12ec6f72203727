/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package file

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch observes the data folder and emits change and delete events for records
// written or removed by any process, this one included. It blocks until ctx is
// cancelled or the watcher fails.
func (a *Adapter) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := a.watchRecursive(fsw, a.root, false); err != nil {
		return fmt.Errorf("add folders to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			a.handleEvent(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			a.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// watchRecursive adds dir and its subfolders. With emit set, records found in
// them are reported as changed.
func (a *Adapter) watchRecursive(fsw *fsnotify.Watcher, dir string, emit bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// folder vanished while walking
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		}
		if emit && d.Name() == RecordFile {
			a.emitRecord(path)
		}
		return nil
	})
}

func (a *Adapter) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	name := filepath.Base(event.Name)

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// records may have been written before the folder got watched
			if err := a.watchRecursive(fsw, event.Name, true); err != nil {
				a.logger.Warn("failed to watch folder", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
		if name == RecordFile {
			a.emitRecord(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		if name == RecordFile {
			a.emitRecord(event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if name != RecordFile {
			return
		}
		if _, err := os.Stat(event.Name); err == nil {
			return
		}
		if key, ok := a.eventKey(event.Name); ok {
			a.logger.Debug("record removed", zap.String("key", key))
			a.EmitDelete(key)
		}
	}
}

func (a *Adapter) emitRecord(path string) {
	key, ok := a.eventKey(path)
	if !ok {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// removed again before it could be read
		return
	}
	rec, err := decodeRecord(data)
	if err != nil {
		a.logger.Warn("ignoring undecodable record", zap.String("key", key), zap.Error(err))
		return
	}

	a.logger.Debug("record changed", zap.String("key", key))
	a.EmitChange(key, rec)
}

func (a *Adapter) eventKey(recordPath string) (string, bool) {
	rel, err := filepath.Rel(a.root, filepath.Dir(recordPath))
	if err != nil || rel == "." {
		return "", false
	}
	key, err := PathToKey(filepath.ToSlash(rel))
	if err != nil {
		return "", false
	}
	return key, true
}
