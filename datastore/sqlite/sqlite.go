/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/storagemodels"
)

// ErrTransactionActive is returned by Begin while a transaction is open.
var ErrTransactionActive = stderrors.New("transaction already active")

const schema = `
CREATE TABLE IF NOT EXISTS records (
	key  TEXT PRIMARY KEY,
	data TEXT NOT NULL
) WITHOUT ROWID;
`

// queryer is implemented by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Adapter keeps records as JSON documents in a single SQLite table. Unlike the
// other bundled adapters it supports one transaction at a time; while it is
// open every operation runs inside it.
type Adapter struct {
	datastore.Base

	db     *sql.DB
	logger *zap.Logger

	txMu sync.Mutex
	tx   *sql.Tx
}

var _ datastore.Adapter = (*Adapter)(nil)

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the logger used by the adapter
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New opens the database at dsn (a file path or ":memory:") and creates the
// records table if required.
func New(dsn string, opts ...Option) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single connection, which also keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	a := &Adapter{
		db:     db,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("datastore.sqlite")

	return a, nil
}

// Close rolls back an open transaction and closes the database.
func (a *Adapter) Close() error {
	a.txMu.Lock()
	if a.tx != nil {
		_ = a.tx.Rollback()
		a.tx = nil
	}
	a.txMu.Unlock()
	return a.db.Close()
}

func (a *Adapter) conn() queryer {
	a.txMu.Lock()
	defer a.txMu.Unlock()
	if a.tx != nil {
		return a.tx
	}
	return a.db
}

func (a *Adapter) Begin(ctx context.Context) error {
	a.txMu.Lock()
	defer a.txMu.Unlock()

	if a.tx != nil {
		return ErrTransactionActive
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	a.tx = tx
	return nil
}

func (a *Adapter) Commit(ctx context.Context) error {
	a.txMu.Lock()
	defer a.txMu.Unlock()

	if a.tx == nil {
		return errors.ErrNoTransaction
	}
	err := a.tx.Commit()
	a.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (a *Adapter) RollBack(ctx context.Context) error {
	a.txMu.Lock()
	defer a.txMu.Unlock()

	if a.tx == nil {
		return errors.ErrNoTransaction
	}
	err := a.tx.Rollback()
	a.tx = nil
	if err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func (a *Adapter) Create(ctx context.Context, keyTemplate string, rec storagemodels.Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	for {
		key, _, err := datastore.ExpandTemplate(keyTemplate)
		if err != nil {
			return "", err
		}

		res, err := a.conn().ExecContext(ctx,
			`INSERT INTO records (key, data) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`, key, string(data))
		if err != nil {
			return "", fmt.Errorf("failed to create record %s: %w", key, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			continue
		}
		return key, nil
	}
}

func (a *Adapter) Has(ctx context.Context, key string) (bool, error) {
	var one int
	err := a.conn().QueryRowContext(ctx, `SELECT 1 FROM records WHERE key = ?`, key).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check record %s: %w", key, err)
	}
}

func (a *Adapter) Read(ctx context.Context, key string, opts ...storagemodels.ReadOption) (storagemodels.Record, error) {
	var data string
	err := a.conn().QueryRowContext(ctx, `SELECT data FROM records WHERE key = ?`, key).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		o := storagemodels.ApplyReadOptions(opts...)
		if o.HasFallback {
			return o.IfMissing, nil
		}
		return nil, errors.NewNotFoundError("record", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", key, err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var rec storagemodels.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	if rec == nil {
		rec = storagemodels.Record{}
	}
	return rec, nil
}

func (a *Adapter) Write(ctx context.Context, key string, rec storagemodels.Record) (storagemodels.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", key, err)
	}

	_, err = a.conn().ExecContext(ctx,
		`INSERT INTO records (key, data) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET data = excluded.data`,
		key, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to write record %s: %w", key, err)
	}
	return rec, nil
}

// Remove deletes key and every key nested below it.
func (a *Adapter) Remove(ctx context.Context, key string) (string, error) {
	var err error
	if key == "" {
		_, err = a.conn().ExecContext(ctx, `DELETE FROM records`)
	} else {
		nested := key + "/"
		_, err = a.conn().ExecContext(ctx,
			`DELETE FROM records WHERE key = ? OR substr(key, 1, ?) = ?`, key, utf8.RuneCountInString(nested), nested)
	}
	if err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return key, nil
}

func (a *Adapter) Purge(ctx context.Context) error {
	if _, err := a.conn().ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to purge records: %w", err)
	}
	return nil
}

// KeyStream pages through the keys in lexical order. Every page is read
// completely before its keys are sent so the single connection stays free for
// the consumer.
func (a *Adapter) KeyStream(ctx context.Context, opts ...storagemodels.KeyStreamOption) <-chan storagemodels.KeyResult {
	o := storagemodels.ApplyKeyStreamOptions(opts...)
	resultChan := make(chan storagemodels.KeyResult, o.BufferSize)

	go func() {
		defer close(resultChan)

		progress := storagemodels.StreamProgress{StartTime: time.Now()}
		cursor := ""
		for {
			keys, err := a.page(ctx, o, cursor)
			if err != nil {
				if ctx.Err() == nil {
					select {
					case resultChan <- storagemodels.KeyResult{Error: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			if len(keys) == 0 {
				break
			}
			cursor = keys[len(keys)-1]

			for _, key := range keys {
				if !datastore.MatchKey(key, o) {
					continue
				}
				select {
				case <-ctx.Done():
					return
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
			}

			progress.PagesProcessed++
			if o.ProgressHandler != nil {
				if elapsed := time.Since(progress.StartTime).Seconds(); elapsed > 0 {
					progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
				}
				o.ProgressHandler(progress)
			}
			if len(keys) < int(o.PageSize) {
				break
			}
		}
	}()

	return resultChan
}

func (a *Adapter) page(ctx context.Context, o storagemodels.KeyStreamOptions, after string) ([]string, error) {
	pageSize := o.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var lastErr error
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		if attempt > 0 {
			a.logger.Warn("retrying key page", zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.RetryBackoff * time.Duration(attempt)):
			}
		}

		keys, err := a.queryPage(ctx, o.Prefix, after, int(pageSize))
		if err == nil {
			return keys, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to list keys after %d attempts: %w", o.MaxRetries+1, lastErr)
}

func (a *Adapter) queryPage(ctx context.Context, prefix, after string, limit int) ([]string, error) {
	rows, err := a.conn().QueryContext(ctx,
		`SELECT key FROM records WHERE key > ? AND substr(key, 1, ?) = ? ORDER BY key LIMIT ?`,
		after, utf8.RuneCountInString(prefix), prefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]string, 0, limit)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
