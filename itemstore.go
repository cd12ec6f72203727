/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package itemstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/suparena/itemstore/config"
	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/datastore/cache"
	"github.com/suparena/itemstore/datastore/ddb"
	"github.com/suparena/itemstore/datastore/file"
	"github.com/suparena/itemstore/datastore/mock"
	"github.com/suparena/itemstore/datastore/sqlite"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/logging"
	"github.com/suparena/itemstore/model"
	"github.com/suparena/itemstore/schema"
)

// Storage owns an adapter and the models defined on it. It is safe for
// concurrent use.
type Storage struct {
	cfg     *config.Config
	logger  *zap.Logger
	adapter datastore.Adapter
	closers []func() error

	mu     sync.RWMutex
	models map[string]*model.Model
	closed bool

	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// Option configures a Storage
type Option func(*Storage)

// WithLogger sets the logger of the storage and everything it opens
func WithLogger(logger *zap.Logger) Option {
	return func(s *Storage) {
		s.logger = logger
	}
}

// WithAdapter makes the storage use adapter instead of building one from the
// configuration. The storage does not close it.
func WithAdapter(adapter datastore.Adapter) Option {
	return func(s *Storage) {
		s.adapter = adapter
	}
}

// Open validates cfg and builds the configured adapter. A nil cfg selects
// config.Default().
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Storage, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Storage{
		cfg:    cfg,
		models: make(map[string]*model.Model),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		logger, err := logging.New(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		s.logger = logger
	}

	if s.adapter == nil {
		adapter, err := s.openAdapter(ctx)
		if err != nil {
			return nil, err
		}
		s.adapter = adapter
	}

	if cfg.Adapter.CacheSize > 0 {
		c := cache.New(s.adapter, cfg.Adapter.CacheSize)
		s.closers = append(s.closers, func() error {
			c.Close()
			return nil
		})
		s.adapter = c
	}

	s.logger.Info("storage opened",
		zap.String("adapter", cfg.Adapter.Kind),
		zap.Int("cacheSize", cfg.Adapter.CacheSize),
		zap.String("mode", cfg.Mode))
	return s, nil
}

func (s *Storage) openAdapter(ctx context.Context) (datastore.Adapter, error) {
	ac := s.cfg.Adapter
	switch ac.Kind {
	case config.AdapterMemory:
		return mock.New(), nil

	case config.AdapterFile:
		fa, err := file.New(ac.DataSource, file.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		if ac.Watch {
			s.watch(fa)
		}
		return fa, nil

	case config.AdapterSQLite:
		sa, err := sqlite.New(ac.DataSource, sqlite.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, sa.Close)
		return sa, nil

	case config.AdapterDynamoDB:
		client, err := ddb.NewClient(ctx, ddb.ClientConfig{
			Region:    ac.DynamoDB.Region,
			AccessKey: ac.DynamoDB.AccessKey,
			SecretKey: ac.DynamoDB.SecretKey,
			Endpoint:  ac.DynamoDB.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return ddb.New(client, ac.DynamoDB.Table, ddb.WithLogger(s.logger))
	}
	return nil, fmt.Errorf("unsupported adapter kind %q", ac.Kind)
}

// watch runs the folder watcher of fa until the storage is closed.
func (s *Storage) watch(fa *file.Adapter) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	s.watchDone = make(chan struct{})

	go func() {
		defer close(s.watchDone)
		if err := fa.Watch(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
			s.logger.Error("file watcher stopped", zap.String("root", fa.Root()), zap.Error(err))
		}
	}()
}

// Config returns the configuration the storage was opened with.
func (s *Storage) Config() *config.Config {
	return s.cfg
}

// Adapter returns the adapter shared by all models, including the cache layer
// when one is configured.
func (s *Storage) Adapter() datastore.Adapter {
	return s.adapter
}

// Define compiles def into a model on the storage adapter. Options from the
// configuration are applied before opts.
func (s *Storage) Define(def schema.Definition, opts ...model.Option) (*model.Model, error) {
	onUnsaved, err := model.ParseOnUnsaved(s.cfg.OnUnsaved)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, stderrors.New("storage is closed")
	}
	if _, exists := s.models[def.Name]; exists {
		return nil, errors.NewAlreadyExistsError("model", def.Name)
	}

	base := []model.Option{
		model.WithLogger(s.logger),
		model.WithMode(s.cfg.Mode),
		model.WithOnUnsaved(onUnsaved),
		model.WithProgressStep(s.cfg.Index.ProgressStep),
		model.WithLoadConcurrency(s.cfg.Find.LoadConcurrency),
	}
	m, err := model.New(def, s.adapter, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	s.models[m.Name()] = m
	return m, nil
}

// Model returns the model defined under name.
func (s *Storage) Model(name string) (*model.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.models[name]
	if !exists {
		return nil, errors.NewNotFoundError("model", name)
	}
	return m, nil
}

// Models returns the names of all defined models in lexical order.
func (s *Storage) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Undefine closes the model defined under name and forgets it. Stored items are
// kept.
func (s *Storage) Undefine(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.models[name]
	if !exists {
		return errors.NewNotFoundError("model", name)
	}
	m.Close()
	delete(s.models, name)
	return nil
}

// Close closes all models, stops the watcher and releases the adapter.
func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, m := range s.models {
		m.Close()
	}
	s.mu.Unlock()

	if s.stopWatch != nil {
		s.stopWatch()
		<-s.watchDone
	}

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = s.logger.Sync()
	return stderrors.Join(errs...)
}
