/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suparena/itemstore"
	"github.com/suparena/itemstore/config"
	"github.com/suparena/itemstore/logging"
)

// app carries the flags shared by all commands and the storage they open.
type app struct {
	configPath string
	adapter    string
	dataSource string
	logLevel   string

	store *itemstore.Storage
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "itemctl",
		Short: "Inspect and edit item store data sources",
		Long: `itemctl works on the raw records of an item store data source.

The data source is configured like the library: an optional YAML file, .env
and ITEMSTORE_* / AWS_* environment variables. Flags override all of them.`,
		Version:      itemstore.Version,
		SilenceUsage: true,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.store == nil {
				return nil
			}
			err := a.store.Close()
			a.store = nil
			return err
		},
	}
	cmd.SetVersionTemplate("itemctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.adapter, "adapter", "", "Adapter kind (memory, file, sqlite, dynamodb)")
	cmd.PersistentFlags().StringVar(&a.dataSource, "data-source", "", "Data directory or database file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newVersionCmd(),
		newKeysCmd(a),
		newModelsCmd(a),
		newGetCmd(a),
		newPutCmd(a),
		newRemoveCmd(a),
		newPathCmd(a),
		newKeyCmd(a),
	)
	return cmd
}

// open loads the configuration, applies the flags and opens the storage once.
func (a *app) open(cmd *cobra.Command) (*itemstore.Storage, error) {
	if a.store != nil {
		return a.store, nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.adapter != "" {
		cfg.Adapter.Kind = a.adapter
	}
	if a.dataSource != "" {
		cfg.Adapter.DataSource = a.dataSource
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	// the CLI never keeps a watcher running
	cfg.Adapter.Watch = false

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, err := itemstore.Open(cmd.Context(), cfg, itemstore.WithLogger(logger.Named("itemctl")))
	if err != nil {
		return nil, err
	}
	logger.Debug("opened data source", zap.String("adapter", cfg.Adapter.Kind), zap.String("dataSource", cfg.Adapter.DataSource))

	a.store = store
	return store, nil
}
