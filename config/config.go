/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Adapter kinds
const (
	AdapterMemory   = "memory"
	AdapterFile     = "file"
	AdapterSQLite   = "sqlite"
	AdapterDynamoDB = "dynamodb"
)

// Config is the runtime configuration of an item store.
type Config struct {
	// Mode "production" skips index integrity checks.
	Mode      string        `yaml:"mode"`
	LogLevel  string        `yaml:"log_level"`
	OnUnsaved string        `yaml:"on_unsaved"`
	Adapter   AdapterConfig `yaml:"adapter"`
	Index     IndexConfig   `yaml:"index"`
	Find      FindConfig    `yaml:"find"`
}

// AdapterConfig selects and configures the storage backend.
type AdapterConfig struct {
	Kind string `yaml:"kind"`
	// DataSource is a directory for file, a DSN or path for sqlite and unused otherwise.
	DataSource string `yaml:"data_source"`
	// CacheSize enables an LRU record cache of that many entries. 0 disables it.
	CacheSize int `yaml:"cache_size"`
	// Watch observes the data directory of the file adapter for foreign changes.
	Watch    bool           `yaml:"watch"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

// DynamoDBConfig holds the connection settings of the dynamodb adapter.
type DynamoDBConfig struct {
	Region    string `yaml:"region"`
	Table     string `yaml:"table"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint"`
}

type IndexConfig struct {
	ProgressStep int `yaml:"progress_step"`
}

type FindConfig struct {
	LoadConcurrency int `yaml:"load_concurrency"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		OnUnsaved: "fail",
		Adapter: AdapterConfig{
			Kind: AdapterMemory,
		},
		Index: IndexConfig{ProgressStep: 100},
		Find:  FindConfig{LoadConcurrency: 8},
	}
}

// Load builds the configuration in order of increasing precedence:
//  1. defaults
//  2. the YAML file at path, if path is not empty
//  3. environment variables (ITEMSTORE_*, AWS_*), after loading envFiles
//     (".env" when none are given; missing files are skipped)
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("ITEMSTORE_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("ITEMSTORE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ITEMSTORE_ON_UNSAVED"); v != "" {
		c.OnUnsaved = v
	}
	if v := os.Getenv("ITEMSTORE_ADAPTER"); v != "" {
		c.Adapter.Kind = v
	}
	if v := os.Getenv("ITEMSTORE_DATA_SOURCE"); v != "" {
		c.Adapter.DataSource = v
	}
	if v := os.Getenv("ITEMSTORE_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ITEMSTORE_CACHE_SIZE: %w", err)
		}
		c.Adapter.CacheSize = n
	}
	if v := os.Getenv("ITEMSTORE_WATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ITEMSTORE_WATCH: %w", err)
		}
		c.Adapter.Watch = b
	}

	// names shared with existing DynamoDB deployments
	if v := os.Getenv("AWS_ACCESS_KEY"); v != "" {
		c.Adapter.DynamoDB.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_KEY"); v != "" {
		c.Adapter.DynamoDB.SecretKey = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Adapter.DynamoDB.Region = v
	}
	if v := os.Getenv("AWS_DDB_TABLE"); v != "" {
		c.Adapter.DynamoDB.Table = v
	}
	if v := os.Getenv("AWS_DDB_ENDPOINT"); v != "" {
		c.Adapter.DynamoDB.Endpoint = v
	}
	return nil
}

// Validate rejects unknown kinds, policies and levels and incomplete adapter settings.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	switch c.OnUnsaved {
	case "", "ignore", "warn", "fail":
	default:
		return fmt.Errorf("on_unsaved must be 'ignore', 'warn', or 'fail', got %s", c.OnUnsaved)
	}

	switch c.Adapter.Kind {
	case AdapterMemory:
	case AdapterFile, AdapterSQLite:
		if c.Adapter.DataSource == "" {
			return fmt.Errorf("adapter.data_source is required for %s", c.Adapter.Kind)
		}
	case AdapterDynamoDB:
		if c.Adapter.DynamoDB.Table == "" || c.Adapter.DynamoDB.Region == "" {
			return fmt.Errorf("adapter.dynamodb.table and adapter.dynamodb.region are required")
		}
	default:
		return fmt.Errorf("adapter.kind must be 'memory', 'file', 'sqlite', or 'dynamodb', got %s", c.Adapter.Kind)
	}

	if c.Adapter.Watch && c.Adapter.Kind != AdapterFile {
		return fmt.Errorf("adapter.watch is only supported by the file adapter")
	}
	if c.Adapter.CacheSize < 0 {
		return fmt.Errorf("adapter.cache_size must be non-negative, got %d", c.Adapter.CacheSize)
	}
	if c.Index.ProgressStep <= 0 {
		return fmt.Errorf("index.progress_step must be positive, got %d", c.Index.ProgressStep)
	}
	if c.Find.LoadConcurrency <= 0 {
		return fmt.Errorf("find.load_concurrency must be positive, got %d", c.Find.LoadConcurrency)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
