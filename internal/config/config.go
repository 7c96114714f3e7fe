package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

type Config struct {
	ListenAddr string         `json:"listen_addr" yaml:"listen_addr"`
	LogLevel   string         `json:"log_level" yaml:"log_level"`
	Storage    StorageConfig  `json:"storage" yaml:"storage"`
	Snapshot   SnapshotConfig `json:"snapshot" yaml:"snapshot"`
	Query      QueryConfig    `json:"query" yaml:"query"`
	Timeout    TimeoutConfig  `json:"timeout" yaml:"timeout"`
}

// StorageConfig selects the document store the entry points read from.
type StorageConfig struct {
	// Type is "memory" or "mongo".
	Type      string `json:"type" yaml:"type"`
	URI       string `json:"uri" yaml:"uri"`
	Database  string `json:"database" yaml:"database"`
	TimeoutMs int    `json:"timeout_ms" yaml:"timeout_ms"`
}

// GetTimeout returns the per-operation store timeout with default fallback.
func (c StorageConfig) GetTimeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// GetDatabase returns the database name with default fallback.
func (c StorageConfig) GetDatabase() string {
	if c.Database == "" {
		return "beacon"
	}
	return c.Database
}

// SnapshotConfig controls seeding the in-memory store from collection dumps.
type SnapshotConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Prefix      string            `json:"prefix" yaml:"prefix"`
	ObjectStore ObjectStoreConfig `json:"object_store" yaml:"object_store"`
}

type ObjectStoreConfig struct {
	Type      string `json:"type" yaml:"type"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Region    string `json:"region" yaml:"region"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
	RootPath  string `json:"root_path" yaml:"root_path"`
}

// QueryConfig bounds pagination and concurrency of the entry points.
type QueryConfig struct {
	// DefaultLimit is the page size when a request names none. Default: 10
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`
	// MaxLimit is the largest accepted page size. Default: 1000
	MaxLimit int `json:"max_limit" yaml:"max_limit"`
	// ConcurrencyLimit is the number of concurrent queries per collection. Default: 16
	ConcurrencyLimit int `json:"concurrency_limit" yaml:"concurrency_limit"`
}

func (c QueryConfig) GetDefaultLimit() int {
	if c.DefaultLimit <= 0 {
		return 10
	}
	return c.DefaultLimit
}

func (c QueryConfig) GetMaxLimit() int {
	if c.MaxLimit <= 0 {
		return 1000
	}
	return c.MaxLimit
}

func (c QueryConfig) GetConcurrencyLimit() int {
	if c.ConcurrencyLimit <= 0 {
		return 16
	}
	return c.ConcurrencyLimit
}

// TimeoutConfig holds per-request timeout configuration.
type TimeoutConfig struct {
	// QueryTimeoutMs is the maximum time allowed for one entry point in milliseconds.
	// Default: 30000 (30 seconds)
	QueryTimeoutMs int `json:"query_timeout_ms" yaml:"query_timeout_ms"`
}

// GetQueryTimeout returns the query timeout with default fallback.
func (c TimeoutConfig) GetQueryTimeout() time.Duration {
	if c.QueryTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.QueryTimeoutMs) * time.Millisecond
}

func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Storage: StorageConfig{
			Type:     StorageMemory,
			URI:      "mongodb://localhost:27017",
			Database: "beacon",
		},
		Snapshot: SnapshotConfig{
			Prefix: "snapshots/",
			ObjectStore: ObjectStoreConfig{
				Type:   "fs",
				Region: "us-east-1",
			},
		},
	}
}

// Load returns the defaults overlaid with the file at path (or BEACON_CONFIG)
// and then with BEACON_* environment variables. Files ending in .yaml or
// .yml are read as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BEACON_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StorageMongo:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Storage.Type == StorageMongo && c.Storage.URI == "" {
		return fmt.Errorf("storage.uri is required for mongo storage")
	}
	if c.Query.MaxLimit > 0 && c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("query.default_limit %d exceeds query.max_limit %d", c.Query.DefaultLimit, c.Query.MaxLimit)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if env := os.Getenv("BEACON_LISTEN_ADDR"); env != "" {
		cfg.ListenAddr = env
	}
	if env := os.Getenv("BEACON_LOG_LEVEL"); env != "" {
		cfg.LogLevel = env
	}

	if env := os.Getenv("BEACON_STORAGE_TYPE"); env != "" {
		cfg.Storage.Type = env
	}
	if env := os.Getenv("BEACON_STORAGE_URI"); env != "" {
		cfg.Storage.URI = env
	}
	if env := os.Getenv("BEACON_STORAGE_DATABASE"); env != "" {
		cfg.Storage.Database = env
	}
	if env := os.Getenv("BEACON_STORAGE_TIMEOUT_MS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Storage.TimeoutMs = n
		}
	}

	if env := os.Getenv("BEACON_SNAPSHOT_ENABLED"); env != "" {
		cfg.Snapshot.Enabled = parseBoolEnv(env)
	}
	if env := os.Getenv("BEACON_SNAPSHOT_PREFIX"); env != "" {
		cfg.Snapshot.Prefix = env
	}
	if env := os.Getenv("BEACON_OBJECT_STORE_TYPE"); env != "" {
		cfg.Snapshot.ObjectStore.Type = env
	}
	if env := os.Getenv("BEACON_OBJECT_STORE_ENDPOINT"); env != "" {
		cfg.Snapshot.ObjectStore.Endpoint = env
	}
	if env := os.Getenv("BEACON_OBJECT_STORE_BUCKET"); env != "" {
		cfg.Snapshot.ObjectStore.Bucket = env
	}
	if env := os.Getenv("BEACON_OBJECT_STORE_ROOT"); env != "" {
		cfg.Snapshot.ObjectStore.RootPath = env
	}
	if env := os.Getenv("BEACON_OBJECT_STORE_ACCESS_KEY"); env != "" {
		cfg.Snapshot.ObjectStore.AccessKey = env
	}
	if env := os.Getenv("BEACON_OBJECT_STORE_SECRET_KEY"); env != "" {
		cfg.Snapshot.ObjectStore.SecretKey = env
	}
	if env := os.Getenv("BEACON_OBJECT_STORE_REGION"); env != "" {
		cfg.Snapshot.ObjectStore.Region = env
	}
	if env := os.Getenv("BEACON_OBJECT_STORE_USE_SSL"); env != "" {
		cfg.Snapshot.ObjectStore.UseSSL = parseBoolEnv(env)
	}

	if env := os.Getenv("BEACON_QUERY_DEFAULT_LIMIT"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Query.DefaultLimit = n
		}
	}
	if env := os.Getenv("BEACON_QUERY_MAX_LIMIT"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Query.MaxLimit = n
		}
	}
	if env := os.Getenv("BEACON_QUERY_CONCURRENCY_LIMIT"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Query.ConcurrencyLimit = n
		}
	}

	if env := os.Getenv("BEACON_TIMEOUT_QUERY_MS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Timeout.QueryTimeoutMs = n
		}
	}
}

func parseIntEnv(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseBoolEnv(s string) bool {
	return s == "true" || s == "1"
}
