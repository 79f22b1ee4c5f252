// Package config handles sedann configuration via environment variables
// and YAML files.
//
// Configuration is loaded with Default(), layered with LoadFromEnv()
// (SEDANN_-prefixed variables) or LoadFile() (YAML), and checked with
// Validate() before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables:
//   - SEDANN_DIM=128
//   - SEDANN_MAX_CENTROIDS=128
//   - SEDANN_MAX_VECTORS=8
//   - SEDANN_INSERT_BEAM_WIDTH=400
//   - SEDANN_QUERY_BEAM_WIDTH=128
//   - SEDANN_TIE_TOLERANCE=0.10
//   - SEDANN_DATA_DIR=./data
//   - SEDANN_IN_MEMORY=true
//   - SEDANN_SYNC_WRITES=false
//   - SEDANN_BENCH_PAGE_ROWS=1024
//   - SEDANN_BENCH_WORKERS=0   (0 = one per CPU)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all sedann configuration.
type Config struct {
	// Index settings for the lineage tree.
	Index IndexConfig `yaml:"index"`

	// Storage settings for the vector store.
	Storage StorageConfig `yaml:"storage"`

	// Bench settings for the page-processing benchmark.
	Bench BenchConfig `yaml:"bench"`
}

// IndexConfig mirrors the lineage tree construction parameters.
type IndexConfig struct {
	// Dim is the vector dimension. The CLI takes the dimension from the
	// dataset file and does not read this field; Validate only rejects
	// negative values.
	Dim int `yaml:"dim"`
	// MaxCentroids is the node fan-out C.
	MaxCentroids int `yaml:"max_centroids"`
	// MaxVectors is the cluster capacity M.
	MaxVectors int `yaml:"max_vectors"`
	// InsertBeamWidth bounds the frontier during insert targeting.
	InsertBeamWidth int `yaml:"insert_beam_width"`
	// QueryBeamWidth bounds the frontier during search.
	QueryBeamWidth int `yaml:"query_beam_width"`
	// TieTolerance is the widening fraction for the DFS traversal.
	TieTolerance float64 `yaml:"tie_tolerance"`
}

// StorageConfig holds vector store settings.
type StorageConfig struct {
	// DataDir is the directory for the Badger vector log. Empty, with
	// InMemory unset, means a pure in-memory arena without a log.
	DataDir string `yaml:"data_dir"`
	// InMemory runs the Badger log in memory-only mode.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites forces fsync after each logged row.
	SyncWrites bool `yaml:"sync_writes"`
}

// BenchConfig holds page-processing benchmark settings.
type BenchConfig struct {
	// PageRows is the number of rows per work page.
	PageRows int `yaml:"page_rows"`
	// Workers is the worker count; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			MaxCentroids:    128,
			MaxVectors:      8,
			InsertBeamWidth: 400,
			QueryBeamWidth:  128,
			TieTolerance:    0.10,
		},
		Storage: StorageConfig{},
		Bench: BenchConfig{
			PageRows: 1024,
		},
	}
}

// LoadFromEnv builds a configuration from defaults overridden by
// SEDANN_* environment variables.
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Index.Dim = getEnvInt("SEDANN_DIM", cfg.Index.Dim)
	cfg.Index.MaxCentroids = getEnvInt("SEDANN_MAX_CENTROIDS", cfg.Index.MaxCentroids)
	cfg.Index.MaxVectors = getEnvInt("SEDANN_MAX_VECTORS", cfg.Index.MaxVectors)
	cfg.Index.InsertBeamWidth = getEnvInt("SEDANN_INSERT_BEAM_WIDTH", cfg.Index.InsertBeamWidth)
	cfg.Index.QueryBeamWidth = getEnvInt("SEDANN_QUERY_BEAM_WIDTH", cfg.Index.QueryBeamWidth)
	cfg.Index.TieTolerance = getEnvFloat("SEDANN_TIE_TOLERANCE", cfg.Index.TieTolerance)

	cfg.Storage.DataDir = getEnv("SEDANN_DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.InMemory = getEnvBool("SEDANN_IN_MEMORY", cfg.Storage.InMemory)
	cfg.Storage.SyncWrites = getEnvBool("SEDANN_SYNC_WRITES", cfg.Storage.SyncWrites)

	cfg.Bench.PageRows = getEnvInt("SEDANN_BENCH_PAGE_ROWS", cfg.Bench.PageRows)
	cfg.Bench.Workers = getEnvInt("SEDANN_BENCH_WORKERS", cfg.Bench.Workers)

	return cfg
}

// LoadFile reads a YAML configuration file over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against the index constructor
// preconditions.
func (c *Config) Validate() error {
	if c.Index.Dim < 0 {
		return fmt.Errorf("index.dim must not be negative, got %d", c.Index.Dim)
	}
	if c.Index.MaxCentroids < 2 {
		return fmt.Errorf("index.max_centroids must be >= 2, got %d", c.Index.MaxCentroids)
	}
	if c.Index.MaxVectors < 2 {
		return fmt.Errorf("index.max_vectors must be >= 2, got %d", c.Index.MaxVectors)
	}
	if c.Index.InsertBeamWidth < 1 {
		return fmt.Errorf("index.insert_beam_width must be >= 1, got %d", c.Index.InsertBeamWidth)
	}
	if c.Index.QueryBeamWidth < 1 {
		return fmt.Errorf("index.query_beam_width must be >= 1, got %d", c.Index.QueryBeamWidth)
	}
	if c.Index.TieTolerance < 0 {
		return fmt.Errorf("index.tie_tolerance must be >= 0, got %f", c.Index.TieTolerance)
	}
	if c.Bench.PageRows < 1 {
		return fmt.Errorf("bench.page_rows must be >= 1, got %d", c.Bench.PageRows)
	}
	if c.Bench.Workers < 0 {
		return fmt.Errorf("bench.workers must not be negative, got %d", c.Bench.Workers)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
