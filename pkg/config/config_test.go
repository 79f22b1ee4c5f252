package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 128, cfg.Index.MaxCentroids)
	assert.Equal(t, 8, cfg.Index.MaxVectors)
	assert.Equal(t, 400, cfg.Index.InsertBeamWidth)
	assert.Equal(t, 128, cfg.Index.QueryBeamWidth)
	assert.InDelta(t, 0.10, cfg.Index.TieTolerance, 1e-9)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("SEDANN_DIM", "64")
	t.Setenv("SEDANN_MAX_CENTROIDS", "13")
	t.Setenv("SEDANN_MAX_VECTORS", "4")
	t.Setenv("SEDANN_TIE_TOLERANCE", "0.25")
	t.Setenv("SEDANN_DATA_DIR", "/tmp/vectors")
	t.Setenv("SEDANN_IN_MEMORY", "true")
	t.Setenv("SEDANN_BENCH_WORKERS", "8")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 64, cfg.Index.Dim)
	assert.Equal(t, 13, cfg.Index.MaxCentroids)
	assert.Equal(t, 4, cfg.Index.MaxVectors)
	assert.InDelta(t, 0.25, cfg.Index.TieTolerance, 1e-9)
	assert.Equal(t, "/tmp/vectors", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 8, cfg.Bench.Workers)
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("SEDANN_MAX_CENTROIDS", "not-a-number")

	cfg := LoadFromEnv()
	assert.Equal(t, 128, cfg.Index.MaxCentroids)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sedann.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  dim: 128
  max_centroids: 13
  max_vectors: 8
  query_beam_width: 64
storage:
  data_dir: ./data
bench:
  page_rows: 512
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 128, cfg.Index.Dim)
	assert.Equal(t, 13, cfg.Index.MaxCentroids)
	assert.Equal(t, 64, cfg.Index.QueryBeamWidth)
	assert.Equal(t, 400, cfg.Index.InsertBeamWidth, "unset fields keep defaults")
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, 512, cfg.Bench.PageRows)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: ["), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "negative dim", mutate: func(c *Config) { c.Index.Dim = -1 }},
		{name: "fan-out below two", mutate: func(c *Config) { c.Index.MaxCentroids = 1 }},
		{name: "cluster capacity below two", mutate: func(c *Config) { c.Index.MaxVectors = 0 }},
		{name: "zero insert beam", mutate: func(c *Config) { c.Index.InsertBeamWidth = 0 }},
		{name: "zero query beam", mutate: func(c *Config) { c.Index.QueryBeamWidth = 0 }},
		{name: "negative tolerance", mutate: func(c *Config) { c.Index.TieTolerance = -0.1 }},
		{name: "zero page rows", mutate: func(c *Config) { c.Bench.PageRows = 0 }},
		{name: "negative workers", mutate: func(c *Config) { c.Bench.Workers = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
