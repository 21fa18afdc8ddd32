package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-nudenet/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	v, err := cfg.Variant()
	require.NoError(t, err)
	assert.Equal(t, models.ModelName320n, v.Name)
	assert.Equal(t, 320, v.Size)
	assert.Equal(t, 100, cfg.NMS.TopK)
	assert.InDelta(t, 0.45, cfg.NMS.IoUThreshold, 1e-6)
	assert.InDelta(t, 0.25, cfg.NMS.ScoreThreshold, 1e-6)
	assert.InDelta(t, 0.6, cfg.Policy.Threshold, 1e-6)
	assert.Equal(t, 100*18, cfg.MaxRows())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nudenet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  variant: 640m
  base_url: /srv/models
nms:
  top_k: 50
policy:
  threshold: 0.7
server:
  addr: 127.0.0.1:9000
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.ModelName640m, cfg.Model.Variant)
	assert.Equal(t, "/srv/models", cfg.Model.BaseURL)
	assert.Equal(t, 50, cfg.NMS.TopK)
	assert.InDelta(t, 0.45, cfg.NMS.IoUThreshold, 1e-6, "unset keys keep their defaults")
	assert.InDelta(t, 0.7, cfg.Policy.Threshold, 1e-6)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)

	v, err := cfg.Variant()
	require.NoError(t, err)
	assert.Equal(t, 640, v.Size)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nms: [1, 2"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown variant", func(c *Config) { c.Model.Variant = "1280x" }},
		{"negative input size", func(c *Config) { c.Model.InputSize = -1 }},
		{"zero topK", func(c *Config) { c.NMS.TopK = 0 }},
		{"iou above one", func(c *Config) { c.NMS.IoUThreshold = 1.5 }},
		{"negative score", func(c *Config) { c.NMS.ScoreThreshold = -0.1 }},
		{"threshold above one", func(c *Config) { c.Policy.Threshold = 2 }},
		{"unknown preprocess backend", func(c *Config) { c.Preprocess.Backend = "vips" }},
		{"negative cache", func(c *Config) { c.Server.CacheSize = -1 }},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }},
		{"unknown provider", func(c *Config) { c.Runtime.Backend = "tpu" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestVariantInputSizeOverride(t *testing.T) {
	cfg := Default()
	cfg.Model.InputSize = 416
	v, err := cfg.Variant()
	require.NoError(t, err)
	assert.Equal(t, 416, v.Size)
}
