package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-nudenet/models"
)

func TestFetchCommand(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "640m.onnx"), []byte("detector"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, models.NMSFile), []byte("nms"), 0o644))
	dst := filepath.Join(t.TempDir(), "out")

	err := newApp().Run([]string{"nudenet", "--log-level", "error", "--models", src, "--variant", "640m", "fetch", "--dir", dst})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dst, "640m.onnx"))
	require.NoError(t, err)
	assert.Equal(t, []byte("detector"), data)
	data, err = os.ReadFile(filepath.Join(dst, models.NMSFile))
	require.NoError(t, err)
	assert.Equal(t, []byte("nms"), data)
}

func TestFetchCommandMissingArtifact(t *testing.T) {
	err := newApp().Run([]string{"nudenet", "--log-level", "error", "--models", t.TempDir(), "fetch", "--dir", t.TempDir()})
	assert.Error(t, err)
}

func TestDetectRequiresFiles(t *testing.T) {
	err := newApp().Run([]string{"nudenet", "detect"})
	assert.EqualError(t, err, "at least one image file is required")
}

func TestBenchRequiresFiles(t *testing.T) {
	err := newApp().Run([]string{"nudenet", "bench"})
	assert.EqualError(t, err, "at least one image file is required")
}

func TestDetectMissingPath(t *testing.T) {
	err := newApp().Run([]string{"nudenet", "detect", filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestUnknownVariant(t *testing.T) {
	err := newApp().Run([]string{"nudenet", "--variant", "1280x", "fetch", "--dir", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model name")
}

func TestInvalidConfigFile(t *testing.T) {
	err := newApp().Run([]string{"nudenet", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "fetch", "--dir", t.TempDir()})
	assert.Error(t, err)
}

func TestVariantList(t *testing.T) {
	assert.Equal(t, "320n, 640m", variantList())
}
