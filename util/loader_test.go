package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-nudenet/images"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644))
	}
}

func TestExpandImagePaths(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.png", "a.JPG", "notes.txt", "c.webp")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o755))

	single := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(single, []byte("x"), 0o644))

	got, err := ExpandImagePaths([]string{single, dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		single,
		filepath.Join(dir, "a.JPG"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "c.webp"),
	}, got)

	_, err = ExpandImagePaths([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestLoadImageFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "frame-2.png", "frame-1.jpeg")

	files, err := LoadImageFiles([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "frame-1.jpeg"), files[0].Path)
	assert.Equal(t, images.FormatJPEG, files[0].Format)
	assert.Equal(t, []byte("frame-1.jpeg"), files[0].Data)
	assert.Equal(t, images.FormatPNG, files[1].Format)
}
