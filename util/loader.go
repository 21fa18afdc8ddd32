// Package util - Collects image inputs from files and directories.
package util

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-nudenet/images"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Format is the format implied by the extension, empty when unknown.
	Format images.ImageFormat
	// Data is the raw bytes of the image file.
	Data []byte
}

// ExpandImagePaths replaces every directory in paths with the decodable image files directly
// inside it, sorted by name. Plain files are kept as given, whatever their extension.
//
// Arguments:
//   - paths: Files and directories.
//
// Returns:
//   - []string: The image file paths, in argument order.
//   - error: An error if a path does not exist or a directory cannot be read.
func ExpandImagePaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat %s", p)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", p)
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if _, ok := images.FormatFromPath(entry.Name()); ok {
				found = append(found, filepath.Join(p, entry.Name()))
			}
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

// LoadImageFiles reads every image ExpandImagePaths finds.
//
// Arguments:
//   - paths: Files and directories.
//
// Returns:
//   - []ImageFile: The files with their raw bytes.
//   - error: Error if expanding or reading fails.
func LoadImageFiles(paths []string) ([]ImageFile, error) {
	files, err := ExpandImagePaths(paths)
	if err != nil {
		return nil, err
	}

	loaded := make([]ImageFile, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", f)
		}
		format, _ := images.FormatFromPath(f)
		loaded = append(loaded, ImageFile{Path: f, Format: format, Data: data})
	}
	return loaded, nil
}
