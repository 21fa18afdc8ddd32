package images

import (
	"bytes"
	"image"
	_ "image/gif"  // register gif
	_ "image/jpeg" // register jpeg
	_ "image/png"  // register png
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register bmp
	_ "golang.org/x/image/tiff" // register tiff
	_ "golang.org/x/image/webp" // register webp
)

// Decode reads an encoded image, applies its EXIF orientation, and reports the detected format.
//
// Arguments:
//   - r: The encoded image stream.
//
// Returns:
//   - image.Image: The decoded, upright image.
//   - ImageFormat: The format name reported by the registered decoder.
//   - error: ErrUnsupportedInputFormat wrapping the decoder error, or ErrEmptyImage.
func Decode(r io.Reader) (image.Image, ImageFormat, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read image")
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, ImageFormat, error) {
	if len(data) == 0 {
		return nil, "", errors.Wrap(ErrEmptyImage, "no image data")
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrapf(ErrUnsupportedInputFormat, "failed to decode image header: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ImageFormat(name), errors.Wrapf(ErrEmptyImage, "%dx%d", cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ImageFormat(name), errors.Wrapf(ErrUnsupportedInputFormat, "failed to decode %s: %v", name, err)
	}

	return img, ImageFormat(name), nil
}

// Open decodes the image at path.
func Open(path string) (image.Image, ImageFormat, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open %s", path)
	}
	format, _ := FormatFromPath(path)
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, errors.Wrapf(ErrEmptyImage, "%s is %dx%d", path, b.Dx(), b.Dy())
	}
	return img, format, nil
}
