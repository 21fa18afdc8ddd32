package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// LetterboxResult is a square, resized buffer plus the ratios that map model-space coordinates
// back through the padding.
type LetterboxResult struct {
	// Pixels is the Size x Size BGR buffer fed to the tensor codec.
	Pixels PixelBuffer
	// XRatio is maxSize / original width.
	XRatio float32
	// YRatio is maxSize / original height.
	YRatio float32
}

// Release drops the letterboxed pixels.
func (r *LetterboxResult) Release() {
	r.Pixels.Release()
}

// Ratios computes the letterbox scale factors for a width x height source.
//
// Arguments:
//   - width: The source width.
//   - height: The source height.
//
// Returns:
//   - int: The padded square side, max(width, height).
//   - float32: maxSize / width.
//   - float32: maxSize / height.
//   - error: ErrEmptyImage if either side is not positive.
func Ratios(width, height int) (int, float32, float32, error) {
	if width <= 0 || height <= 0 {
		return 0, 0, 0, errors.Wrapf(ErrEmptyImage, "%dx%d", width, height)
	}
	maxSize := max(width, height)
	return maxSize, float32(maxSize) / float32(width), float32(maxSize) / float32(height), nil
}

// Letterbox pads a 3-channel buffer on the bottom and right with zero pixels to a square of
// max(width, height) and resizes it to size x size with bilinear interpolation. The top-left
// origin is never shifted, so model-space points map back by the ratios alone.
//
// Arguments:
//   - src: A BGR or RGB buffer.
//   - size: The model input side length.
//
// Returns:
//   - LetterboxResult: The square buffer (same channel order as src) and scale ratios.
//   - error: ErrEmptyImage, ErrUnsupportedInputFormat, or an invalid size.
func Letterbox(src PixelBuffer, size int) (LetterboxResult, error) {
	if src.Empty() {
		return LetterboxResult{}, errors.Wrapf(ErrEmptyImage, "%dx%d", src.Width, src.Height)
	}
	if err := src.Validate(); err != nil {
		return LetterboxResult{}, err
	}
	if src.Channels() != 3 {
		return LetterboxResult{}, errors.Wrapf(
			ErrUnsupportedInputFormat, "letterbox expects 3 channels, got %s", src.Order,
		)
	}
	if size <= 0 {
		return LetterboxResult{}, errors.Errorf("invalid letterbox size %d", size)
	}

	maxSize, xRatio, yRatio, err := Ratios(src.Width, src.Height)
	if err != nil {
		return LetterboxResult{}, err
	}

	padded := pad(src, maxSize)
	resized := resize.Resize(uint(size), uint(size), padded, resize.Bilinear)
	out := fromRGBA(resized, src.Order)

	return LetterboxResult{
		Pixels: out,
		XRatio: xRatio,
		YRatio: yRatio,
	}, nil
}

// pad copies src into the top-left corner of a zeroed square image. Channel bytes are carried
// through the R, G, B slots unchanged.
func pad(src PixelBuffer, side int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	ch := src.Channels()
	for y := 0; y < src.Height; y++ {
		row := src.Pix[y*src.Stride() : (y+1)*src.Stride()]
		off := y * dst.Stride
		for x := 0; x < src.Width; x++ {
			dst.Pix[off+x*4] = row[x*ch]
			dst.Pix[off+x*4+1] = row[x*ch+1]
			dst.Pix[off+x*4+2] = row[x*ch+2]
			dst.Pix[off+x*4+3] = 0xff
		}
	}
	return dst
}

func fromRGBA(img image.Image, order ChannelOrder) PixelBuffer {
	b := img.Bounds()
	out := NewPixelBuffer(b.Dx(), b.Dy(), order)

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				rgba.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}

	for y := 0; y < out.Height; y++ {
		src := rgba.Pix[y*rgba.Stride:]
		dst := out.Pix[y*out.Stride():]
		for x := 0; x < out.Width; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return out
}
