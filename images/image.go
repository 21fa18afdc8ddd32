// Package images - Pixel buffers and preprocessing for detector input.
package images

import (
	"image"
	"image/draw"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedInputFormat is returned when a buffer has a channel layout a stage cannot
	// consume.
	ErrUnsupportedInputFormat = errors.New("unsupported input format")
	// ErrEmptyImage is returned for zero-width or zero-height images.
	ErrEmptyImage = errors.New("empty or degenerate image")
)

// ChannelOrder is the interleaved channel layout of a PixelBuffer.
type ChannelOrder string

const (
	// OrderRGBA is 4-channel red, green, blue, alpha.
	OrderRGBA ChannelOrder = "rgba"
	// OrderRGB is 3-channel red, green, blue.
	OrderRGB ChannelOrder = "rgb"
	// OrderBGR is 3-channel blue, green, red (OpenCV convention).
	OrderBGR ChannelOrder = "bgr"
)

// Channels returns the number of interleaved channels for the order, or 0 if unknown.
func (o ChannelOrder) Channels() int {
	switch o {
	case OrderRGBA:
		return 4
	case OrderRGB, OrderBGR:
		return 3
	default:
		return 0
	}
}

// PixelBuffer is an interleaved 8-bit image. A buffer is owned by the stage that produced it.
type PixelBuffer struct {
	// The width of the buffer in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the buffer in pixels.
	Height int `json:"height" yaml:"height"`
	// The channel layout of Pix.
	Order ChannelOrder `json:"order" yaml:"order"`
	// Pix holds Height rows of Width*Channels bytes.
	Pix []uint8 `json:"-" yaml:"-"`
}

// NewPixelBuffer allocates a zeroed buffer.
//
// Arguments:
//   - width: The width in pixels.
//   - height: The height in pixels.
//   - order: The channel layout.
//
// Returns:
//   - PixelBuffer: The zero-filled buffer.
func NewPixelBuffer(width, height int, order ChannelOrder) PixelBuffer {
	return PixelBuffer{
		Width:  width,
		Height: height,
		Order:  order,
		Pix:    make([]uint8, width*height*order.Channels()),
	}
}

// Channels returns the channel count of the buffer.
func (b PixelBuffer) Channels() int {
	return b.Order.Channels()
}

// Stride returns the number of bytes in one row.
func (b PixelBuffer) Stride() int {
	return b.Width * b.Channels()
}

// Empty reports whether the buffer has no pixels.
func (b PixelBuffer) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Validate checks that the buffer is non-empty, has a known layout and a backing slice of the
// expected length.
//
// Returns:
//   - error: ErrEmptyImage, ErrUnsupportedInputFormat, or nil.
func (b PixelBuffer) Validate() error {
	if b.Empty() {
		return errors.Wrapf(ErrEmptyImage, "%dx%d", b.Width, b.Height)
	}
	if b.Channels() == 0 {
		return errors.Wrapf(ErrUnsupportedInputFormat, "channel order %q", b.Order)
	}
	if len(b.Pix) != b.Width*b.Height*b.Channels() {
		return errors.Wrapf(
			ErrUnsupportedInputFormat,
			"buffer holds %d bytes, %dx%d %s needs %d",
			len(b.Pix), b.Width, b.Height, b.Order, b.Width*b.Height*b.Channels(),
		)
	}
	return nil
}

// Release drops the backing pixels so the buffer cannot be reused by a later stage.
func (b *PixelBuffer) Release() {
	b.Pix = nil
}

// FromImage copies any image.Image into a 4-channel RGBA buffer.
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - PixelBuffer: An RGBA buffer with the image's dimensions.
func FromImage(img image.Image) PixelBuffer {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return PixelBuffer{Width: bounds.Dx(), Height: bounds.Dy(), Order: OrderRGBA}
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	pix := make([]uint8, 4*bounds.Dx()*bounds.Dy())
	copy(pix, rgba.Pix)

	return PixelBuffer{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Order:  OrderRGBA,
		Pix:    pix,
	}
}

// ToImage wraps a 3- or 4-channel buffer as an *image.RGBA, writing channels in buffer order
// into the R, G and B slots with opaque alpha.
func (b PixelBuffer) ToImage() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	ch := b.Channels()
	if ch == 0 {
		return out
	}
	for i, j := 0, 0; i+ch <= len(b.Pix) && j+4 <= len(out.Pix); i, j = i+ch, j+4 {
		out.Pix[j] = b.Pix[i]
		out.Pix[j+1] = b.Pix[i+1]
		out.Pix[j+2] = b.Pix[i+2]
		out.Pix[j+3] = 0xff
	}
	return out
}
