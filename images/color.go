package images

import "github.com/pkg/errors"

// ToBGR converts an RGBA or RGB buffer to a new 3-channel BGR buffer, dropping alpha.
// The source is left untouched; the caller releases it.
//
// Arguments:
//   - src: An RGBA or RGB buffer.
//
// Returns:
//   - PixelBuffer: A BGR buffer of the same size.
//   - error: ErrUnsupportedInputFormat for any other layout, ErrEmptyImage for an empty source.
func ToBGR(src PixelBuffer) (PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return PixelBuffer{}, err
	}

	var step int
	switch src.Order {
	case OrderRGBA:
		step = 4
	case OrderRGB:
		step = 3
	default:
		return PixelBuffer{}, errors.Wrapf(
			ErrUnsupportedInputFormat, "cannot convert %s (%d channels) to bgr", src.Order, src.Channels(),
		)
	}

	dst := NewPixelBuffer(src.Width, src.Height, OrderBGR)
	for i, j := 0, 0; i < len(src.Pix); i, j = i+step, j+3 {
		dst.Pix[j] = src.Pix[i+2]
		dst.Pix[j+1] = src.Pix[i+1]
		dst.Pix[j+2] = src.Pix[i]
	}

	return dst, nil
}
