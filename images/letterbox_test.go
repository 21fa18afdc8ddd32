package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(width, height int, order ChannelOrder, v ...uint8) PixelBuffer {
	buf := NewPixelBuffer(width, height, order)
	ch := order.Channels()
	for i := 0; i < len(buf.Pix); i += ch {
		copy(buf.Pix[i:i+ch], v)
	}
	return buf
}

func TestRatios(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		side          int
		x, y          float32
	}{
		{"landscape", 640, 480, 640, 1.0, 640.0 / 480.0},
		{"portrait", 300, 600, 600, 2.0, 1.0},
		{"square", 512, 512, 512, 1.0, 1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			side, x, y, err := Ratios(tc.width, tc.height)
			require.NoError(t, err)
			assert.Equal(t, tc.side, side)
			assert.Equal(t, tc.x, x)
			assert.Equal(t, tc.y, y)
			assert.GreaterOrEqual(t, x, float32(1.0), "ratios never shrink")
			assert.GreaterOrEqual(t, y, float32(1.0), "ratios never shrink")
		})
	}

	_, _, _, err := Ratios(0, 10)
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, _, _, err = Ratios(10, 0)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestLetterboxLandscape(t *testing.T) {
	src := filled(640, 480, OrderBGR, 10, 20, 30)

	res, err := Letterbox(src, 320)
	require.NoError(t, err)

	assert.Equal(t, 320, res.Pixels.Width)
	assert.Equal(t, 320, res.Pixels.Height)
	assert.Equal(t, OrderBGR, res.Pixels.Order)
	assert.Len(t, res.Pixels.Pix, 320*320*3)
	assert.Equal(t, float32(1.0), res.XRatio)
	assert.InDelta(t, 1.3333, res.YRatio, 1e-4)

	// Top-left stays image content, bottom rows are padding.
	assert.Equal(t, []uint8{10, 20, 30}, res.Pixels.Pix[0:3], "origin must not shift")
	last := len(res.Pixels.Pix) - 3
	assert.Equal(t, []uint8{0, 0, 0}, res.Pixels.Pix[last:], "bottom-right is padding")
}

func TestLetterboxSquareIdentity(t *testing.T) {
	src := NewPixelBuffer(4, 4, OrderBGR)
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 3)
	}

	res, err := Letterbox(src, 4)
	require.NoError(t, err)

	assert.Equal(t, float32(1.0), res.XRatio)
	assert.Equal(t, float32(1.0), res.YRatio)
	assert.Equal(t, src.Pix, res.Pixels.Pix, "square input at model size needs no padding or resampling")
}

func TestLetterboxPadsBottomRightOnly(t *testing.T) {
	// 4x2 white image padded to 4x4 without resampling.
	src := filled(4, 2, OrderBGR, 255, 255, 255)

	res, err := Letterbox(src, 4)
	require.NoError(t, err)
	assert.Equal(t, float32(1.0), res.XRatio)
	assert.Equal(t, float32(2.0), res.YRatio)

	stride := res.Pixels.Stride()
	for y := 0; y < 4; y++ {
		row := res.Pixels.Pix[y*stride : (y+1)*stride]
		for _, v := range row {
			if y < 2 {
				assert.Equal(t, uint8(255), v, "row %d should be image content", y)
			} else {
				assert.Equal(t, uint8(0), v, "row %d should be padding", y)
			}
		}
	}

	// Portrait: padding goes to the right.
	src = filled(2, 4, OrderBGR, 255, 255, 255)
	res, err = Letterbox(src, 4)
	require.NoError(t, err)
	assert.Equal(t, float32(2.0), res.XRatio)
	assert.Equal(t, float32(1.0), res.YRatio)
	for y := 0; y < 4; y++ {
		row := res.Pixels.Pix[y*stride : (y+1)*stride]
		assert.Equal(t, []uint8{255, 255, 255, 255, 255, 255}, row[:6], "left half is image content")
		assert.Equal(t, []uint8{0, 0, 0, 0, 0, 0}, row[6:], "right half is padding")
	}
}

func TestLetterboxErrors(t *testing.T) {
	_, err := Letterbox(PixelBuffer{Width: 0, Height: 10, Order: OrderBGR}, 320)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Letterbox(NewPixelBuffer(10, 10, OrderRGBA), 320)
	assert.ErrorIs(t, err, ErrUnsupportedInputFormat, "alpha must be removed first")

	_, err = Letterbox(NewPixelBuffer(10, 10, OrderBGR), 0)
	assert.Error(t, err)

	_, err = Letterbox(PixelBuffer{Width: 10, Height: 10, Order: OrderBGR, Pix: make([]uint8, 5)}, 320)
	assert.ErrorIs(t, err, ErrUnsupportedInputFormat, "short buffer")
}
