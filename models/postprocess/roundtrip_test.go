package postprocess

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-nudenet/images"
)

// contentExtent measures how far the source content reaches into the letterboxed square along
// its first row and first column.
func contentExtent(buf images.PixelBuffer) (int, int) {
	ch := buf.Channels()
	w, h := 0, 0
	for x := 0; x < buf.Width; x++ {
		if buf.Pix[x*ch] >= 100 {
			w = x + 1
		}
	}
	for y := 0; y < buf.Height; y++ {
		if buf.Pix[y*buf.Stride()] >= 100 {
			h = y + 1
		}
	}
	return w, h
}

func TestCenteredDetectionMapsToImageCenter(t *testing.T) {
	const size = 320
	tests := []struct {
		name          string
		width, height int
	}{
		{"landscape", 640, 480},
		{"wide landscape", 1000, 250},
		{"portrait", 300, 500},
		{"tall portrait", 90, 720},
		{"square", 400, 400},
		{"square at model size", 320, 320},
	}

	dec := NewDecoder(DefaultThreshold, 0)
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s_%dx%d", tc.name, tc.width, tc.height), func(t *testing.T) {
			src := images.NewPixelBuffer(tc.width, tc.height, images.OrderBGR)
			for i := range src.Pix {
				src.Pix[i] = 200
			}
			lb, err := images.Letterbox(src, size)
			require.NoError(t, err)
			defer lb.Release()

			// Center of the source content inside the padded square, in model pixels.
			cx := float32(size) / (2 * lb.XRatio)
			cy := float32(size) / (2 * lb.YRatio)

			extW, extH := contentExtent(lb.Pixels)
			assert.InDelta(t, float64(extW)/2, float64(cx), 1, "content spans the letterboxed width")
			assert.InDelta(t, float64(extH)/2, float64(cy), 1, "content spans the letterboxed height")

			data, dims := rows(row(cx, cy, 10, 10, 0, 0.9))
			got, err := dec.Decode(data, dims, lb.XRatio, lb.YRatio)
			require.NoError(t, err)
			require.Len(t, got.Boxes, 1)

			b := got.Boxes[0].ImageSpace(size, tc.width, tc.height)
			assert.InDelta(t, float64(tc.width)/2, float64(b[0]+b[2]/2), 1e-2, "horizontal center")
			assert.InDelta(t, float64(tc.height)/2, float64(b[1]+b[3]/2), 1e-2, "vertical center")
		})
	}
}
