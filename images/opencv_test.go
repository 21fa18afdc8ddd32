//go:build gocv

package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessOpenCVMatchesGo(t *testing.T) {
	src := filled(64, 32, OrderRGBA, 30, 20, 10, 255)

	cv, err := PreprocessOpenCV(src, 32)
	require.NoError(t, err)
	goRes, err := Preprocess(src, 32)
	require.NoError(t, err)

	assert.Equal(t, goRes.XRatio, cv.XRatio)
	assert.Equal(t, goRes.YRatio, cv.YRatio)
	assert.Equal(t, OrderBGR, cv.Pixels.Order)
	assert.Len(t, cv.Pixels.Pix, 32*32*3)
	assert.Equal(t, []uint8{10, 20, 30}, cv.Pixels.Pix[:3], "top-left is converted content")
	assert.Equal(t, []uint8{0, 0, 0}, cv.Pixels.Pix[len(cv.Pixels.Pix)-3:], "bottom-right is padding")

	p, err := PreprocessorFor(BackendOpenCV)
	require.NoError(t, err, "gocv builds register the opencv backend")
	require.NotNil(t, p)
}

func TestPreprocessOpenCVRejects(t *testing.T) {
	_, err := PreprocessOpenCV(PixelBuffer{Width: 0, Height: 4, Order: OrderRGBA}, 32)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = PreprocessOpenCV(NewPixelBuffer(4, 4, OrderBGR), 32)
	assert.ErrorIs(t, err, ErrUnsupportedInputFormat)
}
