package render

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-nudenet/images"
	"github.com/nvr-ai/go-nudenet/models/postprocess"
)

func gray(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0x40, 0x40, 0x40, 0xff
	}
	return img
}

func TestColor(t *testing.T) {
	r := New(0.6)
	assert.Equal(t, FlaggedColor, r.Color(postprocess.Box{Label: 3, Flagged: true, Probability: 0.9}))
	assert.Equal(t, Palette[3], r.Color(postprocess.Box{Label: 3, Flagged: true, Probability: 0.6}))
	assert.Equal(t, Palette[1], r.Color(postprocess.Box{Label: 1, Probability: 0.99}))
	assert.Equal(t, Palette[1], r.Color(postprocess.Box{Label: 19}))
}

func TestRender(t *testing.T) {
	src := gray(640, 480)
	dets := postprocess.Detections{
		NSFW: true,
		Boxes: []postprocess.Box{{
			Label:       3,
			Name:        "FEMALE_BREAST_EXPOSED",
			Probability: 0.9,
			Flagged:     true,
			// [280, 280, 80, 80] in source pixels at size 320.
			Bounding: [4]float32{140, 186.66667, 40, 53.33333},
		}},
	}

	out := New(0.6).Render(src, dets, 320)
	require.Equal(t, src.Bounds(), out.Bounds())

	// Left edge of the box, away from the label.
	r, g, b, _ := out.At(280, 340).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Less(t, g, uint32(0x4000))
	assert.Less(t, b, uint32(0x4000))

	// Inside the box is untouched.
	assert.Equal(t, color.RGBA{0x40, 0x40, 0x40, 0xff}, color.RGBAModel.Convert(out.At(320, 330)))
	// The source is not modified.
	assert.Equal(t, color.RGBA{0x40, 0x40, 0x40, 0xff}, src.RGBAAt(280, 340))
}

func TestRenderSkipsEmptyBoxes(t *testing.T) {
	src := gray(32, 32)
	dets := postprocess.Detections{Boxes: []postprocess.Box{{Bounding: [4]float32{-50, -50, 10, 10}}}}
	out := New(0.6).Render(src, dets, 32)
	assert.Equal(t, color.RGBA{0x40, 0x40, 0x40, 0xff}, color.RGBAModel.Convert(out.At(0, 0)))
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, Save(path, gray(8, 4)))

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	assert.Error(t, Save(filepath.Join(t.TempDir(), "out.unknown"), gray(2, 2)))
}

func TestCollides(t *testing.T) {
	drawn := []images.Rect{labelRect(10, 10, 50, 12)}
	assert.True(t, collides(labelRect(30, 12, 50, 12), drawn))
	assert.False(t, collides(labelRect(10, 40, 50, 12), drawn))
	assert.False(t, collides(labelRect(10, 10, 50, 12), nil))
}
