// Package render - Draws decoded detections onto the source image.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/nvr-ai/go-nudenet/images"
	"github.com/nvr-ai/go-nudenet/models/postprocess"
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// FlaggedColor strokes boxes that contributed to an NSFW verdict.
var FlaggedColor = color.RGBA{R: 0xff, A: 0xff}

// Palette strokes every other box, indexed by class.
var Palette = []color.RGBA{
	{0x04, 0x2a, 0xff, 0xff},
	{0x0b, 0xdb, 0xeb, 0xff},
	{0xf3, 0xf3, 0xf3, 0xff},
	{0x00, 0xdf, 0xb7, 0xff},
	{0x11, 0x1f, 0x68, 0xff},
	{0xff, 0x6f, 0xdd, 0xff},
	{0xff, 0x44, 0x4f, 0xff},
	{0xcc, 0xed, 0x00, 0xff},
	{0x00, 0xf3, 0x44, 0xff},
	{0xbd, 0x00, 0xff, 0xff},
	{0x00, 0xb4, 0xff, 0xff},
	{0xdd, 0x00, 0xba, 0xff},
	{0x00, 0xff, 0xff, 0xff},
	{0x26, 0xc0, 0x00, 0xff},
	{0x01, 0xff, 0xb3, 0xff},
	{0x7d, 0x24, 0xff, 0xff},
	{0x7b, 0x00, 0x68, 0xff},
	{0xff, 0x1b, 0x6c, 0xff},
}

// Renderer draws boxes with their label and probability.
type Renderer struct {
	// Threshold marks flagged boxes scoring above it with FlaggedColor.
	Threshold float32
	// LineWidth is the stroke width; zero scales with the image.
	LineWidth float64
	// FontSize is the label size in points; zero scales with the image.
	FontSize float64
}

// New returns a renderer with sizes derived from each image.
func New(threshold float32) *Renderer {
	return &Renderer{Threshold: threshold}
}

// Color returns the stroke color for a box.
func (r *Renderer) Color(b postprocess.Box) color.RGBA {
	if b.Flagged && b.Probability > r.Threshold {
		return FlaggedColor
	}
	if b.Label < 0 {
		return Palette[0]
	}
	return Palette[b.Label%len(Palette)]
}

// Render draws every box onto a copy of img.
//
// Arguments:
//   - img: The source image the detections were computed on.
//   - dets: The decoded detections.
//   - size: The square model input size the boxes are expressed against.
//
// Returns:
//   - image.Image: A new image with the boxes drawn.
func (r *Renderer) Render(img image.Image, dets postprocess.Detections, size int) image.Image {
	dc := gg.NewContextForImage(img)
	width, height := dc.Width(), dc.Height()

	lineWidth := r.LineWidth
	if lineWidth <= 0 {
		lineWidth = max(2, float64(min(width, height))/200)
	}
	fontSize := r.FontSize
	if fontSize <= 0 {
		fontSize = max(10, float64(min(width, height))/40)
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: fontSize}))

	var labels []images.Rect
	for _, b := range dets.Boxes {
		rect := b.Rect(size, width, height)
		if rect.Empty() {
			continue
		}
		c := r.Color(b)

		dc.SetColor(c)
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(float64(rect.X1), float64(rect.Y1), float64(rect.X2-rect.X1), float64(rect.Y2-rect.Y1))
		dc.Stroke()

		text := fmt.Sprintf("%s %.1f%%", b.Name, b.Probability*100)
		tw, th := dc.MeasureString(text)
		ty := float64(rect.Y1) - th - 4
		if ty < 0 || collides(labelRect(rect.X1, ty, tw, th), labels) {
			ty = float64(rect.Y1)
		}
		labels = append(labels, labelRect(rect.X1, ty, tw, th))
		dc.SetColor(color.RGBA{R: c.R, G: c.G, B: c.B, A: 0x80})
		dc.DrawRectangle(float64(rect.X1), ty, tw+4, th+4)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawStringAnchored(text, float64(rect.X1)+2, ty+2, 0, 1)
	}

	return dc.Image()
}

func labelRect(x int, y, w, h float64) images.Rect {
	return images.RectFromXYWH(float32(x), float32(y), float32(w+4), float32(h+4))
}

// collides reports whether r overlaps any label already drawn.
func collides(r images.Rect, drawn []images.Rect) bool {
	for _, d := range drawn {
		if images.CalculateIoU(r, d) > 0 {
			return true
		}
	}
	return false
}

// Save writes img to path; the format follows the extension.
func Save(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}
