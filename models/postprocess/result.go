// Package postprocess - Decodes NMS output rows into labelled boxes and a verdict.
package postprocess

import "github.com/nvr-ai/go-nudenet/images"

// Box is a single decoded detection.
type Box struct {
	// Label is the argmax class index.
	Label int `json:"label"`
	// Name is the class name for Label.
	Name string `json:"name"`
	// Probability is the winning class score.
	Probability float32 `json:"probability"`
	// Bounding is [x, y, w, h] with the top-left corner scaled by the letterbox ratios.
	Bounding [4]float32 `json:"bounding"`
	// Flagged reports whether Label is policy-flagged.
	Flagged bool `json:"flagged"`
}

// ImageSpace maps Bounding onto the source image's pixel grid.
//
// Bounding is expressed over a size x size canvas with the source stretched onto it; this
// rescales each axis by the source dimension.
//
// Arguments:
//   - size: The square model input size.
//   - width: The source image width.
//   - height: The source image height.
//
// Returns:
//   - [4]float32: [x, y, w, h] in source pixels.
func (b Box) ImageSpace(size, width, height int) [4]float32 {
	if size <= 0 {
		return b.Bounding
	}
	sx := float32(width) / float32(size)
	sy := float32(height) / float32(size)
	return [4]float32{b.Bounding[0] * sx, b.Bounding[1] * sy, b.Bounding[2] * sx, b.Bounding[3] * sy}
}

// Rect rounds the source-space box to whole pixels, clamped to the image.
func (b Box) Rect(size, width, height int) images.Rect {
	s := b.ImageSpace(size, width, height)
	return images.RectFromXYWH(s[0], s[1], s[2], s[3]).Clamp(width, height)
}

// Detections is the decoder output.
type Detections struct {
	// Boxes keeps NMS row order.
	Boxes []Box `json:"boxes"`
	// NSFW is true when at least one flagged box scored above the threshold.
	NSFW bool `json:"nsfw"`
}

// Flagged returns the boxes that contributed to the verdict.
func (d Detections) Flagged(threshold float32) []Box {
	var out []Box
	for _, b := range d.Boxes {
		if b.Flagged && b.Probability > threshold {
			out = append(out, b)
		}
	}
	return out
}
