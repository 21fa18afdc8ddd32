package postprocess

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-nudenet/models"
)

// DefaultThreshold is the score a flagged box must exceed to make the verdict true.
const DefaultThreshold float32 = 0.6

// Decoder turns [1, M, 4+C] NMS rows into boxes and a verdict.
type Decoder struct {
	// Labels maps class indexes to names and policy flags.
	Labels models.LabelSet
	// Threshold is the strict lower bound on a flagged score.
	Threshold float32
	// MaxRows caps how many rows are decoded. Zero means no cap.
	MaxRows int
}

// NewDecoder returns a decoder over the default label set.
func NewDecoder(threshold float32, maxRows int) *Decoder {
	return &Decoder{Labels: models.DefaultLabels(), Threshold: threshold, MaxRows: maxRows}
}

// Decode converts the selected rows into boxes.
//
// Arguments:
//   - data: Row-major [1, M, 4+C] scores: cx, cy, w, h, then C class scores.
//   - dims: The tensor shape.
//   - xRatio: Horizontal letterbox ratio.
//   - yRatio: Vertical letterbox ratio.
//
// Returns:
//   - Detections: Boxes in row order and the OR of every row's verdict.
//   - error: An error for a shape that is not [1, M, 4+C]. Rows missing from data are skipped.
func (d *Decoder) Decode(data []float32, dims []int64, xRatio, yRatio float32) (Detections, error) {
	if len(dims) != 3 || dims[0] != 1 || dims[1] < 0 || dims[2] < 5 {
		return Detections{}, fmt.Errorf("unexpected nms output shape %v", dims)
	}
	stride := int(dims[2])
	rows := len(data) / stride
	if dims[1] < int64(rows) {
		rows = int(dims[1])
	}
	if d.MaxRows > 0 && rows > d.MaxRows {
		rows = d.MaxRows
	}

	out := Detections{Boxes: make([]Box, 0, rows)}
	for r := 0; r < rows; r++ {
		row := data[r*stride : (r+1)*stride]
		label, score := argmax(row[4:])

		cx, cy, w, h := row[0], row[1], row[2], row[3]
		box := Box{
			Label:       label,
			Name:        d.Labels.Name(label),
			Probability: score,
			Bounding: [4]float32{
				(cx - 0.5*w) * xRatio,
				(cy - 0.5*h) * yRatio,
				w * xRatio,
				h * yRatio,
			},
			Flagged: d.Labels.IsFlagged(label),
		}
		out.NSFW = out.NSFW || (box.Flagged && score > d.Threshold)
		out.Boxes = append(out.Boxes, box)
	}
	return out, nil
}

// argmax returns the first index holding the maximum score.
func argmax(scores []float32) (int, float32) {
	best, bestScore := 0, math32.Inf(-1)
	for i, s := range scores {
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}
