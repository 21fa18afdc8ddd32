package inference

import (
	"context"

	"github.com/pkg/errors"
)

// Tensor names shared with the model artifacts.
const (
	// InputImages is the detector input.
	InputImages = "images"
	// OutputDetector is the raw detector output, [1, 4+classes, boxes].
	OutputDetector = "output0"
	// InputDetection is the NMS input carrying the raw detector output.
	InputDetection = "detection"
	// InputConfig is the NMS input carrying [topK, iou, score].
	InputConfig = "config"
	// OutputSelected is the NMS output, [1, selected, 4+classes].
	OutputSelected = "selected"
)

// ErrInferenceFailure wraps any failure reported by, or detected at, the model boundary.
var ErrInferenceFailure = errors.New("inference engine failure")

// Tensor is a named-tensor value exchanged with a model: a dense float32 array and its shape.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Validate checks that the shape has no negative dimensions and matches the data length.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return errors.New("tensor has no shape")
	}
	for _, d := range t.Shape {
		if d < 0 {
			return errors.Errorf("tensor shape %v has a negative dimension", t.Shape)
		}
	}
	n, limit := int64(1), int64(len(t.Data))
	for _, d := range t.Shape {
		if d == 0 {
			n = 0
			break
		}
		if n > limit/d {
			return errors.Errorf("tensor shape %v needs more than %d values", t.Shape, limit)
		}
		n *= d
	}
	if n != limit {
		return errors.Errorf("tensor shape %v needs %d values, has %d", t.Shape, n, limit)
	}
	return nil
}

// Model is an opaque, loaded model. Implementations must be safe for concurrent Run calls.
type Model interface {
	// Run executes the model over named inputs and returns its named outputs.
	Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error)
	// Close releases the model.
	Close() error
}

// Gateway holds the detector and NMS models and enforces the tensor contract between them.
type Gateway struct {
	Detector Model
	NMS      Model
}

// RunDetector runs the detector over a (1, 3, S, S) input.
//
// Arguments:
//   - ctx: The context for the call.
//   - input: The encoded image tensor.
//
// Returns:
//   - Tensor: The raw output, rank 3 with at least 5 rows per box.
//   - error: ErrInferenceFailure wrapping the cause.
func (g *Gateway) RunDetector(ctx context.Context, input Tensor) (Tensor, error) {
	if g.Detector == nil {
		return Tensor{}, errors.Wrap(ErrInferenceFailure, "detector model not loaded")
	}
	if err := input.Validate(); err != nil {
		return Tensor{}, errors.Wrapf(ErrInferenceFailure, "detector input: %v", err)
	}

	out, err := run(ctx, g.Detector, map[string]Tensor{InputImages: input}, OutputDetector)
	if err != nil {
		return Tensor{}, errors.Wrapf(err, "detector")
	}
	if len(out.Shape) != 3 || out.Shape[1] < 5 {
		return Tensor{}, errors.Wrapf(ErrInferenceFailure, "detector output shape %v, want [1, 4+classes, boxes]", out.Shape)
	}
	return out, nil
}

// RunNMS runs the suppression model over the raw detector output.
//
// Arguments:
//   - ctx: The context for the call.
//   - raw: The detector output.
//   - cfg: The NMS configuration.
//
// Returns:
//   - Tensor: The selected rows, [1, selected, 4+classes].
//   - error: ErrInferenceFailure wrapping the cause.
func (g *Gateway) RunNMS(ctx context.Context, raw Tensor, cfg ConfigTensor) (Tensor, error) {
	if g.NMS == nil {
		return Tensor{}, errors.Wrap(ErrInferenceFailure, "nms model not loaded")
	}

	out, err := run(ctx, g.NMS, map[string]Tensor{
		InputDetection: raw,
		InputConfig:    cfg.Tensor(),
	}, OutputSelected)
	if err != nil {
		return Tensor{}, errors.Wrapf(err, "nms")
	}
	if len(out.Shape) != 3 {
		return Tensor{}, errors.Wrapf(ErrInferenceFailure, "nms output shape %v, want [1, selected, 4+classes]", out.Shape)
	}
	if len(raw.Shape) == 3 && out.Shape[2] != raw.Shape[1] {
		return Tensor{}, errors.Wrapf(
			ErrInferenceFailure, "nms row width %d does not match detector rows %d", out.Shape[2], raw.Shape[1],
		)
	}
	return out, nil
}

func run(ctx context.Context, m Model, inputs map[string]Tensor, output string) (Tensor, error) {
	outputs, err := m.Run(ctx, inputs)
	if err != nil {
		if errors.Is(err, ErrInferenceFailure) {
			return Tensor{}, err
		}
		return Tensor{}, errors.Wrapf(ErrInferenceFailure, "%v", err)
	}

	out, ok := outputs[output]
	if !ok {
		return Tensor{}, errors.Wrapf(ErrInferenceFailure, "missing output %q", output)
	}
	if err := out.Validate(); err != nil {
		return Tensor{}, errors.Wrapf(ErrInferenceFailure, "output %q: %v", output, err)
	}
	return out, nil
}
