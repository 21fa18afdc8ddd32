// Package inference - Tensor codec and the model call boundary.
package inference

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-nudenet/images"
)

// ConfigTensor is the NMS configuration input: [topK, iouThreshold, scoreThreshold].
type ConfigTensor [3]float32

// NewConfigTensor builds the NMS configuration tensor. Values are passed through unchanged.
func NewConfigTensor(topK, iouThreshold, scoreThreshold float32) ConfigTensor {
	return ConfigTensor{topK, iouThreshold, scoreThreshold}
}

// TopK returns the per-class selection limit.
func (c ConfigTensor) TopK() float32 { return c[0] }

// Tensor returns the config as a gateway tensor of shape [3].
func (c ConfigTensor) Tensor() Tensor {
	data := make([]float32, len(c))
	copy(data, c[:])
	return Tensor{Shape: []int64{int64(len(c))}, Data: data}
}

// EncodeInput packs a letterboxed BGR buffer into a planar (1, 3, S, S) float32 tensor scaled to
// [0,1], with the blue and red planes swapped so the planes come out R, G, B.
//
// Arguments:
//   - src: A square BGR buffer.
//
// Returns:
//   - *tensor.Dense: The NCHW input tensor of length 3*S*S.
//   - error: images.ErrUnsupportedInputFormat if the buffer is not square BGR.
func EncodeInput(src images.PixelBuffer) (*tensor.Dense, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.Order != images.OrderBGR {
		return nil, errors.Wrapf(images.ErrUnsupportedInputFormat, "encoder expects bgr, got %s", src.Order)
	}
	if src.Width != src.Height {
		return nil, errors.Wrapf(images.ErrUnsupportedInputFormat, "encoder expects a square buffer, got %dx%d", src.Width, src.Height)
	}

	size := src.Width
	channelSize := size * size
	data := make([]float32, channelSize*3)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	for i, p := 0, 0; i < channelSize; i, p = i+1, p+3 {
		blue[i] = float32(src.Pix[p]) / 255.0
		green[i] = float32(src.Pix[p+1]) / 255.0
		red[i] = float32(src.Pix[p+2]) / 255.0
	}

	return tensor.New(
		tensor.WithShape(1, 3, size, size),
		tensor.WithBacking(data),
	), nil
}

// ZeroInput returns an all-zero (1, 3, size, size) tensor, used to warm a detector up.
func ZeroInput(size int) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1, 3, size, size),
		tensor.WithBacking(make([]float32, 3*size*size)),
	)
}

// FromDense converts a float32 dense tensor into a gateway tensor sharing its backing slice.
func FromDense(d *tensor.Dense) (Tensor, error) {
	data, ok := d.Data().([]float32)
	if !ok {
		return Tensor{}, errors.Errorf("expected float32 tensor, got %v", d.Dtype())
	}

	shape := d.Shape()
	dims := make([]int64, len(shape))
	for i, s := range shape {
		dims[i] = int64(s)
	}

	t := Tensor{Shape: dims, Data: data}
	return t, t.Validate()
}
