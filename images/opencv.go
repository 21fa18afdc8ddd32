//go:build gocv

package images

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

func init() {
	RegisterBackend(BackendOpenCV, PreprocessOpenCV)
}

// PreprocessOpenCV runs the color conversion, bottom/right padding and bilinear resize with
// OpenCV. Every Mat is closed before returning.
//
// Arguments:
//   - src: An RGBA buffer.
//   - size: The model input side length.
//
// Returns:
//   - LetterboxResult: A BGR size x size buffer and the scale ratios.
//   - error: ErrEmptyImage, ErrUnsupportedInputFormat, or an OpenCV failure.
func PreprocessOpenCV(src PixelBuffer, size int) (LetterboxResult, error) {
	if err := src.Validate(); err != nil {
		return LetterboxResult{}, err
	}
	if src.Order != OrderRGBA {
		return LetterboxResult{}, errors.Wrapf(ErrUnsupportedInputFormat, "opencv backend expects rgba, got %s", src.Order)
	}
	if size <= 0 {
		return LetterboxResult{}, errors.Errorf("invalid letterbox size %d", size)
	}

	maxSize, xRatio, yRatio, err := Ratios(src.Width, src.Height)
	if err != nil {
		return LetterboxResult{}, err
	}

	mat, err := gocv.NewMatFromBytes(src.Height, src.Width, gocv.MatTypeCV8UC4, src.Pix)
	if err != nil {
		return LetterboxResult{}, errors.Wrap(err, "failed to wrap pixels in mat")
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(bgr, &padded, 0, maxSize-src.Height, 0, maxSize-src.Width, gocv.BorderConstant, color.RGBA{})

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(padded, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		return LetterboxResult{}, errors.New("opencv resize produced an empty mat")
	}

	out := PixelBuffer{Width: size, Height: size, Order: OrderBGR, Pix: make([]uint8, size*size*3)}
	copy(out.Pix, resized.ToBytes())

	return LetterboxResult{Pixels: out, XRatio: xRatio, YRatio: yRatio}, nil
}
