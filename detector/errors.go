package detector

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-nudenet/images"
	"github.com/nvr-ai/go-nudenet/inference"
	"github.com/nvr-ai/go-nudenet/metrics"
)

var (
	// ErrNotReady is returned by every Detect call made before Init has completed.
	ErrNotReady = errors.New("detector is not ready")
	// ErrModelUnavailable is returned by Init when an artifact cannot be fetched.
	ErrModelUnavailable = errors.New("model artifact unavailable")
)

// failureKind maps an error onto the nudenet_failures_total label.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrNotReady):
		return metrics.FailureNotReady
	case errors.Is(err, images.ErrEmptyImage):
		return metrics.FailureEmptyImage
	case errors.Is(err, images.ErrUnsupportedInputFormat):
		return metrics.FailureUnsupported
	case errors.Is(err, inference.ErrInferenceFailure):
		return metrics.FailureInference
	default:
		return metrics.FailureOther
	}
}
