package images

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Preprocessor turns a decoded RGBA buffer into a letterboxed BGR buffer of size x size.
type Preprocessor func(src PixelBuffer, size int) (LetterboxResult, error)

// Backend names a preprocessing implementation.
type Backend string

const (
	// BackendGo is the pure-Go converter and letterbox.
	BackendGo Backend = "go"
	// BackendOpenCV uses gocv; only registered in builds with the gocv tag.
	BackendOpenCV Backend = "opencv"
)

var (
	backendsMu sync.RWMutex
	backends   = map[Backend]Preprocessor{
		BackendGo: Preprocess,
	}
)

// RegisterBackend makes a preprocessor available under name.
func RegisterBackend(name Backend, p Preprocessor) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = p
}

// PreprocessorFor resolves a backend by name. An empty name selects BackendGo.
//
// Arguments:
//   - name: The backend name.
//
// Returns:
//   - Preprocessor: The registered implementation.
//   - error: An error naming the available backends when name is not registered.
func PreprocessorFor(name Backend) (Preprocessor, error) {
	if name == "" {
		name = BackendGo
	}

	backendsMu.RLock()
	defer backendsMu.RUnlock()

	p, ok := backends[name]
	if !ok {
		available := make([]string, 0, len(backends))
		for k := range backends {
			available = append(available, string(k))
		}
		sort.Strings(available)
		return nil, errors.Errorf("preprocess backend %q not available (have %v)", name, available)
	}
	return p, nil
}

// Preprocess is the pure-Go pipeline: RGBA to BGR, then letterbox. The intermediate BGR buffer
// is released before returning.
func Preprocess(src PixelBuffer, size int) (LetterboxResult, error) {
	if src.Empty() {
		return LetterboxResult{}, errors.Wrapf(ErrEmptyImage, "%dx%d", src.Width, src.Height)
	}

	bgr, err := ToBGR(src)
	if err != nil {
		return LetterboxResult{}, err
	}
	defer bgr.Release()

	return Letterbox(bgr, size)
}
