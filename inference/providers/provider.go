// Package providers - ONNX Runtime environment, session options and execution providers.
package providers

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// GraphOptimization names an ONNX Runtime graph optimization level.
type GraphOptimization string

const (
	GraphOptimizationDisabled GraphOptimization = "disabled"
	GraphOptimizationBasic    GraphOptimization = "basic"
	GraphOptimizationExtended GraphOptimization = "extended"
	GraphOptimizationAll      GraphOptimization = "all"
)

// Level maps the name to the runtime constant.
func (g GraphOptimization) Level() (ort.GraphOptimizationLevel, error) {
	switch g {
	case GraphOptimizationDisabled:
		return ort.GraphOptimizationLevelDisableAll, nil
	case GraphOptimizationBasic:
		return ort.GraphOptimizationLevelEnableBasic, nil
	case GraphOptimizationExtended, "":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case GraphOptimizationAll:
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, fmt.Errorf("unknown graph optimization level %q", g)
	}
}

// Config selects the execution provider and threading for both model sessions.
type Config struct {
	// Backend specifies the backend to use
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// SharedLibraryPath overrides the platform default onnxruntime library location.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`

	// IntraOpNumThreads sets threads for parallelizing ops (0 lets the runtime decide).
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops (0 lets the runtime decide).
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`

	// GraphOptimization controls graph rewrites applied at load time.
	GraphOptimization GraphOptimization `json:"graph_optimization" yaml:"graph_optimization"`

	CoreML   *CoreMLOptions   `json:"coreml,omitempty"   yaml:"coreml,omitempty"`
	OpenVINO *OpenVINOOptions `json:"openvino,omitempty" yaml:"openvino,omitempty"`
	CUDA     *CUDAOptions     `json:"cuda,omitempty"     yaml:"cuda,omitempty"`
}

// DefaultConfig returns a CPU configuration with extended graph optimizations and threading
// sized to the host.
//
// Returns:
//   - Config: The default configuration.
func DefaultConfig() Config {
	return Config{
		Backend:           CPUProviderBackend,
		IntraOpNumThreads: max(1, runtime.NumCPU()/2),
		InterOpNumThreads: 1,
		GraphOptimization: GraphOptimizationExtended,
	}
}

// Validate checks the backend name, thread counts and optimization level.
func (c Config) Validate() error {
	switch c.Backend {
	case CPUProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend, CUDAProviderBackend:
	case "":
		return fmt.Errorf("backend is required")
	default:
		return fmt.Errorf("unsupported provider backend %q", c.Backend)
	}
	if c.IntraOpNumThreads < 0 {
		return fmt.Errorf("intra_op_num_threads must be >= 0, got %d", c.IntraOpNumThreads)
	}
	if c.InterOpNumThreads < 0 {
		return fmt.Errorf("inter_op_num_threads must be >= 0, got %d", c.InterOpNumThreads)
	}
	if _, err := c.GraphOptimization.Level(); err != nil {
		return err
	}
	return nil
}
