package providers

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Flags is the legacy COREML_FLAG_* bitmask passed to the provider.
	// 0x001: USE_CPU_ONLY, 0x004: ONLY_ENABLE_DEVICE_WITH_ANE, 0x008: ONLY_ALLOW_STATIC_INPUT_SHAPES,
	// 0x010: CREATE_MLPROGRAM.
	// Default: 0
	Flags uint32 `json:"flags" yaml:"flags"`
}

func (o *CoreMLOptions) flags() uint32 {
	if o == nil {
		return 0
	}
	return o.Flags
}
