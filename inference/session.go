package inference

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-nudenet/inference/providers"
)

// Session is an ONNX Runtime model implementing Model. The native session is shared by all
// callers; every Run allocates and destroys its own tensors.
type Session struct {
	session *ort.DynamicAdvancedSession
	name    string
	inputs  []string
	outputs []string
	logger  *zap.SugaredLogger
}

// SessionArgs represents the arguments for creating a new ONNX session.
type SessionArgs struct {
	// Name identifies the model in logs and errors.
	Name string
	// ModelPath is the path to the ONNX model file. Ignored when ModelData is set.
	ModelPath string
	// ModelData is a serialized ONNX graph already in memory.
	ModelData []byte
	// Inputs are the model's input names, in the order Run binds them.
	Inputs []string
	// Outputs are the model's output names.
	Outputs []string
	// Provider selects the execution provider and threading.
	Provider providers.Config
	// Logger receives session lifecycle logs. Nil disables logging.
	Logger *zap.SugaredLogger
}

// NewSession creates a new ONNX Runtime session.
//
// Order of operations:
//  1. Environment setup: loads the native library once per process.
//  2. Session options: threading, graph optimization and execution provider.
//  3. Session creation: loads the graph from bytes or path.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The loaded session.
//   - error: An error if the session creation fails.
func NewSession(args SessionArgs) (*Session, error) {
	if len(args.Inputs) == 0 || len(args.Outputs) == 0 {
		return nil, errors.Errorf("session %q needs input and output names", args.Name)
	}
	if len(args.ModelData) == 0 && args.ModelPath == "" {
		return nil, errors.Errorf("session %q has no model data or path", args.Name)
	}

	logger := args.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if err := providers.InitializeEnvironment(args.Provider.SharedLibraryPath); err != nil {
		return nil, errors.Wrap(err, "failed to initialize onnxruntime")
	}

	options, err := providers.NewSessionOptions(args.Provider)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	var session *ort.DynamicAdvancedSession
	if len(args.ModelData) > 0 {
		session, err = ort.NewDynamicAdvancedSessionWithONNXData(args.ModelData, args.Inputs, args.Outputs, options)
	} else {
		session, err = ort.NewDynamicAdvancedSession(args.ModelPath, args.Inputs, args.Outputs, options)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error creating ORT session %q", args.Name)
	}

	logger.Infow("model session created",
		"model", args.Name,
		"backend", args.Provider.Backend,
		"inputs", args.Inputs,
		"outputs", args.Outputs,
	)

	return &Session{
		session: session,
		name:    args.Name,
		inputs:  args.Inputs,
		outputs: args.Outputs,
		logger:  logger,
	}, nil
}

// Run binds the named inputs, executes the graph and copies every output into Go memory. All
// native tensors are destroyed before Run returns, on success and failure alike.
//
// Arguments:
//   - ctx: Unused by the runtime; a run always completes or fails.
//   - inputs: Tensors keyed by input name; every configured input must be present.
//
// Returns:
//   - map[string]Tensor: Outputs keyed by output name.
//   - error: ErrInferenceFailure wrapping the runtime error.
func (s *Session) Run(_ context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	if s.session == nil {
		return nil, errors.Wrapf(ErrInferenceFailure, "session %q is closed", s.name)
	}

	values := make([]ort.Value, 0, len(s.inputs))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()

	for _, name := range s.inputs {
		in, ok := inputs[name]
		if !ok {
			return nil, errors.Wrapf(ErrInferenceFailure, "session %q: missing input %q", s.name, name)
		}
		if err := in.Validate(); err != nil {
			return nil, errors.Wrapf(ErrInferenceFailure, "session %q: input %q: %v", s.name, name, err)
		}
		t, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
		if err != nil {
			return nil, errors.Wrapf(ErrInferenceFailure, "session %q: input %q: %v", s.name, name, err)
		}
		values = append(values, t)
	}

	outs := make([]ort.Value, len(s.outputs))
	defer func() {
		for _, o := range outs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	if err := s.session.Run(values, outs); err != nil {
		return nil, errors.Wrapf(ErrInferenceFailure, "session %q: %v", s.name, err)
	}

	result := make(map[string]Tensor, len(outs))
	for i, o := range outs {
		t, ok := o.(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Wrapf(ErrInferenceFailure, "session %q: output %q has type %T", s.name, s.outputs[i], o)
		}
		data := t.GetData()
		copied := make([]float32, len(data))
		copy(copied, data)
		result[s.outputs[i]] = Tensor{Shape: []int64(t.GetShape()), Data: copied}
	}

	return result, nil
}

// Close releases the native session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return fmt.Errorf("error destroying ORT session %q: %w", s.name, err)
	}
	return nil
}

// Name returns the model name the session was created with.
func (s *Session) Name() string {
	return s.name
}
