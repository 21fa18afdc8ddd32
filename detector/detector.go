// Package detector - The NudeNet detection pipeline: letterbox, detector, NMS and verdict.
package detector

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-nudenet/config"
	"github.com/nvr-ai/go-nudenet/images"
	"github.com/nvr-ai/go-nudenet/inference"
	"github.com/nvr-ai/go-nudenet/inference/providers"
	"github.com/nvr-ai/go-nudenet/metrics"
	"github.com/nvr-ai/go-nudenet/models"
	"github.com/nvr-ai/go-nudenet/models/postprocess"
)

// Opener loads one model artifact.
type Opener func(ctx context.Context, artifact models.Artifact, data []byte) (inference.Model, error)

// Fetcher returns the bytes of the detector and NMS artifacts.
type Fetcher interface {
	FetchPair(ctx context.Context, detector, nms string) ([]byte, []byte, error)
}

// SessionOpener opens artifacts as ONNX Runtime sessions.
//
// Arguments:
//   - provider: Execution provider and threading for every session.
//   - logger: Receives session lifecycle logs.
//
// Returns:
//   - Opener: The opener.
func SessionOpener(provider providers.Config, logger *zap.SugaredLogger) Opener {
	return func(_ context.Context, artifact models.Artifact, data []byte) (inference.Model, error) {
		session, err := inference.NewSession(inference.SessionArgs{
			Name:      artifact.Name,
			ModelData: data,
			Inputs:    artifact.Inputs,
			Outputs:   artifact.Outputs,
			Provider:  provider,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(d *Detector) { d.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithPreprocessor overrides the configured preprocess backend.
func WithPreprocessor(p images.Preprocessor) Option {
	return func(d *Detector) { d.preprocess = p }
}

// WithOpener overrides how artifacts are loaded.
func WithOpener(o Opener) Option {
	return func(d *Detector) { d.opener = o }
}

// WithFetcher overrides where artifacts come from.
func WithFetcher(f Fetcher) Option {
	return func(d *Detector) { d.fetcher = f }
}

// Result is the outcome of one detection.
type Result struct {
	postprocess.Detections
	// XRatio and YRatio are the letterbox ratios applied to the boxes.
	XRatio float32 `json:"x_ratio"`
	YRatio float32 `json:"y_ratio"`
	// Width and Height are the source image dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`
	// Size is the square model input size.
	Size int `json:"size"`
	// Stage is StageDecoded on success and StageFailed otherwise.
	Stage Stage `json:"stage"`
}

// Detector runs NudeNet over images. It must be initialized with Init before use; after that
// Detect is safe for concurrent use.
type Detector struct {
	cfg     config.Config
	variant models.Variant
	nms     inference.ConfigTensor
	decoder *postprocess.Decoder

	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	preprocess images.Preprocessor
	opener     Opener
	fetcher    Fetcher

	initMu  sync.Mutex
	gateway atomic.Pointer[inference.Gateway]
}

// New creates a detector that is not yet ready.
//
// Arguments:
//   - cfg: The configuration; validated here.
//   - opts: Overrides for logging, metrics, preprocessing and model loading.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if cfg is invalid.
func New(cfg config.Config, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid detector config")
	}
	variant, err := cfg.Variant()
	if err != nil {
		return nil, err
	}

	d := &Detector{
		cfg:     cfg,
		variant: variant,
		nms:     inference.NewConfigTensor(float32(cfg.NMS.TopK), cfg.NMS.IoUThreshold, cfg.NMS.ScoreThreshold),
		decoder: postprocess.NewDecoder(cfg.Policy.Threshold, cfg.MaxRows()),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = zap.NewNop().Sugar()
	}
	if d.preprocess == nil {
		if d.preprocess, err = images.PreprocessorFor(cfg.Preprocess.Backend); err != nil {
			return nil, err
		}
	}
	if d.opener == nil {
		d.opener = SessionOpener(cfg.Runtime, d.logger)
	}
	if d.fetcher == nil {
		d.fetcher = &models.Fetcher{BaseURL: cfg.Model.BaseURL, Logger: d.logger}
	}

	return d, nil
}

// Init fetches both artifacts, opens them, warms the detector up with a zero tensor and only
// then marks the detector ready. On failure nothing is published and every opened model is
// closed. Calling Init on a ready detector is a no-op.
//
// Arguments:
//   - ctx: Cancels the artifact downloads.
//
// Returns:
//   - error: ErrModelUnavailable or inference.ErrInferenceFailure wrapping the cause.
func (d *Detector) Init(ctx context.Context) error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	if d.Ready() {
		return nil
	}

	start := time.Now()
	d.logger.Infow("loading models",
		"variant", d.variant.Name,
		"detector", d.variant.Detector.File,
		"nms", d.variant.NMS.File,
		"size", d.variant.Size,
	)

	detData, nmsData, err := d.fetcher.FetchPair(ctx, d.variant.Detector.File, d.variant.NMS.File)
	if err != nil {
		return multierr.Append(ErrModelUnavailable, err)
	}

	gw, err := d.open(ctx, detData, nmsData)
	if err != nil {
		return err
	}

	d.logger.Infow("warming up model", "variant", d.variant.Name)
	if err := d.warmUp(ctx, gw); err != nil {
		return multierr.Append(err, closeGateway(gw))
	}

	d.gateway.Store(gw)
	elapsed := time.Since(start)
	d.metrics.ObserveModelLoad(elapsed)
	d.metrics.SetReady(true)
	d.logger.Infow("models ready", "variant", d.variant.Name, "elapsed", elapsed)

	return nil
}

// InitAsync runs Init in the background. The channel receives Init's result and is closed.
func (d *Detector) InitAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := d.Init(ctx)
		if err != nil {
			d.logger.Errorw("model initialization failed", "error", err)
		}
		done <- err
	}()
	return done
}

func (d *Detector) open(ctx context.Context, detData, nmsData []byte) (*inference.Gateway, error) {
	det, err := d.opener(ctx, d.variant.Detector, detData)
	if err != nil {
		return nil, wrapInference(err, "failed to open detector")
	}

	nms, err := d.opener(ctx, d.variant.NMS, nmsData)
	if err != nil {
		return nil, multierr.Append(wrapInference(err, "failed to open nms"), det.Close())
	}

	return &inference.Gateway{Detector: det, NMS: nms}, nil
}

func (d *Detector) warmUp(ctx context.Context, gw *inference.Gateway) error {
	in, err := inference.FromDense(inference.ZeroInput(d.variant.Size))
	if err != nil {
		return wrapInference(err, "warm-up input")
	}
	if _, err := gw.RunDetector(ctx, in); err != nil {
		return errors.Wrap(err, "warm-up failed")
	}
	return nil
}

// Ready reports whether Init has completed.
func (d *Detector) Ready() bool {
	return d.gateway.Load() != nil
}

// Size returns the square model input size.
func (d *Detector) Size() int {
	return d.variant.Size
}

// Threshold returns the verdict threshold.
func (d *Detector) Threshold() float32 {
	return d.decoder.Threshold
}

// Labels returns the class table the decoder names boxes from.
func (d *Detector) Labels() models.LabelSet {
	return d.decoder.Labels
}

// Detect runs the pipeline over a decoded image.
func (d *Detector) Detect(ctx context.Context, img image.Image) (Result, error) {
	if !d.Ready() {
		return d.fail(ErrNotReady)
	}
	px := images.FromImage(img)
	defer px.Release()
	return d.DetectPixels(ctx, px)
}

// DetectBytes decodes an encoded image and runs the pipeline over it.
func (d *Detector) DetectBytes(ctx context.Context, data []byte) (Result, error) {
	if !d.Ready() {
		return d.fail(ErrNotReady)
	}
	img, format, err := images.DecodeBytes(data)
	if err != nil {
		return d.fail(err)
	}
	d.logger.Debugw("image decoded", "format", format, "bounds", img.Bounds())
	return d.Detect(ctx, img)
}

// DetectPixels runs the pipeline over an RGBA or RGB pixel buffer.
//
// Order of operations:
//  1. Validation: an empty image fails before any buffer or tensor is created.
//  2. Preprocessing: color conversion and letterbox to the model size.
//  3. Encoding: planar, normalized input tensor.
//  4. Detector, then NMS.
//  5. Decoding: boxes in NMS row order and the verdict.
//
// Arguments:
//   - ctx: Passed to both models.
//   - src: The source pixels. Not modified.
//
// Returns:
//   - Result: The detections, the ratios used and StageDecoded.
//   - error: ErrNotReady, images.ErrEmptyImage, images.ErrUnsupportedInputFormat or
//     inference.ErrInferenceFailure; the Result then carries only StageFailed.
func (d *Detector) DetectPixels(ctx context.Context, src images.PixelBuffer) (Result, error) {
	gw := d.gateway.Load()
	if gw == nil {
		return d.fail(ErrNotReady)
	}
	if err := src.Validate(); err != nil {
		return d.fail(err)
	}

	stage := StageIdle
	size := d.variant.Size

	start := time.Now()
	lb, err := d.preprocess(src, size)
	if err != nil {
		return d.fail(err)
	}
	defer lb.Release()

	dense, err := inference.EncodeInput(lb.Pixels)
	if err != nil {
		return d.fail(err)
	}
	input, err := inference.FromDense(dense)
	if err != nil {
		return d.fail(wrapInference(err, "encode"))
	}
	d.observe("preprocess", start)

	if stage, err = stage.Advance(StageDetectorRunning); err != nil {
		return d.fail(err)
	}
	start = time.Now()
	raw, err := gw.RunDetector(ctx, input)
	if err != nil {
		return d.fail(err)
	}
	d.observe("detector", start)

	if stage, err = stage.Advance(StageNMSRunning); err != nil {
		return d.fail(err)
	}
	start = time.Now()
	selected, err := gw.RunNMS(ctx, raw, d.nms)
	if err != nil {
		return d.fail(err)
	}
	d.observe("nms", start)

	start = time.Now()
	detections, err := d.decoder.Decode(selected.Data, selected.Shape, lb.XRatio, lb.YRatio)
	if err != nil {
		return d.fail(wrapInference(err, "decode"))
	}
	if stage, err = stage.Advance(StageDecoded); err != nil {
		return d.fail(err)
	}
	d.observe("decode", start)

	d.metrics.ObserveDetection(detections.NSFW)
	d.logger.Debugw("detection complete",
		"width", src.Width,
		"height", src.Height,
		"boxes", len(detections.Boxes),
		"nsfw", detections.NSFW,
	)

	return Result{
		Detections: detections,
		XRatio:     lb.XRatio,
		YRatio:     lb.YRatio,
		Width:      src.Width,
		Height:     src.Height,
		Size:       size,
		Stage:      stage,
	}, nil
}

// Close releases both models and marks the detector not ready. It must not race with
// in-flight Detect calls.
func (d *Detector) Close() error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	gw := d.gateway.Swap(nil)
	if gw == nil {
		return nil
	}
	d.metrics.SetReady(false)
	return closeGateway(gw)
}

func (d *Detector) fail(err error) (Result, error) {
	d.metrics.ObserveFailure(failureKind(err))
	d.logger.Debugw("detection failed", "error", err)
	return Result{Stage: StageFailed}, err
}

func (d *Detector) observe(stage string, start time.Time) {
	elapsed := time.Since(start)
	d.metrics.ObserveStage(stage, elapsed)
	d.logger.Debugw("stage complete", "stage", stage, "elapsed", elapsed)
}

func closeGateway(gw *inference.Gateway) error {
	var err error
	if gw.Detector != nil {
		err = multierr.Append(err, gw.Detector.Close())
	}
	if gw.NMS != nil {
		err = multierr.Append(err, gw.NMS.Close())
	}
	return err
}

func wrapInference(err error, msg string) error {
	if errors.Is(err, inference.ErrInferenceFailure) {
		return errors.Wrap(err, msg)
	}
	return errors.Wrapf(inference.ErrInferenceFailure, "%s: %v", msg, err)
}
