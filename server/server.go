// Package server - HTTP surface for the detector: detection, health, readiness and metrics.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-nudenet/config"
	"github.com/nvr-ai/go-nudenet/detector"
	"github.com/nvr-ai/go-nudenet/images"
	"github.com/nvr-ai/go-nudenet/inference"
	"github.com/nvr-ai/go-nudenet/metrics"
)

// Detector is the part of *detector.Detector the server needs.
type Detector interface {
	Ready() bool
	DetectBytes(ctx context.Context, data []byte) (detector.Result, error)
}

// BoxResponse is one detection on the wire.
type BoxResponse struct {
	Label       int        `json:"label"`
	Name        string     `json:"name"`
	Probability float32    `json:"probability"`
	Bounding    [4]float32 `json:"bounding"`
	Flagged     bool       `json:"flagged"`
}

// DetectResponse is the body of a successful POST /v1/detect.
type DetectResponse struct {
	NSFW   bool          `json:"nsfw"`
	Boxes  []BoxResponse `json:"boxes"`
	XRatio float32       `json:"x_ratio"`
	YRatio float32       `json:"y_ratio"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Cached bool          `json:"cached"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server routes requests to a Detector.
type Server struct {
	detector Detector
	cache    *lru.Cache[string, DetectResponse]
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	maxBody  int64
	router   *mux.Router
}

// New builds the router.
//
// Arguments:
//   - d: The detector; requests are rejected with 503 until it is ready.
//   - cfg: Body limit and cache size.
//   - logger: Request logs. Nil disables logging.
//   - m: Served on /metrics. Nil serves an empty registry.
//
// Returns:
//   - *Server: The server.
//   - error: An error if the cache cannot be created.
func New(d Detector, cfg config.ServerConfig, logger *zap.SugaredLogger, m *metrics.Metrics) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		detector: d,
		logger:   logger,
		metrics:  m,
		maxBody:  cfg.MaxBodyBytes,
		router:   mux.NewRouter(),
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, DetectResponse](cfg.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create verdict cache")
		}
		s.cache = cache
	}

	s.router.HandleFunc("/v1/detect", s.handleDetect).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	s.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:           s.router,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Infow("shutting down server", "addr", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.detector.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.detector.Ready() {
		s.writeError(w, detector.ErrNotReady)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	body, err := readImage(r, s.maxBody)
	if err != nil {
		s.logger.Debugw("invalid request", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Code: "too_large", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}

	sum := sha256.Sum256(body)
	key := hex.EncodeToString(sum[:])
	if s.cache != nil {
		if resp, ok := s.cache.Get(key); ok {
			resp.Cached = true
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	res, err := s.detector.DetectBytes(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := toResponse(res)
	if s.cache != nil {
		s.cache.Add(key, resp)
	}

	s.logger.Debugw("detect request",
		"bytes", len(body),
		"nsfw", resp.NSFW,
		"boxes", len(resp.Boxes),
		"elapsed", time.Since(start),
	)
	writeJSON(w, http.StatusOK, resp)
}

func toResponse(res detector.Result) DetectResponse {
	boxes := make([]BoxResponse, len(res.Boxes))
	for i, b := range res.Boxes {
		boxes[i] = BoxResponse{Label: b.Label, Name: b.Name, Probability: b.Probability, Bounding: b.Bounding, Flagged: b.Flagged}
	}
	return DetectResponse{
		NSFW:   res.NSFW,
		Boxes:  boxes,
		XRatio: res.XRatio,
		YRatio: res.YRatio,
		Width:  res.Width,
		Height: res.Height,
	}
}

// readImage extracts the image bytes from a raw, multipart or JSON base64 body.
func readImage(r *http.Request, maxBody int64) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBody); err != nil {
			return nil, errors.Wrap(err, "invalid multipart body")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, errors.Wrap(err, "multipart field \"image\" is required")
		}
		defer file.Close()
		return io.ReadAll(file)
	case "application/json":
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.Wrap(err, "invalid json body")
		}
		return base64.StdEncoding.DecodeString(req.Image)
	default:
		return io.ReadAll(r.Body)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, detector.ErrNotReady):
		status, code = http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, images.ErrEmptyImage):
		status, code = http.StatusUnprocessableEntity, "empty_image"
	case errors.Is(err, images.ErrUnsupportedInputFormat):
		status, code = http.StatusUnprocessableEntity, "unsupported_format"
	case errors.Is(err, inference.ErrInferenceFailure):
		status, code = http.StatusInternalServerError, "inference_failure"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("detect request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
