// Package config - Runtime configuration for the NudeNet detector and its surfaces.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-nudenet/images"
	"github.com/nvr-ai/go-nudenet/inference/providers"
	"github.com/nvr-ai/go-nudenet/models"
)

// DefaultModelBaseURL is the directory holding the artifacts when no base path is configured.
const DefaultModelBaseURL = "./model"

// ModelConfig selects the detector variant and where its artifacts live.
type ModelConfig struct {
	// Variant is the detector name, e.g. "320n".
	Variant models.Name `json:"variant" yaml:"variant"`
	// BaseURL is a directory, file:// or http(s) location holding the artifacts.
	BaseURL string `json:"base_url" yaml:"base_url"`
	// InputSize overrides the variant's square input size when non-zero.
	InputSize int `json:"input_size" yaml:"input_size"`
}

// NMSConfig is fed to the suppression model as [topK, iou, score].
type NMSConfig struct {
	TopK           int     `json:"top_k"           yaml:"top_k"`
	IoUThreshold   float32 `json:"iou_threshold"   yaml:"iou_threshold"`
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
}

// PolicyConfig controls the NSFW verdict.
type PolicyConfig struct {
	// Threshold is the score a flagged box must strictly exceed.
	Threshold float32 `json:"threshold" yaml:"threshold"`
}

// PreprocessConfig selects the letterbox backend.
type PreprocessConfig struct {
	Backend images.Backend `json:"backend" yaml:"backend"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// CacheSize is the number of verdicts kept, keyed by body hash. Zero disables the cache.
	CacheSize int `json:"cache_size" yaml:"cache_size"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Config is the complete configuration.
type Config struct {
	Model      ModelConfig      `json:"model"      yaml:"model"`
	NMS        NMSConfig        `json:"nms"        yaml:"nms"`
	Policy     PolicyConfig     `json:"policy"     yaml:"policy"`
	Runtime    providers.Config `json:"runtime"    yaml:"runtime"`
	Preprocess PreprocessConfig `json:"preprocess" yaml:"preprocess"`
	Server     ServerConfig     `json:"server"     yaml:"server"`
	Log        LogConfig        `json:"log"        yaml:"log"`
}

// Default returns the configuration the application ships with.
//
// Returns:
//   - Config: 320n at 320x320, topK 100, IoU 0.45, score 0.25, verdict threshold 0.6.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Variant: models.ModelName320n,
			BaseURL: DefaultModelBaseURL,
		},
		NMS: NMSConfig{
			TopK:           100,
			IoUThreshold:   0.45,
			ScoreThreshold: 0.25,
		},
		Policy:     PolicyConfig{Threshold: 0.6},
		Runtime:    providers.DefaultConfig(),
		Preprocess: PreprocessConfig{Backend: images.BackendGo},
		Server: ServerConfig{
			Addr:         ":8080",
			CacheSize:    256,
			MaxBodyBytes: 20 << 20,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults.
//
// Arguments:
//   - path: The YAML file. Empty returns the defaults.
//
// Returns:
//   - Config: The merged, validated configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Variant resolves the configured detector variant with any input size override applied.
func (c Config) Variant() (models.Variant, error) {
	v, err := models.VariantFor(c.Model.Variant)
	if err != nil {
		return models.Variant{}, err
	}
	if c.Model.InputSize > 0 {
		v.Size = c.Model.InputSize
	}
	return v, nil
}

// MaxRows is the most NMS rows the decoder will read: topK per class.
func (c Config) MaxRows() int {
	return c.NMS.TopK * len(models.Labels)
}

// Validate checks ranges and that every named backend exists.
func (c Config) Validate() error {
	if _, err := c.Variant(); err != nil {
		return err
	}
	if c.Model.InputSize < 0 {
		return errors.Errorf("model.input_size must be positive, got %d", c.Model.InputSize)
	}
	if c.NMS.TopK <= 0 {
		return errors.Errorf("nms.top_k must be positive, got %d", c.NMS.TopK)
	}
	if c.NMS.IoUThreshold < 0 || c.NMS.IoUThreshold > 1 {
		return errors.Errorf("nms.iou_threshold must be in [0,1], got %v", c.NMS.IoUThreshold)
	}
	if c.NMS.ScoreThreshold < 0 || c.NMS.ScoreThreshold > 1 {
		return errors.Errorf("nms.score_threshold must be in [0,1], got %v", c.NMS.ScoreThreshold)
	}
	if c.Policy.Threshold < 0 || c.Policy.Threshold > 1 {
		return errors.Errorf("policy.threshold must be in [0,1], got %v", c.Policy.Threshold)
	}
	if _, err := images.PreprocessorFor(c.Preprocess.Backend); err != nil {
		return err
	}
	if c.Server.CacheSize < 0 {
		return errors.Errorf("server.cache_size must not be negative, got %d", c.Server.CacheSize)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	return c.Runtime.Validate()
}
