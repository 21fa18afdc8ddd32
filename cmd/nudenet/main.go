// Package main - nudenet command line: one-shot detection, HTTP serving and model fetching.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-nudenet/benchmark"
	"github.com/nvr-ai/go-nudenet/config"
	"github.com/nvr-ai/go-nudenet/detector"
	"github.com/nvr-ai/go-nudenet/images"
	"github.com/nvr-ai/go-nudenet/inference/providers"
	"github.com/nvr-ai/go-nudenet/logging"
	"github.com/nvr-ai/go-nudenet/metrics"
	"github.com/nvr-ai/go-nudenet/models"
	"github.com/nvr-ai/go-nudenet/render"
	"github.com/nvr-ai/go-nudenet/server"
	"github.com/nvr-ai/go-nudenet/util"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:            "nudenet",
		Usage:           "detect exposed body parts in images",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"NUDENET_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
			&cli.StringFlag{
				Name:  "models",
				Usage: "directory or URL holding the model artifacts",
			},
			&cli.StringFlag{
				Name:  "variant",
				Usage: "detector variant (" + variantList() + ")",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "run detection on image files and print one JSON result per line",
				ArgsUsage: "FILE|DIR...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "render",
						Usage: "write annotated copies of each image into `DIR`",
					},
				},
				Action: detectAction,
			},
			{
				Name:  "serve",
				Usage: "serve the detection API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "override the configured listen address",
					},
				},
				Action: serveAction,
			},
			{
				Name:      "bench",
				Usage:     "measure detection throughput and latency",
				ArgsUsage: "FILE|DIR...",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "iterations", Value: 100, Usage: "measured detections"},
					&cli.IntFlag{Name: "warmup", Value: 5, Usage: "unmeasured detections run first"},
					&cli.IntFlag{Name: "concurrency", Value: 1, Usage: "concurrent callers"},
					&cli.StringFlag{Name: "out", Usage: "write JSON and CSV results into `DIR`"},
				},
				Action: benchAction,
			},
			{
				Name:  "fetch",
				Usage: "download the detector and NMS artifacts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Usage:    "save artifacts into `DIR`",
						Required: true,
					},
				},
				Action: fetchAction,
			},
		},
	}
}

func variantList() string {
	names := models.VariantNames()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}

// setup loads the configuration with flag overrides and builds the logger.
func setup(c *cli.Context) (config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("models"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := c.String("variant"); v != "" {
		cfg.Model.Variant = models.Name(v)
	}
	if cfg.Runtime.SharedLibraryPath == "" {
		cfg.Runtime.SharedLibraryPath = providers.GetSharedLibPath()
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logging.New("nudenet", cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// shutdown closes both model sessions, then the runtime environment.
func shutdown(d *detector.Detector, logger *zap.SugaredLogger) {
	if err := d.Close(); err != nil {
		logger.Warnw("failed to close detector", "error", err)
	}
	if err := providers.DestroyEnvironment(); err != nil {
		logger.Warnw("failed to destroy runtime environment", "error", err)
	}
}

type fileResult struct {
	File string `json:"file"`
	detector.Result
	Error string `json:"error,omitempty"`
}

func detectAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one image file is required")
	}
	files, err := util.ExpandImagePaths(c.Args().Slice())
	if err != nil {
		return err
	}
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	d, err := detector.New(cfg, detector.WithLogger(logger))
	if err != nil {
		return err
	}
	defer shutdown(d, logger)
	if err := d.Init(c.Context); err != nil {
		return err
	}

	renderDir := c.String("render")
	renderer := render.New(d.Threshold())
	enc := json.NewEncoder(os.Stdout)

	failed := 0
	for _, file := range files {
		out := fileResult{File: file}

		img, _, err := images.Open(file)
		if err == nil {
			out.Result, err = d.Detect(c.Context, img)
		}
		if err != nil {
			failed++
			out.Error = err.Error()
			logger.Warnw("detection failed", "file", file, "error", err)
		} else if renderDir != "" {
			dst := filepath.Join(renderDir, strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))+".png")
			if err := os.MkdirAll(renderDir, 0o755); err != nil {
				return errors.Wrapf(err, "failed to create %s", renderDir)
			}
			if err := render.Save(dst, renderer.Render(img, out.Detections, out.Size)); err != nil {
				return err
			}
			logger.Infow("rendered", "file", file, "output", dst)
		}

		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, "failed to write result")
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d images failed", failed, len(files)), 2)
	}
	return nil
}

func serveAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	if v := c.String("addr"); v != "" {
		cfg.Server.Addr = v
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	d, err := detector.New(cfg, detector.WithLogger(logger), detector.WithMetrics(m))
	if err != nil {
		return err
	}
	defer shutdown(d, logger)

	srv, err := server.New(d, cfg.Server, logger, m)
	if err != nil {
		return err
	}

	initDone := d.InitAsync(ctx)
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.ListenAndServe(ctx, cfg.Server.Addr) }()

	select {
	case err := <-initDone:
		if err != nil {
			stop()
			<-serveDone
			return err
		}
	case err := <-serveDone:
		return err
	}
	return <-serveDone
}

func benchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one image file is required")
	}
	files, err := util.LoadImageFiles(c.Args().Slice())
	if err != nil {
		return err
	}
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	d, err := detector.New(cfg, detector.WithLogger(logger))
	if err != nil {
		return err
	}
	defer shutdown(d, logger)
	if err := d.Init(c.Context); err != nil {
		return err
	}

	data := make([][]byte, len(files))
	for i, f := range files {
		data[i] = f.Data
	}

	suite := benchmark.NewSuite(d, data, logger)
	m, err := suite.RunScenario(c.Context, benchmark.Scenario{
		Name:        fmt.Sprintf("%s-c%d", cfg.Model.Variant, c.Int("concurrency")),
		Iterations:  c.Int("iterations"),
		WarmupRuns:  c.Int("warmup"),
		Concurrency: c.Int("concurrency"),
	})
	if err != nil {
		return err
	}

	if out := c.String("out"); out != "" {
		jsonFile, csvFile, err := suite.Save(out)
		if err != nil {
			return err
		}
		logger.Infow("results saved", "json", jsonFile, "csv", csvFile)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func fetchAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	variant, err := cfg.Variant()
	if err != nil {
		return err
	}

	fetcher := &models.Fetcher{BaseURL: cfg.Model.BaseURL, Logger: logger}
	det, nms, err := fetcher.FetchPair(c.Context, variant.Detector.File, variant.NMS.File)
	if err != nil {
		return err
	}

	dir := c.String("dir")
	for file, data := range map[string][]byte{variant.Detector.File: det, variant.NMS.File: nms} {
		dst, err := models.Save(dir, file, data)
		if err != nil {
			return err
		}
		logger.Infow("saved model", "file", dst, "bytes", len(data))
	}
	return nil
}
