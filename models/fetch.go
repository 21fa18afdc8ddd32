package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher loads model artifacts from a base path: a local directory or an http(s) URL.
type Fetcher struct {
	// BaseURL is a directory path, a file:// URL, or an http(s) URL.
	BaseURL string
	// Client is used for http(s) base paths. Nil selects http.DefaultClient.
	Client *http.Client
	// Logger receives progress logs. Nil disables logging.
	Logger *zap.SugaredLogger
	// ProgressStep is the minimum percentage between progress logs (default 10).
	ProgressStep float64
}

// Location returns where file is fetched from.
func (f *Fetcher) Location(file string) string {
	base := f.BaseURL
	if u, err := url.Parse(base); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		u.Path = path.Join(u.Path, file)
		return u.String()
	}
	base = strings.TrimPrefix(base, "file://")
	return filepath.Join(base, file)
}

// Fetch returns the bytes of one artifact.
//
// Arguments:
//   - ctx: Cancels an in-flight download.
//   - file: The artifact file name.
//
// Returns:
//   - []byte: The artifact contents.
//   - error: An error if the artifact is missing, the server answers non-2xx, or the body is
//     empty.
func (f *Fetcher) Fetch(ctx context.Context, file string) ([]byte, error) {
	loc := f.Location(file)
	logger := f.logger()

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		data, err = f.download(ctx, loc)
	} else {
		data, err = os.ReadFile(loc)
		if err != nil {
			err = errors.Wrapf(err, "failed to read model %s", loc)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.Errorf("model %s is empty", loc)
	}

	logger.Infow("model fetched", "file", file, "location", loc, "bytes", len(data))
	return data, nil
}

// FetchPair downloads the detector and NMS artifacts concurrently.
//
// Arguments:
//   - ctx: Cancels both downloads; the first failure cancels the other.
//   - detector: The detector file name.
//   - nms: The NMS file name.
//
// Returns:
//   - []byte: The detector bytes.
//   - []byte: The NMS bytes.
//   - error: The first failure.
func (f *Fetcher) FetchPair(ctx context.Context, detector, nms string) ([]byte, []byte, error) {
	var detData, nmsData []byte

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detData, err = f.Fetch(ctx, detector)
		return err
	})
	g.Go(func() error {
		var err error
		nmsData, err = f.Fetch(ctx, nms)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return detData, nmsData, nil
}

func (f *Fetcher) download(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid model url %s", loc)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download %s", loc)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("failed to download %s: %s", loc, resp.Status)
	}

	step := f.ProgressStep
	if step <= 0 {
		step = 10
	}
	body := &progressReader{
		r:      resp.Body,
		total:  resp.ContentLength,
		step:   step,
		report: func(pct float64) { f.logger().Infow("downloading model", "url", loc, "progress", fmt.Sprintf("%.2f%%", pct)) },
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", loc)
	}
	return data, nil
}

func (f *Fetcher) logger() *zap.SugaredLogger {
	if f.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return f.Logger
}

// progressReader reports read progress against a known total in steps of at least step percent.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   float64
	step   float64
	report func(pct float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && p.report != nil {
		pct := float64(p.read) / float64(p.total) * 100
		if pct-p.last >= p.step || (err == io.EOF && pct != p.last) {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}

// Save writes an artifact into dir, creating it if needed.
func Save(dir, file string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", dir)
	}
	dst := filepath.Join(dir, filepath.Base(file))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", dst)
	}
	return dst, nil
}
